package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"probeview/internal/config"
	"probeview/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewHTTPClient(&config.GatewayConfig{
		Address: srv.URL,
		Timeout: 5 * time.Second,
	}, zaptest.NewLogger(t))
}

func writeEnvelope(w http.ResponseWriter, data any) {
	payload, _ := json.Marshal(data)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    http.StatusOK,
		"message": "success",
		"data":    json.RawMessage(payload),
	})
}

func TestGetLiveResultsDecodesTimestampFormats(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/targets/target-1/results", r.URL.Path)
		assert.Equal(t, "60", r.URL.Query().Get("lookback"))

		// One epoch-millis timestamp, one ISO-8601 timestamp.
		_, _ = w.Write([]byte(`{
			"code": 200,
			"message": "success",
			"data": [
				{"agent_id": "a1", "agent_name": "fra-1", "timestamp": 1700000000500, "success": true, "latency_ms": 12.5},
				{"agent_id": "a2", "agent_name": "nyc-1", "timestamp": "2023-11-14T22:13:20.500Z", "success": false}
			]
		}`))
	})

	results, err := client.GetLiveResults(context.Background(), "target-1", 60)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, int64(1700000000500), results[0].Timestamp.UnixMilli())
	require.NotNil(t, results[0].LatencyMs)
	assert.Equal(t, 12.5, *results[0].LatencyMs)

	assert.Equal(t, int64(1700000000500), results[1].Timestamp.UnixMilli())
	assert.False(t, results[1].Success)
	assert.Nil(t, results[1].LatencyMs)
}

func TestDispatchDiagnostic(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/targets/target-1/diagnostics", r.URL.Path)

		var body struct {
			AgentIDs []string `json:"agent_ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"a1", "a2"}, body.AgentIDs)

		writeEnvelope(w, types.DispatchReply{CommandID: "cmd-42", Message: "queued"})
	})

	reply, err := client.DispatchDiagnostic(context.Background(), "target-1", []string{"a1", "a2"})
	require.NoError(t, err)
	assert.Equal(t, "cmd-42", reply.CommandID)
}

func TestDispatchDiagnosticRejectsMissingCommandID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, types.DispatchReply{Message: "queued"})
	})

	_, err := client.DispatchDiagnostic(context.Background(), "target-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no command id")
}

func TestGetCommandStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/diagnostics/cmd-42", r.URL.Path)
		writeEnvelope(w, types.CommandStatusReply{
			Status: "completed",
			Results: []types.DiagnosticResult{{
				AgentID: "a1",
				Success: true,
				Hops:    []types.RouteHop{{Hop: 1, Address: "10.0.0.1", AvgMs: 0.8}},
			}},
		})
	})

	reply, err := client.GetCommandStatus(context.Background(), "cmd-42")
	require.NoError(t, err)
	assert.Equal(t, "completed", reply.Status)
	require.Len(t, reply.Results, 1)
	require.Len(t, reply.Results[0].Hops, 1)
	assert.Equal(t, "10.0.0.1", reply.Results[0].Hops[0].Address)
}

func TestGetAgents(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, []types.AgentInfo{
			{ID: "a1", Name: "fra-1", Status: types.AgentStatusActive},
			{ID: "a2", Name: "nyc-1", Status: types.AgentStatusInactive},
		})
	})

	agents, err := client.GetAgents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, types.AgentStatusActive, agents[0].Status)
}

func TestErrorStatusSurfacesBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": "backend down"}`))
	})

	_, err := client.GetLiveResults(context.Background(), "target-1", 60)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestEnvelopeErrorSurfaces(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code": 200, "message": "success", "error": "unknown target"}`))
	})

	_, err := client.GetLiveResults(context.Background(), "target-9", 60)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown target")
}
