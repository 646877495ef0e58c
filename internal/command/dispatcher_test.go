package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"probeview/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// statusStep scripts one status poll; the last step repeats forever
type statusStep struct {
	reply *types.CommandStatusReply
	err   error
}

// scriptedGateway replays scripted dispatch and status-poll behavior
type scriptedGateway struct {
	mu            sync.Mutex
	dispatchReply *types.DispatchReply
	dispatchErr   error
	steps         []statusStep
	statusCalls   int
	agents        []types.AgentInfo
	agentsErr     error
}

func (g *scriptedGateway) GetLiveResults(ctx context.Context, targetID string, lookbackSeconds int) ([]types.ProbeResult, error) {
	return nil, nil
}

func (g *scriptedGateway) DispatchDiagnostic(ctx context.Context, targetID string, agentIDs []string) (*types.DispatchReply, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dispatchReply, g.dispatchErr
}

func (g *scriptedGateway) GetCommandStatus(ctx context.Context, commandID string) (*types.CommandStatusReply, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	step := g.steps[len(g.steps)-1]
	if g.statusCalls < len(g.steps) {
		step = g.steps[g.statusCalls]
	}
	g.statusCalls++
	return step.reply, step.err
}

func (g *scriptedGateway) GetAgents(ctx context.Context) ([]types.AgentInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.agents, g.agentsErr
}

// envelopeRecorder captures envelopes emitted on state changes
type envelopeRecorder struct {
	mu   sync.Mutex
	envs []types.CommandEnvelope
}

func (r *envelopeRecorder) record(env types.CommandEnvelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
}

func (r *envelopeRecorder) statuses() []types.CommandStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.CommandStatus, 0, len(r.envs))
	for _, env := range r.envs {
		out = append(out, env.Status)
	}
	return out
}

func noResults() statusStep {
	return statusStep{reply: &types.CommandStatusReply{Status: "pending"}}
}

func withResult(agentID string) statusStep {
	return statusStep{reply: &types.CommandStatusReply{
		Status: "pending",
		Results: []types.DiagnosticResult{{
			AgentID: agentID,
			Success: true,
			Hops: []types.RouteHop{
				{Hop: 1, Address: "10.0.0.1", AvgMs: 1.2, Sent: 10, Received: 10},
				{Hop: 2, Address: "203.0.113.9", AvgMs: 8.4, Sent: 10, Received: 9, LossPct: 10},
			},
		}},
	}}
}

// newTestDispatcher uses an hour-long interval so the real polling
// chain never fires; tests drive pollOnce by hand.
func newTestDispatcher(t *testing.T, gw *scriptedGateway, maxAttempts int, onChange EnvelopeFunc) *Dispatcher {
	t.Helper()
	return NewDispatcher(gw, time.Hour, maxAttempts, zaptest.NewLogger(t), onChange)
}

func (d *Dispatcher) currentGen() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen
}

func TestDispatchCompletesOnFirstResult(t *testing.T) {
	gw := &scriptedGateway{
		dispatchReply: &types.DispatchReply{CommandID: "cmd-1"},
		steps:         []statusStep{noResults(), withResult("a1")},
	}
	rec := &envelopeRecorder{}
	d := newTestDispatcher(t, gw, 30, rec.record)
	ctx := context.Background()

	commandID, err := d.Dispatch(ctx, "target-1", []string{"a1", "a2", "a3"})
	require.NoError(t, err)
	require.Equal(t, "cmd-1", commandID)
	assert.Equal(t, types.CommandStatusPending, d.Envelope().Status)
	assert.Equal(t, 3, d.Envelope().ExpectedAgents)

	gen := d.currentGen()
	assert.False(t, d.pollOnce(ctx, commandID, gen))
	assert.Equal(t, types.CommandStatusPending, d.Envelope().Status)

	// One agent reporting is enough; the dispatcher never waits for
	// the rest of the fleet.
	assert.True(t, d.pollOnce(ctx, commandID, gen))

	env := d.Envelope()
	assert.Equal(t, types.CommandStatusCompleted, env.Status)
	assert.Equal(t, 2, env.Attempts)
	require.Len(t, env.Results, 1)
	assert.Equal(t, "a1", env.Results[0].AgentID)
	assert.Equal(t, []types.CommandStatus{
		types.CommandStatusPending,
		types.CommandStatusCompleted,
	}, rec.statuses())
}

func TestDispatchCompletesOnBackendCompletion(t *testing.T) {
	gw := &scriptedGateway{
		dispatchReply: &types.DispatchReply{CommandID: "cmd-1"},
		steps:         []statusStep{{reply: &types.CommandStatusReply{Status: "completed"}}},
	}
	d := newTestDispatcher(t, gw, 30, nil)
	ctx := context.Background()

	commandID, err := d.Dispatch(ctx, "target-1", []string{"a1"})
	require.NoError(t, err)

	assert.True(t, d.pollOnce(ctx, commandID, d.currentGen()))
	env := d.Envelope()
	assert.Equal(t, types.CommandStatusCompleted, env.Status)
	assert.Empty(t, env.Results)
}

func TestDispatchTimesOutExactlyAtCap(t *testing.T) {
	gw := &scriptedGateway{
		dispatchReply: &types.DispatchReply{CommandID: "cmd-1"},
		steps:         []statusStep{noResults()},
	}
	d := newTestDispatcher(t, gw, 30, nil)
	ctx := context.Background()

	commandID, err := d.Dispatch(ctx, "target-1", []string{"a1"})
	require.NoError(t, err)
	gen := d.currentGen()

	for attempt := 1; attempt < 30; attempt++ {
		require.False(t, d.pollOnce(ctx, commandID, gen), "attempt %d", attempt)
		require.Equal(t, types.CommandStatusPending, d.Envelope().Status, "attempt %d", attempt)
	}

	assert.True(t, d.pollOnce(ctx, commandID, gen))
	env := d.Envelope()
	assert.Equal(t, types.CommandStatusTimedOut, env.Status)
	assert.Equal(t, 30, env.Attempts)
}

func TestDispatchTransientErrorsCountTowardCap(t *testing.T) {
	gw := &scriptedGateway{
		dispatchReply: &types.DispatchReply{CommandID: "cmd-1"},
		steps:         []statusStep{{err: errors.New("connection refused")}},
	}
	d := newTestDispatcher(t, gw, 3, nil)
	ctx := context.Background()

	commandID, err := d.Dispatch(ctx, "target-1", []string{"a1"})
	require.NoError(t, err)
	gen := d.currentGen()

	// Polling errors are swallowed; the chain survives them but they
	// still burn attempts.
	assert.False(t, d.pollOnce(ctx, commandID, gen))
	assert.False(t, d.pollOnce(ctx, commandID, gen))
	assert.Equal(t, types.CommandStatusPending, d.Envelope().Status)

	assert.True(t, d.pollOnce(ctx, commandID, gen))
	assert.Equal(t, types.CommandStatusTimedOut, d.Envelope().Status)
}

func TestDispatchFailureIsTerminal(t *testing.T) {
	gw := &scriptedGateway{dispatchErr: errors.New("queue unavailable")}
	rec := &envelopeRecorder{}
	d := newTestDispatcher(t, gw, 30, rec.record)

	_, err := d.Dispatch(context.Background(), "target-1", []string{"a1"})
	require.Error(t, err)

	env := d.Envelope()
	assert.Equal(t, types.CommandStatusError, env.Status)
	assert.Contains(t, env.Error, "queue unavailable")
	assert.Equal(t, []types.CommandStatus{types.CommandStatusError}, rec.statuses())
}

func TestRedispatchSupersedesPriorChain(t *testing.T) {
	gw := &scriptedGateway{
		dispatchReply: &types.DispatchReply{CommandID: "cmd-1"},
		steps:         []statusStep{withResult("a1")},
	}
	d := newTestDispatcher(t, gw, 30, nil)
	ctx := context.Background()

	first, err := d.Dispatch(ctx, "target-1", []string{"a1"})
	require.NoError(t, err)
	staleGen := d.currentGen()

	gw.mu.Lock()
	gw.dispatchReply = &types.DispatchReply{CommandID: "cmd-2"}
	gw.mu.Unlock()

	second, err := d.Dispatch(ctx, "target-1", []string{"a2"})
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// The stale chain terminates without writing into the new envelope.
	assert.True(t, d.pollOnce(ctx, first, staleGen))
	env := d.Envelope()
	assert.Equal(t, "cmd-2", env.CommandID)
	assert.Equal(t, types.CommandStatusPending, env.Status)
	assert.Equal(t, 0, env.Attempts)
	assert.Empty(t, env.Results)
}

func TestResetCancelsPendingChain(t *testing.T) {
	gw := &scriptedGateway{
		dispatchReply: &types.DispatchReply{CommandID: "cmd-1"},
		steps:         []statusStep{withResult("a1")},
	}
	d := newTestDispatcher(t, gw, 30, nil)
	ctx := context.Background()

	commandID, err := d.Dispatch(ctx, "target-1", []string{"a1"})
	require.NoError(t, err)
	staleGen := d.currentGen()

	d.Reset()
	assert.Equal(t, types.CommandStatusIdle, d.Envelope().Status)

	// The cancelled chain terminates without resurrecting the envelope.
	assert.True(t, d.pollOnce(ctx, commandID, staleGen))
	env := d.Envelope()
	assert.Equal(t, types.CommandStatusIdle, env.Status)
	assert.Empty(t, env.Results)
}

func TestBroadcastDefaultsExpectedAgentsToActiveFleet(t *testing.T) {
	gw := &scriptedGateway{
		dispatchReply: &types.DispatchReply{CommandID: "cmd-1"},
		steps:         []statusStep{noResults()},
		agents: []types.AgentInfo{
			{ID: "a1", Status: types.AgentStatusActive},
			{ID: "a2", Status: types.AgentStatusActive},
			{ID: "a3", Status: types.AgentStatusInactive},
		},
	}
	d := newTestDispatcher(t, gw, 30, nil)

	_, err := d.Dispatch(context.Background(), "target-1", nil)
	require.NoError(t, err)

	env := d.Envelope()
	assert.Equal(t, 2, env.ExpectedAgents)
	assert.Empty(t, env.AgentIDs)
}

func TestPollingChainRunsOnTimer(t *testing.T) {
	gw := &scriptedGateway{
		dispatchReply: &types.DispatchReply{CommandID: "cmd-1"},
		steps:         []statusStep{noResults(), withResult("a1")},
	}
	rec := &envelopeRecorder{}
	d := NewDispatcher(gw, 5*time.Millisecond, 30, zaptest.NewLogger(t), rec.record)

	_, err := d.Dispatch(context.Background(), "target-1", []string{"a1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return d.Envelope().Status == types.CommandStatusCompleted
	}, time.Second, time.Millisecond)
	assert.Equal(t, 2, d.Envelope().Attempts)
}
