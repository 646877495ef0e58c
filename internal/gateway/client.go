package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"probeview/internal/config"
	"probeview/internal/types"
	"probeview/internal/version"

	"go.uber.org/zap"
)

// HTTPClient implements Client over the gateway's HTTP API
type HTTPClient struct {
	config *config.GatewayConfig
	logger *zap.Logger
	client *http.Client
}

// NewHTTPClient creates a new gateway client
func NewHTTPClient(cfg *config.GatewayConfig, logger *zap.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if cfg.TLS.Enabled {
		tlsConfig, err := createTLSConfig(cfg.TLS)
		if err != nil {
			logger.Error("Failed to create TLS config", zap.Error(err))
		} else {
			transport.TLSClientConfig = tlsConfig
		}
	}

	return &HTTPClient{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}
}

// envelope is the standard gateway response wrapper
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// GetLiveResults implements Client
func (c *HTTPClient) GetLiveResults(ctx context.Context, targetID string, lookbackSeconds int) ([]types.ProbeResult, error) {
	endpoint := fmt.Sprintf("%s/api/v1/targets/%s/results?lookback=%d",
		c.config.Address, url.PathEscape(targetID), lookbackSeconds)

	var results []types.ProbeResult
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &results); err != nil {
		return nil, fmt.Errorf("failed to get live results: %w", err)
	}
	return results, nil
}

// DispatchDiagnostic implements Client
func (c *HTTPClient) DispatchDiagnostic(ctx context.Context, targetID string, agentIDs []string) (*types.DispatchReply, error) {
	endpoint := fmt.Sprintf("%s/api/v1/targets/%s/diagnostics",
		c.config.Address, url.PathEscape(targetID))

	body := struct {
		AgentIDs []string `json:"agent_ids,omitempty"`
	}{AgentIDs: agentIDs}

	var reply types.DispatchReply
	if err := c.do(ctx, http.MethodPost, endpoint, body, &reply); err != nil {
		return nil, fmt.Errorf("failed to dispatch diagnostic: %w", err)
	}
	if reply.CommandID == "" {
		return nil, fmt.Errorf("gateway returned no command id")
	}
	return &reply, nil
}

// GetCommandStatus implements Client
func (c *HTTPClient) GetCommandStatus(ctx context.Context, commandID string) (*types.CommandStatusReply, error) {
	endpoint := fmt.Sprintf("%s/api/v1/diagnostics/%s",
		c.config.Address, url.PathEscape(commandID))

	var reply types.CommandStatusReply
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &reply); err != nil {
		return nil, fmt.Errorf("failed to get command status: %w", err)
	}
	return &reply, nil
}

// GetAgents implements Client
func (c *HTTPClient) GetAgents(ctx context.Context) ([]types.AgentInfo, error) {
	endpoint := fmt.Sprintf("%s/api/v1/agents", c.config.Address)

	var agents []types.AgentInfo
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &agents); err != nil {
		return nil, fmt.Errorf("failed to get agents: %w", err)
	}
	return agents, nil
}

// do performs one request and decodes the enveloped response into out
func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "probeview/"+version.GetInfo().Version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(raw))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to decode response envelope: %w", err)
	}
	if env.Error != "" {
		return fmt.Errorf("gateway error: %s", env.Error)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

// createTLSConfig creates TLS config with a client certificate
func createTLSConfig(cfg config.TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
