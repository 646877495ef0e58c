package types

// ProbeResult represents one measurement from one agent against one target
type ProbeResult struct {
	AgentID       string    `json:"agent_id"`
	AgentName     string    `json:"agent_name"`
	AgentRegion   string    `json:"agent_region,omitempty"`
	AgentProvider string    `json:"agent_provider,omitempty"`
	Timestamp     Timestamp `json:"timestamp"`
	Success       bool      `json:"success"`
	LatencyMs     *float64  `json:"latency_ms,omitempty"`
}

// ProbeKey identifies a single observation. Two results carrying the same
// agent and the same millisecond timestamp are the same measurement.
type ProbeKey struct {
	AgentID string
	UnixMs  int64
}

// Key returns the result's identity key
func (r ProbeResult) Key() ProbeKey {
	return ProbeKey{AgentID: r.AgentID, UnixMs: r.Timestamp.UnixMilli()}
}
