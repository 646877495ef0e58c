package types

import "time"

// CommandStatus represents the lifecycle state of a dispatched diagnostic
type CommandStatus string

const (
	CommandStatusIdle      CommandStatus = "idle"
	CommandStatusPending   CommandStatus = "pending"
	CommandStatusCompleted CommandStatus = "completed"
	CommandStatusTimedOut  CommandStatus = "timeout"
	CommandStatusError     CommandStatus = "error"
)

// Terminal reports whether the status ends a dispatch cycle. Only a
// fresh dispatch may leave a terminal status.
func (s CommandStatus) Terminal() bool {
	switch s {
	case CommandStatusCompleted, CommandStatusTimedOut, CommandStatusError:
		return true
	}
	return false
}

// RouteHop represents one hop of a route-trace diagnostic
type RouteHop struct {
	Hop      int     `json:"hop"`
	Address  string  `json:"address"`
	LossPct  float64 `json:"loss_pct"`
	BestMs   float64 `json:"best_ms"`
	AvgMs    float64 `json:"avg_ms"`
	WorstMs  float64 `json:"worst_ms"`
	Sent     int     `json:"sent"`
	Received int     `json:"received"`
}

// DiagnosticResult represents one agent's route-trace report
type DiagnosticResult struct {
	AgentID    string     `json:"agent_id"`
	AgentName  string     `json:"agent_name,omitempty"`
	Success    bool       `json:"success"`
	Hops       []RouteHop `json:"hops,omitempty"`
	Error      string     `json:"error,omitempty"`
	ReportedAt Timestamp  `json:"reported_at"`
}

// CommandEnvelope represents one dispatched diagnostic command and the
// per-agent results collected for it so far. Agents that never report
// simply stay absent from Results; that is expected, not an error.
type CommandEnvelope struct {
	CommandID      string             `json:"command_id"`
	TargetID       string             `json:"target_id"`
	AgentIDs       []string           `json:"agent_ids,omitempty"`
	ExpectedAgents int                `json:"expected_agents"`
	Status         CommandStatus      `json:"status"`
	Results        []DiagnosticResult `json:"results,omitempty"`
	Error          string             `json:"error,omitempty"`
	DispatchedAt   time.Time          `json:"dispatched_at,omitempty"`
	Attempts       int                `json:"attempts"`
}

// DispatchReply is the gateway's answer to a diagnostic dispatch
type DispatchReply struct {
	CommandID string `json:"command_id"`
	Message   string `json:"message,omitempty"`
}

// CommandStatusReply is the gateway's answer to a command status poll
type CommandStatusReply struct {
	Status  string             `json:"status"`
	Results []DiagnosticResult `json:"results,omitempty"`
}
