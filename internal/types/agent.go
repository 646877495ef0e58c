package types

import "time"

// AgentInfo represents one fleet node performing probes
type AgentInfo struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Region   string      `json:"region,omitempty"`
	Provider string      `json:"provider,omitempty"`
	Status   AgentStatus `json:"status"`
	LastSeen time.Time   `json:"last_seen"`
}

// AgentStatus represents the current status of an agent
type AgentStatus string

const (
	AgentStatusActive   AgentStatus = "active"
	AgentStatusInactive AgentStatus = "inactive"
)
