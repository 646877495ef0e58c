// Package gateway talks to the backend fetch gateway that fronts the
// probing fleet. The dashboard never queries storage itself; every read
// and every diagnostic dispatch goes through this client.
package gateway

import (
	"context"

	"probeview/internal/types"
)

// Client is the fetch gateway contract consumed by the live poller and
// the command dispatcher.
type Client interface {
	// GetLiveResults returns probe results for a target within the
	// server-side look-back window.
	GetLiveResults(ctx context.Context, targetID string, lookbackSeconds int) ([]types.ProbeResult, error)

	// DispatchDiagnostic enqueues a route-trace command for the target.
	// An empty agent list broadcasts to all active agents.
	DispatchDiagnostic(ctx context.Context, targetID string, agentIDs []string) (*types.DispatchReply, error)

	// GetCommandStatus returns the current status and any per-agent
	// results collected so far for a dispatched command.
	GetCommandStatus(ctx context.Context, commandID string) (*types.CommandStatusReply, error)

	// GetAgents returns the known fleet agents.
	GetAgents(ctx context.Context) ([]types.AgentInfo, error)
}
