// Package command implements the asynchronous diagnostic protocol: a
// fire-and-forget route-trace dispatch to a subset of agents, followed
// by a bounded polling chain collecting per-agent results that may
// arrive late or never.
package command

import (
	"context"
	"sync"
	"time"

	"probeview/internal/gateway"
	"probeview/internal/types"

	"go.uber.org/zap"
)

// EnvelopeFunc receives the command envelope on every state change
type EnvelopeFunc func(types.CommandEnvelope)

// Dispatcher supervises one diagnostic command at a time. Re-dispatch
// while a chain is pending invalidates the prior chain; a superseded
// chain never writes into the new envelope.
type Dispatcher struct {
	logger      *zap.Logger
	gw          gateway.Client
	interval    time.Duration
	maxAttempts int
	onChange    EnvelopeFunc

	mu     sync.Mutex
	gen    uint64
	env    types.CommandEnvelope
	cancel context.CancelFunc
}

// NewDispatcher creates a dispatcher in the idle state
func NewDispatcher(gw gateway.Client, interval time.Duration, maxAttempts int, logger *zap.Logger, onChange EnvelopeFunc) *Dispatcher {
	return &Dispatcher{
		logger:      logger,
		gw:          gw,
		interval:    interval,
		maxAttempts: maxAttempts,
		onChange:    onChange,
		env:         types.CommandEnvelope{Status: types.CommandStatusIdle},
	}
}

// Dispatch enqueues a diagnostic for the target and starts the polling
// chain. An empty agent list broadcasts to all active agents; the
// expected-agent count then defaults to the currently known fleet. A
// dispatch-time failure is terminal for this attempt: the envelope goes
// to the error state and nothing is retried.
func (d *Dispatcher) Dispatch(ctx context.Context, targetID string, agentIDs []string) (string, error) {
	d.mu.Lock()
	d.gen++
	gen := d.gen
	if d.cancel != nil {
		// Supersede any pending polling chain.
		d.cancel()
		d.cancel = nil
	}
	d.env = types.CommandEnvelope{
		TargetID: targetID,
		AgentIDs: agentIDs,
		Status:   types.CommandStatusIdle,
	}
	d.mu.Unlock()

	expected := len(agentIDs)
	if expected == 0 {
		expected = d.activeAgentCount(ctx)
	}

	reply, err := d.gw.DispatchDiagnostic(ctx, targetID, agentIDs)

	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return "", types.ErrDispatchSuperseded
	}
	if err != nil {
		d.env.Status = types.CommandStatusError
		d.env.Error = err.Error()
		env := d.env
		d.mu.Unlock()

		d.logger.Error("Diagnostic dispatch failed",
			zap.String("target_id", targetID),
			zap.Error(err))
		d.notify(env)
		return "", err
	}

	d.env.CommandID = reply.CommandID
	d.env.ExpectedAgents = expected
	d.env.Status = types.CommandStatusPending
	d.env.DispatchedAt = time.Now()
	pollCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	env := d.env
	d.mu.Unlock()

	d.logger.Info("Diagnostic dispatched",
		zap.String("command_id", reply.CommandID),
		zap.String("target_id", targetID),
		zap.Int("expected_agents", expected))
	d.notify(env)

	go d.runPolling(pollCtx, reply.CommandID, gen)
	return reply.CommandID, nil
}

// Envelope returns the current command envelope
func (d *Dispatcher) Envelope() types.CommandEnvelope {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.env
}

// Reset cancels any pending chain and returns the envelope to idle.
// Called when the selected target changes so a stale chain cannot
// surface results for a target the operator has left.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	d.gen++
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	changed := d.env.Status != types.CommandStatusIdle
	d.env = types.CommandEnvelope{Status: types.CommandStatusIdle}
	env := d.env
	d.mu.Unlock()

	if changed {
		d.notify(env)
	}
}

// Close cancels any pending polling chain
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.gen++
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()
}

// runPolling polls the gateway on a flat interval until the chain
// terminates or is superseded.
func (d *Dispatcher) runPolling(ctx context.Context, commandID string, gen uint64) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d.pollOnce(ctx, commandID, gen) {
				return
			}
		}
	}
}

// pollOnce performs one status poll and reports whether the chain is
// finished. Transient errors are swallowed but still count against the
// attempt cap.
func (d *Dispatcher) pollOnce(ctx context.Context, commandID string, gen uint64) bool {
	reply, err := d.gw.GetCommandStatus(ctx, commandID)

	d.mu.Lock()
	if gen != d.gen || d.env.Status != types.CommandStatusPending {
		d.mu.Unlock()
		return true
	}
	d.env.Attempts++
	attempts := d.env.Attempts

	if err == nil && reply != nil && (reply.Status == "completed" || len(reply.Results) > 0) {
		// Done as soon as anything arrives; agents that never report
		// are absent from the results, which is expected.
		d.env.Status = types.CommandStatusCompleted
		d.env.Results = reply.Results
		env := d.env
		d.cancel = nil
		d.mu.Unlock()

		d.logger.Info("Diagnostic completed",
			zap.String("command_id", commandID),
			zap.Int("attempts", attempts),
			zap.Int("results", len(env.Results)))
		d.notify(env)
		return true
	}

	if attempts >= d.maxAttempts {
		d.env.Status = types.CommandStatusTimedOut
		env := d.env
		d.cancel = nil
		d.mu.Unlock()

		d.logger.Warn("Diagnostic timed out",
			zap.String("command_id", commandID),
			zap.Int("attempts", attempts))
		d.notify(env)
		return true
	}
	d.mu.Unlock()

	if err != nil {
		d.logger.Warn("Diagnostic status poll failed",
			zap.String("command_id", commandID),
			zap.Int("attempt", attempts),
			zap.Error(err))
	}
	return false
}

// activeAgentCount asks the gateway how many agents a broadcast reaches
func (d *Dispatcher) activeAgentCount(ctx context.Context) int {
	agents, err := d.gw.GetAgents(ctx)
	if err != nil {
		d.logger.Warn("Failed to count active agents", zap.Error(err))
		return 0
	}
	count := 0
	for _, a := range agents {
		if a.Status == types.AgentStatusActive {
			count++
		}
	}
	return count
}

func (d *Dispatcher) notify(env types.CommandEnvelope) {
	if d.onChange != nil {
		d.onChange(env)
	}
}
