package live

import (
	"context"
	"sync"
	"time"

	"probeview/internal/gateway"
	"probeview/internal/types"

	"go.uber.org/zap"
)

// State represents the poller run state
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// SnapshotFunc receives the reactive snapshot emitted after every
// reconciliation pass.
type SnapshotFunc func(types.LiveSnapshot)

// Poller drives the live session: a fixed-period loop fetching fresh
// probe results for the selected target and folding them through the
// dedup buffer and the reconciler. At most one fetch is in flight at a
// time; ticks that land while a cycle is still resolving are skipped,
// never queued.
type Poller struct {
	logger   *zap.Logger
	gw       gateway.Client
	interval time.Duration
	lookback int
	onUpdate SnapshotFunc

	mu       sync.Mutex
	state    State
	target   string
	gen      uint64
	inFlight bool
	degraded bool
	buffer   *Buffer
	recon    *Reconciler
	viz      *VisibilityFilter
	stopCh   chan struct{}
}

// NewPoller creates a poller in the Idle state
func NewPoller(gw gateway.Client, interval time.Duration, lookbackSeconds int, logger *zap.Logger, onUpdate SnapshotFunc) *Poller {
	return &Poller{
		logger:   logger,
		gw:       gw,
		interval: interval,
		lookback: lookbackSeconds,
		onUpdate: onUpdate,
		state:    StateIdle,
		buffer:   NewBuffer(),
		recon:    NewReconciler(),
		viz:      NewVisibilityFilter(),
	}
}

// Start transitions Idle/Paused to Running and performs one cycle
// immediately. Starting a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.state == StateRunning {
		p.mu.Unlock()
		return
	}
	resuming := p.state == StatePaused
	p.state = StateRunning
	if p.stopCh == nil {
		p.stopCh = make(chan struct{})
		go p.run(ctx, p.stopCh)
	}
	p.mu.Unlock()

	if resuming {
		p.logger.Info("Live poller resumed")
	} else {
		p.logger.Info("Live poller started",
			zap.Duration("interval", p.interval),
			zap.Int("lookback_seconds", p.lookback))
	}
	go p.Tick(ctx)
}

// Pause transitions Running to Paused. The buffer is kept; missed
// cycles are not replayed on resume.
func (p *Poller) Pause() {
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return
	}
	p.state = StatePaused
	p.mu.Unlock()
	p.logger.Info("Live poller paused")
}

// Resume transitions Paused to Running
func (p *Poller) Resume(ctx context.Context) {
	p.mu.Lock()
	if p.state != StatePaused {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	p.Start(ctx)
}

// Stop tears the poller down: the timer goroutine exits and the state
// returns to Idle. Safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.state = StateIdle
	if p.stopCh != nil {
		close(p.stopCh)
		p.stopCh = nil
	}
	p.mu.Unlock()
	p.logger.Info("Live poller stopped")
}

// ChangeTarget selects a new target and resets the buffer, the color
// cache and the visibility filter, regardless of run state. In-flight
// responses for the previous target are discarded via the generation
// counter captured at cycle start.
func (p *Poller) ChangeTarget(targetID string) {
	p.mu.Lock()
	p.gen++
	p.target = targetID
	p.degraded = false
	p.buffer.Reset()
	p.recon.Reset()
	p.viz.Reset()
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.logger.Info("Live target changed", zap.String("target_id", targetID))
	p.notify(snap)
}

// ToggleVisibility flips one agent series on the tri-state filter and
// emits a fresh snapshot.
func (p *Poller) ToggleVisibility(agentID string) {
	p.mu.Lock()
	p.viz.Toggle(agentID, p.recon.KnownAgents())
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.notify(snap)
}

// State returns the current run state
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Snapshot returns the current reconciled view
func (p *Poller) Snapshot() types.LiveSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Tick performs one fetch-and-ingest cycle. It returns without doing
// anything when the poller is not running, no target is selected, or a
// previous cycle has not resolved yet.
func (p *Poller) Tick(ctx context.Context) {
	p.mu.Lock()
	if p.state != StateRunning || p.target == "" || p.inFlight {
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	gen := p.gen
	target := p.target
	p.mu.Unlock()

	results, err := p.gw.GetLiveResults(ctx, target, p.lookback)

	p.mu.Lock()
	p.inFlight = false
	if gen != p.gen {
		// Target changed while the request was in flight; the response
		// belongs to a session that no longer exists.
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.degraded = true
		snap := p.snapshotLocked()
		p.mu.Unlock()
		p.logger.Warn("Live poll failed",
			zap.String("target_id", target),
			zap.Error(err))
		p.notify(snap)
		return
	}
	p.degraded = false
	accepted := p.buffer.Ingest(results)
	snap := p.snapshotLocked()
	p.mu.Unlock()

	if len(accepted) > 0 {
		p.logger.Debug("Ingested probe results",
			zap.String("target_id", target),
			zap.Int("accepted", len(accepted)),
			zap.Int("received", len(results)))
	}
	p.notify(snap)
}

func (p *Poller) run(ctx context.Context, stopCh chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			go p.Tick(ctx)
		}
	}
}

func (p *Poller) snapshotLocked() types.LiveSnapshot {
	points, agents := p.recon.Reconcile(p.buffer.Results())
	return types.LiveSnapshot{
		TargetID: p.target,
		Points:   points,
		Agents:   agents,
		Visible:  p.viz.Selected(),
		Degraded: p.degraded,
	}
}

func (p *Poller) notify(snap types.LiveSnapshot) {
	if p.onUpdate != nil {
		p.onUpdate(snap)
	}
}
