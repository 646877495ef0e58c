// Package live implements the live-telemetry reconciliation engine: a
// dedup buffer fed by a fixed-period poller, folded into chart-ready
// multi-series data on every cycle.
package live

import "probeview/internal/types"

// Buffer accumulates duplicate-free probe results for the currently
// selected target. It is scoped to one live session; the only eviction
// is a full reset when the target changes.
type Buffer struct {
	seen    map[types.ProbeKey]struct{}
	results []types.ProbeResult
}

// NewBuffer creates an empty buffer
func NewBuffer() *Buffer {
	return &Buffer{
		seen: make(map[types.ProbeKey]struct{}),
	}
}

// Ingest appends the subset of batch not already present, keyed by
// (agent id, millisecond timestamp), and returns the accepted subset.
func (b *Buffer) Ingest(batch []types.ProbeResult) []types.ProbeResult {
	var accepted []types.ProbeResult
	for _, r := range batch {
		key := r.Key()
		if _, ok := b.seen[key]; ok {
			continue
		}
		b.seen[key] = struct{}{}
		b.results = append(b.results, r)
		accepted = append(accepted, r)
	}
	return accepted
}

// Results returns the buffered results. Callers must not mutate the
// returned slice.
func (b *Buffer) Results() []types.ProbeResult {
	return b.results
}

// Len returns the number of buffered results
func (b *Buffer) Len() int {
	return len(b.results)
}

// Reset clears all state. Must be called whenever the selected target
// changes so the buffer never mixes data from two targets.
func (b *Buffer) Reset() {
	b.seen = make(map[types.ProbeKey]struct{})
	b.results = nil
}
