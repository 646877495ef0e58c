package live

import (
	"sort"

	"probeview/internal/types"
)

// Reconciler folds buffered probe results into time-bucketed series.
// Series color assignment is cached by order of first appearance so a
// chart never reorders between passes; everything else is recomputed
// from the buffer on every call, making the output a pure function of
// (buffer contents, color cache).
type Reconciler struct {
	agents []types.AgentSeries
	index  map[string]int
}

// NewReconciler creates an empty reconciler
func NewReconciler() *Reconciler {
	return &Reconciler{
		index: make(map[string]int),
	}
}

// Reconcile produces chart-ready series points sorted ascending by
// bucket, plus the descriptors for every agent seen so far. Failed
// probes contribute no value for their bucket: charts must show gaps,
// not false zeros.
func (r *Reconciler) Reconcile(results []types.ProbeResult) ([]types.SeriesPoint, []types.AgentSeries) {
	// Register unseen agents in scan order; registrations survive
	// across passes within one session.
	for _, res := range results {
		if _, ok := r.index[res.AgentID]; ok {
			continue
		}
		r.index[res.AgentID] = len(r.agents)
		r.agents = append(r.agents, types.AgentSeries{
			AgentID:    res.AgentID,
			Name:       res.AgentName,
			ColorIndex: len(r.agents) % types.PaletteSize,
		})
	}

	buckets := make(map[int64]map[string]float64)
	for _, res := range results {
		if !res.Success || res.LatencyMs == nil {
			continue
		}
		bucket := res.Timestamp.UnixMilli() / 1000 * 1000
		values, ok := buckets[bucket]
		if !ok {
			values = make(map[string]float64)
			buckets[bucket] = values
		}
		values[res.AgentID] = *res.LatencyMs
	}

	order := make([]int64, 0, len(buckets))
	for bucket := range buckets {
		order = append(order, bucket)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	points := make([]types.SeriesPoint, 0, len(order))
	for _, bucket := range order {
		points = append(points, types.SeriesPoint{
			Bucket: types.TimestampFromMillis(bucket).Time,
			Values: buckets[bucket],
		})
	}

	agents := make([]types.AgentSeries, len(r.agents))
	copy(agents, r.agents)
	return points, agents
}

// KnownAgents returns how many agents have been registered
func (r *Reconciler) KnownAgents() int {
	return len(r.agents)
}

// Reset drops the color-assignment cache. Paired with Buffer.Reset on
// target change.
func (r *Reconciler) Reset() {
	r.agents = nil
	r.index = make(map[string]int)
}
