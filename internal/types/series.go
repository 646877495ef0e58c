package types

import "time"

// PaletteSize is the number of chart colors cycled through when agents
// are assigned series colors in order of first appearance.
const PaletteSize = 8

// AgentSeries describes one chart series derived from one agent
type AgentSeries struct {
	AgentID    string `json:"agent_id"`
	Name       string `json:"name"`
	ColorIndex int    `json:"color_index"`
}

// SeriesPoint represents one time bucket (whole second) carrying an
// optional latency value per agent series. Agents absent from Values
// have no data for that bucket; failed probes never contribute a value.
type SeriesPoint struct {
	Bucket time.Time          `json:"bucket"`
	Values map[string]float64 `json:"values"`
}

// LiveSnapshot is the reactive view handed to the presentation layer
// after every reconciliation pass.
type LiveSnapshot struct {
	TargetID string        `json:"target_id"`
	Points   []SeriesPoint `json:"points"`
	Agents   []AgentSeries `json:"agents"`
	Visible  []string      `json:"visible"`
	Degraded bool          `json:"degraded"`
}
