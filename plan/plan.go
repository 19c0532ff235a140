// Package plan assembles the seven-entry daily regime: the already
// executed periods carried forward unchanged, and the optimizer's
// selection for the remaining periods, expanded into the half-hourly
// flow profile the level estimator consumes.
package plan

import "fmt"

// PlanEntry is one tariff period's chosen pump speed and its outcome.
type PlanEntry struct {
	Name     string // "T1".."T7"
	Speed    string
	FlowLPS  float64
	Hours    float64
	VolumeL  float64
	CostGBP  float64
	EstLevel float64
	Combo    string
}

// Regime is the full day's plan: exactly seven entries, T1 through T7.
type Regime [7]PlanEntry

// periodName returns "T<n>" for a 1-based period index.
func periodName(period int) string {
	return fmt.Sprintf("T%d", period)
}

// Merge combines the entries already executed (periods before
// currentPeriod, carried forward byte-for-byte) with the optimizer's
// freshly chosen entries for currentPeriod onward.
//
// completed must hold exactly currentPeriod-1 entries (periods
// 1..currentPeriod-1); selected must hold exactly 8-currentPeriod
// entries (periods currentPeriod..7, in order).
func Merge(currentPeriod int, completed []PlanEntry, selected []PlanEntry) (Regime, error) {
	if len(completed) != currentPeriod-1 {
		return Regime{}, fmt.Errorf("plan: expected %d completed entries, got %d", currentPeriod-1, len(completed))
	}
	if len(selected) != 8-currentPeriod {
		return Regime{}, fmt.Errorf("plan: expected %d selected entries, got %d", 8-currentPeriod, len(selected))
	}
	var r Regime
	for i, e := range completed {
		e.Name = periodName(i + 1)
		r[i] = e
	}
	for i, e := range selected {
		period := currentPeriod + i
		e.Name = periodName(period)
		r[period-1] = e
	}
	return r, nil
}

// ExpandToHalfHours repeats each entry's flow across the half-hour
// buckets its Hours span, producing the 48-bucket profile the level
// estimator replays against. Entries are assumed to cover exactly 24
// hours in total; callers should verify that invariant separately.
func ExpandToHalfHours(entries []PlanEntry) [48]float64 {
	var out [48]float64
	idx := 0
	for _, e := range entries {
		buckets := int(e.Hours*2 + 0.5) // round to nearest half-hour bucket count
		for b := 0; b < buckets && idx < 48; b++ {
			out[idx] = e.FlowLPS
			idx++
		}
	}
	return out
}

// TotalHours sums the Hours field across a full regime, which must equal
// 24 exactly for a valid plan.
func (r Regime) TotalHours() float64 {
	var total float64
	for _, e := range r {
		total += e.Hours
	}
	return total
}

// TotalVolume sums VolumeL across a full regime.
func (r Regime) TotalVolume() float64 {
	var total float64
	for _, e := range r {
		total += e.VolumeL
	}
	return total
}

// VolumeThrough sums VolumeL over periods 1..uptoPeriod inclusive.
func (r Regime) VolumeThrough(uptoPeriod int) float64 {
	var total float64
	for i := 0; i < uptoPeriod && i < len(r); i++ {
		total += r[i].VolumeL
	}
	return total
}

// Slice returns the entries as a plain slice, in period order.
func (r Regime) Slice() []PlanEntry {
	return append([]PlanEntry(nil), r[:]...)
}
