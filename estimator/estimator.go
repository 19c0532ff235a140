// Package estimator projects the reservoir level forward, half-hour by
// half-hour, from a candidate pumping schedule and the forecast outflow
// profile, resetting to the measured level at the half-hour the run was
// invoked in.
//
// The projection uses litres-to-cubic-metres-to-metres conversion
// throughout (net flow in L/s over a 1800s bucket, divided by surface
// area): this is the single formulation used everywhere a level is
// projected, including by the optimizer's constraint construction, so a
// plan's recorded estimated levels always agree with what produced them.
package estimator

// SlotsPerDay is the number of half-hour buckets in a day.
const SlotsPerDay = 48

// DeltaLevel converts a net flow (litres/second, positive = filling)
// sustained for one half-hour bucket into a change in level (metres)
// for a reservoir of the given surface area.
func DeltaLevel(netFlowLPS, surfaceAreaM2 float64) float64 {
	return netFlowLPS * 1.8 / surfaceAreaM2
}

// Input bundles everything Replay needs to project one day of levels.
type Input struct {
	StartLevel    float64
	PumpedLPS     [SlotsPerDay]float64
	OutflowLPS    [SlotsPerDay]float64
	SurfaceAreaM2 float64
	// ResetIndex is the half-hour bucket at which the projection is
	// pinned to ResetLevel (the freshly measured level) instead of being
	// carried forward from the projection. Pass -1 to disable resetting.
	ResetIndex int
	ResetLevel float64
}

// Replay returns the projected level at the start of each of the day's
// 48 half-hour buckets.
func Replay(in Input) [SlotsPerDay]float64 {
	var levels [SlotsPerDay]float64
	levels[0] = in.StartLevel
	prev := in.StartLevel
	for i := 1; i < SlotsPerDay; i++ {
		var next float64
		if i == in.ResetIndex {
			next = in.ResetLevel
		} else {
			net := in.PumpedLPS[i-1] - in.OutflowLPS[i-1]
			next = prev + DeltaLevel(net, in.SurfaceAreaM2)
		}
		levels[i] = next
		prev = next
	}
	if in.ResetIndex == 0 {
		levels[0] = in.ResetLevel
	}
	return levels
}

// WithinBounds reports whether every bucket from fromIndex onward lies
// strictly between min and max, which is the recalculation-skip
// condition: when true, the existing plan needs no revision.
func WithinBounds(levels [SlotsPerDay]float64, fromIndex int, min, max float64) bool {
	for i := fromIndex; i < SlotsPerDay; i++ {
		if levels[i] <= min || levels[i] >= max {
			return false
		}
	}
	return true
}
