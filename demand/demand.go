// Package demand rotates the stored historical outflow profile into
// alignment with the current tariff period, so downstream components
// always see sample index 0 as "now".
package demand

// SlotsPerDay is the number of half-hour buckets in a day.
const SlotsPerDay = 48

// shiftByPeriod gives the rotation offset, in half-hour buckets, to
// align historical sample index 0 with the start of the named period.
// Values are fixed constants of the demand model, not derived.
var shiftByPeriod = map[int]int{
	1: 0,
	2: 16,
	3: 28,
	4: 32,
	5: 38,
	6: 41,
	7: 45,
}

// ShiftForPeriod returns the rotation offset for a 1-based tariff period.
func ShiftForPeriod(period int) int {
	shift, ok := shiftByPeriod[period]
	if !ok {
		panic("demand: period out of range")
	}
	return shift
}

// Rotate returns a copy of samples rotated left by shift buckets, with
// the tail wrapping to the head: Rotate([a,b,c,d], 1) == [b,c,d,a].
func Rotate(samples []float64, shift int) []float64 {
	n := len(samples)
	if n == 0 {
		return nil
	}
	shift = ((shift % n) + n) % n
	out := make([]float64, n)
	copy(out, samples[shift:])
	copy(out[n-shift:], samples[:shift])
	return out
}

// ForPeriod returns the historical outflow profile rotated to align
// with period's start.
func ForPeriod(samples []float64, period int) []float64 {
	return Rotate(samples, ShiftForPeriod(period))
}

// ForecastTotalLitres sums a full day's half-hourly outflow samples
// (L/s) into a litres total, each bucket covering 1800 seconds.
func ForecastTotalLitres(samples []float64) float64 {
	var total float64
	for _, s := range samples {
		total += s * 1800
	}
	return total
}
