// Package candidate generates, for each remaining tariff period, the set
// of pump-speed options the optimizer may choose between: the volume
// each would deliver and the cost it would incur if run for that
// period's length.
package candidate

import (
	"fmt"

	"github.com/devskill-org/reservoir-regime-planner/calendar"
)

// Pump is a fixed speed setting as configured for a site, before any
// suction-pressure scaling.
type Pump struct {
	Speed           string
	FlowLPS         float64
	EnergyKW        float64
	RatedSuctionBar float64
}

// CostSchedule gives the per-kWh price for each tariff class, for one
// month, for one cost schedule (sites may share a schedule or not).
type CostSchedule struct {
	Month   string
	Day     float64
	Peak    float64
	Evening float64
	Night   float64
}

// PriceFor returns the per-kWh price for the given tariff class.
func (c CostSchedule) PriceFor(class calendar.TariffClass) float64 {
	switch class {
	case calendar.Day:
		return c.Day
	case calendar.Peak:
		return c.Peak
	case calendar.Evening:
		return c.Evening
	case calendar.Night:
		return c.Night
	default:
		panic(fmt.Sprintf("candidate: unknown tariff class %v", class))
	}
}

// AdjustForSuction scales each pump's rated flow by the ratio of the
// latest measured suction pressure to its rated suction pressure. It
// returns a new slice; the input is never mutated.
func AdjustForSuction(pumps []Pump, latestSuctionBar float64) []Pump {
	adjusted := make([]Pump, len(pumps))
	for i, p := range pumps {
		factor := latestSuctionBar / p.RatedSuctionBar
		adjusted[i] = Pump{
			Speed:           p.Speed,
			FlowLPS:         p.FlowLPS * factor,
			EnergyKW:        p.EnergyKW,
			RatedSuctionBar: p.RatedSuctionBar,
		}
	}
	return adjusted
}

// Option is one pump-speed's cost and volume outcome if selected to run
// for a given period's length.
type Option struct {
	Speed    string
	FlowLPS  float64
	Hours    float64
	VolumeL  float64 // litres delivered over Hours at FlowLPS
	CostGBP  float64 // energy cost over Hours at the period's price
}

// Volume returns the litres delivered by a flow (L/s) sustained for the
// given number of hours: flow * hours * 3600.
func Volume(flowLPS, hours float64) float64 {
	return flowLPS * hours * 3600
}

// Cost returns the energy cost of running at energyKW for hours at the
// given per-kWh price.
func Cost(energyKW, pricePerKWh, hours float64) float64 {
	return energyKW * pricePerKWh * hours
}

// ForPeriod builds the option list for one period: one Option per pump,
// using hours as the period's (possibly truncated, for the current
// period) length and price as its per-kWh cost.
func ForPeriod(pumps []Pump, hours, price float64) []Option {
	options := make([]Option, len(pumps))
	for i, p := range pumps {
		options[i] = Option{
			Speed:   p.Speed,
			FlowLPS: p.FlowLPS,
			Hours:   hours,
			VolumeL: Volume(p.FlowLPS, hours),
			CostGBP: Cost(p.EnergyKW, price, hours),
		}
	}
	return options
}
