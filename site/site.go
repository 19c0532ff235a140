// Package site holds the static configuration of a reservoir site and
// the mutable state of a single planning run.
package site

import "time"

// Site is the static configuration of one reservoir installation.
type Site struct {
	ID                string
	Name              string
	MinLevel          float64 // metres
	MaxLevel          float64 // metres
	Setpoint          float64 // metres, target resting level at midnight
	SurfaceAreaM2     float64 // m^2
	TariffScheduleID  string
	CostScheduleID    string
	SuctionAdjustment bool // when true, candidate flow is scaled by latest/rated suction pressure
}

// Pump is a fixed physical pump speed setting as stored for a site,
// before any suction-pressure adjustment is applied.
type Pump struct {
	Speed           string
	FlowLPS         float64 // litres/second at rated suction pressure
	EnergyKW        float64 // kilowatts drawn at this speed
	RatedSuctionBar float64
}

// RunState carries the mutable, per-invocation context threaded through
// every component of a run: the virtual clock the run was invoked with,
// today's weekday classification, and the reservoir level reading that
// triggered the run. Components never read time.Now() directly; Now is
// always this field, so a frozen clock makes a run reproducible.
type RunState struct {
	Now          time.Time
	Weekday      bool
	CurrentLevel float64 // metres, as read at invocation
	Month        string  // three-letter month abbreviation, e.g. "Jan"
}

// NewRunState builds a RunState from a wall-clock reading. Callers that
// need a frozen clock (tests, replay) construct RunState directly.
func NewRunState(now time.Time, currentLevel float64) RunState {
	wd := now.Weekday()
	isWeekday := wd != time.Saturday && wd != time.Sunday
	return RunState{
		Now:          now,
		Weekday:      isWeekday,
		CurrentLevel: currentLevel,
		Month:        now.Month().String()[:3],
	}
}
