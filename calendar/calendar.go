// Package calendar implements the fixed daily tariff calendar: the seven
// ordered periods a day is split into, their boundaries, and the weekday
// or weekend tariff class that applies within each.
package calendar

import (
	"fmt"
	"time"
)

// TariffClass is the price band a half-hour falls into.
type TariffClass int

const (
	Day TariffClass = iota + 1
	Peak
	Evening
	Night
)

func (c TariffClass) String() string {
	switch c {
	case Day:
		return "Day"
	case Peak:
		return "Peak"
	case Evening:
		return "Evening"
	case Night:
		return "Night"
	default:
		return fmt.Sprintf("TariffClass(%d)", int(c))
	}
}

// Slot describes one of the seven fixed tariff periods: its index (1-7),
// its length in hours when uncut by the current time, and the tariff
// class that applies on weekdays vs weekends.
type Slot struct {
	Period   int
	Hours    float64
	Weekday  TariffClass
	Weekend  TariffClass
}

// boundaries are the fixed period start times, in minutes since midnight.
// A period's length in Slots below must sum these differences exactly;
// boundary ties belong to the later period (CurrentPeriod uses >=).
var boundaryMinutes = []int{0, 8 * 60, 14 * 60, 16 * 60, 19 * 60, 20*60 + 30, 22*60 + 30, 24 * 60}

// DefaultSlots returns the seven fixed periods with their nominal
// lengths. Tariff classes are supplied by the caller's schedule lookup;
// this only fixes the boundaries and lengths, which never vary by site.
func DefaultSlots() []Slot {
	slots := make([]Slot, 7)
	for i := 0; i < 7; i++ {
		hours := float64(boundaryMinutes[i+1]-boundaryMinutes[i]) / 60.0
		slots[i] = Slot{Period: i + 1, Hours: hours}
	}
	return slots
}

// CurrentPeriod returns the 1-based period index that now falls in.
// Boundary instants belong to the later period.
func CurrentPeriod(now time.Time) int {
	minutes := now.Hour()*60 + now.Minute()
	for p := 1; p <= 6; p++ {
		if minutes < boundaryMinutes[p] {
			return p
		}
	}
	return 7
}

// PeriodStart returns the start time of the given 1-based period, on the
// same calendar day as reference.
func PeriodStart(reference time.Time, period int) time.Time {
	if period < 1 || period > 7 {
		panic("calendar: period out of range")
	}
	minutes := boundaryMinutes[period-1]
	y, m, d := reference.Date()
	return time.Date(y, m, d, minutes/60, minutes%60, 0, 0, reference.Location())
}

// PeriodEnd returns the end time (== next period's start, or midnight for
// period 7) of the given 1-based period.
func PeriodEnd(reference time.Time, period int) time.Time {
	if period < 1 || period > 7 {
		panic("calendar: period out of range")
	}
	minutes := boundaryMinutes[period]
	y, m, d := reference.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, reference.Location()).Add(time.Duration(minutes) * time.Minute)
}

// RemainingHours returns the hours (possibly fractional) from instant now
// to the end of the given period, or 0 once that period has ended. There
// is no upper clamp: an instant before the period's start yields more
// than the period's length. This replaces a period's nominal Hours entry
// when a run starts mid-period.
func RemainingHours(now time.Time, period int) float64 {
	end := PeriodEnd(now, period)
	diff := end.Sub(now)
	if diff < 0 {
		return 0
	}
	return diff.Hours()
}

// ClassFor returns the applicable tariff class for slot on a weekday or
// weekend day.
func (s Slot) ClassFor(weekday bool) TariffClass {
	if weekday {
		return s.Weekday
	}
	return s.Weekend
}

// HalfHourSlotsFrom returns how many half-hour buckets (0..47) precede
// the start of the given 1-based period, i.e. the index of the first
// half-hour bucket belonging to that period.
func HalfHourSlotsFrom(period int) int {
	if period < 1 || period > 7 {
		panic("calendar: period out of range")
	}
	return boundaryMinutes[period-1] / 30
}
