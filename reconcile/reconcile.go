// Package reconcile computes the day's volume target and reconciles it
// against the observed reservoir level and what has already been pumped,
// implementing the two target transitions (a fresh day, or a revision
// partway through one) and the soft/hard boundary policies that follow.
package reconcile

import (
	"github.com/devskill-org/reservoir-regime-planner/demand"
	"github.com/devskill-org/reservoir-regime-planner/plannererr"
	"github.com/devskill-org/reservoir-regime-planner/site"
)

// Target is one row of the target ledger: the components that produced
// NewTarget, kept so later periods' mid-day revisions can start from it.
type Target struct {
	InitialTarget       float64
	DemandAdjustment    float64
	LevelAdjustment     float64
	VolumeAlreadyPumped float64
	// NewTarget is the full day's volume target, the figure persisted and
	// fed back as InitialTarget on the next mid-day revision. It is not
	// the volume still owed today; use RemainingTarget for that.
	NewTarget float64
	// RemainingTarget is the volume floor the optimizer must still meet
	// for the rest of the day: NewTarget minus what has already been
	// pumped. Not persisted; recomputed each run from the stored
	// full-day NewTarget and the regime's completed volume.
	RemainingTarget float64
	// Flags names the advisory conditions (if any) that fired while
	// reconciling this target. Empty on a clean run.
	Flags []string
}

// levelCompensationScale gives the remaining-day fraction applied to the
// level adjustment on a mid-day revision, keyed by period. Periods 6 and
// 7 are unscaled; the constants are fixed points of the demand model and
// are not re-derived from period length.
var levelCompensationScale = map[int]float64{
	2: 960.0 / 1440.0,
	3: 840.0 / 1440.0,
	4: 480.0 / 1440.0,
	5: 300.0 / 1440.0,
}

// ComputeDemandFactor computes a data-driven demand adjustment factor
// from actual vs forecast delivered volume, clamped to [0.9, 1.1]. It is
// not called by Reconcile: the demand adjustment used there is a fixed
// 1.0 per design, with this exposed as a future knob.
func ComputeDemandFactor(actualDeliveredLitres, forecastDeliveredLitres float64) float64 {
	if forecastDeliveredLitres == 0 {
		return 1.0
	}
	factor := actualDeliveredLitres / forecastDeliveredLitres
	if factor < 0.9 {
		return 0.9
	}
	if factor > 1.1 {
		return 1.1
	}
	return factor
}

// MaxAchievable returns the largest volume (litres) that could still be
// pumped today, assuming the fastest candidate ran from now until
// midnight.
func MaxAchievable(secondsRemainingUntilMidnight, highestCandidateFlowLPS float64) float64 {
	return secondsRemainingUntilMidnight * highestCandidateFlowLPS
}

// NewDayInputs carries what Reconcile needs for the first reconciliation
// of a day (period 1, no prior target row).
type NewDayInputs struct {
	RunState                site.RunState
	Site                    site.Site
	ForecastOutflowLPS      []float64 // 48 half-hour samples, unrotated
	SecondsUntilMidnight    float64
	HighestCandidateFlowLPS float64
}

// MidDayInputs carries what Reconcile needs for a revision after period 1.
type MidDayInputs struct {
	Period                  int
	RunState                site.RunState
	Site                    site.Site
	PriorNewTarget          float64
	VolumeAlreadyPumped     float64 // sum of Volume over completed periods
	EstLevelAtCurrentPeriod float64 // reservoir level the prior plan predicted for "now"
	SecondsUntilMidnight    float64
	HighestCandidateFlowLPS float64
}

// ReconcileNewDay implements Transition A of the target state machine.
func ReconcileNewDay(in NewDayInputs) (Target, error) {
	initial := demand.ForecastTotalLitres(in.ForecastOutflowLPS)
	levelAdj := (in.Site.Setpoint - in.RunState.CurrentLevel) * in.Site.SurfaceAreaM2 * 1000
	demandAdj := 1.0
	remaining := (initial + levelAdj) * demandAdj

	t := Target{
		InitialTarget:       initial,
		DemandAdjustment:    demandAdj,
		LevelAdjustment:     levelAdj,
		VolumeAlreadyPumped: 0,
		NewTarget:           remaining, // nothing pumped yet, so full-day equals remaining
		RemainingTarget:     remaining,
	}
	return applyBoundaryPolicy(t, in.Site, in.RunState, in.SecondsUntilMidnight, in.HighestCandidateFlowLPS)
}

// ReconcileMidDay implements Transition B of the target state machine.
func ReconcileMidDay(in MidDayInputs) (Target, error) {
	initial := in.PriorNewTarget
	levelAdj := (in.EstLevelAtCurrentPeriod - in.RunState.CurrentLevel) * in.Site.SurfaceAreaM2 * 1000
	if scale, ok := levelCompensationScale[in.Period]; ok {
		levelAdj *= scale
	}
	remaining := (initial - in.VolumeAlreadyPumped) + levelAdj
	fullDay := initial + levelAdj

	t := Target{
		InitialTarget:       initial,
		DemandAdjustment:    1.0,
		LevelAdjustment:     levelAdj,
		VolumeAlreadyPumped: in.VolumeAlreadyPumped,
		NewTarget:           fullDay,
		RemainingTarget:     remaining,
	}
	return applyBoundaryPolicy(t, in.Site, in.RunState, in.SecondsUntilMidnight, in.HighestCandidateFlowLPS)
}

// applyBoundaryPolicy checks the three boundary conditions in the fixed
// order low, high, max-volume, matching the original control flow where
// only the first condition encountered fires: a level breach is reported
// without also evaluating the volume ceiling.
func applyBoundaryPolicy(t Target, s site.Site, rs site.RunState, secondsUntilMidnight, highestFlow float64) (Target, error) {
	if rs.CurrentLevel < s.MinLevel {
		t.Flags = append(t.Flags, "LevelTooLow")
		return t, &plannererr.LevelTooLowError{SiteID: s.ID, Current: rs.CurrentLevel, ConfiguredMin: s.MinLevel}
	}
	if rs.CurrentLevel > s.MaxLevel {
		t.Flags = append(t.Flags, "LevelTooHigh")
		return t, &plannererr.LevelTooHighError{SiteID: s.ID, Current: rs.CurrentLevel, ConfiguredMax: s.MaxLevel}
	}
	maxAchievable := MaxAchievable(secondsUntilMidnight, highestFlow)
	if t.RemainingTarget >= maxAchievable {
		t.Flags = append(t.Flags, "MaxVolumeExceeded")
		t.RemainingTarget = maxAchievable
		t.NewTarget = maxAchievable + t.VolumeAlreadyPumped
		return t, &plannererr.MaxVolumeExceededError{SiteID: s.ID, Target: t.RemainingTarget, MaxAchievable: maxAchievable}
	}
	return t, nil
}

// EffectiveMinLevel applies the soft relaxation that follows a
// LevelTooLow condition: the working minimum becomes the observed
// level, so downstream level-bound constraints do not immediately
// reject the current state.
func EffectiveMinLevel(configuredMin, currentLevel float64, levelTooLow bool) float64 {
	if levelTooLow {
		return currentLevel
	}
	return configuredMin
}
