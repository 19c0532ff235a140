// Package plannererr defines the typed error conditions a planning run
// can raise, split between advisory conditions that are logged on the
// target record and allowed to continue, and fatal conditions that abort
// the run leaving prior persisted state untouched.
package plannererr

import "fmt"

// LevelTooLowError reports that the observed reservoir level is below
// the site's configured minimum at the start of reconciliation.
type LevelTooLowError struct {
	SiteID        string
	Current       float64
	ConfiguredMin float64
}

func (e *LevelTooLowError) Error() string {
	return fmt.Sprintf("site %s: level %.3fm below configured minimum %.3fm", e.SiteID, e.Current, e.ConfiguredMin)
}

// LevelTooHighError reports that the observed reservoir level is above
// the site's configured maximum.
type LevelTooHighError struct {
	SiteID        string
	Current       float64
	ConfiguredMax float64
}

func (e *LevelTooHighError) Error() string {
	return fmt.Sprintf("site %s: level %.3fm above configured maximum %.3fm", e.SiteID, e.Current, e.ConfiguredMax)
}

// MaxVolumeExceededError reports that the reconciled target exceeds the
// maximum volume achievable with the remaining time and fastest candidate.
type MaxVolumeExceededError struct {
	SiteID        string
	Target        float64
	MaxAchievable float64
}

func (e *MaxVolumeExceededError) Error() string {
	return fmt.Sprintf("site %s: target %.0fL exceeds max achievable %.0fL", e.SiteID, e.Target, e.MaxAchievable)
}

// TargetNotSatisfiedError reports that the optimizer found no candidate
// assignment meeting the volume floor and level bounds simultaneously.
// A run that returns this error writes no regime rows.
type TargetNotSatisfiedError struct {
	SiteID string
	Target float64
}

func (e *TargetNotSatisfiedError) Error() string {
	return fmt.Sprintf("site %s: no feasible assignment satisfies target %.0fL within level bounds", e.SiteID, e.Target)
}

// InvalidInputError reports malformed or missing run input (bad site ID,
// unknown pump combination label, non-finite level reading, and so on).
type InvalidInputError struct {
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input for field %q: %s", e.Field, e.Message)
}

// PersistenceError wraps a failure reading from or writing to the store.
type PersistenceError struct {
	Operation string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Operation, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that a run exceeded its context deadline before
// completing. No partial write has occurred when this is returned.
type TimeoutError struct {
	SiteID  string
	Elapsed string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("site %s: run timed out after %s", e.SiteID, e.Elapsed)
}

// IsAdvisory reports whether err is one of the three conditions that are
// logged and allowed to continue rather than aborting the run.
func IsAdvisory(err error) bool {
	switch err.(type) {
	case *LevelTooLowError, *LevelTooHighError, *MaxVolumeExceededError:
		return true
	default:
		return false
	}
}
