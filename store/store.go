// Package store defines the persistence boundary the planner reads site,
// pump, tariff, cost, historical and suction-pressure data through, and
// writes the regime and target ledgers back to. Two backends implement
// it: store/postgres for production and store/sqlite for local
// development and tests.
package store

import (
	"context"
	"errors"

	"github.com/devskill-org/reservoir-regime-planner/calendar"
	"github.com/devskill-org/reservoir-regime-planner/candidate"
	"github.com/devskill-org/reservoir-regime-planner/plan"
	"github.com/devskill-org/reservoir-regime-planner/reconcile"
	"github.com/devskill-org/reservoir-regime-planner/site"
)

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

// Store is the full set of reads and writes one planning run performs.
// Every method takes a context so a caller-imposed run budget (the 30s
// suggested timeout) can cancel an in-flight query.
type Store interface {
	// Site returns the static configuration for a site.
	Site(ctx context.Context, siteID string) (site.Site, error)

	// Pumps returns the fixed speed settings for a named pump
	// combination, before any suction-pressure adjustment.
	Pumps(ctx context.Context, comboLabel string) ([]candidate.Pump, error)

	// TariffSlots returns the seven ordered periods with their weekday
	// and weekend tariff classes for a tariff schedule.
	TariffSlots(ctx context.Context, scheduleID string) ([]calendar.Slot, error)

	// CostSchedule returns the per-kWh prices for a cost schedule in a
	// given month.
	CostSchedule(ctx context.Context, scheduleID, month string) (candidate.CostSchedule, error)

	// Historical returns the 48 half-hour outflow averages (litres/sec)
	// computed over the last 4 weeks of the same weekday classification.
	Historical(ctx context.Context, siteID string, weekday bool) ([]float64, error)

	// LatestSuctionPressure returns the most recently recorded suction
	// pressure (bar) for a site.
	LatestSuctionPressure(ctx context.Context, siteID string) (float64, error)

	// InsertSuctionPressure records a fresh suction-pressure reading.
	InsertSuctionPressure(ctx context.Context, siteID string, bar float64) error

	// Regime returns today's persisted plan for a site. The second
	// return value is false when no regime row exists yet today.
	Regime(ctx context.Context, siteID string) (plan.Regime, bool, error)

	// SaveRegime writes the day's plan. When no regime exists yet, all
	// seven rows are inserted; otherwise only periods fromPeriod..7 are
	// updated, leaving completed periods untouched. The write is atomic
	// at the seven-row granularity.
	SaveRegime(ctx context.Context, siteID string, fromPeriod int, regime plan.Regime) error

	// LatestTarget returns the most recent target row for a site today.
	// The second return value is false when no target row exists yet.
	LatestTarget(ctx context.Context, siteID string) (reconcile.Target, bool, error)

	// AppendTarget appends a new target row; target rows are never
	// updated in place, only appended, so the day's reconciliation
	// history is fully auditable.
	AppendTarget(ctx context.Context, siteID string, t reconcile.Target) error

	// Close releases the underlying connection.
	Close() error
}
