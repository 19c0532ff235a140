package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devskill-org/reservoir-regime-planner/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedBasicSite(t *testing.T, s *sqlite.Store) {
	t.Helper()
	exec := func(q string, args ...interface{}) {
		t.Helper()
		_, err := s.Exec(q, args...)
		require.NoError(t, err)
	}
	exec(`INSERT INTO site (id, name, min_level, max_level, setpoint, surface_area,
	                         tariff_schedule_id, cost_schedule_id, suction_adjustment)
	      VALUES ('res-1', 'North', 1.0, 9.0, 5.0, 100, 'sched-a', 'cost-a', 0)`)

	exec(`INSERT INTO pump (combo, speed, flow, energy, rated_suction_pressure) VALUES
	      ('standard', 'Low', 5, 2, 1.0),
	      ('standard', 'High', 20, 8, 1.0)`)

	hours := []float64{8, 6, 2, 3, 1.5, 2, 1.5}
	for i, h := range hours {
		exec(`INSERT INTO tariff (schedule_id, period, length_hours, weekday_tariff, weekend_tariff)
		      VALUES ('sched-a', ?, ?, 1, 1)`, i+1, h)
	}
	exec(`INSERT INTO cost (schedule_id, month, day, peak, evening, night)
	      VALUES ('cost-a', 'Mar', 0.10, 0.30, 0.20, 0.05)`)
}

func TestRunFreshDayProducesAFeasiblePlan(t *testing.T) {
	s := newTestStore(t)
	seedBasicSite(t, s)

	runner := NewRunner(s, nil, nil)
	now := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) // a Monday, period T1

	res, err := runner.Run(context.Background(), Input{
		SiteID:    "res-1",
		PumpCombo: "standard",
		Level:     4.0,
		Now:       now,
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	require.False(t, res.Skipped)
	require.Equal(t, 1, res.Period)

	total := res.Regime.TotalVolume()
	require.GreaterOrEqual(t, total, res.Target.NewTarget*0.999, "plan should meet the reconciled target")

	for _, e := range res.Regime {
		require.NotEmpty(t, e.Name)
		require.GreaterOrEqual(t, e.EstLevel, 1.0)
		require.LessOrEqual(t, e.EstLevel, 9.0)
	}

	stored, ok, err := s.Regime(context.Background(), "res-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, res.Regime, stored)
}

func TestRunStartBelowMinimumFlagsAdvisoryButStillPlans(t *testing.T) {
	s := newTestStore(t)
	seedBasicSite(t, s)

	runner := NewRunner(s, nil, nil)
	now := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	res, err := runner.Run(context.Background(), Input{
		SiteID:    "res-1",
		PumpCombo: "standard",
		Level:     0.5, // below configured MinLevel of 1.0
		Now:       now,
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	require.Contains(t, res.Target.Flags, "LevelTooLow")
}

func TestRunUnknownSiteFails(t *testing.T) {
	s := newTestStore(t)
	runner := NewRunner(s, nil, nil)

	_, err := runner.Run(context.Background(), Input{
		SiteID:    "does-not-exist",
		PumpCombo: "standard",
		Level:     4.0,
		Now:       time.Now(),
	})
	require.Error(t, err)
}

func TestRunSkipsRecalculationWhenExistingPlanHolds(t *testing.T) {
	s := newTestStore(t)
	seedBasicSite(t, s)
	runner := NewRunner(s, nil, nil)

	now := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	first, err := runner.Run(context.Background(), Input{
		SiteID: "res-1", PumpCombo: "standard", Level: 4.0, Now: now, Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	require.False(t, first.Skipped)

	// Re-run within the same period at the level the first run projected;
	// nothing should have drifted out of bounds yet.
	second, err := runner.Run(context.Background(), Input{
		SiteID: "res-1", PumpCombo: "standard", Level: first.Regime[0].EstLevel, Now: now.Add(10 * time.Minute), Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	require.True(t, second.Skipped)
}
