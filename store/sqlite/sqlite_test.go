package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devskill-org/reservoir-regime-planner/plan"
	"github.com/devskill-org/reservoir-regime-planner/reconcile"
	"github.com/devskill-org/reservoir-regime-planner/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedSite(t *testing.T, s *Store) {
	t.Helper()
	_, err := s.db.Exec(`
		INSERT INTO site (id, name, min_level, max_level, setpoint, surface_area,
		                   tariff_schedule_id, cost_schedule_id, suction_adjustment)
		VALUES ('res-1', 'North Reservoir', 1.0, 9.0, 5.0, 100, 'sched-a', 'cost-a', 0)`)
	require.NoError(t, err)
}

func TestSiteNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Site(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSiteRoundTrip(t *testing.T) {
	s := openTestStore(t)
	seedSite(t, s)

	got, err := s.Site(context.Background(), "res-1")
	require.NoError(t, err)
	require.Equal(t, "North Reservoir", got.Name)
	require.Equal(t, 1.0, got.MinLevel)
	require.Equal(t, 9.0, got.MaxLevel)
	require.False(t, got.SuctionAdjustment)
}

func TestSaveRegimeInsertsThenUpdatesRemainder(t *testing.T) {
	s := openTestStore(t)
	seedSite(t, s)
	ctx := context.Background()

	var full plan.Regime
	for i := range full {
		full[i] = plan.PlanEntry{Name: periodNameFor(i + 1), Speed: "Low", FlowLPS: 5, Hours: 24.0 / 7, VolumeL: 100}
	}
	require.NoError(t, s.SaveRegime(ctx, "res-1", 1, full))

	stored, ok, err := s.Regime(ctx, "res-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Low", stored[0].Speed)

	// Revise from period 3 onward; periods 1-2 must survive untouched.
	revised := stored
	for i := 2; i < 7; i++ {
		revised[i].Speed = "High"
		revised[i].FlowLPS = 20
	}
	require.NoError(t, s.SaveRegime(ctx, "res-1", 3, revised))

	after, ok, err := s.Regime(ctx, "res-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Low", after[0].Speed, "period 1 must be untouched by a revision starting at period 3")
	require.Equal(t, "Low", after[1].Speed, "period 2 must be untouched by a revision starting at period 3")
	require.Equal(t, "High", after[2].Speed)
	require.Equal(t, "High", after[6].Speed)
}

func TestTargetAppendOnlyKeepsHistory(t *testing.T) {
	s := openTestStore(t)
	seedSite(t, s)
	ctx := context.Background()

	require.NoError(t, s.AppendTarget(ctx, "res-1", reconcile.Target{NewTarget: 1000, Flags: []string{"LevelTooLow"}}))
	require.NoError(t, s.AppendTarget(ctx, "res-1", reconcile.Target{NewTarget: 2000}))

	latest, ok, err := s.LatestTarget(ctx, "res-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2000.0, latest.NewTarget)

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM target WHERE site_id = 'res-1'`).Scan(&count))
	require.Equal(t, 2, count)
}

func TestSuctionPressureRoundTrip(t *testing.T) {
	s := openTestStore(t)
	seedSite(t, s)
	ctx := context.Background()

	_, err := s.LatestSuctionPressure(ctx, "res-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.InsertSuctionPressure(ctx, "res-1", 2.4))
	bar, err := s.LatestSuctionPressure(ctx, "res-1")
	require.NoError(t, err)
	require.Equal(t, 2.4, bar)
}

func periodNameFor(period int) string {
	return fmt.Sprintf("T%d", period)
}
