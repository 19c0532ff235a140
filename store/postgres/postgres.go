// Package postgres implements store.Store against a PostgreSQL database
// via database/sql and github.com/lib/pq, the production backend.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/devskill-org/reservoir-regime-planner/calendar"
	"github.com/devskill-org/reservoir-regime-planner/candidate"
	"github.com/devskill-org/reservoir-regime-planner/plan"
	"github.com/devskill-org/reservoir-regime-planner/reconcile"
	"github.com/devskill-org/reservoir-regime-planner/site"
	"github.com/devskill-org/reservoir-regime-planner/store"
)

// Store is a store.Store backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

// Config holds the connection parameters, normally loaded from the
// process environment rather than a config file.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Open connects to PostgreSQL and pings it to fail fast on bad
// credentials rather than on the first query of a run.
func Open(cfg Config) (*Store, error) {
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslmode)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Site(ctx context.Context, siteID string) (site.Site, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, min_level, max_level, setpoint, surface_area,
		       tariff_schedule_id, cost_schedule_id, suction_adjustment
		FROM site WHERE id = $1`, siteID)

	var sdata site.Site
	err := row.Scan(&sdata.ID, &sdata.Name, &sdata.MinLevel, &sdata.MaxLevel, &sdata.Setpoint,
		&sdata.SurfaceAreaM2, &sdata.TariffScheduleID, &sdata.CostScheduleID, &sdata.SuctionAdjustment)
	if err == sql.ErrNoRows {
		return site.Site{}, store.ErrNotFound
	}
	if err != nil {
		return site.Site{}, fmt.Errorf("postgres: query site: %w", err)
	}
	return sdata, nil
}

func (s *Store) Pumps(ctx context.Context, comboLabel string) ([]candidate.Pump, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT speed, flow, energy, rated_suction_pressure
		FROM pump WHERE combo = $1 ORDER BY speed`, comboLabel)
	if err != nil {
		return nil, fmt.Errorf("postgres: query pump: %w", err)
	}
	defer rows.Close()

	var pumps []candidate.Pump
	for rows.Next() {
		var p candidate.Pump
		if err := rows.Scan(&p.Speed, &p.FlowLPS, &p.EnergyKW, &p.RatedSuctionBar); err != nil {
			return nil, fmt.Errorf("postgres: scan pump: %w", err)
		}
		pumps = append(pumps, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate pump: %w", err)
	}
	return pumps, nil
}

func (s *Store) TariffSlots(ctx context.Context, scheduleID string) ([]calendar.Slot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT period, length_hours, weekday_tariff, weekend_tariff
		FROM tariff WHERE schedule_id = $1 ORDER BY period`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("postgres: query tariff: %w", err)
	}
	defer rows.Close()

	var slots []calendar.Slot
	for rows.Next() {
		var sl calendar.Slot
		var wkday, wkend int
		if err := rows.Scan(&sl.Period, &sl.Hours, &wkday, &wkend); err != nil {
			return nil, fmt.Errorf("postgres: scan tariff: %w", err)
		}
		sl.Weekday = calendar.TariffClass(wkday)
		sl.Weekend = calendar.TariffClass(wkend)
		slots = append(slots, sl)
	}
	return slots, rows.Err()
}

func (s *Store) CostSchedule(ctx context.Context, scheduleID, month string) (candidate.CostSchedule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT day, peak, evening, night
		FROM cost WHERE schedule_id = $1 AND month = $2`, scheduleID, month)

	cs := candidate.CostSchedule{Month: month}
	err := row.Scan(&cs.Day, &cs.Peak, &cs.Evening, &cs.Night)
	if err == sql.ErrNoRows {
		return candidate.CostSchedule{}, store.ErrNotFound
	}
	if err != nil {
		return candidate.CostSchedule{}, fmt.Errorf("postgres: query cost: %w", err)
	}
	return cs, nil
}

// Historical averages outlet flow across the last 4 weeks of the same
// weekday classification, bucketed into the 48 half-hour slots of a day.
func (s *Store) Historical(ctx context.Context, siteID string, weekday bool) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT slot, AVG(outlet)
		FROM historical
		WHERE site_id = $1 AND is_weekday = $2
		  AND sample_time >= NOW() - INTERVAL '28 days'
		GROUP BY slot
		ORDER BY slot`, siteID, weekday)
	if err != nil {
		return nil, fmt.Errorf("postgres: query historical: %w", err)
	}
	defer rows.Close()

	samples := make([]float64, 48)
	for rows.Next() {
		var slot int
		var avg float64
		if err := rows.Scan(&slot, &avg); err != nil {
			return nil, fmt.Errorf("postgres: scan historical: %w", err)
		}
		if slot >= 0 && slot < 48 {
			samples[slot] = avg
		}
	}
	return samples, rows.Err()
}

func (s *Store) LatestSuctionPressure(ctx context.Context, siteID string) (float64, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT pressure FROM suction_pressure
		WHERE site_id = $1 ORDER BY sample_time DESC LIMIT 1`, siteID)
	var bar float64
	err := row.Scan(&bar)
	if err == sql.ErrNoRows {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: query suction_pressure: %w", err)
	}
	return bar, nil
}

func (s *Store) InsertSuctionPressure(ctx context.Context, siteID string, bar float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suction_pressure (site_id, sample_time, pressure)
		VALUES ($1, NOW(), $2)`, siteID, bar)
	if err != nil {
		return fmt.Errorf("postgres: insert suction_pressure: %w", err)
	}
	return nil
}

func (s *Store) Regime(ctx context.Context, siteID string) (plan.Regime, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, speed, flow, length_hours, volume, cost, est_level, combo
		FROM regime WHERE site_id = $1 AND plan_date = CURRENT_DATE ORDER BY name`, siteID)
	if err != nil {
		return plan.Regime{}, false, fmt.Errorf("postgres: query regime: %w", err)
	}
	defer rows.Close()

	var r plan.Regime
	n := 0
	for rows.Next() {
		var e plan.PlanEntry
		if err := rows.Scan(&e.Name, &e.Speed, &e.FlowLPS, &e.Hours, &e.VolumeL, &e.CostGBP, &e.EstLevel, &e.Combo); err != nil {
			return plan.Regime{}, false, fmt.Errorf("postgres: scan regime: %w", err)
		}
		if n < 7 {
			r[n] = e
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return plan.Regime{}, false, fmt.Errorf("postgres: iterate regime: %w", err)
	}
	return r, n > 0, nil
}

// SaveRegime inserts all seven rows when none exist yet, or updates
// periods fromPeriod..7 in place, all within a single transaction so no
// reader observes a partially written plan.
func (s *Store) SaveRegime(ctx context.Context, siteID string, fromPeriod int, regime plan.Regime) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin regime tx: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM regime WHERE site_id = $1 AND plan_date = CURRENT_DATE)`,
		siteID).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: check regime existence: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO regime (site_id, plan_date, name, speed, flow, length_hours, volume, cost, est_level, combo)
		VALUES ($1, CURRENT_DATE, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (site_id, plan_date, name) DO UPDATE SET
			speed = EXCLUDED.speed,
			flow = EXCLUDED.flow,
			length_hours = EXCLUDED.length_hours,
			volume = EXCLUDED.volume,
			cost = EXCLUDED.cost,
			est_level = EXCLUDED.est_level,
			combo = EXCLUDED.combo`)
	if err != nil {
		return fmt.Errorf("postgres: prepare regime upsert: %w", err)
	}
	defer stmt.Close()

	startIdx := 0
	if exists {
		startIdx = fromPeriod - 1
	}
	for i := startIdx; i < 7; i++ {
		e := regime[i]
		if _, err := stmt.ExecContext(ctx, siteID, e.Name, e.Speed, e.FlowLPS, e.Hours, e.VolumeL, e.CostGBP, e.EstLevel, e.Combo); err != nil {
			return fmt.Errorf("postgres: upsert regime %s: %w", e.Name, err)
		}
	}

	return tx.Commit()
}

func (s *Store) LatestTarget(ctx context.Context, siteID string) (reconcile.Target, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT initial_target, demand_adjustment, level_adjustment, volume_already_pumped, new_target
		FROM target WHERE site_id = $1 AND target_date = CURRENT_DATE
		ORDER BY created_at DESC LIMIT 1`, siteID)

	var t reconcile.Target
	err := row.Scan(&t.InitialTarget, &t.DemandAdjustment, &t.LevelAdjustment, &t.VolumeAlreadyPumped, &t.NewTarget)
	if err == sql.ErrNoRows {
		return reconcile.Target{}, false, nil
	}
	if err != nil {
		return reconcile.Target{}, false, fmt.Errorf("postgres: query target: %w", err)
	}
	return t, true, nil
}

func (s *Store) AppendTarget(ctx context.Context, siteID string, t reconcile.Target) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO target (site_id, target_date, created_at, initial_target, demand_adjustment,
		                     level_adjustment, volume_already_pumped, new_target, flags)
		VALUES ($1, CURRENT_DATE, NOW(), $2, $3, $4, $5, $6, $7)`,
		siteID, t.InitialTarget, t.DemandAdjustment, t.LevelAdjustment, t.VolumeAlreadyPumped, t.NewTarget, flagsToText(t.Flags))
	if err != nil {
		return fmt.Errorf("postgres: insert target: %w", err)
	}
	return nil
}

func flagsToText(flags []string) string {
	out := ""
	for i, f := range flags {
		if i > 0 {
			out += ","
		}
		out += f
	}
	return out
}
