// Package sqlite implements store.Store against an embedded SQLite
// database via modernc.org/sqlite (pure Go, no cgo). This is the
// local-development and test backend: it lets a full read-compute-write
// cycle run against a real SQL engine without a running PostgreSQL
// server.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/devskill-org/reservoir-regime-planner/calendar"
	"github.com/devskill-org/reservoir-regime-planner/candidate"
	"github.com/devskill-org/reservoir-regime-planner/plan"
	"github.com/devskill-org/reservoir-regime-planner/reconcile"
	"github.com/devskill-org/reservoir-regime-planner/site"
	"github.com/devskill-org/reservoir-regime-planner/store"
)

// Store is a store.Store backed by an embedded SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database file at path and runs migrations.
// Pass ":memory:" for an ephemeral database, the usual choice in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Exec runs a raw statement against the underlying database, for seeding
// fixture data (site, pump, tariff, cost rows) that has no dedicated
// write method on store.Store because it is provisioned out of band in
// production, not written by a planning run.
func (s *Store) Exec(query string, args ...interface{}) (sql.Result, error) {
	return s.db.Exec(query, args...)
}

func (s *Store) migrate() error {
	version := 0
	s.db.QueryRow(`SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`).Scan(&version)

	if version < 1 {
		_, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS site (
				id                  TEXT PRIMARY KEY,
				name                TEXT NOT NULL,
				min_level           REAL NOT NULL,
				max_level           REAL NOT NULL,
				setpoint            REAL NOT NULL,
				surface_area        REAL NOT NULL,
				tariff_schedule_id  TEXT NOT NULL,
				cost_schedule_id    TEXT NOT NULL,
				suction_adjustment  INTEGER NOT NULL DEFAULT 0
			);

			CREATE TABLE IF NOT EXISTS pump (
				combo                   TEXT NOT NULL,
				speed                   TEXT NOT NULL,
				flow                    REAL NOT NULL,
				energy                  REAL NOT NULL,
				rated_suction_pressure  REAL NOT NULL,
				PRIMARY KEY (combo, speed)
			);

			CREATE TABLE IF NOT EXISTS tariff (
				schedule_id     TEXT NOT NULL,
				period          INTEGER NOT NULL,
				length_hours    REAL NOT NULL,
				weekday_tariff  INTEGER NOT NULL,
				weekend_tariff  INTEGER NOT NULL,
				PRIMARY KEY (schedule_id, period)
			);

			CREATE TABLE IF NOT EXISTS cost (
				schedule_id  TEXT NOT NULL,
				month        TEXT NOT NULL,
				day          REAL NOT NULL,
				peak         REAL NOT NULL,
				evening      REAL NOT NULL,
				night        REAL NOT NULL,
				PRIMARY KEY (schedule_id, month)
			);

			CREATE TABLE IF NOT EXISTS historical (
				site_id      TEXT NOT NULL,
				sample_time  TEXT NOT NULL,
				is_weekday   INTEGER NOT NULL,
				slot         INTEGER NOT NULL,
				outlet       REAL NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_historical_site ON historical(site_id, is_weekday, slot);

			CREATE TABLE IF NOT EXISTS historical_buffer (
				site_id      TEXT NOT NULL,
				sample_time  TEXT NOT NULL,
				level        REAL NOT NULL,
				pumped_flow  REAL NOT NULL
			);

			CREATE TABLE IF NOT EXISTS suction_pressure (
				site_id      TEXT NOT NULL,
				sample_time  TEXT NOT NULL,
				pressure     REAL NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_suction_site ON suction_pressure(site_id, sample_time DESC);

			CREATE TABLE IF NOT EXISTS regime (
				site_id       TEXT NOT NULL,
				plan_date     TEXT NOT NULL,
				name          TEXT NOT NULL,
				speed         TEXT NOT NULL,
				flow          REAL NOT NULL,
				length_hours  REAL NOT NULL,
				volume        REAL NOT NULL,
				cost          REAL NOT NULL,
				est_level     REAL NOT NULL,
				combo         TEXT NOT NULL,
				PRIMARY KEY (site_id, plan_date, name)
			);

			CREATE TABLE IF NOT EXISTS target (
				site_id                  TEXT NOT NULL,
				target_date              TEXT NOT NULL,
				created_at               TEXT NOT NULL,
				initial_target           REAL NOT NULL,
				demand_adjustment        REAL NOT NULL,
				level_adjustment         REAL NOT NULL,
				volume_already_pumped    REAL NOT NULL,
				new_target               REAL NOT NULL,
				flags                    TEXT NOT NULL DEFAULT ''
			);
			CREATE INDEX IF NOT EXISTS idx_target_site_date ON target(site_id, target_date, created_at DESC);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}
	return nil
}

func (s *Store) Site(ctx context.Context, siteID string) (site.Site, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, min_level, max_level, setpoint, surface_area,
		       tariff_schedule_id, cost_schedule_id, suction_adjustment
		FROM site WHERE id = ?`, siteID)

	var sdata site.Site
	var suction int
	err := row.Scan(&sdata.ID, &sdata.Name, &sdata.MinLevel, &sdata.MaxLevel, &sdata.Setpoint,
		&sdata.SurfaceAreaM2, &sdata.TariffScheduleID, &sdata.CostScheduleID, &suction)
	if err == sql.ErrNoRows {
		return site.Site{}, store.ErrNotFound
	}
	if err != nil {
		return site.Site{}, fmt.Errorf("sqlite: query site: %w", err)
	}
	sdata.SuctionAdjustment = suction != 0
	return sdata, nil
}

func (s *Store) Pumps(ctx context.Context, comboLabel string) ([]candidate.Pump, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT speed, flow, energy, rated_suction_pressure
		FROM pump WHERE combo = ? ORDER BY speed`, comboLabel)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query pump: %w", err)
	}
	defer rows.Close()

	var pumps []candidate.Pump
	for rows.Next() {
		var p candidate.Pump
		if err := rows.Scan(&p.Speed, &p.FlowLPS, &p.EnergyKW, &p.RatedSuctionBar); err != nil {
			return nil, fmt.Errorf("sqlite: scan pump: %w", err)
		}
		pumps = append(pumps, p)
	}
	return pumps, rows.Err()
}

func (s *Store) TariffSlots(ctx context.Context, scheduleID string) ([]calendar.Slot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT period, length_hours, weekday_tariff, weekend_tariff
		FROM tariff WHERE schedule_id = ? ORDER BY period`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query tariff: %w", err)
	}
	defer rows.Close()

	var slots []calendar.Slot
	for rows.Next() {
		var sl calendar.Slot
		var wkday, wkend int
		if err := rows.Scan(&sl.Period, &sl.Hours, &wkday, &wkend); err != nil {
			return nil, fmt.Errorf("sqlite: scan tariff: %w", err)
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
		FROM cost WHERE schedule_id = ? AND month = ?`, scheduleID, month)

	cs := candidate.CostSchedule{Month: month}
	err := row.Scan(&cs.Day, &cs.Peak, &cs.Evening, &cs.Night)
	if err == sql.ErrNoRows {
		return candidate.CostSchedule{}, store.ErrNotFound
	}
	if err != nil {
		return candidate.CostSchedule{}, fmt.Errorf("sqlite: query cost: %w", err)
	}
	return cs, nil
}

func (s *Store) Historical(ctx context.Context, siteID string, weekday bool) ([]float64, error) {
	wd := 0
	if weekday {
		wd = 1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT slot, AVG(outlet)
		FROM historical
		WHERE site_id = ? AND is_weekday = ?
		  AND sample_time >= ?
		GROUP BY slot
		ORDER BY slot`, siteID, wd, time.Now().AddDate(0, 0, -28).Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("sqlite: query historical: %w", err)
	}
	defer rows.Close()

	samples := make([]float64, 48)
	for rows.Next() {
		var slot int
		var avg float64
		if err := rows.Scan(&slot, &avg); err != nil {
			return nil, fmt.Errorf("sqlite: scan historical: %w", err)
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
		WHERE site_id = ? ORDER BY sample_time DESC LIMIT 1`, siteID)
	var bar float64
	err := row.Scan(&bar)
	if err == sql.ErrNoRows {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite: query suction_pressure: %w", err)
	}
	return bar, nil
}

func (s *Store) InsertSuctionPressure(ctx context.Context, siteID string, bar float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suction_pressure (site_id, sample_time, pressure) VALUES (?, ?, ?)`,
		siteID, time.Now().Format(time.RFC3339), bar)
	if err != nil {
		return fmt.Errorf("sqlite: insert suction_pressure: %w", err)
	}
	return nil
}

func (s *Store) Regime(ctx context.Context, siteID string) (plan.Regime, bool, error) {
	today := time.Now().Format("2006-01-02")
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, speed, flow, length_hours, volume, cost, est_level, combo
		FROM regime WHERE site_id = ? AND plan_date = ? ORDER BY name`, siteID, today)
	if err != nil {
		return plan.Regime{}, false, fmt.Errorf("sqlite: query regime: %w", err)
	}
	defer rows.Close()

	var r plan.Regime
	n := 0
	for rows.Next() {
		var e plan.PlanEntry
		if err := rows.Scan(&e.Name, &e.Speed, &e.FlowLPS, &e.Hours, &e.VolumeL, &e.CostGBP, &e.EstLevel, &e.Combo); err != nil {
			return plan.Regime{}, false, fmt.Errorf("sqlite: scan regime: %w", err)
		}
		if n < 7 {
			r[n] = e
		}
		n++
	}
	return r, n > 0, rows.Err()
}

func (s *Store) SaveRegime(ctx context.Context, siteID string, fromPeriod int, regime plan.Regime) error {
	today := time.Now().Format("2006-01-02")
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin regime tx: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM regime WHERE site_id = ? AND plan_date = ?)`,
		siteID, today).Scan(&exists); err != nil {
		return fmt.Errorf("sqlite: check regime existence: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO regime (site_id, plan_date, name, speed, flow, length_hours, volume, cost, est_level, combo)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (site_id, plan_date, name) DO UPDATE SET
			speed = excluded.speed,
			flow = excluded.flow,
			length_hours = excluded.length_hours,
			volume = excluded.volume,
			cost = excluded.cost,
			est_level = excluded.est_level,
			combo = excluded.combo`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare regime upsert: %w", err)
	}
	defer stmt.Close()

	startIdx := 0
	if exists {
		startIdx = fromPeriod - 1
	}
	for i := startIdx; i < 7; i++ {
		e := regime[i]
		if _, err := stmt.ExecContext(ctx, siteID, today, e.Name, e.Speed, e.FlowLPS, e.Hours, e.VolumeL, e.CostGBP, e.EstLevel, e.Combo); err != nil {
			return fmt.Errorf("sqlite: upsert regime %s: %w", e.Name, err)
		}
	}
	return tx.Commit()
}

func (s *Store) LatestTarget(ctx context.Context, siteID string) (reconcile.Target, bool, error) {
	today := time.Now().Format("2006-01-02")
	row := s.db.QueryRowContext(ctx, `
		SELECT initial_target, demand_adjustment, level_adjustment, volume_already_pumped, new_target, flags
		FROM target WHERE site_id = ? AND target_date = ?
		ORDER BY created_at DESC LIMIT 1`, siteID, today)

	var t reconcile.Target
	var flags string
	err := row.Scan(&t.InitialTarget, &t.DemandAdjustment, &t.LevelAdjustment, &t.VolumeAlreadyPumped, &t.NewTarget, &flags)
	if err == sql.ErrNoRows {
		return reconcile.Target{}, false, nil
	}
	if err != nil {
		return reconcile.Target{}, false, fmt.Errorf("sqlite: query target: %w", err)
	}
	if flags != "" {
		t.Flags = strings.Split(flags, ",")
	}
	return t, true, nil
}

func (s *Store) AppendTarget(ctx context.Context, siteID string, t reconcile.Target) error {
	today := time.Now().Format("2006-01-02")
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO target (site_id, target_date, created_at, initial_target, demand_adjustment,
		                     level_adjustment, volume_already_pumped, new_target, flags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		siteID, today, time.Now().Format(time.RFC3339), t.InitialTarget, t.DemandAdjustment,
		t.LevelAdjustment, t.VolumeAlreadyPumped, t.NewTarget, strings.Join(t.Flags, ","))
	if err != nil {
		return fmt.Errorf("sqlite: insert target: %w", err)
	}
	return nil
}
