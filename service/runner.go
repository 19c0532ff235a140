package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/devskill-org/reservoir-regime-planner/calendar"
	"github.com/devskill-org/reservoir-regime-planner/candidate"
	"github.com/devskill-org/reservoir-regime-planner/demand"
	"github.com/devskill-org/reservoir-regime-planner/estimator"
	"github.com/devskill-org/reservoir-regime-planner/optimize"
	"github.com/devskill-org/reservoir-regime-planner/plan"
	"github.com/devskill-org/reservoir-regime-planner/plannererr"
	"github.com/devskill-org/reservoir-regime-planner/reconcile"
	"github.com/devskill-org/reservoir-regime-planner/site"
	"github.com/devskill-org/reservoir-regime-planner/store"
)

// Runner owns the store a planning run reads and writes through, and
// serializes concurrent runs for the same site so two invocations never
// race to write today's regime.
type Runner struct {
	Store   store.Store
	Logger  *log.Logger
	Metrics *Metrics
	Status  *StatusServer // optional; Broadcast is called after every run

	group singleflight.Group
}

// NewRunner builds a Runner. A nil logger falls back to log.Default, and
// a nil Metrics is accepted silently (see Metrics' nil-receiver methods).
func NewRunner(st store.Store, logger *log.Logger, metrics *Metrics) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Store: st, Logger: logger, Metrics: metrics}
}

// Input is what one invocation of the planner supplies: the site to plan
// for, the pump combination to choose from, the freshly observed
// reservoir level, and the clock to evaluate "now" against.
type Input struct {
	SiteID    string
	PumpCombo string
	Level     float64
	Now       time.Time
	Timeout   time.Duration
}

// Result is what a run produced.
type Result struct {
	Regime   plan.Regime
	Target   reconcile.Target
	Period   int
	Skipped  bool // the existing plan stayed within bounds; nothing was recomputed
	Advisory error
}

// Run plans one site, serializing concurrent calls for the same SiteID
// via singleflight so a slow run and a retry never both write today's
// regime. The context deadline (or in.Timeout, if the context has none)
// bounds the whole run; exceeding it surfaces as *plannererr.TimeoutError
// and leaves the store untouched.
func (r *Runner) Run(ctx context.Context, in Input) (Result, error) {
	if _, hasDeadline := ctx.Deadline(); in.Timeout > 0 && !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, in.Timeout)
		defer cancel()
	}

	start := time.Now()
	v, err, _ := r.group.Do(in.SiteID, func() (interface{}, error) {
		return r.runOnce(ctx, in)
	})
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			r.Metrics.observeRun("timeout", elapsed.Seconds())
			timeoutErr := &plannererr.TimeoutError{SiteID: in.SiteID, Elapsed: elapsed.String()}
			r.broadcast(in.SiteID, 0, RunStatus{Error: timeoutErr.Error()})
			return Result{}, timeoutErr
		}
		outcome := "error"
		if plannererr.IsAdvisory(err) {
			outcome = "advisory"
		}
		r.Metrics.observeRun(outcome, elapsed.Seconds())
		r.broadcast(in.SiteID, 0, RunStatus{Error: err.Error()})
		return Result{}, err
	}

	res := v.(Result)
	r.broadcastResult(in.SiteID, res)
	outcome := "ok"
	if res.Skipped {
		outcome = "skipped"
		r.Metrics.observeSkipped()
	}
	r.Metrics.observeRun(outcome, elapsed.Seconds())
	return res, nil
}

// broadcast pushes a minimal status update, used for error paths where
// there is no Result to report from.
func (r *Runner) broadcast(siteID string, period int, status RunStatus) {
	if r.Status == nil {
		return
	}
	status.SiteID = siteID
	status.Period = period
	status.At = time.Now()
	r.Status.Broadcast(status)
}

// broadcastResult reports a completed run, successful or skipped.
func (r *Runner) broadcastResult(siteID string, res Result) {
	if r.Status == nil {
		return
	}
	var totalCost float64
	for _, e := range res.Regime {
		totalCost += e.CostGBP
	}
	advisory := ""
	if res.Advisory != nil {
		advisory = res.Advisory.Error()
	}
	r.Status.Broadcast(RunStatus{
		SiteID:       siteID,
		Period:       res.Period,
		Skipped:      res.Skipped,
		TargetLitres: res.Target.NewTarget,
		TotalVolumeL: res.Regime.TotalVolume(),
		TotalCostGBP: totalCost,
		Advisory:     advisory,
		At:           time.Now(),
	})
}

func (r *Runner) runOnce(ctx context.Context, in Input) (Result, error) {
	s, err := r.Store.Site(ctx, in.SiteID)
	if err != nil {
		return Result{}, &plannererr.PersistenceError{Operation: "load site", Err: err}
	}

	runState := site.NewRunState(in.Now, in.Level)
	period := calendar.CurrentPeriod(runState.Now)

	pumps, err := r.loadPumps(ctx, in, s)
	if err != nil {
		return Result{}, err
	}
	highestFlow := highestFlowLPS(pumps)

	slots, err := r.Store.TariffSlots(ctx, s.TariffScheduleID)
	if err != nil {
		return Result{}, &plannererr.PersistenceError{Operation: "load tariff slots", Err: err}
	}
	costs, err := r.Store.CostSchedule(ctx, s.CostScheduleID, runState.Month)
	if err != nil {
		return Result{}, &plannererr.PersistenceError{Operation: "load cost schedule", Err: err}
	}

	historical, err := r.Store.Historical(ctx, in.SiteID, runState.Weekday)
	if err != nil {
		return Result{}, &plannererr.PersistenceError{Operation: "load historical outflow", Err: err}
	}

	existingRegime, hasRegime, err := r.Store.Regime(ctx, in.SiteID)
	if err != nil {
		return Result{}, &plannererr.PersistenceError{Operation: "load regime", Err: err}
	}

	if hasRegime {
		if skip := r.skipRecalculation(s, runState, period, existingRegime, historical); skip {
			r.Logger.Printf("site %s: existing plan still within bounds at period T%d, skipping recalculation", s.ID, period)
			return Result{Regime: existingRegime, Period: period, Skipped: true}, nil
		}
	}

	secondsUntilMidnight := calendar.PeriodEnd(runState.Now, 7).Sub(runState.Now).Seconds()

	target, advisoryErr, err := r.reconcileTarget(ctx, s, runState, period, historical, existingRegime, hasRegime, secondsUntilMidnight, highestFlow)
	if err != nil {
		return Result{}, err
	}
	if advisoryErr != nil {
		r.Logger.Printf("site %s: %v", s.ID, advisoryErr)
		r.Metrics.observeAdvisory(advisoryFlag(advisoryErr))
	}
	if err := r.Store.AppendTarget(ctx, in.SiteID, target); err != nil {
		return Result{}, &plannererr.PersistenceError{Operation: "append target", Err: err}
	}

	effectiveMin := reconcile.EffectiveMinLevel(s.MinLevel, runState.CurrentLevel, hasFlag(target.Flags, "LevelTooLow"))

	rotatedOutflow := demand.ForPeriod(historical, period)
	periods := buildPeriodOptions(period, runState, slots, pumps, costs, rotatedOutflow)

	optIn := optimize.Input{
		Periods:       periods,
		OutflowLPS:    rotatedOutflow,
		StartLevel:    runState.CurrentLevel,
		MinLevel:      effectiveMin,
		MaxLevel:      s.MaxLevel,
		SurfaceAreaM2: s.SurfaceAreaM2,
		TargetLitres:  target.RemainingTarget,
	}
	result, factor, err := optimize.SolveWithRelaxation(optIn, optimize.DefaultRelaxationPolicy())
	if err != nil {
		return Result{}, err
	}
	if factor != 1.0 {
		r.Logger.Printf("site %s: target relaxed to %.0f%% to find a feasible plan", s.ID, factor*100)
	}

	selected := buildSelectedEntries(result.Selections, in.PumpCombo)
	completed := completedEntries(existingRegime, hasRegime, period)

	regime, err := plan.Merge(period, completed, selected)
	if err != nil {
		return Result{}, &plannererr.InvalidInputError{Field: "regime", Message: err.Error()}
	}

	regime = withProjectedLevels(regime, period, runState, historical, s)

	if err := r.Store.SaveRegime(ctx, in.SiteID, period, regime); err != nil {
		return Result{}, &plannererr.PersistenceError{Operation: "save regime", Err: err}
	}

	return Result{Regime: regime, Target: target, Period: period, Advisory: advisoryErr}, nil
}

// loadPumps fetches the site's pump combination and, if configured,
// scales each candidate's flow by the ratio of the latest measured
// suction pressure to its rated pressure.
func (r *Runner) loadPumps(ctx context.Context, in Input, s site.Site) ([]candidate.Pump, error) {
	pumps, err := r.Store.Pumps(ctx, in.PumpCombo)
	if err != nil {
		return nil, &plannererr.PersistenceError{Operation: "load pumps", Err: err}
	}
	if len(pumps) == 0 {
		return nil, &plannererr.InvalidInputError{Field: "pump_combo", Message: fmt.Sprintf("no pumps configured for combination %q", in.PumpCombo)}
	}
	if !s.SuctionAdjustment {
		return pumps, nil
	}
	bar, err := r.Store.LatestSuctionPressure(ctx, in.SiteID)
	if err != nil {
		if err == store.ErrNotFound {
			return pumps, nil
		}
		return nil, &plannererr.PersistenceError{Operation: "load suction pressure", Err: err}
	}
	return candidate.AdjustForSuction(pumps, bar), nil
}

func highestFlowLPS(pumps []candidate.Pump) float64 {
	var max float64
	for _, p := range pumps {
		if p.FlowLPS > max {
			max = p.FlowLPS
		}
	}
	return max
}

// skipRecalculation replays the existing plan's projected levels from now
// onward against the latest historical outflow and reports whether every
// bucket stays within the site's configured bounds, in which case no
// revision is needed this period.
func (r *Runner) skipRecalculation(s site.Site, rs site.RunState, period int, regime plan.Regime, historical []float64) bool {
	entries := regime.Slice()
	pumped := plan.ExpandToHalfHours(entries)
	var outflow [estimator.SlotsPerDay]float64
	copy(outflow[:], historical)

	resetIdx := calendar.HalfHourSlotsFrom(period)
	levels := estimator.Replay(estimator.Input{
		StartLevel:    entries[0].EstLevel,
		PumpedLPS:     pumped,
		OutflowLPS:    outflow,
		SurfaceAreaM2: s.SurfaceAreaM2,
		ResetIndex:    resetIdx,
		ResetLevel:    rs.CurrentLevel,
	})
	return estimator.WithinBounds(levels, resetIdx, s.MinLevel, s.MaxLevel)
}

func (r *Runner) reconcileTarget(ctx context.Context, s site.Site, rs site.RunState, period int, historical []float64, regime plan.Regime, hasRegime bool, secondsUntilMidnight, highestFlow float64) (reconcile.Target, error, error) {
	if period == 1 || !hasRegime {
		t, advisory := reconcile.ReconcileNewDay(reconcile.NewDayInputs{
			RunState:                rs,
			Site:                    s,
			ForecastOutflowLPS:      historical,
			SecondsUntilMidnight:    secondsUntilMidnight,
			HighestCandidateFlowLPS: highestFlow,
		})
		return t, normalizeAdvisory(advisory), nil
	}

	latest, hasTarget, err := r.Store.LatestTarget(ctx, s.ID)
	if err != nil {
		return reconcile.Target{}, nil, &plannererr.PersistenceError{Operation: "load latest target", Err: err}
	}
	prior := latest.NewTarget
	if !hasTarget {
		prior = demand.ForecastTotalLitres(historical)
	}

	t, advisory := reconcile.ReconcileMidDay(reconcile.MidDayInputs{
		Period:                  period,
		RunState:                rs,
		Site:                    s,
		PriorNewTarget:          prior,
		VolumeAlreadyPumped:     regime.VolumeThrough(period - 1),
		EstLevelAtCurrentPeriod: regime[period-1].EstLevel,
		SecondsUntilMidnight:    secondsUntilMidnight,
		HighestCandidateFlowLPS: highestFlow,
	})
	return t, normalizeAdvisory(advisory), nil
}

// normalizeAdvisory returns err unchanged, advisory or not. The reconcile
// transitions only ever return nil or one of the three advisory
// conditions reconcile.applyBoundaryPolicy can raise.
func normalizeAdvisory(err error) error {
	if err == nil || plannererr.IsAdvisory(err) {
		return err
	}
	return err
}

func advisoryFlag(err error) string {
	switch err.(type) {
	case *plannererr.LevelTooLowError:
		return "level_too_low"
	case *plannererr.LevelTooHighError:
		return "level_too_high"
	case *plannererr.MaxVolumeExceededError:
		return "max_volume_exceeded"
	default:
		return "unknown"
	}
}

func hasFlag(flags []string, name string) bool {
	for _, f := range flags {
		if f == name {
			return true
		}
	}
	return false
}

// buildPeriodOptions generates the candidate list for every remaining
// tariff period, truncating the current period's length to what remains
// of it at runState.Now.
func buildPeriodOptions(period int, rs site.RunState, slots []calendar.Slot, pumps []candidate.Pump, costs candidate.CostSchedule, rotatedOutflow []float64) []optimize.PeriodOptions {
	out := make([]optimize.PeriodOptions, 0, 8-period)
	for p := period; p <= 7; p++ {
		slot := slotFor(slots, p)
		hours := slot.Hours
		if p == period {
			hours = calendar.RemainingHours(rs.Now, p)
		}
		class := slot.ClassFor(rs.Weekday)
		price := costs.PriceFor(class)
		out = append(out, optimize.PeriodOptions{
			Period:  p,
			Options: candidate.ForPeriod(pumps, hours, price),
		})
	}
	return out
}

func slotFor(slots []calendar.Slot, period int) calendar.Slot {
	for _, s := range slots {
		if s.Period == period {
			return s
		}
	}
	defaults := calendar.DefaultSlots()
	return defaults[period-1]
}

// buildSelectedEntries turns the optimizer's chosen options into
// plan.PlanEntry values, recording the pump combination label each was
// chosen from.
func buildSelectedEntries(selections []candidate.Option, combo string) []plan.PlanEntry {
	entries := make([]plan.PlanEntry, len(selections))
	for i, opt := range selections {
		entries[i] = plan.PlanEntry{
			Speed:   opt.Speed,
			FlowLPS: opt.FlowLPS,
			Hours:   opt.Hours,
			VolumeL: opt.VolumeL,
			CostGBP: opt.CostGBP,
			Combo:   combo,
		}
	}
	return entries
}

func completedEntries(regime plan.Regime, hasRegime bool, period int) []plan.PlanEntry {
	if !hasRegime || period <= 1 {
		return nil
	}
	return regime.Slice()[:period-1]
}

// withProjectedLevels fills in EstLevel for the current period onward by
// replaying the merged regime against today's historical outflow;
// completed periods keep whatever EstLevel they already carried.
func withProjectedLevels(regime plan.Regime, period int, rs site.RunState, historical []float64, s site.Site) plan.Regime {
	entries := regime.Slice()
	startLevel := rs.CurrentLevel
	if period > 1 {
		startLevel = entries[0].EstLevel
	}

	pumped := plan.ExpandToHalfHours(entries)
	var outflow [estimator.SlotsPerDay]float64
	copy(outflow[:], historical)

	resetIdx := calendar.HalfHourSlotsFrom(period)
	levels := estimator.Replay(estimator.Input{
		StartLevel:    startLevel,
		PumpedLPS:     pumped,
		OutflowLPS:    outflow,
		SurfaceAreaM2: s.SurfaceAreaM2,
		ResetIndex:    resetIdx,
		ResetLevel:    rs.CurrentLevel,
	})

	for p := period; p <= 7; p++ {
		idx := calendar.HalfHourSlotsFrom(p)
		entries[p-1].EstLevel = levels[idx]
	}

	var out plan.Regime
	copy(out[:], entries)
	return out
}
