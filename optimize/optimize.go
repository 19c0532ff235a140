// Package optimize selects, for each remaining tariff period, the pump
// speed that minimizes total energy cost while keeping every half-hourly
// projected reservoir level within bounds and meeting the day's volume
// target.
//
// The underlying problem is a boolean assignment: exactly one candidate
// per remaining period, subject to a volume floor and per-half-hour
// level bounds. With at most seven periods and a handful of candidates
// each, the full assignment space is small enough to search exhaustively
// with branch-and-bound pruning on both the level trace and the running
// cost — the same shape of bounded search the rest of this codebase
// already does as a dynamic program over a discretized state space, just
// without needing to discretize a continuous state here.
package optimize

import (
	"math"

	"github.com/devskill-org/reservoir-regime-planner/candidate"
	"github.com/devskill-org/reservoir-regime-planner/estimator"
	"github.com/devskill-org/reservoir-regime-planner/plannererr"
)

// PeriodOptions is one remaining period's candidate list, in period order.
type PeriodOptions struct {
	Period  int
	Options []candidate.Option
}

// Input bundles one solve's problem data.
type Input struct {
	Periods       []PeriodOptions
	OutflowLPS    []float64 // half-hour samples, aligned 1:1 with the half-hour buckets Periods span
	StartLevel    float64
	MinLevel      float64
	MaxLevel      float64
	SurfaceAreaM2 float64
	TargetLitres  float64
}

// Result is the minimum-cost feasible assignment.
type Result struct {
	Selections  []candidate.Option // one per Periods entry, same order
	LevelTrace  []float64          // projected level at the end of each half-hour bucket covered
	TotalCost   float64
	TotalVolume float64
}

// RelaxationPolicy controls the optional target-relaxation search: when
// no assignment satisfies the full target, retry with the target scaled
// down in steps until Floor is reached. Disabled by default — a caller
// must opt in explicitly, matching the unused-by-default fallback in the
// reference implementation this mirrors.
type RelaxationPolicy struct {
	Enabled       bool
	InitialFactor float64
	Step          float64
	Floor         float64
}

// DefaultRelaxationPolicy mirrors the disabled-by-default relaxation
// sweep: 0.99 down to 0.85 in steps of 0.01, not run unless Enabled.
func DefaultRelaxationPolicy() RelaxationPolicy {
	return RelaxationPolicy{InitialFactor: 0.99, Step: 0.01, Floor: 0.85}
}

func bucketsFor(hours float64) int {
	return int(hours*2 + 0.5)
}

// Solve returns the minimum-cost assignment meeting the volume floor and
// level bounds, or a *plannererr.TargetNotSatisfiedError if none exists.
func Solve(in Input) (Result, error) {
	n := len(in.Periods)
	selections := make([]candidate.Option, n)
	best := Result{TotalCost: math.Inf(1)}
	found := false

	var bucketOffsets []int
	offset := 0
	for _, p := range in.Periods {
		bucketOffsets = append(bucketOffsets, offset)
		offset += bucketsFor(p.Options[0].Hours)
	}

	var recurse func(periodIdx, bucketIdx int, level, cumCost, cumVolume float64, trace []float64)
	recurse = func(periodIdx, bucketIdx int, level, cumCost, cumVolume float64, trace []float64) {
		if found && cumCost >= best.TotalCost {
			return
		}
		if periodIdx == n {
			if cumVolume >= in.TargetLitres {
				if !found || cumCost < best.TotalCost {
					found = true
					best = Result{
						Selections:  append([]candidate.Option(nil), selections...),
						LevelTrace:  append([]float64(nil), trace...),
						TotalCost:   cumCost,
						TotalVolume: cumVolume,
					}
				}
			}
			return
		}
		period := in.Periods[periodIdx]
		buckets := bucketsFor(period.Options[0].Hours)
		for _, opt := range period.Options {
			newCost := cumCost + opt.CostGBP
			if found && newCost >= best.TotalCost {
				continue
			}
			feasible := true
			localLevel := level
			localTrace := make([]float64, 0, buckets)
			for b := 0; b < buckets; b++ {
				gidx := bucketOffsets[periodIdx] + b
				var out float64
				if gidx < len(in.OutflowLPS) {
					out = in.OutflowLPS[gidx]
				}
				net := opt.FlowLPS - out
				localLevel += estimator.DeltaLevel(net, in.SurfaceAreaM2)
				if localLevel < in.MinLevel || localLevel > in.MaxLevel {
					feasible = false
					break
				}
				localTrace = append(localTrace, localLevel)
			}
			if !feasible {
				continue
			}
			selections[periodIdx] = opt
			recurse(periodIdx+1, bucketIdx+buckets, localLevel, newCost, cumVolume+opt.VolumeL, append(trace, localTrace...))
		}
	}

	recurse(0, 0, in.StartLevel, 0, 0, nil)

	if !found {
		return Result{}, &plannererr.TargetNotSatisfiedError{Target: in.TargetLitres}
	}
	return best, nil
}

// SolveWithRelaxation retries Solve with a progressively reduced target
// when policy.Enabled, returning the factor actually used (1.0 if the
// unscaled target succeeded, or if relaxation is disabled).
func SolveWithRelaxation(in Input, policy RelaxationPolicy) (Result, float64, error) {
	res, err := Solve(in)
	if err == nil || !policy.Enabled {
		return res, 1.0, err
	}
	factor := policy.InitialFactor
	for factor >= policy.Floor {
		scaled := in
		scaled.TargetLitres = in.TargetLitres * factor
		res, err = Solve(scaled)
		if err == nil {
			return res, factor, nil
		}
		factor -= policy.Step
	}
	return Result{}, 0, &plannererr.TargetNotSatisfiedError{Target: in.TargetLitres}
}
