package timetable

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Pipeline defaults.
const (
	DefaultGeneticAttempts = 10
	DefaultGenerationStep  = 100
	DefaultPopulationStep  = 10
)

// PipelineOptions configures the escalation from greedy to repair.
type PipelineOptions struct {
	Window      Window
	AllowForced bool
	// GeneticAttempts is the number of genetic runs, each with a larger budget.
	GeneticAttempts int
	// Genetic is the template for the first attempt. Later attempts add
	// GenerationStep generations and PopulationStep individuals each.
	Genetic        GeneticOptions
	GenerationStep int
	PopulationStep int
	Backtrack      BacktrackOptions
	Repair         RepairOptions
	// Rand feeds every genetic attempt; nil seeds from the clock.
	Rand *rand.Rand
}

// StageReport describes one strategy run inside the pipeline.
type StageReport struct {
	Strategy Strategy
	Attempt  int
	Success  bool
	Placed   int
	Forced   int
	Unplaced int
	Elapsed  time.Duration
}

// Outcome is the final result of a pipeline run plus every stage it went through.
type Outcome struct {
	Result
	Stages []StageReport
}

// Pipeline runs greedy, then genetic attempts, then backtracking, then
// repair, stopping at the first stage that places every request.
type Pipeline struct {
	opts   PipelineOptions
	logger *zap.Logger
	tt     *Timetable
}

// NewPipeline constructs a pipeline with its own timetable.
func NewPipeline(opts PipelineOptions, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Window == (Window{}) {
		opts.Window = DaytimeWindow
	}
	if opts.GeneticAttempts <= 0 {
		opts.GeneticAttempts = DefaultGeneticAttempts
	}
	if opts.GenerationStep <= 0 {
		opts.GenerationStep = DefaultGenerationStep
	}
	if opts.PopulationStep <= 0 {
		opts.PopulationStep = DefaultPopulationStep
	}
	if opts.Genetic.Generations <= 0 {
		opts.Genetic.Generations = DefaultGenerations
	}
	if opts.Genetic.PopulationSize <= 0 {
		opts.Genetic.PopulationSize = DefaultPopulationSize
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	opts.Genetic.Window = opts.Window
	opts.Backtrack.Window = opts.Window
	opts.Repair.Window = opts.Window
	return &Pipeline{opts: opts, logger: logger, tt: New()}
}

// Timetable exposes the state left by the last run.
func (p *Pipeline) Timetable() *Timetable { return p.tt }

// Run escalates through the strategies until one succeeds. The context is
// checked between stages; on cancellation the best legal result so far is
// returned together with the context error.
func (p *Pipeline) Run(ctx context.Context, requests []*Request) (Outcome, error) {
	var out Outcome
	var best Result
	haveBest := false
	record := func(res Result, attempt int, started time.Time) {
		out.Stages = append(out.Stages, StageReport{
			Strategy: res.Strategy,
			Attempt:  attempt,
			Success:  res.Success,
			Placed:   res.Placed(),
			Forced:   len(res.Forced()),
			Unplaced: len(res.Unplaced),
			Elapsed:  time.Since(started),
		})
		p.logger.Info("timetable stage finished",
			zap.String("strategy", string(res.Strategy)),
			zap.Int("attempt", attempt),
			zap.Bool("success", res.Success),
			zap.Int("placed", res.Placed()),
			zap.Int("unplaced", len(res.Unplaced)),
		)
		if len(res.Forced()) > 0 {
			return
		}
		if !haveBest || res.Placed() > best.Placed() {
			best = res
			haveBest = true
		}
	}
	finish := func(res Result, err error) (Outcome, error) {
		restore(p.tt, res.Bookings)
		out.Result = res
		return out, err
	}

	started := time.Now()
	greedy := NewGreedy(GreedyOptions{Window: p.opts.Window, AllowForced: p.opts.AllowForced}, p.logger).Schedule(p.tt, requests)
	record(greedy, 0, started)
	if greedy.Success {
		return finish(greedy, nil)
	}

	for attempt := 0; attempt < p.opts.GeneticAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return finish(p.fallback(best, greedy), err)
		}
		gopts := p.opts.Genetic
		gopts.Generations += attempt * p.opts.GenerationStep
		gopts.PopulationSize += attempt * p.opts.PopulationStep
		gopts.Rand = p.opts.Rand
		started = time.Now()
		res := NewGenetic(gopts, p.logger).Schedule(p.tt, requests)
		record(res, attempt+1, started)
		if res.Success {
			return finish(res, nil)
		}
	}

	if err := ctx.Err(); err != nil {
		return finish(p.fallback(best, greedy), err)
	}
	started = time.Now()
	bt := NewBacktracker(p.opts.Backtrack, p.logger).Schedule(p.tt, requests)
	record(bt, 0, started)
	if bt.Success {
		return finish(bt, nil)
	}

	if err := ctx.Err(); err != nil {
		return finish(p.fallback(best, greedy), err)
	}
	restore(p.tt, best.Bookings)
	var residual []*Request
	var infeasible []Unplaced
	for _, u := range best.Unplaced {
		if !u.Request.placeable(p.opts.Window) {
			infeasible = append(infeasible, u)
			continue
		}
		residual = append(residual, u.Request)
	}
	if len(residual) == 0 {
		return finish(p.fallback(best, greedy), nil)
	}
	started = time.Now()
	repaired := NewRepairer(p.opts.Repair, p.logger).Repair(p.tt, residual)
	if repaired.Success {
		repaired.Unplaced = infeasible
		repaired.Success = len(infeasible) == 0
		record(repaired, 0, started)
		if repaired.Success {
			return finish(repaired, nil)
		}
		return finish(p.fallback(repaired, greedy), nil)
	}
	repaired.Unplaced = best.Unplaced
	record(repaired, 0, started)
	return finish(p.fallback(best, greedy), nil)
}

// fallback picks the final answer when no stage succeeded: the greedy result
// when forced placement is allowed, otherwise the best legal partial result.
func (p *Pipeline) fallback(best, greedy Result) Result {
	if p.opts.AllowForced && len(greedy.Forced()) > 0 {
		return greedy
	}
	best.Success = false
	return best
}
