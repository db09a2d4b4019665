// Package backfill walks the (season) and (season, week) fetch units of a
// job and folds their results into a single Dataset.
package backfill

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fortuna/gridiron/internal/ingest/cfbd"
)

// Runner executes job specs against a Source.
type Runner struct {
	source      Source
	concurrency int
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithConcurrency bounds the number of units fetched at once. Values
// below 1 mean sequential.
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n < 1 {
			n = 1
		}
		r.concurrency = n
	}
}

// NewRunner constructs a runner reading from source.
func NewRunner(source Source, opts ...RunnerOption) *Runner {
	r := &Runner{source: source, concurrency: 1}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run fetches every unit of spec and returns the folded dataset. The first
// failing unit aborts the run with a *UnitError; no partial dataset is
// returned.
func (r *Runner) Run(ctx context.Context, spec JobSpec, reporter Reporter) (*Dataset, error) {
	units := spec.Units()
	rep := newSyncReporter(reporter)
	rep.OnJobStart(spec, len(units))

	results := make([]UnitResult, len(units))
	var err error
	if r.concurrency == 1 {
		err = r.runSequential(ctx, units, results, rep)
	} else {
		err = r.runConcurrent(ctx, units, results, rep)
	}
	if err != nil {
		rep.OnJobError(err)
		return nil, err
	}

	ds := Fold(results)
	rep.OnJobComplete(ds)
	return ds, nil
}

func (r *Runner) runSequential(ctx context.Context, units []Unit, results []UnitResult, rep Reporter) error {
	for idx, unit := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := r.fetchUnit(ctx, unit, idx, len(units), rep)
		if err != nil {
			return err
		}
		results[idx] = res
	}
	return nil
}

// runConcurrent fetches units on a bounded group. Each unit owns its slot
// in results, so the fold sees the same order as a sequential run.
func (r *Runner) runConcurrent(ctx context.Context, units []Unit, results []UnitResult, rep Reporter) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for idx, unit := range units {
		idx, unit := idx, unit
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.fetchUnit(gctx, unit, idx, len(units), rep)
			if err != nil {
				return err
			}
			results[idx] = res
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) fetchUnit(ctx context.Context, unit Unit, idx, total int, rep Reporter) (UnitResult, error) {
	rep.OnUnitStart(unit, idx, total)

	res := UnitResult{Unit: unit}
	var err error
	switch unit.Kind {
	case UnitGames:
		res.Games, err = r.source.FetchGames(ctx, unit.Season)
	case UnitTeamStats:
		res.Stats, err = r.source.FetchTeamStats(ctx, unit.Season, unit.Week)
	default:
		err = fmt.Errorf("unsupported unit kind %q", unit.Kind)
	}
	if err != nil {
		return UnitResult{}, &UnitError{Unit: unit, Err: err}
	}

	rep.OnUnitDone(unit, res.Records(), idx, total)
	return res, nil
}

// Fold concatenates unit results in the order given into a new Dataset.
// Game units contribute games; team-stat units contribute one batch each.
func Fold(results []UnitResult) *Dataset {
	var games, stats int
	for _, res := range results {
		if res.Unit.Kind == UnitGames {
			games += len(res.Games)
		} else {
			stats++
		}
	}

	ds := &Dataset{
		Games: make([]cfbd.Game, 0, games),
		Stats: make([]StatBatch, 0, stats),
	}
	for _, res := range results {
		switch res.Unit.Kind {
		case UnitGames:
			for _, g := range res.Games {
				ds.Games = append(ds.Games, g.Clone())
			}
		case UnitTeamStats:
			entries := make([]cfbd.RawStatEntry, len(res.Stats))
			copy(entries, res.Stats)
			ds.Stats = append(ds.Stats, StatBatch{Unit: res.Unit, Entries: entries})
		}
	}
	return ds
}

// syncReporter serializes callbacks and tolerates a nil Reporter.
type syncReporter struct {
	mu    sync.Mutex
	inner Reporter
}

func newSyncReporter(r Reporter) *syncReporter {
	return &syncReporter{inner: r}
}

func (s *syncReporter) OnJobStart(spec JobSpec, units int) {
	s.do(func(r Reporter) { r.OnJobStart(spec, units) })
}

func (s *syncReporter) OnUnitStart(unit Unit, index, total int) {
	s.do(func(r Reporter) { r.OnUnitStart(unit, index, total) })
}

func (s *syncReporter) OnUnitDone(unit Unit, records, index, total int) {
	s.do(func(r Reporter) { r.OnUnitDone(unit, records, index, total) })
}

func (s *syncReporter) OnJobComplete(ds *Dataset) {
	s.do(func(r Reporter) { r.OnJobComplete(ds) })
}

func (s *syncReporter) OnJobError(err error) {
	s.do(func(r Reporter) { r.OnJobError(err) })
}

func (s *syncReporter) do(fn func(Reporter)) {
	if s.inner == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.inner)
}
