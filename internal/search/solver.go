package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"goalreach/internal/atom"
	"goalreach/internal/memo"
	"goalreach/internal/shape"
)

var tracer = otel.Tracer("goalreach.search")

var ErrInvalidInput = errors.New("invalid search input")

const (
	DefaultDepth        = 6
	DefaultSquaresDepth = 5

	PassSquares = "squares"
	PassGeneral = "general"
)

type Options struct {
	// Depth is how many function rounds each node expands through in the
	// general pass.
	Depth int
	// SquaresDepth is the expansion depth used by the squares pass.
	SquaresDepth int
	// Workers bounds concurrently searched shapes. Zero means GOMAXPROCS.
	Workers     int
	SkipSquares bool
	Logger      *slog.Logger
	// ProgressInterval throttles progress log lines. Zero means 5s.
	ProgressInterval time.Duration
}

// Solution is one improving expression. Solutions reach the sink with strictly
// increasing scores.
type Solution struct {
	Score   atom.Score
	Atom    *atom.Atom
	Pass    string
	Shape   string
	Elapsed time.Duration
}

// Sink receives solutions. Calls are serialized.
type Sink func(Solution)

type Stats struct {
	Permutations int64
	Candidates   int64
	Solutions    int64
	MemoValues   int64
	// Best is the highest reported score, or -1 when nothing was found.
	Best    int
	Elapsed time.Duration
}

type Solver struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options) *Solver {
	if opts.Depth <= 0 {
		opts.Depth = DefaultDepth
	}
	if opts.SquaresDepth <= 0 {
		opts.SquaresDepth = DefaultSquaresDepth
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Solver{opts: opts, logger: logger.With("component", "search")}
}

// Solve searches with default options.
func Solve(ctx context.Context, nums []float64, goal float64, sink Sink) (Stats, error) {
	return New(Options{}).Solve(ctx, nums, goal, sink)
}

// Validate checks that nums and goal can be searched.
func Validate(nums []float64, goal float64) error {
	if len(nums) == 0 || len(nums) > shape.MaxNumbers {
		return fmt.Errorf("%w: need 1 to %d numbers, got %d", ErrInvalidInput, shape.MaxNumbers, len(nums))
	}
	for _, n := range nums {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return fmt.Errorf("%w: number %v is not finite", ErrInvalidInput, n)
		}
	}
	if math.IsNaN(goal) || math.IsInf(goal, 0) {
		return fmt.Errorf("%w: goal %v is not finite", ErrInvalidInput, goal)
	}
	return nil
}

// Solve runs the squares pass and then the general pass, reporting every
// improving solution to sink. It blocks until both passes finish or ctx is
// done, in which case the returned error is ctx.Err() and the stats cover the
// work done so far.
func (s *Solver) Solve(ctx context.Context, nums []float64, goal float64, sink Sink) (Stats, error) {
	if err := Validate(nums, goal); err != nil {
		return Stats{}, err
	}
	ctx, span := tracer.Start(ctx, "Solver.Solve", trace.WithAttributes(
		attribute.Float64Slice("search.numbers", nums),
		attribute.Float64("search.goal", goal),
		attribute.Int("search.depth", s.opts.Depth),
	))
	defer span.End()

	r := &run{
		solver:   s,
		nums:     append([]float64(nil), nums...),
		goal:     goal,
		sink:     sink,
		floor:    newFloor(),
		start:    time.Now(),
		progress: &rate.Sometimes{Interval: s.opts.ProgressInterval},
	}
	s.logger.Debug("solve started", "numbers", nums, "goal", goal, "workers", s.opts.Workers)

	err := r.passes(ctx)
	stats := r.stats()
	span.SetAttributes(
		attribute.Int("search.best", stats.Best),
		attribute.Int64("search.solutions", stats.Solutions),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Debug("solve stopped", "err", err, "best", stats.Best, "elapsed", stats.Elapsed)
		return stats, err
	}
	s.logger.Debug("solve finished", "best", stats.Best, "solutions", stats.Solutions, "elapsed", stats.Elapsed)
	return stats, nil
}

type run struct {
	solver   *Solver
	nums     []float64
	goal     float64
	sink     Sink
	floor    *floor
	start    time.Time
	progress *rate.Sometimes

	permutations atomic.Int64
	candidates   atomic.Int64
	solutions    atomic.Int64
	memoValues   atomic.Int64
}

func (r *run) stats() Stats {
	return Stats{
		Permutations: r.permutations.Load(),
		Candidates:   r.candidates.Load(),
		Solutions:    r.solutions.Load(),
		MemoValues:   r.memoValues.Load(),
		Best:         r.floor.Value(),
		Elapsed:      time.Since(r.start),
	}
}

func (r *run) passes(ctx context.Context) error {
	if !r.solver.opts.SkipSquares {
		var tasks []task
		for _, sp := range squaresSplits(r.nums) {
			tasks = append(tasks, r.squaresTask(sp))
		}
		if err := r.pass(ctx, PassSquares, tasks); err != nil {
			return err
		}
	}
	var tasks []task
	for count := len(r.nums); count >= 1; count-- {
		for _, pair := range shape.Pairs(count) {
			tasks = append(tasks, r.generalTask(pair))
		}
	}
	return r.pass(ctx, PassGeneral, tasks)
}

type task func(ctx context.Context) error

// pass runs tasks on a bounded errgroup. A panicking task is re-raised on the
// calling goroutine once the group has drained.
func (r *run) pass(ctx context.Context, name string, tasks []task) error {
	ctx, span := tracer.Start(ctx, "search."+name, trace.WithAttributes(
		attribute.Int("search.tasks", len(tasks)),
	))
	defer span.End()
	defer func(start time.Time) {
		passDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}(time.Now())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.solver.opts.Workers)
	for _, t := range tasks {
		g.Go(func() (err error) {
			defer func() {
				if v := recover(); v != nil {
					err = &taskPanic{value: v, stack: debug.Stack()}
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			return t(gctx)
		})
	}
	err := g.Wait()
	var p *taskPanic
	if errors.As(err, &p) {
		panic(p)
	}
	return err
}

type taskPanic struct {
	value any
	stack []byte
}

func (p *taskPanic) Error() string {
	return fmt.Sprintf("search task panicked: %v\n%s", p.value, p.stack)
}

func (r *run) generalTask(pair shape.Pair) task {
	return func(ctx context.Context) error {
		ctx, span := tracer.Start(ctx, "search.joiner", trace.WithAttributes(
			attribute.String("search.pass", PassGeneral),
			attribute.String("search.shape", pair.String()),
		))
		defer span.End()

		m := memo.New()
		j := newJoiner(pair, m, r.solver.opts.Depth, len(r.nums))
		j.progress = r.progressFunc(PassGeneral)
		err := j.run(ctx, r.nums, r.goal, r.floor.Value, func(score atom.Score, a *atom.Atom) bool {
			r.offer(score, a, PassGeneral, pair.String())
			return true
		})
		r.finishMemo(m, PassGeneral, pair.String())
		return err
	}
}

func (r *run) squaresTask(sp split) task {
	return func(ctx context.Context) error {
		shapeName := fmt.Sprintf("%v ^ %v", sp.goal, sp.power)
		ctx, span := tracer.Start(ctx, "search.joiner", trace.WithAttributes(
			attribute.String("search.pass", PassSquares),
			attribute.String("search.shape", shapeName),
		))
		defer span.End()

		sq := newSquarer(r.solver.opts.SquaresDepth, len(r.nums))
		err := sq.run(ctx, sp, r.goal, r.floor.Value, func(score atom.Score, a *atom.Atom) bool {
			r.offer(score, a, PassSquares, shapeName)
			return true
		}, r.progressFunc(PassSquares))
		r.finishMemo(sq.memo, PassSquares, shapeName)
		return err
	}
}

func (r *run) progressFunc(pass string) func(int64) {
	perms := permutationsTotal.WithLabelValues(pass)
	cands := candidatesTotal.WithLabelValues(pass)
	return func(candidates int64) {
		r.permutations.Add(1)
		r.candidates.Add(candidates)
		perms.Inc()
		cands.Add(float64(candidates))
		r.progress.Do(func() {
			r.solver.logger.Info("search progress",
				"pass", pass,
				"permutations", r.permutations.Load(),
				"candidates", r.candidates.Load(),
				"best", r.floor.Value(),
				"elapsed", time.Since(r.start).Round(time.Millisecond),
			)
		})
	}
}

func (r *run) finishMemo(m *memo.Memo, pass, shapeName string) {
	keys, vals := m.Stats()
	r.memoValues.Add(int64(vals))
	memoValues.Observe(float64(vals))
	r.solver.logger.Debug("task finished", "pass", pass, "shape", shapeName, "memo_keys", keys, "memo_values", vals)
}

func (r *run) offer(score atom.Score, a *atom.Atom, pass, shapeName string) {
	r.floor.Offer(score.Value(), func() {
		sol := Solution{
			Score:   score,
			Atom:    a,
			Pass:    pass,
			Shape:   shapeName,
			Elapsed: time.Since(r.start),
		}
		r.solutions.Add(1)
		solutionsTotal.WithLabelValues(pass).Inc()
		r.solver.logger.Info("solution",
			"score", score.Value(),
			"expr", a.String(),
			"pass", pass,
			"elapsed", sol.Elapsed.Round(time.Millisecond),
		)
		if r.sink != nil {
			r.sink(sol)
		}
	})
}
