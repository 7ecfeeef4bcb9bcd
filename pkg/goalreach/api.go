package goalreach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"goalreach/internal/model"
	"goalreach/internal/puzzle"
	"goalreach/internal/search"
	"goalreach/internal/stats"
	"goalreach/internal/storage"
)

// ErrNotFound reports a run or its solutions missing from both the store and
// the run artifacts.
var ErrNotFound = errors.New("not found")

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "goalreach.db"
)

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
	// Workers is the default solver parallelism. Zero means GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
	Now     func() time.Time
}

type Client struct {
	store storage.Store

	mu     sync.Mutex
	inited bool

	runsDir    string
	exportsDir string
	workers    int
	logger     *slog.Logger
	now        func() time.Time
}

type SolveRequest struct {
	Date    puzzle.Date
	Numbers []float64
	Goal    *float64

	Depth        int
	SquaresDepth int
	Workers      int
	SkipSquares  bool
	// Timeout bounds the search. A run that hits it is recorded as cancelled
	// and keeps every solution found so far.
	Timeout time.Duration
	// OnSolution observes each improving solution as it is found.
	OnSolution func(SolutionItem)
}

type SolutionItem struct {
	Seq        int
	Expression string
	Value      float64
	Score      int
	Breakdown  string
	Numbers    int
	Ops        int
	Funcs      int
	Bonus      int
	Pass       string
	Shape      string
	Elapsed    time.Duration
	Trace      []string
}

type SolveSummary struct {
	RunID        string
	ArtifactsDir string
	Puzzle       puzzle.Puzzle
	Status       string
	Solutions    []SolutionItem
	Stats        search.Stats
}

// Best is the highest scoring solution, if any.
func (s SolveSummary) Best() (SolutionItem, bool) {
	if len(s.Solutions) == 0 {
		return SolutionItem{}, false
	}
	return s.Solutions[len(s.Solutions)-1], true
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID          string
	CreatedAtUTC   string
	Date           string
	Numbers        []float64
	Goal           float64
	Status         string
	BestScore      int
	BestExpression string
}

type RunRequest struct {
	RunID  string
	Latest bool
}

type SolutionsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		runsDir:    runsDir,
		exportsDir: exportsDir,
		workers:    opts.Workers,
		logger:     logger,
		now:        now,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

// Puzzle resolves the puzzle a solve request would search without searching it.
func (c *Client) Puzzle(req SolveRequest) (puzzle.Puzzle, error) {
	return puzzle.Resolve(puzzle.Request{
		Date:    req.Date,
		Numbers: req.Numbers,
		Goal:    req.Goal,
		Now:     c.now,
	})
}

// Solve searches the requested puzzle and records the run with every
// improving solution. Hitting req.Timeout is not an error. Cancelling ctx
// records the partial run and returns ctx.Err() with the summary.
func (c *Client) Solve(ctx context.Context, req SolveRequest) (SolveSummary, error) {
	if req.Depth < 0 || req.SquaresDepth < 0 || req.Workers < 0 {
		return SolveSummary{}, errors.New("depth, squares depth and workers must be >= 0")
	}
	if req.Depth == 0 {
		req.Depth = search.DefaultDepth
	}
	if req.SquaresDepth == 0 {
		req.SquaresDepth = search.DefaultSquaresDepth
	}
	if req.Workers == 0 {
		req.Workers = c.workers
	}

	p, err := c.Puzzle(req)
	if err != nil {
		return SolveSummary{}, err
	}
	if err := search.Validate(p.Numbers, p.Goal); err != nil {
		return SolveSummary{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return SolveSummary{}, err
	}

	runID := uuid.NewString()
	startedAt := c.now().UTC()
	logger := c.logger.With("run_id", runID)

	searchCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var (
		records []model.SolutionRecord
		items   []SolutionItem
	)
	solver := search.New(search.Options{
		Depth:        req.Depth,
		SquaresDepth: req.SquaresDepth,
		Workers:      req.Workers,
		SkipSquares:  req.SkipSquares,
		Logger:       logger,
	})
	result, searchErr := solver.Solve(searchCtx, p.Numbers, p.Goal, func(sol search.Solution) {
		item := solutionItem(len(items)+1, sol)
		items = append(items, item)
		records = append(records, solutionRecord(runID, item))
		if req.OnSolution != nil {
			req.OnSolution(item)
		}
	})

	status := model.RunCompleted
	switch {
	case searchErr == nil:
	case errors.Is(searchErr, context.DeadlineExceeded), errors.Is(searchErr, context.Canceled):
		status = model.RunCancelled
	default:
		status = model.RunFailed
	}

	run := model.SolveRun{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		Numbers:         p.Numbers,
		Goal:            p.Goal,
		Depth:           req.Depth,
		SquaresDepth:    req.SquaresDepth,
		StartedAt:       startedAt,
		ElapsedMS:       result.Elapsed.Milliseconds(),
		Status:          status,
		BestScore:       result.Best,
		Solutions:       len(items),
		Permutations:    result.Permutations,
		Candidates:      result.Candidates,
		MemoValues:      result.MemoValues,
	}
	if p.Generated {
		run.Date = p.Date.String()
	}
	if status == model.RunFailed {
		run.Error = searchErr.Error()
	}
	if len(items) > 0 {
		run.BestExpression = items[len(items)-1].Expression
	}

	// The run is recorded even when ctx is done.
	runDir, err := c.record(context.WithoutCancel(ctx), run, records, req)
	if err != nil {
		return SolveSummary{}, err
	}
	logger.Info("run recorded", "status", status, "best", run.BestScore, "solutions", run.Solutions, "elapsed", result.Elapsed)

	summary := SolveSummary{
		RunID:        runID,
		ArtifactsDir: filepath.Clean(runDir),
		Puzzle:       p,
		Status:       status,
		Solutions:    items,
		Stats:        result,
	}
	if status == model.RunFailed {
		return summary, searchErr
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (c *Client) record(ctx context.Context, run model.SolveRun, records []model.SolutionRecord, req SolveRequest) (string, error) {
	if err := c.store.SaveRun(ctx, run); err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	if err := c.store.SaveSolutions(ctx, run.ID, records); err != nil {
		return "", fmt.Errorf("save solutions: %w", err)
	}

	runDir, err := stats.WriteRunArtifacts(c.runsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:        run.ID,
			Date:         run.Date,
			Numbers:      run.Numbers,
			Goal:         run.Goal,
			Depth:        run.Depth,
			SquaresDepth: run.SquaresDepth,
			Workers:      req.Workers,
			SkipSquares:  req.SkipSquares,
			TimeoutMS:    req.Timeout.Milliseconds(),
		},
		Summary: stats.RunSummary{
			RunID:          run.ID,
			Status:         run.Status,
			BestScore:      run.BestScore,
			BestExpression: run.BestExpression,
			Solutions:      run.Solutions,
			Permutations:   run.Permutations,
			Candidates:     run.Candidates,
			MemoValues:     run.MemoValues,
			ElapsedMS:      run.ElapsedMS,
		},
		Solutions: records,
	})
	if err != nil {
		return "", err
	}

	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:          run.ID,
		Date:           run.Date,
		Numbers:        run.Numbers,
		Goal:           run.Goal,
		Status:         run.Status,
		BestScore:      run.BestScore,
		BestExpression: run.BestExpression,
		CreatedAtUTC:   run.StartedAt.Format(time.RFC3339Nano),
	}); err != nil {
		return "", err
	}
	return runDir, nil
}

// Runs lists recorded runs newest first. The store is authoritative for the
// runs it holds; the run index adds runs recorded by other processes and
// breaks ties between equal start times.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	stored, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		item    RunItem
		created time.Time
		rank    int
	}
	byID := make(map[string]model.SolveRun, len(stored))
	for _, run := range stored {
		byID[run.ID] = run
	}
	all := make([]ranked, 0, len(stored)+len(entries))
	for i, e := range entries {
		if run, ok := byID[e.RunID]; ok {
			all = append(all, ranked{item: runItem(run), created: run.StartedAt, rank: i})
			delete(byID, e.RunID)
			continue
		}
		created, _ := time.Parse(time.RFC3339Nano, e.CreatedAtUTC)
		all = append(all, ranked{item: indexItem(e), created: created, rank: i})
	}
	for i, run := range stored {
		if _, ok := byID[run.ID]; ok {
			all = append(all, ranked{item: runItem(run), created: run.StartedAt, rank: len(entries) + i})
		}
	}
	slices.SortFunc(all, func(a, b ranked) int {
		if c := b.created.Compare(a.created); c != 0 {
			return c
		}
		return a.rank - b.rank
	})
	if len(all) > req.Limit {
		all = all[:req.Limit]
	}

	out := make([]RunItem, 0, len(all))
	for _, r := range all {
		out = append(out, r.item)
	}
	return out, nil
}

// DeleteRun removes a run from the store, its artifacts and the run index.
func (c *Client) DeleteRun(ctx context.Context, req RunRequest) (string, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, "delete")
	if err != nil {
		return "", err
	}
	if err := c.ensureStore(ctx); err != nil {
		return "", err
	}

	_, stored, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	if stored {
		if err := c.store.DeleteRun(ctx, runID); err != nil {
			return "", fmt.Errorf("delete run: %w", err)
		}
	}
	removed, err := stats.DeleteRun(c.runsDir, runID)
	if err != nil {
		return "", err
	}
	if !stored && !removed {
		return "", fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	c.logger.Info("run deleted", "run_id", runID)
	return runID, nil
}

// Run loads one recorded run. Runs recorded by another process with a
// memory store are rebuilt from their artifacts.
func (c *Client) Run(ctx context.Context, req RunRequest) (model.SolveRun, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, "run")
	if err != nil {
		return model.SolveRun{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return model.SolveRun{}, err
	}

	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return model.SolveRun{}, err
	}
	if ok {
		return run, nil
	}

	cfg, ok, err := stats.ReadRunConfig(c.runsDir, runID)
	if err != nil {
		return model.SolveRun{}, err
	}
	if !ok {
		return model.SolveRun{}, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	summary, _, err := stats.ReadRunSummary(c.runsDir, runID)
	if err != nil {
		return model.SolveRun{}, err
	}
	return model.SolveRun{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		Date:            cfg.Date,
		Numbers:         cfg.Numbers,
		Goal:            cfg.Goal,
		Depth:           cfg.Depth,
		SquaresDepth:    cfg.SquaresDepth,
		ElapsedMS:       summary.ElapsedMS,
		Status:          summary.Status,
		BestScore:       summary.BestScore,
		BestExpression:  summary.BestExpression,
		Solutions:       summary.Solutions,
		Permutations:    summary.Permutations,
		Candidates:      summary.Candidates,
		MemoValues:      summary.MemoValues,
	}, nil
}

func (c *Client) Solutions(ctx context.Context, req SolutionsRequest) ([]SolutionItem, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, "solutions")
	if err != nil {
		return nil, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	records, ok, err := c.store.GetSolutions(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		records, ok, err = stats.ReadSolutions(c.runsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: solutions for run %s", ErrNotFound, runID)
	}
	if req.Limit > 0 && len(records) > req.Limit {
		records = records[len(records)-req.Limit:]
	}

	out := make([]SolutionItem, 0, len(records))
	for _, rec := range records {
		out = append(out, SolutionItem{
			Seq:        rec.Seq,
			Expression: rec.Expression,
			Value:      rec.Value,
			Score:      rec.Score,
			Breakdown:  breakdown(rec.Score, rec.Numbers, rec.Ops, rec.Funcs),
			Numbers:    rec.Numbers,
			Ops:        rec.Ops,
			Funcs:      rec.Funcs,
			Bonus:      rec.Bonus,
			Pass:       rec.Pass,
			Shape:      rec.Shape,
			Elapsed:    time.Duration(rec.ElapsedMS) * time.Millisecond,
			Trace:      append([]string(nil), rec.Trace...),
		})
	}
	return out, nil
}

func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool, what string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if latest {
		runs, err := c.Runs(ctx, RunsRequest{Limit: 1})
		if err != nil {
			return "", err
		}
		if len(runs) == 0 {
			return "", fmt.Errorf("%w: no runs recorded", ErrNotFound)
		}
		return runs[0].RunID, nil
	}
	if runID == "" {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	return runID, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inited {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.inited = true
	return nil
}

func runItem(run model.SolveRun) RunItem {
	return RunItem{
		RunID:          run.ID,
		CreatedAtUTC:   run.StartedAt.UTC().Format(time.RFC3339Nano),
		Date:           run.Date,
		Numbers:        append([]float64(nil), run.Numbers...),
		Goal:           run.Goal,
		Status:         run.Status,
		BestScore:      run.BestScore,
		BestExpression: run.BestExpression,
	}
}

func indexItem(e stats.RunIndexEntry) RunItem {
	return RunItem{
		RunID:          e.RunID,
		CreatedAtUTC:   e.CreatedAtUTC,
		Date:           e.Date,
		Numbers:        append([]float64(nil), e.Numbers...),
		Goal:           e.Goal,
		Status:         e.Status,
		BestScore:      e.BestScore,
		BestExpression: e.BestExpression,
	}
}

func solutionItem(seq int, sol search.Solution) SolutionItem {
	trace, value, _ := sol.Atom.Trace()
	return SolutionItem{
		Seq:        seq,
		Expression: sol.Atom.String(),
		Value:      value,
		Score:      sol.Score.Value(),
		Breakdown:  sol.Score.String(),
		Numbers:    int(sol.Score.Nums),
		Ops:        sol.Score.Ops(),
		Funcs:      int(sol.Score.Funcs),
		Bonus:      int(sol.Score.Bonus),
		Pass:       sol.Pass,
		Shape:      sol.Shape,
		Elapsed:    sol.Elapsed,
		Trace:      trace,
	}
}

func solutionRecord(runID string, item SolutionItem) model.SolutionRecord {
	return model.SolutionRecord{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           runID,
		Seq:             item.Seq,
		Expression:      item.Expression,
		Value:           item.Value,
		Score:           item.Score,
		Numbers:         item.Numbers,
		Ops:             item.Ops,
		Funcs:           item.Funcs,
		Bonus:           item.Bonus,
		Pass:            item.Pass,
		Shape:           item.Shape,
		ElapsedMS:       item.Elapsed.Milliseconds(),
		Trace:           append([]string(nil), item.Trace...),
	}
}

// breakdown matches atom.Score.String for stored records.
func breakdown(score, nums, ops, funcs int) string {
	return fmt.Sprintf("%d (n: %d, o: %d, f: %d)", score, nums, ops, funcs)
}
