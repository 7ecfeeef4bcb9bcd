package goalreach

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"goalreach/internal/arith"
	"goalreach/internal/atom"
	"goalreach/internal/model"
	"goalreach/internal/puzzle"
	"goalreach/internal/search"
)

func newTestClient(t *testing.T, runsDir string) *Client {
	t.Helper()

	client, err := New(Options{
		StoreKind:  "memory",
		RunsDir:    runsDir,
		ExportsDir: filepath.Join(filepath.Dir(runsDir), "exports"),
		Workers:    2,
		Now: func() time.Time {
			return time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func goal(v float64) *float64 { return &v }

func TestClientSolveRunsAndExport(t *testing.T) {
	base := t.TempDir()
	runsDir := filepath.Join(base, "runs")
	client := newTestClient(t, runsDir)

	var observed []SolutionItem
	summary, err := client.Solve(context.Background(), SolveRequest{
		Numbers:      []float64{2, 3, 4},
		Goal:         goal(10),
		Depth:        1,
		SquaresDepth: 1,
		OnSolution: func(item SolutionItem) {
			observed = append(observed, item)
		},
	})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected run id")
	}
	if summary.Status != model.RunCompleted {
		t.Fatalf("unexpected status: %s", summary.Status)
	}
	if summary.Puzzle.Generated {
		t.Fatal("expected explicit puzzle")
	}
	if len(summary.Solutions) == 0 || len(observed) != len(summary.Solutions) {
		t.Fatalf("unexpected solutions: summary=%d observed=%d", len(summary.Solutions), len(observed))
	}
	for i, item := range summary.Solutions {
		if item.Seq != i+1 {
			t.Fatalf("unexpected seq at %d: %d", i, item.Seq)
		}
		if math.Abs(item.Value-10) > 1e-9 {
			t.Fatalf("solution %s evaluates to %v", item.Expression, item.Value)
		}
		if len(item.Trace) == 0 {
			t.Fatalf("expected trace for %s", item.Expression)
		}
		if i > 0 && item.Score <= summary.Solutions[i-1].Score {
			t.Fatalf("expected increasing scores, got %d after %d", item.Score, summary.Solutions[i-1].Score)
		}
	}
	best, ok := summary.Best()
	if !ok || best.Score != summary.Stats.Best {
		t.Fatalf("unexpected best: %+v (stats best %d)", best, summary.Stats.Best)
	}

	runs, err := client.Runs(context.Background(), RunsRequest{Limit: 10})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if runs[0].BestScore != best.Score || runs[0].BestExpression != best.Expression {
		t.Fatalf("unexpected run index entry: %+v", runs[0])
	}

	run, err := client.Run(context.Background(), RunRequest{Latest: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.ID != summary.RunID || run.Goal != 10 || run.Solutions != len(summary.Solutions) {
		t.Fatalf("unexpected run: %+v", run)
	}

	solutions, err := client.Solutions(context.Background(), SolutionsRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("solutions: %v", err)
	}
	if len(solutions) != len(summary.Solutions) {
		t.Fatalf("expected %d solutions, got %d", len(summary.Solutions), len(solutions))
	}
	if solutions[len(solutions)-1].Breakdown != best.Breakdown {
		t.Fatalf("unexpected breakdown: %q vs %q", solutions[len(solutions)-1].Breakdown, best.Breakdown)
	}

	limited, err := client.Solutions(context.Background(), SolutionsRequest{Latest: true, Limit: 1})
	if err != nil {
		t.Fatalf("limited solutions: %v", err)
	}
	if len(limited) != 1 || limited[0].Expression != best.Expression {
		t.Fatalf("expected only the best solution, got %+v", limited)
	}

	exported, err := client.Export(context.Background(), ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != summary.RunID {
		t.Fatalf("unexpected exported run: %s", exported.RunID)
	}
	for _, file := range []string{"config.json", "summary.json", "solutions.json", "solutions.csv"} {
		if _, err := os.Stat(filepath.Join(exported.Directory, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}
}

func TestClientSolveGeneratedPuzzle(t *testing.T) {
	client := newTestClient(t, filepath.Join(t.TempDir(), "runs"))

	p, err := client.Puzzle(SolveRequest{Date: puzzle.Date{Year: 2024, Month: 1, Day: 1}})
	if err != nil {
		t.Fatalf("puzzle: %v", err)
	}
	if !p.Generated || p.Goal != 1 || len(p.Numbers) != puzzle.Count {
		t.Fatalf("unexpected puzzle: %+v", p)
	}

	today, err := client.Puzzle(SolveRequest{})
	if err != nil {
		t.Fatalf("today's puzzle: %v", err)
	}
	if today.Date.String() != "2026-10-15" || today.Goal != 15 {
		t.Fatalf("unexpected puzzle for today: %+v", today)
	}
}

func TestClientSolveTimeoutRecordsCancelledRun(t *testing.T) {
	client := newTestClient(t, filepath.Join(t.TempDir(), "runs"))

	summary, err := client.Solve(context.Background(), SolveRequest{
		Numbers: []float64{-16, -10, 2, 13, 16},
		Goal:    goal(19),
		Timeout: time.Nanosecond,
	})
	if err != nil {
		t.Fatalf("timeout should not fail the solve: %v", err)
	}
	if summary.Status != model.RunCancelled {
		t.Fatalf("expected cancelled run, got %s", summary.Status)
	}

	run, err := client.Run(context.Background(), RunRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Status != model.RunCancelled {
		t.Fatalf("expected recorded cancelled run, got %+v", run)
	}
}

func TestClientSolveCancelledContext(t *testing.T) {
	client := newTestClient(t, filepath.Join(t.TempDir(), "runs"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := client.Solve(ctx, SolveRequest{Numbers: []float64{2, 3, 4}, Goal: goal(10), Depth: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if summary.RunID == "" || summary.Status != model.RunCancelled {
		t.Fatalf("expected recorded cancelled run, got %+v", summary)
	}

	runs, err := client.Runs(context.Background(), RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != model.RunCancelled {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

func TestClientSolveRejectsInvalidInput(t *testing.T) {
	client := newTestClient(t, filepath.Join(t.TempDir(), "runs"))

	_, err := client.Solve(context.Background(), SolveRequest{Numbers: []float64{1, 2, 3, 4, 5, 6}, Goal: goal(10)})
	if !errors.Is(err, search.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := client.Solve(context.Background(), SolveRequest{Numbers: []float64{1, 2}, Depth: -1}); err == nil {
		t.Fatal("expected negative depth error")
	}
	if _, err := client.Solve(context.Background(), SolveRequest{Date: puzzle.Date{Year: 2026, Month: 2, Day: 30}}); !errors.Is(err, puzzle.ErrInvalidDate) {
		t.Fatalf("expected invalid date, got %v", err)
	}

	runs, err := client.Runs(context.Background(), RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("rejected solves must not be recorded: %+v", runs)
	}
}

func TestClientReadsArtifactsAcrossClients(t *testing.T) {
	runsDir := filepath.Join(t.TempDir(), "runs")
	first := newTestClient(t, runsDir)

	summary, err := first.Solve(context.Background(), SolveRequest{Numbers: []float64{1, 5}, Goal: goal(6), Depth: 1, SquaresDepth: 1})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}

	// A fresh memory store only has the artifacts to go on.
	second := newTestClient(t, runsDir)
	solutions, err := second.Solutions(context.Background(), SolutionsRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("solutions: %v", err)
	}
	if len(solutions) != len(summary.Solutions) {
		t.Fatalf("expected %d solutions, got %d", len(summary.Solutions), len(solutions))
	}
	run, err := second.Run(context.Background(), RunRequest{Latest: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.ID != summary.RunID || run.Goal != 6 || run.BestScore != summary.Stats.Best {
		t.Fatalf("unexpected rebuilt run: %+v", run)
	}
}

func TestClientRunSelectionErrors(t *testing.T) {
	client := newTestClient(t, filepath.Join(t.TempDir(), "runs"))
	ctx := context.Background()

	if _, err := client.Export(ctx, ExportRequest{}); err == nil {
		t.Fatal("expected export selection error")
	}
	if _, err := client.Export(ctx, ExportRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected conflicting selection error")
	}
	if _, err := client.Solutions(ctx, SolutionsRequest{Latest: true}); err == nil {
		t.Fatal("expected no runs error")
	}
	if _, err := client.Solutions(ctx, SolutionsRequest{RunID: "missing"}); err == nil {
		t.Fatal("expected missing solutions error")
	}
	if _, err := client.Solutions(ctx, SolutionsRequest{RunID: "x", Limit: -1}); err == nil {
		t.Fatal("expected negative limit error")
	}
	if _, err := client.Run(ctx, RunRequest{}); err == nil {
		t.Fatal("expected run selection error")
	}
}

func TestSolutionItemFromSearch(t *testing.T) {
	a := atom.NewCombine(atom.NewNumber(4), atom.NewCombine(atom.NewNumber(2), atom.NewNumber(3), arith.Multiply), arith.Add)
	item := solutionItem(1, search.Solution{Score: a.Score(3), Atom: a, Pass: search.PassGeneral})
	if item.Expression != "(4 + (2 * 3))" || item.Value != 10 {
		t.Fatalf("unexpected item: %+v", item)
	}
	if item.Breakdown != breakdown(item.Score, item.Numbers, item.Ops, item.Funcs) {
		t.Fatalf("breakdown mismatch: %q", item.Breakdown)
	}
	if len(item.Trace) != 2 {
		t.Fatalf("unexpected trace: %v", item.Trace)
	}
}

func TestClientConcurrentSolvesAreAllRecorded(t *testing.T) {
	runsDir := filepath.Join(t.TempDir(), "runs")
	client := newTestClient(t, runsDir)

	const solves = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ids  = make(map[string]bool, solves)
		errs = make(chan error, solves)
	)
	for i := 0; i < solves; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			summary, err := client.Solve(context.Background(), SolveRequest{
				Numbers:     []float64{2, 3, 4},
				Goal:        goal(10),
				Depth:       1,
				Workers:     1,
				SkipSquares: true,
			})
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			ids[summary.RunID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent solve: %v", err)
	}

	runs, err := client.Runs(context.Background(), RunsRequest{Limit: 100})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != solves {
		t.Fatalf("expected %d runs, got %d", solves, len(runs))
	}

	// Only the run index survives into a fresh memory store.
	indexed, err := newTestClient(t, runsDir).Runs(context.Background(), RunsRequest{Limit: 100})
	if err != nil {
		t.Fatalf("runs from index: %v", err)
	}
	if len(indexed) != solves {
		t.Fatalf("expected %d indexed runs, got %d", solves, len(indexed))
	}
	for _, r := range indexed {
		if !ids[r.RunID] {
			t.Fatalf("unexpected indexed run %s", r.RunID)
		}
	}
}

func TestClientRunsListsStoredRunsWithoutArtifacts(t *testing.T) {
	runsDir := filepath.Join(t.TempDir(), "runs")
	client := newTestClient(t, runsDir)

	summary, err := client.Solve(context.Background(), SolveRequest{Numbers: []float64{2, 3, 4}, Goal: goal(10), Depth: 1, SkipSquares: true})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if err := os.RemoveAll(runsDir); err != nil {
		t.Fatalf("remove runs dir: %v", err)
	}

	runs, err := client.Runs(context.Background(), RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID || runs[0].BestScore != summary.Stats.Best {
		t.Fatalf("expected the stored run, got %+v", runs)
	}
	if runs[0].CreatedAtUTC != "2026-10-15T09:30:00Z" {
		t.Fatalf("unexpected created time: %s", runs[0].CreatedAtUTC)
	}

	run, err := client.Run(context.Background(), RunRequest{Latest: true})
	if err != nil {
		t.Fatalf("latest run: %v", err)
	}
	if run.ID != summary.RunID {
		t.Fatalf("unexpected latest run: %s", run.ID)
	}
}

func TestClientDeleteRun(t *testing.T) {
	runsDir := filepath.Join(t.TempDir(), "runs")
	client := newTestClient(t, runsDir)
	ctx := context.Background()

	req := SolveRequest{Numbers: []float64{2, 3, 4}, Goal: goal(10), Depth: 1, SkipSquares: true}
	first, err := client.Solve(ctx, req)
	if err != nil {
		t.Fatalf("first solve: %v", err)
	}
	second, err := client.Solve(ctx, req)
	if err != nil {
		t.Fatalf("second solve: %v", err)
	}

	deleted, err := client.DeleteRun(ctx, RunRequest{Latest: true})
	if err != nil {
		t.Fatalf("delete latest: %v", err)
	}
	if deleted != second.RunID {
		t.Fatalf("expected latest run %s deleted, got %s", second.RunID, deleted)
	}
	if _, err := os.Stat(second.ArtifactsDir); !os.IsNotExist(err) {
		t.Fatalf("expected artifacts removed, stat err=%v", err)
	}
	if _, err := client.Run(ctx, RunRequest{RunID: second.RunID}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted run to be missing, got %v", err)
	}
	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != first.RunID {
		t.Fatalf("unexpected runs after delete: %+v", runs)
	}

	if _, err := client.DeleteRun(ctx, RunRequest{RunID: second.RunID}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}

	// A client that only sees the artifacts can still delete the run.
	other := newTestClient(t, runsDir)
	if _, err := other.DeleteRun(ctx, RunRequest{RunID: first.RunID}); err != nil {
		t.Fatalf("delete from artifacts: %v", err)
	}
	if _, err := other.DeleteRun(ctx, RunRequest{Latest: true}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no runs left, got %v", err)
	}
}
