package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalreach/internal/model"
	"goalreach/internal/puzzle"
	"goalreach/internal/search"
	"goalreach/pkg/goalreach"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	lastSolve goalreach.SolveRequest
	solveErr  error
	runs      []goalreach.RunItem
	runErr    error
	deleted   []string
}

func (f *fakeService) Puzzle(req goalreach.SolveRequest) (puzzle.Puzzle, error) {
	return puzzle.Resolve(puzzle.Request{
		Date: req.Date,
		Now:  func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) },
	})
}

func (f *fakeService) Solve(_ context.Context, req goalreach.SolveRequest) (goalreach.SolveSummary, error) {
	f.lastSolve = req
	if f.solveErr != nil {
		return goalreach.SolveSummary{}, f.solveErr
	}
	return goalreach.SolveSummary{
		RunID:  "run-1",
		Status: model.RunCompleted,
		Puzzle: puzzle.Puzzle{Numbers: []float64{2, 3, 4}, Goal: 10},
		Solutions: []goalreach.SolutionItem{
			{Seq: 1, Expression: "(4 + (2 * 3))", Value: 10, Score: 3, Numbers: 3, Trace: []string{"2 * 3 = 6", "4 + 6 = 10"}},
			{Seq: 2, Expression: "(4 + (Σ2 * 2))", Value: 10, Score: 4, Numbers: 3, Funcs: 1, Elapsed: 3 * time.Millisecond},
		},
		Stats: search.Stats{Permutations: 12, Best: 4, Elapsed: 5 * time.Millisecond},
	}, nil
}

func (f *fakeService) Runs(_ context.Context, req goalreach.RunsRequest) ([]goalreach.RunItem, error) {
	if req.Limit > 0 && len(f.runs) > req.Limit {
		return f.runs[:req.Limit], nil
	}
	return f.runs, nil
}

func (f *fakeService) Run(_ context.Context, req goalreach.RunRequest) (model.SolveRun, error) {
	if f.runErr != nil {
		return model.SolveRun{}, f.runErr
	}
	id := req.RunID
	if req.Latest {
		id = "newest"
	}
	return model.SolveRun{ID: id, Goal: 10, Status: model.RunCompleted}, nil
}

func (f *fakeService) Solutions(_ context.Context, req goalreach.SolutionsRequest) ([]goalreach.SolutionItem, error) {
	if req.RunID == "missing" {
		return nil, fmt.Errorf("%w: solutions for run missing", goalreach.ErrNotFound)
	}
	return []goalreach.SolutionItem{{Seq: 1, Expression: "(4 + (2 * 3))", Score: 3}}, nil
}

func (f *fakeService) DeleteRun(_ context.Context, req goalreach.RunRequest) (string, error) {
	id := req.RunID
	if req.Latest {
		id = "newest"
	}
	if id == "missing" {
		return "", fmt.Errorf("%w: run missing", goalreach.ErrNotFound)
	}
	f.deleted = append(f.deleted, id)
	return id, nil
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	h := New(&fakeService{}, Config{}).Handler()

	w := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestPuzzleForDate(t *testing.T) {
	h := New(&fakeService{}, Config{}).Handler()

	w := do(t, h, http.MethodGet, "/v1/puzzle?date=2023-06-19", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp PuzzleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2023-06-19", resp.Date)
	assert.Equal(t, []float64{-15, -14, -5, 15, 16}, resp.Numbers)
	assert.Equal(t, 19.0, resp.Goal)
	assert.Equal(t, "Monday 19 June 2023", resp.Label)
}

func TestPuzzleDefaultsToToday(t *testing.T) {
	h := New(&fakeService{}, Config{}).Handler()

	w := do(t, h, http.MethodGet, "/v1/puzzle", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp PuzzleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2026-10-15", resp.Date)
	assert.Equal(t, 15.0, resp.Goal)
}

func TestPuzzleRejectsBadDate(t *testing.T) {
	h := New(&fakeService{}, Config{}).Handler()

	w := do(t, h, http.MethodGet, "/v1/puzzle?date=19-06-2023", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
}

func TestSolveReturnsImprovingSequence(t *testing.T) {
	svc := &fakeService{}
	h := New(svc, Config{DefaultTimeout: 2 * time.Second, MaxTimeout: 5 * time.Second}).Handler()

	goal := 10.0
	w := do(t, h, http.MethodPost, "/v1/solve", SolveRequest{Numbers: []float64{2, 3, 4}, Goal: &goal, Depth: 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, model.RunCompleted, resp.Status)
	require.Len(t, resp.Solutions, 2)
	require.NotNil(t, resp.Best)
	assert.Equal(t, "(4 + (Σ2 * 2))", resp.Best.Expression)
	assert.Equal(t, int64(3), resp.Best.ElapsedMS)
	assert.Equal(t, []string{"2 * 3 = 6", "4 + 6 = 10"}, resp.Solutions[0].Trace)
	assert.Equal(t, int64(12), resp.Stats.Permutations)

	assert.Equal(t, 2*time.Second, svc.lastSolve.Timeout)
	assert.Equal(t, 2, svc.lastSolve.Depth)
	require.NotNil(t, svc.lastSolve.Goal)
	assert.Equal(t, 10.0, *svc.lastSolve.Goal)
}

func TestSolveCapsTimeout(t *testing.T) {
	svc := &fakeService{}
	h := New(svc, Config{MaxTimeout: time.Second}).Handler()

	w := do(t, h, http.MethodPost, "/v1/solve", SolveRequest{Date: "2023-06-19", TimeoutMS: 120_000})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, time.Second, svc.lastSolve.Timeout)
	assert.Equal(t, puzzle.Date{Year: 2023, Month: 6, Day: 19}, svc.lastSolve.Date)
}

func TestSolveValidation(t *testing.T) {
	for name, tc := range map[string]struct {
		body any
		err  error
		code string
	}{
		"too many numbers": {body: SolveRequest{Numbers: []float64{1, 2, 3, 4, 5, 6}}, code: "INVALID_REQUEST"},
		"negative depth":   {body: SolveRequest{Depth: -1}, code: "INVALID_REQUEST"},
		"malformed date":   {body: SolveRequest{Date: "June 19"}, code: "INVALID_REQUEST"},
		"malformed body":   {body: "not an object", code: "INVALID_REQUEST"},
		"invalid input":    {body: SolveRequest{}, err: fmt.Errorf("%w: goal NaN", search.ErrInvalidInput), code: "INVALID_INPUT"},
		"invalid date":     {body: SolveRequest{}, err: fmt.Errorf("%w: 2026-02-30", puzzle.ErrInvalidDate), code: "INVALID_DATE"},
	} {
		t.Run(name, func(t *testing.T) {
			h := New(&fakeService{solveErr: tc.err}, Config{}).Handler()
			w := do(t, h, http.MethodPost, "/v1/solve", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.code, resp.Code)
		})
	}
}

func TestSolveInternalError(t *testing.T) {
	h := New(&fakeService{solveErr: fmt.Errorf("disk full")}, Config{}).Handler()

	w := do(t, h, http.MethodPost, "/v1/solve", SolveRequest{})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "disk full")
}

func TestRunsAndSolutions(t *testing.T) {
	svc := &fakeService{runs: []goalreach.RunItem{
		{RunID: "b", CreatedAtUTC: "2026-10-15T11:00:00Z", Goal: 15, BestScore: 6},
		{RunID: "a", CreatedAtUTC: "2026-10-15T10:00:00Z", Goal: 15, BestScore: 5},
	}}
	h := New(svc, Config{}).Handler()

	w := do(t, h, http.MethodGet, "/v1/runs?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var runs struct {
		Runs []RunResponse `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, "b", runs.Runs[0].RunID)

	w = do(t, h, http.MethodGet, "/v1/runs?limit=-3", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/v1/runs/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var run model.SolveRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, "newest", run.ID)

	w = do(t, h, http.MethodGet, "/v1/runs/a/solutions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "(4 + (2 * 3))")

	w = do(t, h, http.MethodGet, "/v1/runs/missing/solutions", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunNotFound(t *testing.T) {
	svc := &fakeService{runErr: fmt.Errorf("%w: run zzz", goalreach.ErrNotFound)}
	h := New(svc, Config{}).Handler()

	w := do(t, h, http.MethodGet, "/v1/runs/zzz", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestDeleteRun(t *testing.T) {
	svc := &fakeService{}
	h := New(svc, Config{}).Handler()

	w := do(t, h, http.MethodDelete, "/v1/runs/abc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":"abc"}`, w.Body.String())

	w = do(t, h, http.MethodDelete, "/v1/runs/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"abc", "newest"}, svc.deleted)

	w = do(t, h, http.MethodDelete, "/v1/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestMetricsEndpoint(t *testing.T) {
	h := New(&fakeService{}, Config{}).Handler()
	do(t, h, http.MethodGet, "/healthz", nil)

	w := do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "goalreach_http_requests_total")
}

func TestSolveWithClient(t *testing.T) {
	if testing.Short() {
		t.Skip("runs a real search")
	}
	base := t.TempDir()
	client, err := goalreach.New(goalreach.Options{
		StoreKind:  "memory",
		RunsDir:    filepath.Join(base, "runs"),
		ExportsDir: filepath.Join(base, "exports"),
		Workers:    2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	h := New(client, Config{}).Handler()
	goal := 10.0
	w := do(t, h, http.MethodPost, "/v1/solve", SolveRequest{Numbers: []float64{2, 3, 4}, Goal: &goal, Depth: 1, SquaresDepth: 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Best)
	assert.GreaterOrEqual(t, resp.Best.Score, 4)

	w = do(t, h, http.MethodGet, "/v1/runs/"+resp.RunID+"/solutions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), resp.Best.Expression)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := New(&fakeService{}, Config{Addr: "127.0.0.1:0"})

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestConcurrentSolvesWithClient(t *testing.T) {
	if testing.Short() {
		t.Skip("runs real searches")
	}
	base := t.TempDir()
	client, err := goalreach.New(goalreach.Options{
		StoreKind:  "memory",
		RunsDir:    filepath.Join(base, "runs"),
		ExportsDir: filepath.Join(base, "exports"),
		Workers:    1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	h := New(client, Config{}).Handler()
	goal := 10.0
	body := SolveRequest{Numbers: []float64{2, 3, 4}, Goal: &goal, Depth: 1, SkipSquares: true}

	const requests = 8
	codes := make(chan int, requests)
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var buf bytes.Buffer
			_ = json.NewEncoder(&buf).Encode(body)
			req := httptest.NewRequest(http.MethodPost, "/v1/solve", &buf)
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			codes <- w.Code
		}()
	}
	wg.Wait()
	close(codes)
	for code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}

	w := do(t, h, http.MethodGet, "/v1/runs?limit=100", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var runs struct {
		Runs []RunResponse `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	assert.Len(t, runs.Runs, requests)
}
