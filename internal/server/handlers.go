package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"goalreach/internal/puzzle"
	"goalreach/internal/search"
	"goalreach/pkg/goalreach"
)

// handlePuzzle handles GET /v1/puzzle. Without a date it returns today's.
func (s *Server) handlePuzzle(c *gin.Context) {
	var q PuzzleQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.badRequest(c, "invalid query", err)
		return
	}
	d, err := parseDate(q.Date)
	if err != nil {
		s.fail(c, err)
		return
	}

	p, err := s.svc.Puzzle(goalreach.SolveRequest{Date: d})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PuzzleResponse{
		Date:    p.Date.String(),
		Label:   p.Date.Label(),
		Numbers: p.Numbers,
		Goal:    p.Goal,
	})
}

// handleSolve handles POST /v1/solve.
//
// The search runs until it is exhausted or the time budget runs out; both
// answer 200 with the improving solutions found and the recorded run id.
func (s *Server) handleSolve(c *gin.Context) {
	var req SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body", err)
		return
	}
	d, err := parseDate(req.Date)
	if err != nil {
		s.fail(c, err)
		return
	}

	timeout := s.cfg.DefaultTimeout
	if req.TimeoutMS > 0 {
		timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}
	if timeout > s.cfg.MaxTimeout {
		timeout = s.cfg.MaxTimeout
	}

	summary, err := s.svc.Solve(c.Request.Context(), goalreach.SolveRequest{
		Date:         d,
		Numbers:      req.Numbers,
		Goal:         req.Goal,
		Depth:        req.Depth,
		SquaresDepth: req.SquaresDepth,
		SkipSquares:  req.SkipSquares,
		Timeout:      timeout,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := NewSolveResponse(summary)
	s.logger.Info("solved",
		"run_id", summary.RunID,
		"status", summary.Status,
		"best", summary.Stats.Best,
		"elapsed", summary.Stats.Elapsed)
	c.JSON(http.StatusOK, resp)
}

// handleRuns handles GET /v1/runs.
func (s *Server) handleRuns(c *gin.Context) {
	var q LimitQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.badRequest(c, "invalid query", err)
		return
	}
	runs, err := s.svc.Runs(c.Request.Context(), goalreach.RunsRequest{Limit: q.Limit})
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]RunResponse, 0, len(runs))
	for _, r := range runs {
		out = append(out, NewRunResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

// handleRun handles GET /v1/runs/:id. The id "latest" selects the newest run.
func (s *Server) handleRun(c *gin.Context) {
	id := c.Param("id")
	req := goalreach.RunRequest{RunID: id}
	if id == "latest" {
		req = goalreach.RunRequest{Latest: true}
	}
	run, err := s.svc.Run(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// handleDeleteRun handles DELETE /v1/runs/:id.
func (s *Server) handleDeleteRun(c *gin.Context) {
	id := c.Param("id")
	req := goalreach.RunRequest{RunID: id}
	if id == "latest" {
		req = goalreach.RunRequest{Latest: true}
	}
	deleted, err := s.svc.DeleteRun(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("run deleted", "run_id", deleted)
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// handleSolutions handles GET /v1/runs/:id/solutions.
func (s *Server) handleSolutions(c *gin.Context) {
	var q LimitQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.badRequest(c, "invalid query", err)
		return
	}
	id := c.Param("id")
	req := goalreach.SolutionsRequest{RunID: id, Limit: q.Limit}
	if id == "latest" {
		req = goalreach.SolutionsRequest{Latest: true, Limit: q.Limit}
	}
	items, err := s.svc.Solutions(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"solutions": SolutionResponses(items)})
}

func (s *Server) badRequest(c *gin.Context, msg string, err error) {
	s.logger.Warn(msg, "err", err)
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: msg + ": " + err.Error(),
		Code:  "INVALID_REQUEST",
	})
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL"
	switch {
	case errors.Is(err, search.ErrInvalidInput):
		status, code = http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, puzzle.ErrInvalidDate):
		status, code = http.StatusBadRequest, "INVALID_DATE"
	case errors.Is(err, goalreach.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, context.Canceled):
		status, code = http.StatusServiceUnavailable, "CANCELLED"
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	} else {
		s.logger.Warn("request rejected", "err", err, "code", code)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func parseDate(s string) (puzzle.Date, error) {
	if s == "" {
		return puzzle.Date{}, nil
	}
	return puzzle.ParseDate(s)
}
