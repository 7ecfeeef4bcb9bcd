package storage

import (
	"context"

	"goalreach/internal/model"
)

// Store persists solve runs and the solutions they reported.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.SolveRun) error
	GetRun(ctx context.Context, id string) (model.SolveRun, bool, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context) ([]model.SolveRun, error)
	DeleteRun(ctx context.Context, id string) error
	SaveSolutions(ctx context.Context, runID string, solutions []model.SolutionRecord) error
	GetSolutions(ctx context.Context, runID string) ([]model.SolutionRecord, bool, error)
}
