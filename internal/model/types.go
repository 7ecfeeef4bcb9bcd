package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

const (
	RunCompleted = "completed"
	RunCancelled = "cancelled"
	RunFailed    = "failed"
)

// SolveRun is one search over a puzzle.
type SolveRun struct {
	VersionedRecord
	ID           string    `json:"id"`
	Date         string    `json:"date,omitempty"`
	Numbers      []float64 `json:"numbers"`
	Goal         float64   `json:"goal"`
	Depth        int       `json:"depth"`
	SquaresDepth int       `json:"squares_depth"`
	StartedAt    time.Time `json:"started_at"`
	ElapsedMS    int64     `json:"elapsed_ms"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`

	BestScore      int    `json:"best_score"`
	BestExpression string `json:"best_expression,omitempty"`
	Solutions      int    `json:"solutions"`
	Permutations   int64  `json:"permutations"`
	Candidates     int64  `json:"candidates"`
	MemoValues     int64  `json:"memo_values"`
}

// SolutionRecord is one improving solution reported during a run.
type SolutionRecord struct {
	VersionedRecord
	RunID      string   `json:"run_id"`
	Seq        int      `json:"seq"`
	Expression string   `json:"expression"`
	Value      float64  `json:"value"`
	Score      int      `json:"score"`
	Numbers    int      `json:"numbers"`
	Ops        int      `json:"ops"`
	Funcs      int      `json:"funcs"`
	Bonus      int      `json:"bonus"`
	Pass       string   `json:"pass"`
	Shape      string   `json:"shape"`
	ElapsedMS  int64    `json:"elapsed_ms"`
	Trace      []string `json:"trace,omitempty"`
}
