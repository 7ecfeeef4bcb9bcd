package server

import (
	"goalreach/pkg/goalreach"
)

type SolveRequest struct {
	// Numbers and Goal override the puzzle generated for Date.
	Numbers      []float64 `json:"numbers" binding:"omitempty,min=1,max=5"`
	Goal         *float64  `json:"goal"`
	Date         string    `json:"date" binding:"omitempty,datetime=2006-01-02"`
	Depth        int       `json:"depth" binding:"gte=0,lte=8"`
	SquaresDepth int       `json:"squares_depth" binding:"gte=0,lte=8"`
	SkipSquares  bool      `json:"skip_squares"`
	// TimeoutMS is the search budget, capped by the server's maximum.
	TimeoutMS int64 `json:"timeout_ms" binding:"gte=0"`
}

type PuzzleQuery struct {
	Date string `form:"date" binding:"omitempty,datetime=2006-01-02"`
}

type LimitQuery struct {
	Limit int `form:"limit" binding:"gte=0,lte=1000"`
}

type PuzzleResponse struct {
	Date    string    `json:"date"`
	Label   string    `json:"label"`
	Numbers []float64 `json:"numbers"`
	Goal    float64   `json:"goal"`
}

type SolutionResponse struct {
	Seq        int      `json:"seq"`
	Expression string   `json:"expression"`
	Value      float64  `json:"value"`
	Score      int      `json:"score"`
	Breakdown  string   `json:"breakdown"`
	Numbers    int      `json:"numbers"`
	Ops        int      `json:"ops"`
	Funcs      int      `json:"funcs"`
	Bonus      int      `json:"bonus"`
	Pass       string   `json:"pass"`
	Shape      string   `json:"shape,omitempty"`
	ElapsedMS  int64    `json:"elapsed_ms"`
	Trace      []string `json:"trace,omitempty"`
}

type StatsResponse struct {
	Permutations int64 `json:"permutations"`
	Candidates   int64 `json:"candidates"`
	MemoValues   int64 `json:"memo_values"`
	ElapsedMS    int64 `json:"elapsed_ms"`
}

type SolveResponse struct {
	RunID     string             `json:"run_id"`
	Date      string             `json:"date,omitempty"`
	Numbers   []float64          `json:"numbers"`
	Goal      float64            `json:"goal"`
	Status    string             `json:"status"`
	Best      *SolutionResponse  `json:"best,omitempty"`
	Solutions []SolutionResponse `json:"solutions"`
	Stats     StatsResponse      `json:"stats"`
}

type RunResponse struct {
	RunID          string    `json:"run_id"`
	CreatedAtUTC   string    `json:"created_at_utc"`
	Date           string    `json:"date,omitempty"`
	Numbers        []float64 `json:"numbers"`
	Goal           float64   `json:"goal"`
	Status         string    `json:"status"`
	BestScore      int       `json:"best_score"`
	BestExpression string    `json:"best_expression,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// NewSolutionResponse converts a client solution for the wire.
func NewSolutionResponse(item goalreach.SolutionItem) SolutionResponse {
	return SolutionResponse{
		Seq:        item.Seq,
		Expression: item.Expression,
		Value:      item.Value,
		Score:      item.Score,
		Breakdown:  item.Breakdown,
		Numbers:    item.Numbers,
		Ops:        item.Ops,
		Funcs:      item.Funcs,
		Bonus:      item.Bonus,
		Pass:       item.Pass,
		Shape:      item.Shape,
		ElapsedMS:  item.Elapsed.Milliseconds(),
		Trace:      item.Trace,
	}
}

func SolutionResponses(items []goalreach.SolutionItem) []SolutionResponse {
	out := make([]SolutionResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewSolutionResponse(item))
	}
	return out
}

func NewSolveResponse(s goalreach.SolveSummary) SolveResponse {
	resp := SolveResponse{
		RunID:     s.RunID,
		Numbers:   s.Puzzle.Numbers,
		Goal:      s.Puzzle.Goal,
		Status:    s.Status,
		Solutions: SolutionResponses(s.Solutions),
		Stats: StatsResponse{
			Permutations: s.Stats.Permutations,
			Candidates:   s.Stats.Candidates,
			MemoValues:   s.Stats.MemoValues,
			ElapsedMS:    s.Stats.Elapsed.Milliseconds(),
		},
	}
	if s.Puzzle.Generated {
		resp.Date = s.Puzzle.Date.String()
	}
	if best, ok := s.Best(); ok {
		b := NewSolutionResponse(best)
		resp.Best = &b
	}
	return resp
}

func NewRunResponse(r goalreach.RunItem) RunResponse {
	return RunResponse{
		RunID:          r.RunID,
		CreatedAtUTC:   r.CreatedAtUTC,
		Date:           r.Date,
		Numbers:        r.Numbers,
		Goal:           r.Goal,
		Status:         r.Status,
		BestScore:      r.BestScore,
		BestExpression: r.BestExpression,
	}
}
