package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"goalreach/internal/atom"
	"goalreach/internal/puzzle"
	"goalreach/internal/server"
	"goalreach/pkg/goalreach"
)

// puzzleFlags select the puzzle: a date for the generated one, or explicit
// numbers and goal.
type puzzleFlags struct {
	date  string
	year  int
	month int
	day   int
}

func (p *puzzleFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&p.date, "date", "", "puzzle date YYYY-MM-DD (default today)")
	fs.IntVar(&p.year, "year", 0, "puzzle year (default current)")
	fs.IntVar(&p.month, "month", 0, "puzzle month 1-12 (default current)")
	fs.IntVar(&p.day, "day", 0, "puzzle day of month (default today)")
}

func (p *puzzleFlags) resolve() (puzzle.Date, error) {
	parts := p.year != 0 || p.month != 0 || p.day != 0
	if p.date != "" && parts {
		return puzzle.Date{}, errors.New("use either --date or --year/--month/--day, not both")
	}
	if p.date != "" {
		return puzzle.ParseDate(p.date)
	}
	return puzzle.Date{Year: p.year, Month: p.month, Day: p.day}, nil
}

func newSolveCmd(a *app) *cobra.Command {
	var (
		pf      puzzleFlags
		numbers string
		goal    float64
		depth   int
		squares int
		workers int
		skip    bool
		timeout time.Duration
		verbose bool
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "solve [numbers...]",
		Short: "Search the best expression reaching the goal",
		Long: `Search the best expression reaching the goal and print every improving
solution as it is found. Without numbers and goal the puzzle of the selected
date is solved.`,
		Example: `  goalreachctl solve
  goalreachctl solve --date 2023-06-19 --timeout 30s
  goalreachctl solve 2 3 4 --goal 10 --verbose
  goalreachctl solve --numbers=-16,-10,2,13,16 --goal 19`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := pf.resolve()
			if err != nil {
				return err
			}
			req := goalreach.SolveRequest{Date: d}

			if len(args) > 0 && numbers != "" {
				return errors.New("use either positional numbers or --numbers, not both")
			}
			if len(args) > 0 {
				numbers = strings.Join(args, " ")
			}
			if numbers != "" {
				if req.Numbers, err = puzzle.ParseNumbers(numbers); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("goal") {
				req.Goal = &goal
			}

			sc := a.cfg.Search
			if cmd.Flags().Changed("depth") {
				sc.Depth = depth
			}
			if cmd.Flags().Changed("squares-depth") {
				sc.SquaresDepth = squares
			}
			if cmd.Flags().Changed("workers") {
				sc.Workers = workers
			}
			if cmd.Flags().Changed("skip-squares") {
				sc.SkipSquares = skip
			}
			if cmd.Flags().Changed("timeout") {
				sc.Timeout = timeout
			}
			if err := validate.Struct(sc); err != nil {
				return fmt.Errorf("invalid search options: %w", err)
			}
			req.Depth = sc.Depth
			req.SquaresDepth = sc.SquaresDepth
			req.Workers = sc.Workers
			req.SkipSquares = sc.SkipSquares
			req.Timeout = sc.Timeout

			out := cmd.OutOrStdout()
			return a.withClient(cmd.Context(), func(client *goalreach.Client) error {
				p, err := client.Puzzle(req)
				if err != nil {
					return err
				}
				if !jsonOut {
					printPuzzle(out, p)
					req.OnSolution = func(item goalreach.SolutionItem) {
						printSolution(out, item, p.Goal, verbose)
					}
				}

				summary, err := client.Solve(cmd.Context(), req)
				if err != nil && summary.RunID == "" {
					return err
				}
				if jsonOut {
					if jerr := writeJSON(out, server.NewSolveResponse(summary)); jerr != nil {
						return jerr
					}
				} else {
					printSolveSummary(out, summary)
				}
				return err
			})
		},
	}
	fs := cmd.Flags()
	pf.register(fs)
	fs.StringVar(&numbers, "numbers", "", "numbers separated by spaces or commas (default: generated for the date)")
	fs.Float64Var(&goal, "goal", 0, "goal value (default: day of month)")
	fs.IntVar(&depth, "depth", 0, "function expansion rounds for the general pass")
	fs.IntVar(&squares, "squares-depth", 0, "function expansion rounds for the square root pass")
	fs.IntVar(&workers, "workers", 0, "concurrent shape searches (0 = GOMAXPROCS)")
	fs.BoolVar(&skip, "skip-squares", false, "skip the square root pass")
	fs.DurationVar(&timeout, "timeout", 0, "stop searching after this long (0 = no limit)")
	fs.BoolVarP(&verbose, "verbose", "v", false, "print the evaluation steps of every solution")
	fs.BoolVar(&jsonOut, "json", false, "emit the run summary as JSON")
	return cmd
}

func newPuzzleCmd() *cobra.Command {
	var (
		pf      puzzleFlags
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "puzzle",
		Short: "Print the generated puzzle for a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := pf.resolve()
			if err != nil {
				return err
			}
			p, err := puzzle.Resolve(puzzle.Request{Date: d})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, server.PuzzleResponse{
					Date:    p.Date.String(),
					Label:   p.Date.Label(),
					Numbers: p.Numbers,
					Goal:    p.Goal,
				})
			}
			printPuzzle(out, p)
			return nil
		},
	}
	pf.register(cmd.Flags())
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the puzzle as JSON")
	return cmd
}

func newRunsCmd(a *app) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("limit must be > 0")
			}
			return a.withClient(cmd.Context(), func(client *goalreach.Client) error {
				runs, err := client.Runs(cmd.Context(), goalreach.RunsRequest{Limit: limit})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if jsonOut {
					items := make([]server.RunResponse, 0, len(runs))
					for _, r := range runs {
						items = append(items, server.NewRunResponse(r))
					}
					return writeJSON(out, items)
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "no runs found")
					return nil
				}
				for _, r := range runs {
					fmt.Fprintf(out, "run_id=%s created=%s numbers=%s goal=%s status=%s best=%d %s\n",
						r.RunID, createdLabel(r.CreatedAtUTC), formatNumbers(r.Numbers), atom.FormatNum(r.Goal),
						r.Status, r.BestScore, r.BestExpression)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit runs as JSON")
	return cmd
}

func newSolutionsCmd(a *app) *cobra.Command {
	var (
		runID   string
		latest  bool
		limit   int
		verbose bool
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "solutions",
		Short: "Print the improving solutions of a recorded run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if runID == "" && !latest {
				return errors.New("solutions requires --run-id or --latest")
			}
			return a.withClient(cmd.Context(), func(client *goalreach.Client) error {
				items, err := client.Solutions(cmd.Context(), goalreach.SolutionsRequest{RunID: runID, Latest: latest, Limit: limit})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if jsonOut {
					return writeJSON(out, server.SolutionResponses(items))
				}
				run, err := client.Run(cmd.Context(), goalreach.RunRequest{RunID: runID, Latest: latest})
				if err != nil {
					return err
				}
				for _, item := range items {
					printSolution(out, item, run.Goal, verbose)
				}
				return nil
			})
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&runID, "run-id", "", "run id")
	fs.BoolVar(&latest, "latest", false, "use the most recent run")
	fs.IntVar(&limit, "limit", 0, "only the best N solutions (0 = all)")
	fs.BoolVarP(&verbose, "verbose", "v", false, "print the evaluation steps of every solution")
	fs.BoolVar(&jsonOut, "json", false, "emit solutions as JSON")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		runID  string
		latest bool
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy the artifacts of a run to an export directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if runID != "" && latest {
				return errors.New("use either --run-id or --latest, not both")
			}
			if runID == "" && !latest {
				return errors.New("export requires --run-id or --latest")
			}
			return a.withClient(cmd.Context(), func(client *goalreach.Client) error {
				exported, err := client.Export(cmd.Context(), goalreach.ExportRequest{RunID: runID, Latest: latest, OutDir: outDir})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
				return nil
			})
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&runID, "run-id", "", "run id")
	fs.BoolVar(&latest, "latest", false, "export the most recent run")
	fs.StringVar(&outDir, "out", "", "export output directory (default: the configured exports dir)")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var (
		runID  string
		latest bool
	)
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove a recorded run from the store and the runs directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if runID != "" && latest {
				return errors.New("use either --run-id or --latest, not both")
			}
			if runID == "" && !latest {
				return errors.New("delete requires --run-id or --latest")
			}
			return a.withClient(cmd.Context(), func(client *goalreach.Client) error {
				deleted, err := client.DeleteRun(cmd.Context(), goalreach.RunRequest{RunID: runID, Latest: latest})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted run_id=%s\n", deleted)
				return nil
			})
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&runID, "run-id", "", "run id")
	fs.BoolVar(&latest, "latest", false, "delete the most recent run")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var (
		addr           string
		defaultTimeout time.Duration
		maxTimeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the solver over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc := a.cfg.Server
			if cmd.Flags().Changed("addr") {
				sc.Addr = addr
			}
			if cmd.Flags().Changed("default-timeout") {
				sc.DefaultTimeout = defaultTimeout
			}
			if cmd.Flags().Changed("max-timeout") {
				sc.MaxTimeout = maxTimeout
			}
			if err := validate.Struct(sc); err != nil {
				return fmt.Errorf("invalid server options: %w", err)
			}
			return a.withClient(cmd.Context(), func(client *goalreach.Client) error {
				srv := server.New(client, server.Config{
					Addr:           sc.Addr,
					DefaultTimeout: sc.DefaultTimeout,
					MaxTimeout:     sc.MaxTimeout,
					Logger:         a.logger,
				})
				return srv.ListenAndServe(cmd.Context())
			})
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&addr, "addr", server.DefaultAddr, "listen address")
	fs.DurationVar(&defaultTimeout, "default-timeout", server.DefaultTimeout, "search budget when a request names none")
	fs.DurationVar(&maxTimeout, "max-timeout", server.MaxTimeout, "largest search budget a request may ask for")
	return cmd
}

func printPuzzle(w io.Writer, p puzzle.Puzzle) {
	if p.Generated {
		fmt.Fprintf(w, "%s: %s -> %s\n", p.Date.Label(), formatNumbers(p.Numbers), atom.FormatNum(p.Goal))
		return
	}
	fmt.Fprintf(w, "%s -> %s\n", formatNumbers(p.Numbers), atom.FormatNum(p.Goal))
}

func printSolution(w io.Writer, item goalreach.SolutionItem, goal float64, verbose bool) {
	fmt.Fprintf(w, "%s  %s = %s  [%s, %s]\n",
		item.Breakdown, item.Expression, atom.FormatNum(goal), item.Pass, item.Elapsed.Round(time.Millisecond))
	if verbose {
		for _, line := range item.Trace {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

func printSolveSummary(w io.Writer, s goalreach.SolveSummary) {
	if len(s.Solutions) == 0 {
		fmt.Fprintln(w, "no solution found")
	}
	fmt.Fprintf(w, "run_id=%s status=%s best=%d solutions=%d permutations=%s candidates=%s values=%s elapsed=%s\n",
		s.RunID, s.Status, s.Stats.Best, len(s.Solutions),
		humanize.Comma(s.Stats.Permutations),
		humanize.Comma(s.Stats.Candidates),
		humanize.Comma(s.Stats.MemoValues),
		s.Stats.Elapsed.Round(time.Millisecond))
}

func formatNumbers(nums []float64) string {
	parts := make([]string, 0, len(nums))
	for _, n := range nums {
		parts = append(parts, atom.FormatNum(n))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func createdLabel(createdAtUTC string) string {
	t, err := time.Parse(time.RFC3339Nano, createdAtUTC)
	if err != nil {
		return createdAtUTC
	}
	return humanize.Time(t)
}
