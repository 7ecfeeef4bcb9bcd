package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"goalreach/pkg/goalreach"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

type app struct {
	flags  globalFlags
	cfg    Config
	logOut io.Writer
	logger *slog.Logger
}

func newRootCmd(logOut io.Writer) *cobra.Command {
	a := &app{logOut: logOut}
	root := &cobra.Command{
		Use:   "goalreachctl",
		Short: "Search arithmetic expressions that reach a goal from a handful of numbers",
		Long: `goalreachctl searches for the highest scoring expression that combines the
given numbers into the goal, reporting every improvement as it is found.
Runs are recorded in the configured store and under the runs directory.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	a.flags.register(root.PersistentFlags())

	root.AddCommand(
		newSolveCmd(a),
		newPuzzleCmd(),
		newRunsCmd(a),
		newSolutionsCmd(a),
		newExportCmd(a),
		newDeleteCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(a.flags.configPath)
	if err != nil {
		return err
	}
	a.flags.apply(&cfg, cmd.Flags())
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := parseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(a.logOut, level, cfg.Log.Format)
	return nil
}

func (a *app) client() (*goalreach.Client, error) {
	return goalreach.New(goalreach.Options{
		StoreKind:  a.cfg.Store.Kind,
		DBPath:     a.cfg.Store.DBPath,
		RunsDir:    a.cfg.Store.RunsDir,
		ExportsDir: a.cfg.Store.ExportsDir,
		Workers:    a.cfg.Search.Workers,
		Logger:     a.logger,
	})
}

// withClient opens a client for fn and closes it afterwards.
func (a *app) withClient(ctx context.Context, fn func(*goalreach.Client) error) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}
	return fn(client)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
