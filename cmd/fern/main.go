// Command fern ingests records, generates and reviews match candidates and
// exports the resolved composites.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/internal/logging"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/spf13/cobra"
)

var (
	envFile string
	project string
)

func main() {
	root := &cobra.Command{
		Use:           "fern",
		Short:         "Record linkage and entity resolution",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	root.PersistentFlags().StringVarP(&project, "project", "p", "", "project to work on (defaults to PROJECT)")

	root.AddCommand(
		serveCmd(),
		consumeCmd(),
		migrateCmd(),
		generateCmd(),
		canonicalizeCmd(),
		cleanupCmd(),
		nameMergeCmd(),
		exportCmd(),
		publishCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env is the process state shared by every command.
type env struct {
	cfg    *config.Config
	logger ectologger.Logger
	close  []func(ctx context.Context) error
}

func newEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	logger, sync, err := logging.New(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger}
	e.close = append(e.close, func(context.Context) error { return sync() })

	shutdown, err := tracing.Setup(ctx, cfg.Tracing(), logger)
	if err != nil {
		return nil, err
	}
	e.close = append(e.close, shutdown)
	return e, nil
}

func (e *env) project() string {
	if project != "" {
		return project
	}
	return e.cfg.Project
}

// Close runs the registered closers in reverse order.
func (e *env) Close(ctx context.Context) {
	for i := len(e.close) - 1; i >= 0; i-- {
		_ = e.close[i](ctx)
	}
}

// withApp loads the environment, opens the app and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, e *env, a *app.App) error) error {
	ctx := cmd.Context()
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close(context.Background())

	a, err := app.New(ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, e, a)
}
