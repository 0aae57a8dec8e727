package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/spf13/cobra"
)

// printJSON writes v to stdout, indented.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func generateCmd() *cobra.Command {
	var (
		origins   []string
		mode      string
		keepStale bool
		integrate bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Score entity pairs and queue match candidates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, e *env, a *app.App) error {
				opts, err := a.GenerateOptions(e.project())
				if err != nil {
					return err
				}
				if mode != "" {
					if opts.Mode, err = matching.ParseMode(mode); err != nil {
						return err
					}
				}
				opts.Origins = origins
				opts.DiscardStale = !keepStale

				if integrate {
					report, err := a.Runner.Integrate(ctx, opts)
					if err != nil {
						return err
					}
					return printJSON(report)
				}
				result, err := a.Runner.Generate(ctx, opts)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
	cmd.Flags().StringSliceVar(&origins, "origin", nil, "only pairs touching these origins")
	cmd.Flags().StringVar(&mode, "mode", "", "exhaustive or index (defaults to MATCH_MODE)")
	cmd.Flags().BoolVar(&keepStale, "keep-stale", false, "keep undecided candidates from earlier runs")
	cmd.Flags().BoolVar(&integrate, "canonicalize", false, "canonicalize after generating")
	return cmd
}

func canonicalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "canonicalize",
		Short: "Rewrite canonical ids from the current judgements",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, e *env, a *app.App) error {
				if e.cfg.KafkaPublish {
					a.EnablePublishing()
				}
				report, err := a.Runner.Canonicalize(ctx, e.project())
				if err != nil {
					return err
				}
				return printJSON(report)
			})
		},
	}
}

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete undecided generated candidates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, e *env, a *app.App) error {
				deleted, err := a.Runner.Cleanup(ctx, e.project())
				if err != nil {
					return err
				}
				return printJSON(map[string]int64{"deleted": deleted})
			})
		},
	}
}

func nameMergeCmd() *cobra.Command {
	var origins []string
	cmd := &cobra.Command{
		Use:   "name-merge",
		Short: "Judge entities sharing an exact name as matches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, e *env, a *app.App) error {
				result, err := a.Runner.NameMerge(ctx, e.project(), origins)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
	cmd.Flags().StringSliceVar(&origins, "origin", nil, "only entities from these origins")
	return cmd
}
