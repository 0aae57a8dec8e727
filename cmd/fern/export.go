package main

import (
	"context"

	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	var (
		origins []string
		tasked  bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export resolved composites",
	}
	cmd.PersistentFlags().StringSliceVar(&origins, "origin", nil, "only composites with a member from these origins")
	cmd.PersistentFlags().BoolVar(&tasked, "tasked", false, "only composites with a tasked member")
	filter := func() merging.Filter {
		return merging.Filter{Origins: origins, Tasked: tasked}
	}

	var replace bool
	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Write composites and links to the graph database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, e *env, a *app.App) error {
				exporter, client, err := a.GraphExporter(ctx)
				if err != nil {
					return err
				}
				defer client.Close(context.Background())

				report, err := exporter.Export(ctx, e.project(), graph.ExportOptions{Filter: filter(), Replace: replace})
				if err != nil {
					return err
				}
				return printJSON(report)
			})
		},
	}
	graphCmd.Flags().BoolVar(&replace, "replace", false, "delete the project's exported nodes first")

	var dir string
	csvCmd := &cobra.Command{
		Use:   "csv",
		Short: "Write composite, link and mapping tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, e *env, a *app.App) error {
				exporter, err := a.TableExporter(ctx, dir)
				if err != nil {
					return err
				}
				report, err := exporter.Export(ctx, e.project(), filter())
				if err != nil {
					return err
				}
				return printJSON(report)
			})
		},
	}
	csvCmd.Flags().StringVar(&dir, "dir", "", "output directory (uses EXPORT_S3_BUCKET when empty)")

	cmd.AddCommand(graphCmd, csvCmd)
	return cmd
}

func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publish every composite of the project to Kafka",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, e *env, a *app.App) error {
				n, err := a.Producer().Publish(ctx, e.project())
				if err != nil {
					return err
				}
				return printJSON(map[string]int{"published": n})
			})
		},
	}
}
