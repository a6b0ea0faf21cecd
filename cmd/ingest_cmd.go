package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/unlost/internal/ingest"
)

func ingestCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Process pending captures now and exit",
		RunE: withRuntime(func(ctx context.Context, rt *services, args []string) error {
			sched := ingest.New(rt.app, rt.memory, nil, ingestConfig(rt.cfg))
			if once {
				more, err := sched.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Processed %d batch(es), more pending: %v\n", sched.Batches(), more)
				return nil
			}
			n, err := sched.Drain(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Processed %d batch(es)\n", n)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single pass instead of draining")
	return cmd
}

func reindexCmd() *cobra.Command {
	var columns []string
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the content store and the similarity index",
		RunE: withRuntime(func(ctx context.Context, rt *services, args []string) error {
			n, err := rt.memory.Rebuild(ctx, columns)
			if err != nil {
				return err
			}
			fmt.Printf("Reindexed %d section(s)\n", n)
			return nil
		}),
	}
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "fold these columns into the indexed text (e.g. app_name,text)")
	return cmd
}

func pruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune [before]",
		Short: "Delete memories captured before a date (YYYY-MM-DD or timestamp)",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(ctx context.Context, rt *services, args []string) error {
			n, err := rt.memory.RemoveBefore(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d section(s) captured before %s\n", n, args[0])
			return nil
		}),
	}
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show storage state and counts",
		RunE: withRuntime(func(ctx context.Context, rt *services, args []string) error {
			n, err := rt.memory.Count(ctx)
			if err != nil {
				return err
			}
			pending, err := rt.app.Capture.Unprocessed(ctx, rt.cfg.Ingest.BatchSize)
			if err != nil {
				return err
			}
			fmt.Printf("State:     %s\n", rt.app.State())
			fmt.Printf("Root:      %s\n", rt.cfg.Root)
			fmt.Printf("Sections:  %d\n", n)
			fmt.Printf("Indexed:   %d\n", rt.app.Index.Count())
			fmt.Printf("Pending:   %d", len(pending))
			if len(pending) == rt.cfg.Ingest.BatchSize {
				fmt.Print("+")
			}
			fmt.Println()
			return nil
		}),
	}
}
