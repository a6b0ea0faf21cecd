package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/unlost/internal/memory"
)

const textWidth = 72

func searchCmd() *cobra.Command {
	var (
		tags       string
		opts       memory.SearchOptions
		limit      int
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Search captured memories",
		RunE: withRuntime(func(ctx context.Context, rt *services, args []string) error {
			if tags != "" {
				parsed, err := memory.ParseTags(tags)
				if err != nil {
					return err
				}
				parsed.Apps = append(parsed.Apps, opts.Apps...)
				parsed.Meeting = parsed.Meeting || opts.Meeting
				parsed.Day = opts.Day
				if opts.After != "" {
					parsed.After = opts.After
				}
				if opts.Before != "" {
					parsed.Before = opts.Before
				}
				opts = parsed
			}
			if limit > 0 {
				rt.memory.Limit = limit
			}

			results, err := rt.memory.Search(ctx, strings.Join(args, " "), opts)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(results)
			}
			printResults(results)
			return nil
		}),
	}
	cmd.Flags().StringVar(&tags, "tags", "", `tag filter JSON, e.g. [{"type":"app_name","value":"Chrome"}]`)
	cmd.Flags().StringSliceVar(&opts.Apps, "app", nil, "only these applications")
	cmd.Flags().BoolVar(&opts.Meeting, "meeting", false, "only transcriptions")
	cmd.Flags().StringVar(&opts.After, "after", "", "captured at or after (timestamp)")
	cmd.Flags().StringVar(&opts.Before, "before", "", "captured at or before (timestamp)")
	cmd.Flags().StringVar(&opts.Day, "day", "", "captured on this day (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func printResults(results []memory.Result) {
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SCORE\tSEEN\tAPP\tCAPTURED\tTEXT\n")
	for _, r := range results {
		var app, at string
		if len(r.Rows) > 0 {
			app, _ = r.Rows[0]["app_name"].(string)
			at, _ = r.Rows[0]["captured_at"].(string)
		}
		text := runewidth.Truncate(strings.Join(strings.Fields(r.Text), " "), textWidth, "…")
		fmt.Fprintf(tw, "%.3f\t%d\t%s\t%s\t%s\n", r.Score, len(r.Rows), app, at, text)
	}
	tw.Flush()
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func tagsCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List search facets",
		RunE: withRuntime(func(ctx context.Context, rt *services, args []string) error {
			tags, err := rt.memory.Tags(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(tags)
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "TYPE\tVALUE\n")
			for _, t := range tags {
				fmt.Fprintf(tw, "%s\t%s\n", t.Type, t.Value)
			}
			tw.Flush()
			return nil
		}),
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func transcriptCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "transcript [path]",
		Short: "Print the transcription sections of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(ctx context.Context, rt *services, args []string) error {
			ts, err := rt.memory.Transcriptions(ctx, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(ts)
			}
			for _, t := range ts {
				fmt.Printf("[%s] %s\n", t.ID, t.Text)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
