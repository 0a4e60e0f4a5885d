package cmd

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/KaramelBytes/tidyloom-cli/internal/clean"
	"github.com/KaramelBytes/tidyloom-cli/internal/history"
	"github.com/spf13/cobra"
)

var histLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded cleaning runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		store, err := openHistory(cmd.Context(), c)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("run history is disabled (config set history_enabled true)")
		}
		defer store.Close()
		runs, err := store.ListRuns(cmd.Context(), histLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tROWS\tSOURCE")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d->%d\t%s\n", shortID(r.ID), r.StartedAt.Local().Format(time.DateTime), r.Status, r.RowsIn, r.RowsOut, r.Source)
		}
		return tw.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a run and its change log (id may be a unique prefix)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		store, err := openHistory(cmd.Context(), c)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("run history is disabled (config set history_enabled true)")
		}
		defer store.Close()
		r, err := store.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run:      %s\n", r.ID)
		fmt.Fprintf(out, "Source:   %s\n", r.Source)
		fmt.Fprintf(out, "Status:   %s\n", r.Status)
		if r.Error != "" {
			fmt.Fprintf(out, "Error:    %s\n", r.Error)
		}
		fmt.Fprintf(out, "Started:  %s (%s)\n", r.StartedAt.Local().Format(time.DateTime), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
		fmt.Fprintf(out, "Steps:    %s\n", strings.Join(r.Steps, ", "))
		fmt.Fprintf(out, "Rows:     %d in, %d out, %d duplicates removed\n", r.RowsIn, r.RowsOut, r.RowsRemoved)
		for _, w := range r.Warnings {
			fmt.Fprintf(out, "⚠ %s\n", w)
		}
		if r.Status == history.StatusCompleted {
			fmt.Fprintln(out, "Change log:")
			fmt.Fprint(out, indent(clean.RenderLog(r.Log), "  "))
		}
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd)
	historyListCmd.Flags().IntVarP(&histLimit, "limit", "n", 20, "maximum runs to list (0 = all)")
}
