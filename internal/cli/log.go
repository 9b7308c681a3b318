package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/polarfoxDev/drydock/internal/logging"
)

func newLogCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		level string
		runID int64
		limit int
		since time.Duration
		runs  bool
	)
	cmd := &cobra.Command{
		Use:           "log",
		Short:         "Show past log entries, or past runs with --runs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(stderr)
			if err != nil {
				return err
			}
			defer app.close()

			if runs {
				return printRuns(cmd, app, stdout, limit)
			}
			opts := logging.QueryOptions{
				RunID: runID,
				Level: logging.LogLevel(strings.ToUpper(level)),
				Limit: limit,
			}
			if since > 0 {
				opts.Since = time.Now().Add(-since)
			}
			entries, err := app.logger.Query(opts)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(stdout, "%s %s: %s\n",
					e.Timestamp.Format("2006-01-02 15:04:05"), e.Level, e.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "only entries at this level (debug|info|warn|error)")
	cmd.Flags().Int64Var(&runID, "run", 0, "only entries belonging to this run")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of entries")
	cmd.Flags().DurationVar(&since, "since", 0, "only entries newer than this (e.g. 48h)")
	cmd.Flags().BoolVar(&runs, "runs", false, "list past runs instead of log entries")
	return cmd
}

func printRuns(cmd *cobra.Command, a *app, stdout io.Writer, limit int) error {
	list, err := a.hist.RecentRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tCOMPLETED\tMODE\tSTATUS\tMESSAGE")
	for _, r := range list {
		completed := "-"
		if r.CompletedAt != nil {
			completed = r.CompletedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), completed, r.Mode, r.Status, r.Message)
	}
	return tw.Flush()
}
