package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/polarfoxDev/drydock/internal/retention"
)

func newStatusCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show the backup chain and when each backup can be deleted",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(stderr)
			if err != nil {
				return err
			}
			defer app.close()

			report, err := app.orchestrator().Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Backups are stored in %s\n", report.Directory)
			fmt.Fprintf(stdout, "Passphrase file: %s\n\n", report.PassphraseFile)
			if len(report.Chain) == 0 {
				fmt.Fprintln(stdout, "No backups have been made yet.")
				return nil
			}

			now := time.Now()
			tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tTYPE\tSIZE\tAGE\tDELETED IN")
			for i, rec := range report.Chain {
				kind := "increment"
				if rec.Full {
					kind = "full"
				}
				deletedIn := report.DeletedIn[i]
				if deletedIn == "" {
					deletedIn = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					rec.Date.Format("2006-01-02 15:04:05"),
					kind,
					humanSize(rec.Size),
					retention.Reldate(rec.Date, now, "the future?"),
					deletedIn,
				)
			}
			return tw.Flush()
		},
	}
}

// humanSize renders a byte count with one decimal in the largest fitting
// decimal unit, matching how the destination provider reports usage.
func humanSize(n int64) string {
	const unit = 1000
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "kMGTP"[exp])
}
