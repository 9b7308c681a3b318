package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd returns the root cobra command. Without arguments it performs a
// backup, incremental unless the forced-full policy (or --full) says
// otherwise.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		full   bool
		verify bool
	)
	cmd := &cobra.Command{
		Use:           "drydock",
		Short:         "Encrypted incremental backups of the mail server's data directory",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(stderr)
			if err != nil {
				return err
			}
			defer app.close()
			orch := app.orchestrator()
			if verify {
				out, err := orch.Verify(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprint(stdout, out)
				return nil
			}
			return orch.PerformBackup(cmd.Context(), full)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.Flags().BoolVar(&full, "full", false, "force a full backup instead of consulting the policy")
	cmd.Flags().BoolVar(&verify, "verify", false, "verify the backups against the live data instead of backing up")

	cmd.AddCommand(newStatusCmd(stdout, stderr))
	cmd.AddCommand(newConfigCmd(stdout, stderr))
	cmd.AddCommand(newLogCmd(stdout, stderr))
	return cmd
}

// Execute runs the CLI with the process stdio and returns the exit code.
func Execute() int {
	root := NewRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
