package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newConfigCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "config",
		Short:         "Show or change the backup configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newConfigShowCmd(stdout, stderr))
	cmd.AddCommand(newConfigSetCmd(stdout, stderr))
	return cmd
}

func newConfigShowCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Print the effective backup configuration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(stderr)
			if err != nil {
				return err
			}
			defer app.close()

			cfg := app.store.Get()
			fmt.Fprintf(stdout, "target: %s\n", cfg.Target)
			if cfg.TargetUser != "" {
				fmt.Fprintf(stdout, "target_user: %s\n", cfg.TargetUser)
			}
			if cfg.TargetPass != "" {
				fmt.Fprintln(stdout, "target_pass: (set)")
			}
			fmt.Fprintf(stdout, "min_age_in_days: %d\n", cfg.MinAgeDays)
			return nil
		},
	}
}

func newConfigSetCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		target string
		user   string
		pass   string
		minAge string
	)
	cmd := &cobra.Command{
		Use:           "set",
		Short:         "Replace the backup configuration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(stderr)
			if err != nil {
				return err
			}
			defer app.close()

			if err := app.store.Set(target, user, pass, minAge); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "destination URI (file://, s3://, sftp://, rsync://)")
	cmd.Flags().StringVar(&user, "user", "", "destination credential: user or access key id")
	cmd.Flags().StringVar(&pass, "pass", "", "destination credential: password or secret access key")
	cmd.Flags().StringVar(&minAge, "min-age", "", "days to keep backups for (minimum 1)")
	cmd.MarkFlagRequired("target")
	cmd.MarkFlagRequired("min-age")
	return cmd
}
