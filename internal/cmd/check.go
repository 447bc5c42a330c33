package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the update server for a newer version",
		Long: `Check asks the configured update server whether a version newer than
current_version is available for this platform.

Examples:
  updraft check
  updraft check -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			checker, err := e.checker()
			if err != nil {
				return err
			}
			out, err := checker.Check(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to check for updates: %w", err)
			}
			return e.report(out)
		},
	}
}
