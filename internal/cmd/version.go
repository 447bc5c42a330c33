package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/adamancini/updraft/internal/output"
)

func newVersionCmd(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			return output.NewWriter(cmd.OutOrStdout(), format).WriteText(info, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "updraft version %s (commit %s, built %s)\n", info.Version, info.Commit, info.Date)
				return err
			})
		},
	}
}
