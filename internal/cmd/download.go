package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamancini/updraft/internal/update"
)

func newDownloadCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download and verify the available update",
		Long: `Download checks for an update and, when one is available, fetches the
artifact with retries and verifies its size and SHA-256 hash. Nothing is
installed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = e.cfg.DownloadDir
			}
			return runDownload(cmd, e, dir)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory to download into (default: download_dir from config)")

	return cmd
}

func runDownload(cmd *cobra.Command, e *env, dir string) error {
	checker, err := e.checker()
	if err != nil {
		return err
	}
	checked, err := checker.Check(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}
	if checked.Status != update.StatusUpdateAvailable {
		return e.report(checked)
	}

	desc := checked.Descriptor
	path, err := e.downloader().Download(cmd.Context(), desc, dir, func(pct int) {
		e.observe(update.Downloading(desc, pct))
	})
	if err != nil {
		return e.report(update.Failed(desc, fmt.Errorf("download failed: %w", err)))
	}

	out := update.Downloaded(desc)
	out.Message = path
	return e.report(out)
}
