package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/adamancini/updraft/internal/install"
	"github.com/adamancini/updraft/internal/process"
	"github.com/adamancini/updraft/internal/update"
)

func newInstallCmd() *cobra.Command {
	var (
		dir     string
		version string
	)

	cmd := &cobra.Command{
		Use:   "install <artifact>",
		Short: "Install a downloaded artifact in this process",
		Long: `Install applies an artifact directly, without the launcher. Archives
(.zip, .tar.gz, .tgz, .tar.zst) are extracted over the install directory,
installers (.msi, .exe, .pkg) run silently and anything else is executed.

Use this from a supervisor process; an application cannot replace its own
running executable this way.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			if dir == "" {
				dir, err = defaultInstallDir()
				if err != nil {
					return err
				}
			}

			engine := install.NewEngine(dir,
				install.WithTerminator(process.NewCoordinator(e.log), e.cfg.ExitTimeout()),
				install.WithLogger(e.log),
			)
			desc := &update.UpdateDescriptor{Version: version}
			return e.report(engine.Install(cmd.Context(), args[0], desc, e.observe))
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Install directory (default: directory of the updraft executable)")
	cmd.Flags().StringVar(&version, "version", "", "Version being installed, for logs and output")

	return cmd
}

func defaultInstallDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
