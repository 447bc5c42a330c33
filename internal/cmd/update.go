package cmd

import (
	"github.com/spf13/cobra"

	"github.com/adamancini/updraft/internal/backup"
	"github.com/adamancini/updraft/internal/interactive"
	"github.com/adamancini/updraft/internal/selfupdate"
	"github.com/adamancini/updraft/internal/update"
)

func newUpdateCmd() *cobra.Command {
	var (
		noExit bool
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the running application through updraft-launcher",
		Long: `Update checks for a newer version, downloads it and starts
updraft-launcher with a handoff descriptor. The launcher must sit next to the
updraft executable. updraft then exits so the launcher can back up the
installation, apply the update and restart the application.

Examples:
  updraft update              # confirm, hand off and exit
  updraft update --yes        # no confirmation prompt
  updraft update --no-exit    # hand off and leave exiting to the caller`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			orch, err := newOrchestrator(e)
			if err != nil {
				return err
			}

			checked := orch.Check(cmd.Context())
			if checked.Status != update.StatusUpdateAvailable {
				return e.report(checked)
			}
			if !yes && interactive.IsTerminal() {
				prompter := interactive.NewPrompterWithIO(cmd.InOrStdin(), cmd.OutOrStdout())
				if !prompter.ConfirmUpdate(e.cfg.CurrentVersion, checked.Descriptor) {
					out := update.Cancelled(checked.Descriptor)
					out.Message = "declined by user"
					return e.report(out)
				}
			}
			if noExit {
				return e.report(orch.LaunchHandoff(cmd.Context(), checked.Descriptor))
			}
			// Returns only when the handoff failed.
			return e.report(orch.InitiateSelfUpdate(cmd.Context(), checked.Descriptor))
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&noExit, "no-exit", false, "Do not exit after starting the launcher")

	return cmd
}

func newOrchestrator(e *env) (*selfupdate.Orchestrator, error) {
	checker, err := e.checker()
	if err != nil {
		return nil, err
	}
	return selfupdate.New(
		checker,
		e.downloader(),
		backup.NewManagerWithDir(e.cfg.BackupRoot),
		selfupdate.Options{
			DownloadDir:        e.cfg.DownloadDir,
			ExitTimeout:        e.cfg.ExitTimeout(),
			AllowForceKill:     e.cfg.ForceKill(),
			RestartAfterUpdate: e.cfg.Restart(),
			RestartArguments:   e.cfg.RestartArgs,
			BackupKeep:         e.cfg.BackupKeep,
		},
		e.log,
		selfupdate.WithObserver(e.observe),
		selfupdate.WithPlatform(e.platform()),
	), nil
}
