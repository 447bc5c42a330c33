package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/adamancini/updraft/internal/backup"
	"github.com/adamancini/updraft/internal/output"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage pre-update backups",
		Long: `Backup manages the snapshots updraft-launcher takes before applying an
update. Backups are stored under backup_root (default ~/.cache/updraft/backups)
and named <yyyy-mm-dd-hhmmss>-<version>.`,
	}

	cmd.AddCommand(newBackupListCmd())
	cmd.AddCommand(newBackupPruneCmd())

	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all backups",
		Long:  `List displays all backups with their version, creation time and size, newest first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			return runBackupList(e)
		},
	}
}

func newBackupPruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove old backups",
		Long: `Prune deletes old backups, keeping only the most recent N backups.

By default, keeps backup_keep from config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("keep") {
				keep = e.cfg.BackupKeep
			}
			return runBackupPrune(e, keep)
		},
	}

	cmd.Flags().IntVar(&keep, "keep", backup.DefaultKeepCount, "Number of backups to keep")

	return cmd
}

// runBackupList lists all backups.
func runBackupList(e *env) error {
	manager := backup.NewManagerWithDir(e.cfg.BackupRoot)
	backups, err := manager.List()
	if err != nil {
		return err
	}

	return e.out.WriteText(backups, func(w io.Writer) error {
		if len(backups) == 0 {
			_, err := fmt.Fprintf(w, "No backups found.\nBackup directory: %s\n", manager.BackupDir())
			return err
		}

		if _, err := fmt.Fprintf(w, "Backups stored in %s:\n\n", manager.BackupDir()); err != nil {
			return err
		}
		rows := make([]string, 0, len(backups))
		for _, b := range backups {
			version := b.Version
			if version == "" {
				version = "-"
			}
			rows = append(rows, fmt.Sprintf("%s\t%s\t%s\t%s",
				b.ID,
				version,
				b.CreatedAt.Format("2006-01-02 15:04:05"),
				output.FormatSize(b.Size),
			))
		}
		return e.out.Table("ID\tVersion\tCreated\tSize", rows)
	})
}

// runBackupPrune removes all but the newest keep backups.
func runBackupPrune(e *env, keep int) error {
	manager := backup.NewManagerWithDir(e.cfg.BackupRoot)
	result, err := manager.Prune(keep)
	if err != nil {
		return err
	}

	return e.out.WriteText(result, func(w io.Writer) error {
		if len(result.Deleted) == 0 {
			_, err := fmt.Fprintf(w, "Nothing to prune (%d backups kept)\n", result.Kept)
			return err
		}
		for _, b := range result.Deleted {
			if _, err := fmt.Fprintf(w, "Deleted %s\n", b.ID); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, "Pruned %d backups, kept %d\n", len(result.Deleted), result.Kept)
		return err
	})
}
