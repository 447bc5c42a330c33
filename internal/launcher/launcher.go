// Package launcher applies an update after the application has exited. It
// runs in its own process and talks to the application only through the
// handoff descriptor file.
package launcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adamancini/updraft/internal/handoff"
	"github.com/adamancini/updraft/internal/install"
	"github.com/adamancini/updraft/internal/logging"
	"github.com/adamancini/updraft/internal/process"
	"github.com/adamancini/updraft/internal/update"
)

// DefaultRestartDelay lets file locks settle before the target restarts.
const DefaultRestartDelay = 2 * time.Second

// ProcessWaiter waits for and stops the origin process.
type ProcessWaiter interface {
	WaitForExit(ctx context.Context, pid int32, timeout time.Duration) bool
	Kill(ctx context.Context, pid int32) error
}

// Launcher consumes one handoff descriptor.
type Launcher struct {
	waiter       ProcessWaiter
	runner       install.CommandRunner
	restartDelay time.Duration
	start        func(path string, args []string) (int, error)
	log          logrus.FieldLogger
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithWaiter replaces the process coordinator.
func WithWaiter(w ProcessWaiter) Option {
	return func(l *Launcher) { l.waiter = w }
}

// WithRunner replaces the command runner used for installers.
func WithRunner(r install.CommandRunner) Option {
	return func(l *Launcher) { l.runner = r }
}

// WithRestartDelay sets the pause before restarting the target.
func WithRestartDelay(d time.Duration) Option {
	return func(l *Launcher) { l.restartDelay = d }
}

// WithStarter replaces how the target is restarted.
func WithStarter(start func(path string, args []string) (int, error)) Option {
	return func(l *Launcher) { l.start = start }
}

// New creates a launcher.
func New(log logrus.FieldLogger, opts ...Option) *Launcher {
	log = logging.OrDiscard(log)
	l := &Launcher{
		waiter:       process.NewCoordinator(log),
		runner:       install.DefaultCommandRunner{},
		restartDelay: DefaultRestartDelay,
		start:        process.StartDetached,
		log:          log,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run applies the update described at descriptorPath. The descriptor is
// deleted before Run returns, whatever the outcome.
func (l *Launcher) Run(ctx context.Context, descriptorPath string) (err error) {
	log := l.log.WithField("descriptor", descriptorPath)
	defer func() {
		if rerr := handoff.Remove(descriptorPath); rerr != nil {
			log.WithError(rerr).Warn("Failed to delete handoff descriptor")
		}
	}()

	// 1. Load
	d, err := handoff.Read(descriptorPath)
	if err != nil {
		return fmt.Errorf("loading handoff descriptor: %w", err)
	}
	kind := install.ParseArtifactType(d.ArtifactType)
	log = log.WithFields(logrus.Fields{
		"artifact": d.ArtifactPath,
		"target":   d.TargetPath,
		"type":     kind,
	})
	log.Info("Starting update")

	if _, err := os.Stat(d.ArtifactPath); err != nil {
		return update.NotFoundf("artifact %s", d.ArtifactPath)
	}

	// 2-3. Wait for the application to exit
	if err := l.waitForOrigin(ctx, d, log); err != nil {
		return err
	}

	// 4. Backup, best effort
	backupTarget, backupPath := backupPaths(d, kind)
	backedUp := false
	if backupPath != "" {
		ok, err := install.CreateBackup(ctx, backupTarget, backupPath)
		switch {
		case err != nil:
			log.WithError(err).Warn("Backup failed; continuing without one")
		case !ok:
			log.WithField("path", backupTarget).Warn("Nothing to back up")
		default:
			backedUp = true
			log.WithField("backup", backupPath).Info("Backup created")
		}
	}

	// 5. Install, restoring the backup on failure
	engine := install.NewEngine(filepath.Dir(d.TargetPath),
		install.WithTargetExecutable(d.TargetPath),
		install.WithRunner(l.runner),
		install.WithLogger(log),
	)
	if err := engine.Apply(ctx, d.ArtifactPath, kind, func(pct int) {
		log.WithField("progress", pct).Debug("Installing")
	}); err != nil {
		log.WithError(err).Error("Install failed")
		if backedUp {
			if _, rerr := install.RestoreBackup(context.WithoutCancel(ctx), backupPath, backupTarget); rerr != nil {
				log.WithError(rerr).Error("Restore from backup failed")
				return fmt.Errorf("install failed: %w (restore also failed: %v)", err, rerr)
			}
			log.Info("Previous version restored from backup")
		}
		return fmt.Errorf("install failed: %w", err)
	}
	log.Info("Install complete")

	if err := os.Remove(d.ArtifactPath); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Debug("Could not remove artifact")
	}

	// 6. Restart
	if d.RestartAfterUpdate {
		if err := l.restart(ctx, d, log); err != nil {
			return err
		}
	}
	return nil
}

func (l *Launcher) waitForOrigin(ctx context.Context, d *handoff.Descriptor, log logrus.FieldLogger) error {
	pid := int32(d.OriginPID)
	log = log.WithField("pid", pid)
	log.Info("Waiting for application to exit")

	if l.waiter.WaitForExit(ctx, pid, d.ExitTimeout()) {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !d.AllowForceKill {
		return fmt.Errorf("%w: process %d still running after %s and force kill is disabled", update.ErrTimeout, pid, d.ExitTimeout())
	}

	log.Warn("Application did not exit in time; killing it")
	if err := l.waiter.Kill(ctx, pid); err != nil {
		log.WithError(err).Warn("Kill failed")
	}
	if !l.waiter.WaitForExit(ctx, pid, d.ExitTimeout()) {
		return fmt.Errorf("%w: process %d survived a kill", update.ErrTimeout, pid)
	}
	return nil
}

func (l *Launcher) restart(ctx context.Context, d *handoff.Descriptor, log logrus.FieldLogger) error {
	args, err := d.RestartArgs()
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(l.restartDelay):
	}

	pid, err := l.start(d.TargetPath, args)
	if err != nil {
		return &update.ProcessError{Command: d.TargetPath, ExitCode: -1, Cause: err}
	}
	log.WithField("pid", pid).Info("Application restarted")
	return nil
}

// backupPaths picks what to snapshot: the executable for binary swaps, the
// installation directory otherwise.
func backupPaths(d *handoff.Descriptor, kind install.ArtifactType) (target, backupPath string) {
	if d.BackupDirectory == "" {
		return "", ""
	}
	if kind == install.TypeBinary {
		return d.TargetPath, filepath.Join(d.BackupDirectory, filepath.Base(d.TargetPath))
	}
	return filepath.Dir(d.TargetPath), d.BackupDirectory
}
