// Package selfupdate drives an update of the running program: check,
// download, hand off to the launcher, exit.
package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"github.com/adamancini/updraft/internal/backup"
	"github.com/adamancini/updraft/internal/handoff"
	"github.com/adamancini/updraft/internal/install"
	"github.com/adamancini/updraft/internal/logging"
	"github.com/adamancini/updraft/internal/process"
	"github.com/adamancini/updraft/internal/update"
)

// LauncherName is the launcher's file name, without platform suffix. The
// launcher must sit next to the application executable.
const LauncherName = "updraft-launcher"

const lockFileName = ".updraft.lock"

// ErrInProgress is returned when another update holds the lock.
var ErrInProgress = errors.New("an update is already in progress")

// Options configure the handoff.
type Options struct {
	DownloadDir        string
	HandoffDir         string // os.TempDir when empty
	ExitTimeout        time.Duration
	AllowForceKill     bool
	RestartAfterUpdate bool
	RestartArguments   string
	BackupKeep         int // prune to this many backups before each update; 0 disables
}

// Orchestrator runs one self-update at a time.
type Orchestrator struct {
	checker    update.Checker
	downloader update.Downloader
	backups    *backup.Manager
	opts       Options
	observe    update.StatusFunc
	log        logrus.FieldLogger
	platform   update.Platform

	mu    sync.Mutex
	state atomic.Int32

	executable   func() (string, error)
	startProcess func(path string, args []string) (int, error)
	exitProcess  func(code int)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver receives an outcome at every stage transition.
func WithObserver(fn update.StatusFunc) Option {
	return func(o *Orchestrator) { o.observe = fn }
}

// WithPlatform overrides the platform used for executable names.
func WithPlatform(p update.Platform) Option {
	return func(o *Orchestrator) { o.platform = p }
}

// New creates an orchestrator.
func New(checker update.Checker, downloader update.Downloader, backups *backup.Manager, opts Options, log logrus.FieldLogger, options ...Option) *Orchestrator {
	if opts.ExitTimeout <= 0 {
		opts.ExitTimeout = process.DefaultExitTimeout
	}
	o := &Orchestrator{
		checker:      checker,
		downloader:   downloader,
		backups:      backups,
		opts:         opts,
		log:          logging.OrDiscard(log),
		platform:     update.Detect(),
		executable:   resolveExecutable,
		startProcess: process.StartDetached,
		exitProcess:  os.Exit,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
	o.log.WithField("state", s).Debug("Self-update state changed")
}

// Check asks the update server for a newer version.
func (o *Orchestrator) Check(ctx context.Context) update.Outcome {
	if o.checker == nil {
		return o.fail(nil, update.Validationf("no update checker configured"))
	}
	o.setState(StateCheckingUpdate)

	out, err := o.checker.Check(ctx)
	if err != nil {
		return o.fail(nil, fmt.Errorf("update check failed: %w", err))
	}

	if out.Status == update.StatusUpdateAvailable {
		o.setState(StateUpdateFound)
	} else {
		o.setState(StateNoUpdate)
	}
	o.observe.Notify(out)
	return out
}

// Run checks for an update and, if one is available, initiates the
// self-update. It returns the check outcome when there is nothing to do.
func (o *Orchestrator) Run(ctx context.Context) update.Outcome {
	out := o.Check(ctx)
	if out.Status != update.StatusUpdateAvailable {
		return out
	}
	return o.InitiateSelfUpdate(ctx, out.Descriptor)
}

// InitiateSelfUpdate downloads desc, starts the launcher and exits the
// process. It returns only when something failed before the launcher was
// started.
func (o *Orchestrator) InitiateSelfUpdate(ctx context.Context, desc *update.UpdateDescriptor) update.Outcome {
	out := o.LaunchHandoff(ctx, desc)
	if !out.IsSuccess() {
		return out
	}
	o.exitForHandoff()
	return out
}

// LaunchHandoff performs every step of the self-update up to and including
// starting the launcher. On success the caller must exit promptly; the
// launcher waits for this process before touching any files.
func (o *Orchestrator) LaunchHandoff(ctx context.Context, desc *update.UpdateDescriptor) update.Outcome {
	if desc == nil {
		return o.fail(nil, update.Validationf("update descriptor is required"))
	}
	if o.State() == StateHandoffPrepared {
		return o.fail(desc, ErrInProgress)
	}

	unlock, err := o.lock()
	if err != nil {
		return o.fail(desc, err)
	}
	defer unlock()

	log := o.log.WithField("version", desc.Version)

	// 1. Download
	o.setState(StateDownloading)
	o.observe.Notify(update.Downloading(desc, 0))
	artifact, err := o.downloader.Download(ctx, desc, o.opts.DownloadDir, func(pct int) {
		o.observe.Notify(update.Downloading(desc, pct))
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			o.setState(StateFailed)
			out := update.Cancelled(desc)
			o.observe.Notify(out)
			return out
		}
		return o.fail(desc, fmt.Errorf("download failed: %w", err))
	}
	o.setState(StateDownloaded)
	o.observe.Notify(update.Downloaded(desc))
	log = log.WithField("artifact", artifact)

	// 2. Our own executable
	exe, err := o.executable()
	if err != nil || exe == "" {
		return o.fail(desc, fmt.Errorf("cannot determine the current executable: %v", err))
	}

	// 3. The launcher must exist before anything irreversible happens
	launcher := filepath.Join(filepath.Dir(exe), o.platform.ExecutableName(LauncherName))
	if info, err := os.Stat(launcher); err != nil || info.IsDir() {
		return o.fail(desc, update.NotFoundf("launcher %s", launcher))
	}

	// 4. Fresh backup location
	backupDir := ""
	if o.backups != nil {
		if o.opts.BackupKeep > 0 {
			if _, err := o.backups.Prune(o.opts.BackupKeep - 1); err != nil {
				log.WithError(err).Warn("Failed to prune old backups")
			}
		}
		backupDir = o.backups.NewPath(desc.Version)
	}

	// 5. Persist the handoff
	descriptorPath, err := handoff.Write(o.opts.HandoffDir, &handoff.Descriptor{
		ArtifactPath:       artifact,
		TargetPath:         exe,
		OriginPID:          os.Getpid(),
		RestartAfterUpdate: o.opts.RestartAfterUpdate,
		ArtifactType:       string(install.ClassifyForTarget(artifact, exe)),
		BackupDirectory:    backupDir,
		ExitTimeoutSeconds: int(o.opts.ExitTimeout / time.Second),
		AllowForceKill:     o.opts.AllowForceKill,
		RestartArguments:   o.opts.RestartArguments,
	})
	if err != nil {
		return o.fail(desc, fmt.Errorf("writing handoff descriptor: %w", err))
	}

	// 6. Start the launcher
	pid, err := o.startProcess(launcher, []string{descriptorPath})
	if err != nil {
		// 7. Nothing has been touched yet; undo the handoff
		if rerr := handoff.Remove(descriptorPath); rerr != nil {
			log.WithError(rerr).Warn("Failed to remove handoff descriptor")
		}
		return o.fail(desc, &update.ProcessError{Command: launcher, ExitCode: -1, Cause: err})
	}

	o.setState(StateHandoffPrepared)
	log.WithFields(logrus.Fields{
		"launcher":    launcher,
		"launcherPid": pid,
		"descriptor":  descriptorPath,
	}).Info("Launcher started; exiting for update")

	out := update.Installing(desc, 0)
	out.Message = "handed off to launcher"
	o.observe.Notify(out)
	return out
}

// exitForHandoff ends the process so the launcher can replace its files.
// Nothing runs after it.
func (o *Orchestrator) exitForHandoff() {
	o.exitProcess(0)
}

func (o *Orchestrator) fail(desc *update.UpdateDescriptor, err error) update.Outcome {
	o.setState(StateFailed)
	o.log.WithError(err).Error("Self-update failed")
	out := update.Failed(desc, err)
	o.observe.Notify(out)
	return out
}

// lock takes the in-process mutex and a file lock in the download
// directory, so only one update runs per process and per installation.
func (o *Orchestrator) lock() (func(), error) {
	if !o.mu.TryLock() {
		return nil, ErrInProgress
	}
	if o.opts.DownloadDir == "" {
		o.mu.Unlock()
		return nil, update.Validationf("download directory is not configured")
	}
	if err := os.MkdirAll(o.opts.DownloadDir, 0o755); err != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("creating download directory: %w", err)
	}

	fl := flock.New(filepath.Join(o.opts.DownloadDir, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("acquiring update lock: %w", err)
	}
	if !locked {
		o.mu.Unlock()
		return nil, ErrInProgress
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			o.log.WithError(err).Warn("Failed to release update lock")
		}
		o.mu.Unlock()
	}, nil
}
