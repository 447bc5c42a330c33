// Package install applies a downloaded update artifact to an installation.
package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adamancini/updraft/internal/logging"
	"github.com/adamancini/updraft/internal/process"
	"github.com/adamancini/updraft/internal/update"
)

// ArtifactType tags how an artifact is applied.
type ArtifactType string

const (
	// TypeArchive is extracted and overlaid onto the base directory.
	TypeArchive ArtifactType = "archive"
	// TypeInstaller is a native installer run with silent switches.
	TypeInstaller ArtifactType = "installer"
	// TypeBinary replaces the target executable.
	TypeBinary ArtifactType = "binary"
	// TypeGeneric is executed directly.
	TypeGeneric ArtifactType = "generic"
)

// ParseArtifactType accepts the tag names above; anything else is generic.
func ParseArtifactType(s string) ArtifactType {
	switch t := ArtifactType(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeArchive, TypeInstaller, TypeBinary:
		return t
	}
	return TypeGeneric
}

// DetectArtifactType classifies an artifact by its file extension.
func DetectArtifactType(path string) ArtifactType {
	switch {
	case isArchive(path):
		return TypeArchive
	case isInstaller(path):
		return TypeInstaller
	}
	return TypeGeneric
}

// ClassifyForTarget classifies an artifact that will replace target. An
// artifact with the target executable's own file name is a binary
// replacement; everything else is classified by extension.
func ClassifyForTarget(artifactPath, targetExe string) ArtifactType {
	if targetExe != "" && strings.EqualFold(filepath.Base(artifactPath), filepath.Base(targetExe)) {
		return TypeBinary
	}
	return DetectArtifactType(artifactPath)
}

// ProcessTerminator is the part of the process coordinator the engine uses.
type ProcessTerminator interface {
	FindRelated(ctx context.Context) ([]process.Handle, error)
	TerminateRelated(ctx context.Context, procs []process.Handle, timeout time.Duration) bool
}

// Engine installs artifacts into an application's base directory.
type Engine struct {
	baseDir     string
	targetExe   string
	tempDir     string
	runner      CommandRunner
	terminator  ProcessTerminator
	exitTimeout time.Duration
	goos        string
	log         logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTargetExecutable sets the executable replaced by binary artifacts.
func WithTargetExecutable(path string) Option {
	return func(e *Engine) { e.targetExe = path }
}

// WithTempDir sets where archives are extracted and installer logs written.
func WithTempDir(dir string) Option {
	return func(e *Engine) { e.tempDir = dir }
}

// WithRunner replaces the command runner.
func WithRunner(r CommandRunner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithTerminator enables process-conflict handling for msi installers.
func WithTerminator(t ProcessTerminator, timeout time.Duration) Option {
	return func(e *Engine) {
		e.terminator = t
		if timeout > 0 {
			e.exitTimeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = logging.OrDiscard(log) }
}

// NewEngine creates an engine that installs into baseDir.
func NewEngine(baseDir string, opts ...Option) *Engine {
	e := &Engine{
		baseDir:     baseDir,
		runner:      DefaultCommandRunner{},
		exitTimeout: process.DefaultExitTimeout,
		goos:        update.Detect().OS,
		log:         logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BaseDir returns the installation directory.
func (e *Engine) BaseDir() string {
	return e.baseDir
}

// Install applies artifactPath, classified by extension, and reports each
// stage to observe. The returned outcome is Completed or Failed; argument
// problems fail with errors wrapping update.ErrValidation or
// update.ErrNotFound.
func (e *Engine) Install(ctx context.Context, artifactPath string, desc *update.UpdateDescriptor, observe update.StatusFunc) update.Outcome {
	fail := func(err error) update.Outcome {
		out := update.Failed(desc, err)
		observe.Notify(out)
		return out
	}

	if strings.TrimSpace(artifactPath) == "" {
		return fail(update.Validationf("artifact path is required"))
	}
	if desc == nil {
		return fail(update.Validationf("update descriptor is required"))
	}
	if _, err := os.Stat(artifactPath); err != nil {
		if os.IsNotExist(err) {
			return fail(update.NotFoundf("artifact %s", artifactPath))
		}
		return fail(fmt.Errorf("cannot read artifact %s: %w", artifactPath, err))
	}

	kind := DetectArtifactType(artifactPath)
	log := e.log.WithFields(logrus.Fields{
		"artifact": artifactPath,
		"type":     kind,
		"version":  desc.Version,
	})
	log.Info("Installing update")

	if kind == TypeInstaller && strings.EqualFold(filepath.Ext(artifactPath), ".msi") {
		e.resolveConflicts(ctx)
	}

	progress := func(pct int) { observe.Notify(update.Installing(desc, pct)) }
	if err := e.Apply(ctx, artifactPath, kind, progress); err != nil {
		log.WithError(err).Error("Install failed")
		return fail(fmt.Errorf("install of %s failed: %w", filepath.Base(artifactPath), err))
	}

	log.Info("Install complete")
	out := update.Completed(desc)
	observe.Notify(out)
	return out
}

// Apply installs artifactPath as kind without argument checks or process
// handling. progress may be nil.
func (e *Engine) Apply(ctx context.Context, artifactPath string, kind ArtifactType, progress func(int)) error {
	if progress == nil {
		progress = func(int) {}
	}
	switch kind {
	case TypeArchive:
		return e.installArchive(ctx, artifactPath, progress)
	case TypeInstaller:
		return e.runInstaller(ctx, artifactPath)
	case TypeBinary:
		return e.replaceBinary(artifactPath)
	default:
		return e.runGeneric(ctx, artifactPath)
	}
}

// installArchive extracts to a temp dir and overlays it onto the base dir.
func (e *Engine) installArchive(ctx context.Context, artifactPath string, progress func(int)) error {
	if e.baseDir == "" {
		return update.Validationf("install directory is not set")
	}
	progress(0)

	// 1. Fresh extraction directory
	tmp, err := os.MkdirTemp(e.tempDir, "updraft-extract-*")
	if err != nil {
		return fmt.Errorf("failed to create extraction directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()
	progress(25)

	// 2. Extract
	if err := Extract(ctx, artifactPath, tmp); err != nil {
		return fmt.Errorf("failed to extract archive: %w", err)
	}
	progress(50)

	// 3. Overlay onto the installation
	if err := copyTree(ctx, tmp, e.baseDir); err != nil {
		return fmt.Errorf("failed to copy files into %s: %w", e.baseDir, err)
	}
	progress(75)

	// 4. Clean up
	if err := os.RemoveAll(tmp); err != nil {
		e.log.WithError(err).WithField("dir", tmp).Warn("Failed to remove extraction directory")
	}
	progress(90)

	progress(100)
	return nil
}

// replaceBinary swaps the target executable for artifactPath.
func (e *Engine) replaceBinary(artifactPath string) error {
	if e.targetExe == "" {
		return update.Validationf("target executable is not set")
	}

	// 1. Stage next to the target so the rename stays on one filesystem
	staged := e.targetExe + ".new"
	if err := copyFile(artifactPath, staged, 0o755); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("failed to stage new binary: %w", err)
	}

	// 2. Replace with new binary (atomic rename)
	if err := os.Rename(staged, e.targetExe); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("failed to replace binary: %w", err)
	}

	return nil
}

// runGeneric executes the artifact and expects a zero exit code.
func (e *Engine) runGeneric(ctx context.Context, artifactPath string) error {
	if e.goos != "windows" {
		if err := os.Chmod(artifactPath, 0o755); err != nil {
			e.log.WithError(err).Debug("Could not mark artifact executable")
		}
	}

	res, err := e.runner.Run(ctx, artifactPath)
	if err != nil || res.ExitCode != 0 {
		return &update.ProcessError{
			Command:  artifactPath,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			Cause:    err,
		}
	}
	return nil
}

// resolveConflicts stops other instances of this program before an msi
// install. Failures are logged only.
func (e *Engine) resolveConflicts(ctx context.Context) {
	if e.terminator == nil {
		return
	}

	related, err := e.terminator.FindRelated(ctx)
	if err != nil {
		e.log.WithError(err).Warn("Could not enumerate related processes")
	}
	selfInTarget := e.baseDir != "" && process.SelfInDir(e.baseDir)
	if len(related) == 0 && !selfInTarget {
		return
	}

	e.log.WithFields(logrus.Fields{
		"related":      len(related),
		"selfInTarget": selfInTarget,
	}).Warn("Processes may hold the install directory; terminating")

	if !e.terminator.TerminateRelated(ctx, related, e.exitTimeout) {
		e.log.Warn("Some processes could not be terminated; continuing with install")
	}
}
