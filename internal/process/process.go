// Package process finds and stops OS processes that hold an installation.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	gops "github.com/shirou/gopsutil/v4/process"

	"github.com/adamancini/updraft/internal/update"
)

// Handle is a process that can be asked to stop.
type Handle interface {
	PID() int32
	Name(ctx context.Context) (string, error)
	// Terminate asks the process to exit (SIGTERM on unix).
	Terminate(ctx context.Context) error
	Kill(ctx context.Context) error
	Running(ctx context.Context) (bool, error)
}

// Table looks up processes.
type Table interface {
	// Lookup returns an error wrapping update.ErrNotFound if pid does not exist.
	Lookup(ctx context.Context, pid int32) (Handle, error)
	List(ctx context.Context) ([]Handle, error)
}

// SystemTable is the OS process table.
type SystemTable struct{}

func (SystemTable) Lookup(ctx context.Context, pid int32) (Handle, error) {
	if pid <= 0 {
		return nil, update.NotFoundf("invalid pid %d", pid)
	}
	exists, err := gops.PidExistsWithContext(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("failed to look up pid %d: %w", pid, err)
	}
	if !exists {
		return nil, update.NotFoundf("process %d", pid)
	}
	p, err := gops.NewProcessWithContext(ctx, pid)
	if err != nil {
		if errors.Is(err, gops.ErrorProcessNotRunning) {
			return nil, update.NotFoundf("process %d", pid)
		}
		return nil, fmt.Errorf("failed to open pid %d: %w", pid, err)
	}
	return &sysProcess{p: p}, nil
}

func (SystemTable) List(ctx context.Context) ([]Handle, error) {
	procs, err := gops.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}
	handles := make([]Handle, 0, len(procs))
	for _, p := range procs {
		handles = append(handles, &sysProcess{p: p})
	}
	return handles, nil
}

type sysProcess struct {
	p *gops.Process
}

func (s *sysProcess) PID() int32 { return s.p.Pid }

func (s *sysProcess) Name(ctx context.Context) (string, error) {
	return s.p.NameWithContext(ctx)
}

func (s *sysProcess) Terminate(ctx context.Context) error {
	return s.p.TerminateWithContext(ctx)
}

func (s *sysProcess) Kill(ctx context.Context) error {
	return s.p.KillWithContext(ctx)
}

// Running treats zombies as exited; their files are already released.
func (s *sysProcess) Running(ctx context.Context) (bool, error) {
	running, err := s.p.IsRunningWithContext(ctx)
	if err != nil {
		if errors.Is(err, gops.ErrorProcessNotRunning) {
			return false, nil
		}
		return false, err
	}
	if !running {
		return false, nil
	}
	if status, err := s.p.StatusWithContext(ctx); err == nil && slices.Contains(status, gops.Zombie) {
		return false, nil
	}
	return true, nil
}

// ImageName normalizes an executable name for comparison.
func ImageName(name string) string {
	name = strings.ToLower(filepath.Base(name))
	return strings.TrimSuffix(name, ".exe")
}

// SelfInDir reports whether the running executable lives under dir.
func SelfInDir(dir string) bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	rel, err := filepath.Rel(dir, exe)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
