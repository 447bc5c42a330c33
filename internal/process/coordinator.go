package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/adamancini/updraft/internal/logging"
	"github.com/adamancini/updraft/internal/update"
)

const (
	// DefaultPollInterval is how often a process is checked while waiting for exit.
	DefaultPollInterval = 500 * time.Millisecond
	// DefaultExitTimeout bounds a wait for a process to exit.
	DefaultExitTimeout = 30 * time.Second
)

// Coordinator stops processes that hold an installation and waits for them
// to go away. Individual failures are logged and reported as booleans.
type Coordinator struct {
	table Table
	poll  time.Duration
	log   logrus.FieldLogger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTable replaces the OS process table.
func WithTable(t Table) Option {
	return func(c *Coordinator) { c.table = t }
}

// WithPollInterval sets the exit polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.poll = d
		}
	}
}

// NewCoordinator returns a Coordinator over the OS process table.
func NewCoordinator(log logrus.FieldLogger, opts ...Option) *Coordinator {
	c := &Coordinator{
		table: SystemTable{},
		poll:  DefaultPollInterval,
		log:   logging.OrDiscard(log),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TerminateRelated stops every process in procs. Each gets a graceful
// request and half of timeout to exit, then a kill and the other half.
// A failure on one process never stops the loop. The result is true only
// when every process is confirmed gone.
func (c *Coordinator) TerminateRelated(ctx context.Context, procs []Handle, timeout time.Duration) bool {
	half := timeout / 2
	allTerminated := true

	for _, p := range procs {
		log := c.log.WithField("pid", p.PID())

		if err := p.Terminate(ctx); err != nil {
			log.WithError(err).Warn("Graceful termination request failed")
		}
		if c.waitGone(ctx, p, half) {
			log.Info("Process exited")
			continue
		}

		log.Warn("Process still running, killing")
		if err := p.Kill(ctx); err != nil {
			log.WithError(err).Warn("Kill failed")
		}
		if c.waitGone(ctx, p, timeout-half) {
			log.Info("Process killed")
			continue
		}

		log.Error("Process survived termination")
		allTerminated = false
	}

	return allTerminated
}

// WaitForExit polls until pid is gone or timeout elapses. A pid that does
// not exist counts as exited.
func (c *Coordinator) WaitForExit(ctx context.Context, pid int32, timeout time.Duration) bool {
	h, err := c.table.Lookup(ctx, pid)
	if err != nil {
		if errors.Is(err, update.ErrNotFound) {
			c.log.WithField("pid", pid).Debug("Process not running")
			return true
		}
		c.log.WithError(err).WithField("pid", pid).Warn("Cannot inspect process")
		return false
	}
	return c.waitGone(ctx, h, timeout)
}

// Kill forcibly stops pid. A missing process is not an error.
func (c *Coordinator) Kill(ctx context.Context, pid int32) error {
	h, err := c.table.Lookup(ctx, pid)
	if err != nil {
		if errors.Is(err, update.ErrNotFound) {
			return nil
		}
		return err
	}
	c.log.WithField("pid", pid).Warn("Killing process")
	return h.Kill(ctx)
}

// FindByName returns processes whose image name matches name, excluding pid
// exclude.
func (c *Coordinator) FindByName(ctx context.Context, name string, exclude int32) ([]Handle, error) {
	all, err := c.table.List(ctx)
	if err != nil {
		return nil, err
	}
	want := ImageName(name)
	return lo.Filter(all, func(h Handle, _ int) bool {
		if h.PID() == exclude {
			return false
		}
		n, err := h.Name(ctx)
		return err == nil && ImageName(n) == want
	}), nil
}

// FindRelated returns other processes running the current executable image.
func (c *Coordinator) FindRelated(ctx context.Context) ([]Handle, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return c.FindByName(ctx, filepath.Base(exe), int32(os.Getpid()))
}

func (c *Coordinator) waitGone(ctx context.Context, h Handle, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		running, err := h.Running(ctx)
		if err != nil {
			c.log.WithError(err).WithField("pid", h.PID()).Debug("Process state unknown")
		} else if !running {
			return true
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(min(c.poll, remaining)):
		}
	}
}
