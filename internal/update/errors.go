package update

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds shared by every stage of the pipeline. Callers classify with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrIntegrity  = errors.New("integrity check failed")
	ErrProcess    = errors.New("process error")
	ErrTimeout    = errors.New("timed out")
)

// IntegrityError reports a hash or size mismatch for a downloaded artifact.
type IntegrityError struct {
	Path     string
	Expected string
	Got      string
	Reason   string // "hash" or "size"
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s mismatch for %s: expected %s, got %s", e.Reason, e.Path, e.Expected, e.Got)
}

// Unwrap returns ErrIntegrity so callers can use errors.Is.
func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// ProcessError reports a child process that could not start or exited non-zero.
type ProcessError struct {
	Command      string
	ExitCode     int
	Stderr       string
	InstallerLog string
	Cause        error
}

func (e *ProcessError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s exited with code %d", e.Command, e.ExitCode)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, "\nstderr: %s", s)
	}
	if s := strings.TrimSpace(e.InstallerLog); s != "" {
		fmt.Fprintf(&b, "\ninstaller log: %s", s)
	}
	return b.String()
}

// Unwrap returns ErrProcess so callers can use errors.Is.
func (e *ProcessError) Unwrap() error { return ErrProcess }

// Validationf builds an error wrapping ErrValidation.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf builds an error wrapping ErrNotFound.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
