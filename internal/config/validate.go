package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/adamancini/updraft/internal/update"
)

// ValidationError names one invalid config field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets callers match every config problem with update.ErrValidation.
func (e ValidationError) Unwrap() error { return update.ErrValidation }

// Validate checks field values. Required fields for a particular command
// are checked by RequireServer.
func Validate(c *Config) error {
	var errs []error

	if c.ServerURL != "" {
		if err := validateURL(c.ServerURL); err != nil {
			errs = append(errs, ValidationError{Field: "server_url", Message: err.Error()})
		}
	}
	if c.CurrentVersion != "" {
		if _, err := update.ParseVersion(c.CurrentVersion); err != nil {
			errs = append(errs, ValidationError{Field: "current_version", Message: err.Error()})
		}
	}
	if c.BackupKeep < 0 {
		errs = append(errs, ValidationError{Field: "backup_keep", Message: "must not be negative"})
	}
	if c.MaxRetries < 0 {
		errs = append(errs, ValidationError{Field: "max_retries", Message: "must not be negative"})
	}
	if c.RetryBaseDelay < 0 {
		errs = append(errs, ValidationError{Field: "retry_base_delay", Message: "must not be negative"})
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, ValidationError{Field: "request_timeout", Message: "must not be negative"})
	}
	if c.ProcessExitTimeout < 0 {
		errs = append(errs, ValidationError{Field: "process_exit_timeout", Message: "must not be negative"})
	}
	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			errs = append(errs, ValidationError{Field: "log_level", Message: err.Error()})
		}
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, ValidationError{Field: "log_format", Message: fmt.Sprintf("unknown format %q (expected text or json)", c.LogFormat)})
	}

	return errors.Join(errs...)
}

// RequireServer checks the fields needed to talk to the update server.
func (c *Config) RequireServer() error {
	var errs []error
	if strings.TrimSpace(c.ServerURL) == "" {
		errs = append(errs, ValidationError{Field: "server_url", Message: "is required"})
	}
	if strings.TrimSpace(c.ApplicationID) == "" {
		errs = append(errs, ValidationError{Field: "application_id", Message: "is required"})
	}
	if strings.TrimSpace(c.CurrentVersion) == "" {
		errs = append(errs, ValidationError{Field: "current_version", Message: "is required"})
	}
	return errors.Join(errs...)
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is missing")
	}
	return nil
}
