package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/adamancini/updraft/internal/update"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		errContains []string
	}{
		{name: "defaults", modify: func(*Config) {}},
		{
			name:   "valid server",
			modify: func(c *Config) { c.ServerURL = "https://updates.example.com/base" },
		},
		{
			name:        "bad scheme",
			modify:      func(c *Config) { c.ServerURL = "ftp://example.com" },
			errContains: []string{"server_url"},
		},
		{
			name:        "missing host",
			modify:      func(c *Config) { c.ServerURL = "https://" },
			errContains: []string{"host is missing"},
		},
		{
			name:        "bad version",
			modify:      func(c *Config) { c.CurrentVersion = "one" },
			errContains: []string{"current_version"},
		},
		{
			name: "negative values",
			modify: func(c *Config) {
				c.BackupKeep = -1
				c.MaxRetries = -1
				c.ProcessExitTimeout = -1
			},
			errContains: []string{"backup_keep", "max_retries", "process_exit_timeout"},
		},
		{
			name: "logging",
			modify: func(c *Config) {
				c.LogLevel = "loud"
				c.LogFormat = "xml"
			},
			errContains: []string{"log_level", "log_format"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := Validate(cfg)
			if len(tt.errContains) == 0 {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if !errors.Is(err, update.ErrValidation) {
				t.Errorf("Validate() error = %v, want ErrValidation", err)
			}
			for _, s := range tt.errContains {
				if !strings.Contains(err.Error(), s) {
					t.Errorf("Validate() error = %v, want it to contain %q", err, s)
				}
			}
		})
	}
}

func TestRequireServer(t *testing.T) {
	cfg := Default()
	err := cfg.RequireServer()
	for _, field := range []string{"server_url", "application_id", "current_version"} {
		if err == nil || !strings.Contains(err.Error(), field) {
			t.Errorf("RequireServer() error = %v, want %s", err, field)
		}
	}

	var ve ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("RequireServer() error should contain a ValidationError")
	}
}
