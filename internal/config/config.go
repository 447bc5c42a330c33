// Package config loads updraft settings from a YAML, TOML or JSON file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
)

// EnvConfig names the environment variable holding an explicit config path.
const EnvConfig = "UPDRAFT_CONFIG"

// Config holds every setting the CLI and the orchestrator need.
type Config struct {
	ServerURL      string `yaml:"server_url" toml:"server_url" json:"server_url"`
	ApplicationID  string `yaml:"application_id" toml:"application_id" json:"application_id"`
	CurrentVersion string `yaml:"current_version" toml:"current_version" json:"current_version"`
	Platform       string `yaml:"platform" toml:"platform" json:"platform"`
	Architecture   string `yaml:"architecture" toml:"architecture" json:"architecture"`
	Language       string `yaml:"language" toml:"language" json:"language"`
	ClientID       string `yaml:"client_id" toml:"client_id" json:"client_id"`

	DownloadDir string `yaml:"download_dir" toml:"download_dir" json:"download_dir"`
	BackupRoot  string `yaml:"backup_root" toml:"backup_root" json:"backup_root"`
	BackupKeep  int    `yaml:"backup_keep" toml:"backup_keep" json:"backup_keep"`

	MaxRetries     int      `yaml:"max_retries" toml:"max_retries" json:"max_retries"`
	RetryBaseDelay Duration `yaml:"retry_base_delay" toml:"retry_base_delay" json:"retry_base_delay"`
	RequestTimeout Duration `yaml:"request_timeout" toml:"request_timeout" json:"request_timeout"`

	ProcessExitTimeout int    `yaml:"process_exit_timeout" toml:"process_exit_timeout" json:"process_exit_timeout"` // seconds
	AllowForceKill     *bool  `yaml:"allow_force_kill" toml:"allow_force_kill" json:"allow_force_kill"`
	RestartAfterUpdate *bool  `yaml:"restart_after_update" toml:"restart_after_update" json:"restart_after_update"`
	RestartArgs        string `yaml:"restart_args" toml:"restart_args" json:"restart_args"`

	LogLevel           string `yaml:"log_level" toml:"log_level" json:"log_level"`
	LogFormat          string `yaml:"log_format" toml:"log_format" json:"log_format"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" toml:"insecure_skip_verify" json:"insecure_skip_verify"`
}

// Default returns a config with every default filled in.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Platform == "" {
		c.Platform = runtime.GOOS
	}
	if c.Architecture == "" {
		c.Architecture = runtime.GOARCH
	}
	if c.Language == "" {
		c.Language = "en"
	}
	if c.ClientID == "" {
		c.ClientID = uuid.NewString()
	}
	if c.DownloadDir == "" {
		c.DownloadDir = filepath.Join(cacheDir(), "updraft", "downloads")
	}
	if c.BackupRoot == "" {
		c.BackupRoot = filepath.Join(cacheDir(), "updraft", "backups")
	}
	if c.BackupKeep == 0 {
		c.BackupKeep = 5
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = Duration(2 * time.Second)
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = Duration(5 * time.Minute)
	}
	if c.ProcessExitTimeout == 0 {
		c.ProcessExitTimeout = 30
	}
	if c.AllowForceKill == nil {
		c.AllowForceKill = boolPtr(true)
	}
	if c.RestartAfterUpdate == nil {
		c.RestartAfterUpdate = boolPtr(true)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

// ExitTimeout returns ProcessExitTimeout as a duration.
func (c *Config) ExitTimeout() time.Duration {
	return time.Duration(c.ProcessExitTimeout) * time.Second
}

// ForceKill reports whether a stuck process may be killed.
func (c *Config) ForceKill() bool {
	return c.AllowForceKill == nil || *c.AllowForceKill
}

// Restart reports whether the application restarts after an update.
func (c *Config) Restart() bool {
	return c.RestartAfterUpdate == nil || *c.RestartAfterUpdate
}

func boolPtr(b bool) *bool { return &b }

func cacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return dir
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return os.TempDir()
}

var fileNames = []string{
	"updraft.yaml",
	"updraft.yml",
	"updraft.toml",
	"updraft.json",
}

// Find returns the config file to load. An explicit path must exist; the
// UPDRAFT_CONFIG variable and the standard directories are searched after it.
// An empty path with a nil error means no file was found.
func Find(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	if envPath := os.Getenv(EnvConfig); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	var searchPaths []string
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	home, homeErr := os.UserHomeDir()
	if xdgConfig == "" && homeErr == nil {
		xdgConfig = filepath.Join(home, ".config")
	}
	if xdgConfig != "" {
		searchPaths = append(searchPaths, filepath.Join(xdgConfig, "updraft"))
	}
	if homeErr == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".updraft"))
	}

	for _, dir := range searchPaths {
		for _, name := range fileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}
	return "", nil
}

// Load reads the config at path, or returns defaults when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	format := detectFormat(path, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", path)
	}

	cfg, err := parse(content, format)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
