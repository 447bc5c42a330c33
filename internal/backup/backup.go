// Package backup manages the directory of pre-install snapshots.
package backup

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// idLayout prefixes every backup directory name.
const idLayout = "2006-01-02-150405"

// Info describes one backup directory.
type Info struct {
	ID        string    `json:"id" yaml:"id"`
	Version   string    `json:"version,omitempty" yaml:"version,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Path      string    `json:"path" yaml:"path"`
	Size      int64     `json:"size" yaml:"size"`
}

// Manager handles backup operations.
type Manager struct {
	backupDir string
	now       func() time.Time
}

// NewManager creates a manager rooted at the default backup directory.
func NewManager() (*Manager, error) {
	backupDir, err := DefaultDir()
	if err != nil {
		return nil, err
	}
	return NewManagerWithDir(backupDir), nil
}

// NewManagerWithDir creates a backup manager with a custom directory.
func NewManagerWithDir(backupDir string) *Manager {
	return &Manager{
		backupDir: backupDir,
		now:       time.Now,
	}
}

// DefaultDir returns the default backup directory path.
func DefaultDir() (string, error) {
	// Use XDG_CACHE_HOME or default to ~/.cache
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to determine home directory: %w", err)
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "updraft", "backups"), nil
}

// NewPath returns a fresh, not yet existing backup path for version. The
// directory itself is created by whoever writes the backup.
func (m *Manager) NewPath(version string) string {
	id := m.now().Format(idLayout)
	if v := sanitize(version); v != "" {
		id += "-" + v
	}

	path := filepath.Join(m.backupDir, id)
	for n := 2; exists(path); n++ {
		path = filepath.Join(m.backupDir, fmt.Sprintf("%s~%d", id, n))
	}
	return path
}

// List returns all backups sorted by creation time (newest first).
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []Info{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, ok := parseID(entry.Name())
		if !ok {
			continue
		}
		info.Path = filepath.Join(m.backupDir, entry.Name())
		info.Size = dirSize(info.Path)
		backups = append(backups, info)
	}

	// Sort by creation time, newest first
	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].ID > backups[j].ID
		}
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})

	return backups, nil
}

// Get retrieves a backup by ID. Use "latest" to get the most recent backup.
func (m *Manager) Get(id string) (*Info, error) {
	backups, err := m.List()
	if err != nil {
		return nil, err
	}
	if id == "latest" {
		if len(backups) == 0 {
			return nil, fmt.Errorf("no backups found")
		}
		return &backups[0], nil
	}
	for i := range backups {
		if backups[i].ID == id {
			return &backups[i], nil
		}
	}
	return nil, fmt.Errorf("backup not found: %s", id)
}

// Delete removes a backup by ID.
func (m *Manager) Delete(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("invalid backup id %q", id)
	}
	path := filepath.Join(m.backupDir, id)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("backup not found: %s", id)
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}

	return nil
}

// BackupDir returns the backup directory path.
func (m *Manager) BackupDir() string {
	return m.backupDir
}

func parseID(name string) (Info, bool) {
	if len(name) < len(idLayout) {
		return Info{}, false
	}
	created, err := time.ParseInLocation(idLayout, name[:len(idLayout)], time.Local)
	if err != nil {
		return Info{}, false
	}
	rest := strings.TrimPrefix(name[len(idLayout):], "-")
	if i := strings.LastIndexByte(rest, '~'); i >= 0 && isDigits(rest[i+1:]) {
		rest = rest[:i]
	}
	return Info{ID: name, Version: rest, CreatedAt: created}, true
}

func sanitize(version string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ', '*', '?', '"', '<', '>', '|', '~':
			return '_'
		}
		return r
	}, strings.TrimSpace(version))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func dirSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}
