// Package handoff reads and writes the descriptor file that passes an update
// from the running application to the launcher.
package handoff

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"mvdan.cc/sh/v3/shell"

	"github.com/adamancini/updraft/internal/update"
)

// SchemaVersion is written into every descriptor. Readers reject newer versions.
const SchemaVersion = 1

const filePattern = "updraft-handoff-*.json"

// Descriptor is the launcher's only input. Once written it is not modified;
// the launcher deletes it after reading.
type Descriptor struct {
	SchemaVersion      int    `json:"schemaVersion"`
	ArtifactPath       string `json:"artifactPath"`
	TargetPath         string `json:"targetPath"`
	OriginPID          int    `json:"originProcessId"`
	RestartAfterUpdate bool   `json:"restartAfterUpdate"`
	ArtifactType       string `json:"artifactType"`
	BackupDirectory    string `json:"backupDirectory,omitempty"`
	ExitTimeoutSeconds int    `json:"processExitTimeoutSeconds"`
	AllowForceKill     bool   `json:"allowForceKill"`
	RestartArguments   string `json:"restartArguments,omitempty"`
}

// ExitTimeout returns the process-exit wait as a duration.
func (d *Descriptor) ExitTimeout() time.Duration {
	return time.Duration(d.ExitTimeoutSeconds) * time.Second
}

// RestartArgs splits RestartArguments using shell quoting rules.
func (d *Descriptor) RestartArgs() ([]string, error) {
	if strings.TrimSpace(d.RestartArguments) == "" {
		return nil, nil
	}
	args, err := shell.Fields(d.RestartArguments, nil)
	if err != nil {
		return nil, update.Validationf("restart arguments %q: %v", d.RestartArguments, err)
	}
	return args, nil
}

// Validate checks the fields the launcher cannot work without.
func (d *Descriptor) Validate() error {
	var problems []string
	if d.SchemaVersion < 1 || d.SchemaVersion > SchemaVersion {
		problems = append(problems, fmt.Sprintf("unsupported schema version %d", d.SchemaVersion))
	}
	if strings.TrimSpace(d.ArtifactPath) == "" {
		problems = append(problems, "artifact path is empty")
	}
	if strings.TrimSpace(d.TargetPath) == "" {
		problems = append(problems, "target path is empty")
	}
	if d.ExitTimeoutSeconds < 0 {
		problems = append(problems, "process exit timeout is negative")
	}
	if len(problems) > 0 {
		return update.Validationf("invalid handoff descriptor: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Write persists d to a new uniquely named file in dir (os.TempDir when
// empty) and returns its path. The file is synced and renamed into place so
// a reader never sees a partial descriptor.
func Write(dir string, d *Descriptor) (string, error) {
	if d == nil {
		return "", update.Validationf("handoff descriptor is required")
	}
	if d.SchemaVersion == 0 {
		d.SchemaVersion = SchemaVersion
	}
	if err := d.Validate(); err != nil {
		return "", err
	}
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating handoff directory: %w", err)
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling handoff descriptor: %w", err)
	}

	file, err := os.CreateTemp(dir, filePattern+".tmp")
	if err != nil {
		return "", fmt.Errorf("creating temporary handoff file: %w", err)
	}
	temporaryPath := file.Name()
	finalPath := strings.TrimSuffix(temporaryPath, ".tmp")

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return "", fmt.Errorf("writing temporary handoff file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return "", fmt.Errorf("syncing temporary handoff file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return "", fmt.Errorf("closing temporary handoff file: %w", err)
	}

	if err := os.Rename(temporaryPath, finalPath); err != nil {
		os.Remove(temporaryPath)
		return "", fmt.Errorf("renaming handoff file into place: %w", err)
	}

	return finalPath, nil
}

// Read loads and validates the descriptor at path.
func Read(path string) (*Descriptor, error) {
	if strings.TrimSpace(path) == "" {
		return nil, update.Validationf("handoff descriptor path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, update.NotFoundf("handoff descriptor %s", path)
		}
		return nil, fmt.Errorf("reading handoff descriptor: %w", err)
	}

	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, update.Validationf("malformed handoff descriptor %s: %v", path, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Remove deletes the descriptor. Missing files are not an error.
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing handoff descriptor: %w", err)
	}
	return nil
}
