package selfupdate

import (
	"os"
	"path/filepath"
)

// resolveExecutable returns the running executable with symlinks resolved.
func resolveExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return exe, nil
}
