package process

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// StartDetached starts path with args as an independent process that is
// never waited on, and returns its pid.
func StartDetached(path string, args []string) (int, error) {
	cmd := exec.Command(path, args...)
	cmd.Dir = filepath.Dir(path)
	cmd.Env = os.Environ()
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting %s: %w", path, err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("releasing %s: %w", path, err)
	}
	return pid, nil
}
