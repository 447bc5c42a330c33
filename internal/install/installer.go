package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adamancini/updraft/internal/update"
)

func isInstaller(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msi", ".exe", ".pkg":
		return true
	}
	return false
}

// installerCommand returns the silent-install invocation for artifactPath.
// logPath is non-empty when the installer writes its own log.
func installerCommand(artifactPath, tempDir string) (name string, args []string, logPath string) {
	switch strings.ToLower(filepath.Ext(artifactPath)) {
	case ".msi":
		dir := tempDir
		if dir == "" {
			dir = os.TempDir()
		}
		logPath = filepath.Join(dir, fmt.Sprintf("updraft-msi-%s.log", time.Now().Format("20060102-150405")))
		return "msiexec", []string{"/i", artifactPath, "/quiet", "/norestart", "/log", logPath}, logPath
	case ".pkg":
		return "installer", []string{"-pkg", artifactPath, "-target", "/"}, ""
	default:
		return artifactPath, []string{"/S", "/quiet", "/norestart"}, ""
	}
}

// runInstaller runs a native installer unattended.
func (e *Engine) runInstaller(ctx context.Context, artifactPath string) error {
	name, args, logPath := installerCommand(artifactPath, e.tempDir)
	e.log.WithField("command", name).WithField("args", args).Info("Running installer")

	res, err := e.runner.Run(ctx, name, args...)
	if err == nil && res.ExitCode == 0 {
		if logPath != "" {
			_ = os.Remove(logPath)
		}
		return nil
	}

	perr := &update.ProcessError{
		Command:  name,
		ExitCode: res.ExitCode,
		Stderr:   res.Stderr,
		Cause:    err,
	}
	if logPath != "" {
		if data, rerr := os.ReadFile(logPath); rerr == nil {
			perr.InstallerLog = string(data)
		}
	}
	return perr
}
