package install

import (
	"context"
	"runtime"
	"strings"
	"testing"
)

func TestDefaultCommandRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
	r := DefaultCommandRunner{}

	res, err := r.Run(context.Background(), "/bin/sh", "-c", "echo out; echo err >&2; exit 3")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "out" || strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("Run() = %+v", res)
	}

	res, err = r.Run(context.Background(), "/bin/sh", "-c", "exit 0")
	if err != nil || res.ExitCode != 0 {
		t.Errorf("Run() = %+v, %v", res, err)
	}

	if _, err := r.Run(context.Background(), "/nonexistent/updraft-test-binary"); err == nil {
		t.Error("Run() of missing binary should fail to start")
	}
}
