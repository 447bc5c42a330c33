package install

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCreateAndRestoreBackup_File(t *testing.T) {
	dir := t.TempDir()
	target := touch(t, dir, "app", "v1")
	backupPath := filepath.Join(t.TempDir(), "backups", "app")

	ok, err := CreateBackup(context.Background(), target, backupPath)
	if err != nil || !ok {
		t.Fatalf("CreateBackup() = %v, %v", ok, err)
	}
	if got := readFile(t, backupPath); got != "v1" {
		t.Errorf("backup = %q, want v1", got)
	}

	if err := os.WriteFile(target, []byte("v2 broken"), 0644); err != nil {
		t.Fatal(err)
	}

	ok, err = RestoreBackup(context.Background(), backupPath, target)
	if err != nil || !ok {
		t.Fatalf("RestoreBackup() = %v, %v", ok, err)
	}
	if got := readFile(t, target); got != "v1" {
		t.Errorf("restored = %q, want v1", got)
	}
}

func TestCreateAndRestoreBackup_Directory(t *testing.T) {
	target := t.TempDir()
	touch(t, target, "app", "bin v1")
	touch(t, target, "lib/core.so", "lib v1")
	backupPath := filepath.Join(t.TempDir(), "2024-01-01-000000-1.0.0")

	ok, err := CreateBackup(context.Background(), target, backupPath)
	if err != nil || !ok {
		t.Fatalf("CreateBackup() = %v, %v", ok, err)
	}
	if got := readFile(t, filepath.Join(backupPath, "lib", "core.so")); got != "lib v1" {
		t.Errorf("backup lib/core.so = %q", got)
	}

	touch(t, target, "lib/core.so", "lib v2")
	touch(t, target, "app", "bin v2")

	ok, err = RestoreBackup(context.Background(), backupPath, target)
	if err != nil || !ok {
		t.Fatalf("RestoreBackup() = %v, %v", ok, err)
	}
	if got := readFile(t, filepath.Join(target, "lib", "core.so")); got != "lib v1" {
		t.Errorf("restored lib/core.so = %q", got)
	}
	if got := readFile(t, filepath.Join(target, "app")); got != "bin v1" {
		t.Errorf("restored app = %q", got)
	}
}

func TestBackup_MissingSource(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	dst := filepath.Join(t.TempDir(), "dst")

	ok, err := CreateBackup(context.Background(), missing, dst)
	if err != nil || ok {
		t.Errorf("CreateBackup() = %v, %v; want false, nil", ok, err)
	}
	ok, err = RestoreBackup(context.Background(), missing, dst)
	if err != nil || ok {
		t.Errorf("RestoreBackup() = %v, %v; want false, nil", ok, err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("destination created for missing source")
	}
}

func TestCreateBackup_InsideTarget(t *testing.T) {
	target := t.TempDir()
	touch(t, target, "app", "x")

	if _, err := CreateBackup(context.Background(), target, filepath.Join(target, "backups", "1")); err == nil {
		t.Error("CreateBackup() into its own target should fail")
	}
}

func TestCopyFile_PreservesMode(t *testing.T) {
	dir := t.TempDir()
	src := touch(t, dir, "src", "x")
	if err := os.Chmod(src, 0755); err != nil {
		t.Fatal(err)
	}
	dst := touch(t, dir, "dst", "old")

	if err := copyFile(src, dst, 0755); err != nil {
		t.Fatalf("copyFile() error = %v", err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0100 == 0 {
		t.Errorf("mode = %v, want executable", info.Mode())
	}
}
