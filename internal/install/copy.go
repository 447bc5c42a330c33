package install

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// CreateBackup copies the file or directory at target to backupPath. It
// returns false without error when target does not exist.
func CreateBackup(ctx context.Context, target, backupPath string) (bool, error) {
	if target == "" || backupPath == "" {
		return false, fmt.Errorf("backup requires both a target and a backup path")
	}
	if within(backupPath, target) {
		return false, fmt.Errorf("backup path %s is inside %s", backupPath, target)
	}
	return copyPath(ctx, target, backupPath)
}

// RestoreBackup copies backupPath back over target. It returns false without
// error when the backup does not exist.
func RestoreBackup(ctx context.Context, backupPath, target string) (bool, error) {
	if target == "" || backupPath == "" {
		return false, fmt.Errorf("restore requires both a backup path and a target")
	}
	return copyPath(ctx, backupPath, target)
}

func copyPath(ctx context.Context, src, dst string) (bool, error) {
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return true, copyTree(ctx, src, dst)
	}
	return true, copyFile(src, dst, info.Mode().Perm())
}

// copyTree overlays src onto dst, overwriting files that exist in both.
func copyTree(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return copyFile(path, target, info.Mode().Perm())
		default:
			return nil
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	// OpenFile does not change the mode of an existing file.
	return out.Chmod(perm)
}

// within reports whether path is dir or lies below it.
func within(path, dir string) bool {
	absPath, err1 := filepath.Abs(path)
	absDir, err2 := filepath.Abs(dir)
	if err1 != nil || err2 != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
