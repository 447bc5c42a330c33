package install

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// archiveSuffixes maps recognized archive extensions to their extractor.
var archiveSuffixes = []struct {
	suffix  string
	extract func(ctx context.Context, archive, dir string) error
}{
	{".zip", extractZip},
	{".tar.gz", extractTarGz},
	{".tgz", extractTarGz},
	{".tar.zst", extractTarZst},
	{".tzst", extractTarZst},
}

func isArchive(path string) bool {
	return extractorFor(path) != nil
}

func extractorFor(path string) func(ctx context.Context, archive, dir string) error {
	lower := strings.ToLower(path)
	for _, a := range archiveSuffixes {
		if strings.HasSuffix(lower, a.suffix) {
			return a.extract
		}
	}
	return nil
}

// Extract unpacks archive into dir. Entries that would land outside dir are
// rejected.
func Extract(ctx context.Context, archive, dir string) error {
	extract := extractorFor(archive)
	if extract == nil {
		return fmt.Errorf("unsupported archive format: %s", filepath.Base(archive))
	}
	return extract(ctx, archive, dir)
}

func extractZip(ctx context.Context, archive, dir string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("failed to open zip %s: %w", archive, err)
	}
	defer zr.Close()

	for _, file := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		path, err := safeJoin(dir, file.Name)
		if err != nil {
			return err
		}

		mode := file.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(path, 0o755); err != nil {
				return err
			}
		case mode.IsRegular():
			if err := extractZipFile(file, path); err != nil {
				return err
			}
		}
	}
	return nil
}

func extractZipFile(file *zip.File, path string) (err error) {
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s in archive: %w", file.Name, err)
	}
	defer rc.Close()

	return writeFile(path, rc, file.Mode().Perm())
}

func extractTarGz(ctx context.Context, archive, dir string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	return extractTar(ctx, gz, dir)
}

func extractTarZst(ctx context.Context, archive, dir string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to open zstd stream: %w", err)
	}
	defer zr.Close()

	return extractTar(ctx, zr, dir)
}

func extractTar(ctx context.Context, r io.Reader, dir string) error {
	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := tr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read tar entry: %w", err)
		}

		path, err := safeJoin(dir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			err = os.MkdirAll(path, 0o755)
		case tar.TypeReg:
			err = writeFile(path, tr, header.FileInfo().Mode().Perm())
		default:
			// Links and devices are not part of an application payload.
			continue
		}
		if err != nil {
			return err
		}
	}
}

func safeJoin(dir, name string) (string, error) {
	path := filepath.Join(dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes the extraction directory", name)
	}
	return path, nil
}

func writeFile(path string, r io.Reader, perm os.FileMode) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o644
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
