package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/adamancini/updraft/internal/logging"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3
	// DefaultRetryBaseDelay is the delay before the first retry; it doubles per retry.
	DefaultRetryBaseDelay = 2 * time.Second
	// DefaultDownloadTimeout bounds one download attempt.
	DefaultDownloadTimeout = 5 * time.Minute

	chunkSize     = 8 * 1024
	partialSuffix = ".partial"
)

// Downloader fetches an update artifact into a directory and returns its path.
type Downloader interface {
	Download(ctx context.Context, desc *UpdateDescriptor, destDir string, progress ProgressFunc) (string, error)
}

// HTTPDownloader downloads artifacts over HTTP with retry and verification.
type HTTPDownloader struct {
	client     *http.Client
	maxRetries uint64
	baseDelay  time.Duration
	log        logrus.FieldLogger
}

// DownloaderOption configures an HTTPDownloader.
type DownloaderOption func(*HTTPDownloader)

// WithMaxRetries sets how many times a failed download is retried.
func WithMaxRetries(n int) DownloaderOption {
	return func(d *HTTPDownloader) {
		d.maxRetries = uint64(max(0, n))
	}
}

// WithRetryBaseDelay sets the first retry delay.
func WithRetryBaseDelay(delay time.Duration) DownloaderOption {
	return func(d *HTTPDownloader) {
		if delay > 0 {
			d.baseDelay = delay
		}
	}
}

// WithDownloadClient replaces the HTTP client.
func WithDownloadClient(client *http.Client) DownloaderOption {
	return func(d *HTTPDownloader) {
		if client != nil {
			d.client = client
		}
	}
}

// WithDownloadLogger sets the logger.
func WithDownloadLogger(log logrus.FieldLogger) DownloaderOption {
	return func(d *HTTPDownloader) {
		d.log = logging.OrDiscard(log)
	}
}

// NewHTTPDownloader creates a new HTTP downloader
func NewHTTPDownloader(opts ...DownloaderOption) *HTTPDownloader {
	d := &HTTPDownloader{
		client: &http.Client{
			Timeout: DefaultDownloadTimeout,
		},
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultRetryBaseDelay,
		log:        logging.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches desc.DownloadURL into destDir, creating it if needed.
// Every failed attempt removes its partial file. The error of the last
// attempt is returned once retries are exhausted; validation errors and
// cancellation are not retried.
func (d *HTTPDownloader) Download(ctx context.Context, desc *UpdateDescriptor, destDir string, progress ProgressFunc) (string, error) {
	if desc == nil {
		return "", Validationf("update descriptor is required")
	}
	if strings.TrimSpace(desc.DownloadURL) == "" {
		return "", Validationf("update %s has no download url", desc.Version)
	}
	if destDir == "" {
		return "", Validationf("destination directory is required")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	dest := filepath.Join(destDir, ArtifactFileName(desc))
	log := d.log.WithFields(logrus.Fields{
		"url":  desc.DownloadURL,
		"dest": dest,
	})

	attempt := 0
	op := func() error {
		attempt++
		log.WithField("attempt", attempt).Debug("Downloading update artifact")
		err := d.fetch(ctx, desc, dest, progress)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if errors.Is(err, ErrValidation) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"retryIn": wait,
		}).Warn("Download attempt failed")
	}

	if err := backoff.RetryNotify(op, d.policy(ctx), notify); err != nil {
		return "", fmt.Errorf("download of %s failed after %d attempt(s): %w", desc.DownloadURL, attempt, err)
	}

	log.WithField("attempts", attempt).Info("Download complete")
	return dest, nil
}

func (d *HTTPDownloader) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = d.baseDelay << 10
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, d.maxRetries), ctx)
}

// fetch performs one attempt. On failure nothing is left at dest or at its
// partial path.
func (d *HTTPDownloader) fetch(ctx context.Context, desc *UpdateDescriptor, dest string, progress ProgressFunc) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.DownloadURL, nil)
	if err != nil {
		return Validationf("invalid download url %q: %v", desc.DownloadURL, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	total := resp.ContentLength
	if total <= 0 {
		total = desc.FileSizeBytes
	}
	expected := desc.FileSizeBytes
	if expected <= 0 {
		expected = resp.ContentLength
	}

	partial := dest + partialSuffix
	f, err := os.OpenFile(partial, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", partial, err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(partial)
			os.Remove(dest)
		}
	}()

	written, err := copyWithProgress(ctx, f, resp.Body, total, progress)
	if err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", partial, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", partial, err)
	}

	if expected > 0 && written != expected {
		return &IntegrityError{
			Path:     dest,
			Reason:   "size",
			Expected: strconv.FormatInt(expected, 10),
			Got:      strconv.FormatInt(written, 10),
		}
	}

	if desc.ContentHash != "" && !VerifyFile(partial, desc.ContentHash) {
		got, _ := HashFile(partial)
		return &IntegrityError{
			Path:     dest,
			Reason:   "hash",
			Expected: strings.ToLower(normalizeHash(desc.ContentHash)),
			Got:      got,
		}
	}

	if err = os.Rename(partial, dest); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}

	if progress != nil {
		progress(100)
	}
	return nil
}

// copyWithProgress streams src to dst in fixed chunks, reporting each whole
// percent crossed below 100. The context is checked before every read.
func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64
	last := 0

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("write failed: %w", err)
			}
			written += int64(n)

			if progress != nil && total > 0 {
				pct := int(min(written*100/total, 99))
				for last < pct {
					last++
					progress(last)
				}
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, fmt.Errorf("read failed: %w", rerr)
		}
	}
}

// ArtifactFileName derives a local file name from the download URL, falling
// back to update-<version>.bin.
func ArtifactFileName(desc *UpdateDescriptor) string {
	if u, err := url.Parse(desc.DownloadURL); err == nil {
		name := path.Base(u.Path)
		if name != "" && name != "." && name != "/" && !strings.ContainsAny(name, `\:`) {
			return name
		}
	}
	version := NormalizeVersion(desc.Version)
	if version == "" {
		version = "latest"
	}
	return "update-" + version + ".bin"
}
