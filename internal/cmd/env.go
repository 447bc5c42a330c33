package cmd

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/adamancini/updraft/internal/config"
	"github.com/adamancini/updraft/internal/logging"
	"github.com/adamancini/updraft/internal/output"
	"github.com/adamancini/updraft/internal/update"
)

// env is what every subcommand needs: settings, a logger and an output writer.
type env struct {
	cfg *config.Config
	log *logrus.Logger
	out *output.Writer
}

func setup(cmd *cobra.Command) (*env, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}

	path, err := config.Find(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logFmt := cfg.LogFormat
	if logFormat != "" {
		logFmt = logFormat
	}
	log, err := logging.New(logging.Options{
		Level:  level,
		Format: logging.Format(logFmt),
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	if path != "" {
		log.WithField("config", path).Debug("Loaded config")
	}
	if cfg.InsecureSkipVerify {
		log.Warn("TLS certificate verification is disabled; use this only against development servers")
	}

	return &env{
		cfg: cfg,
		log: log,
		out: output.NewWriter(cmd.OutOrStdout(), format),
	}, nil
}

func (e *env) httpClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if e.cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in for development servers
	}
	return &http.Client{
		Transport: transport,
		Timeout:   time.Duration(e.cfg.RequestTimeout),
	}
}

func (e *env) platform() update.Platform {
	return update.Platform{OS: e.cfg.Platform, Arch: e.cfg.Architecture}
}

func (e *env) checker() (*update.HTTPChecker, error) {
	if err := e.cfg.RequireServer(); err != nil {
		return nil, fmt.Errorf("update server is not configured:\n%w", err)
	}
	return update.NewHTTPChecker(e.cfg.ServerURL, e.cfg.ApplicationID, e.cfg.CurrentVersion, e.log).
		WithPlatform(e.platform()).
		WithLanguage(e.cfg.Language).
		WithClientID(e.cfg.ClientID).
		WithHTTPClient(e.httpClient()), nil
}

func (e *env) downloader() *update.HTTPDownloader {
	return update.NewHTTPDownloader(
		update.WithMaxRetries(e.cfg.MaxRetries),
		update.WithRetryBaseDelay(time.Duration(e.cfg.RetryBaseDelay)),
		update.WithDownloadClient(e.httpClient()),
		update.WithDownloadLogger(e.log),
	)
}

// observe logs every stage transition.
func (e *env) observe(o update.Outcome) {
	entry := e.log.WithField("status", o.Status)
	if o.Descriptor != nil {
		entry = entry.WithField("version", o.Descriptor.Version)
	}
	switch o.Status {
	case update.StatusDownloading, update.StatusInstalling:
		entry.WithField("progress", o.Progress).Debug("Update progress")
	case update.StatusFailed:
		entry.WithError(o.Err).Debug("Update failed")
	default:
		entry.Info(o.String())
	}
}

// report writes o and turns a failed outcome into the command's error.
func (e *env) report(o update.Outcome) error {
	if err := e.out.Write(o); err != nil {
		return err
	}
	if o.Status != update.StatusFailed {
		return nil
	}
	if o.Err != nil {
		return o.Err
	}
	return errors.New(o.Message)
}
