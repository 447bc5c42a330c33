// Command updraft-launcher applies an update handed off by a running
// application. It takes the handoff descriptor path as its only argument,
// waits for the application to exit, installs the artifact and optionally
// restarts the application.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adamancini/updraft/internal/launcher"
	"github.com/adamancini/updraft/internal/logging"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		logFile   string
		logLevel  string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:          "updraft-launcher <descriptor>",
		Short:        "Apply an update after the application exits",
		Version:      version,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := io.Writer(cmd.ErrOrStderr())
			if logFile != "" {
				if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
					return fmt.Errorf("creating log directory: %w", err)
				}
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
				defer f.Close()
				out = io.MultiWriter(f, out)
			}

			log, err := logging.New(logging.Options{
				Level:  logLevel,
				Format: logging.Format(logFormat),
				Output: out,
			})
			if err != nil {
				return err
			}

			if err := launcher.New(log).Run(cmd.Context(), args[0]); err != nil {
				log.WithError(err).Error("Update failed")
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", filepath.Join(os.TempDir(), "updraft-launcher.log"), "Append logs to this file as well as stderr (empty disables)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "Log format: text, json")

	return cmd
}
