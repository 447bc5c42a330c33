package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	outputFormat string
	configPath   string
	logLevel     string
	logFormat    string
)

// BuildInfo is stamped into the binary at release time.
type BuildInfo struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
}

// Execute runs the updraft CLI until ctx is cancelled.
func Execute(ctx context.Context, info BuildInfo) error {
	return NewRootCmd(info).ExecuteContext(ctx)
}

// NewRootCmd builds the command tree.
func NewRootCmd(info BuildInfo) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "updraft",
		Short: "Check for, download and install application updates",
		Long: `updraft keeps an application current against an update server.

It checks for newer versions, downloads and verifies the artifact, and hands
the install off to updraft-launcher so the running program can be replaced.`,
		Version:      info.Version,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: $UPDRAFT_CONFIG, then standard locations)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text, json (overrides config)")

	// Add subcommands
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newInstallCmd())
	rootCmd.AddCommand(newBackupCmd())
	rootCmd.AddCommand(newVersionCmd(info))
	rootCmd.AddCommand(newCompletionCmd())

	// Register completion function for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd
}
