// Package cmd implements the CLI commands for BlogBook using Cobra.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gaurav-prasanna/blogbook/config"
	"github.com/spf13/cobra"
)

// Persistent flag variables.
var (
	flagConfig   string
	flagCacheDir string
	flagNoCache  bool
	flagVerbose  bool
)

// Loaded by setup before any subcommand runs.
var (
	settings *config.Config
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "blogbook",
	Short: "BlogBook — package a blog into an EPUB e-book",
	Long: `BlogBook walks the posts of a Blogger, WordPress or feed-based blog and
packages them, images included, into a single EPUB 3 file.

Usage:
  blogbook convert <url> [flags]
  blogbook preview <url> [flags]`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&flagCacheDir, "cache-dir", "", "Directory for cached pages (default .cache)")
	rootCmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false, "Always download pages")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log every chapter and resource")
}

// setup loads configuration and installs the logger.
func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagCacheDir != "" {
		cfg.CacheDir = flagCacheDir
	}
	if flagNoCache {
		cfg.NoCache = true
	}

	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	settings = cfg
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
