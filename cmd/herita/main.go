// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/blinklabs-io/herita/internal/config"
	"github.com/blinklabs-io/herita/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

const (
	programName = "herita"
)

func slogPrintf(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...),
		"component", programName,
	)
}

type globalFlags struct {
	configFile      string
	dataDir         string
	metadataBackend string
	blobBackend     string
	debug           bool
}

func commonRun(w io.Writer, debug bool) *slog.Logger {
	// Configure logger
	logLevel := slog.LevelInfo
	addSource := false
	if debug {
		logLevel = slog.LevelDebug
		addSource = true
	}
	logger := slog.New(
		slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource: addSource,
			Level:     logLevel,
		}),
	)
	slog.SetDefault(logger)
	// Configure max processes with our logger wrapper, toss undo func
	_, err := maxprocs.Set(maxprocs.Logger(slogPrintf))
	if err != nil {
		// If we hit this, something really wrong happened
		slog.Error(err.Error())
		os.Exit(1)
	}
	logger.Debug(
		"version: "+version.GetVersionString(),
		"component", programName,
	)
	return logger
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "HeritaESG certification registry",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRun(cmd, flags)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().
		BoolVarP(&flags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&flags.configFile, "config", "", "path to config file")
	rootCmd.PersistentFlags().
		StringVarP(&flags.dataDir, "data-dir", "d", "", "database directory, overrides databasePath")
	rootCmd.PersistentFlags().
		StringVarP(&flags.metadataBackend, "metadata", "m", "", "metadata store backend: sqlite, postgres or mysql")
	rootCmd.PersistentFlags().
		StringVarP(&flags.blobBackend, "blob", "b", "", "blob store backend")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(flags.configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		// Override config with command line flags
		if flags.dataDir != "" {
			cfg.DatabasePath = flags.dataDir
		}
		if flags.metadataBackend != "" {
			cfg.MetadataBackend = flags.metadataBackend
		}
		if flags.blobBackend != "" {
			cfg.BlobBackend = flags.blobBackend
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	}

	// Subcommands
	rootCmd.AddCommand(serveCommand(flags))
	rootCmd.AddCommand(issueCommand(flags))
	rootCmd.AddCommand(verifyCommand(flags))
	rootCmd.AddCommand(updateScoreCommand(flags))
	rootCmd.AddCommand(transferCommand(flags))
	rootCmd.AddCommand(showCommand(flags))
	rootCmd.AddCommand(listCommand(flags))
	rootCmd.AddCommand(scoreCommand(flags))
	rootCmd.AddCommand(holdingsCommand(flags))
	rootCmd.AddCommand(adminCommand(flags))
	rootCmd.AddCommand(tokenCommand())
	rootCmd.AddCommand(versionCommand())
	return rootCmd
}

func main() {
	// Execute cobra command
	if err := newRootCommand().Execute(); err != nil {
		// NOTE: we purposely don't display the error, since cobra will have already displayed it
		os.Exit(1)
	}
}
