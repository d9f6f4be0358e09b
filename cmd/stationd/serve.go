// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/station/internal/config"
	"github.com/tomtom215/station/internal/logging"
	"github.com/tomtom215/station/internal/platform"
	"github.com/tomtom215/station/internal/station"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the station until SIGINT or SIGTERM",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(flags)
		},
	}
	cmd.Flags().StringVar(&flags.host, "host", "", "bind address (default all interfaces)")
	return cmd
}

func runServe(flags *rootFlags) error {
	// Settings decide the log level and file, so load them before the
	// adapter that owns the log file is built.
	settings, err := config.NewStore(platform.NewCLI(cliConfig(flags, "")), nil).Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:     settings.Logging.Level,
		Format:    settings.Logging.Format,
		Timestamp: true,
	})

	logFile := flags.logFile
	if logFile == "" {
		logFile = settings.Logging.File
	}
	adapter := platform.NewCLI(cliConfig(flags, logFile))
	defer func() {
		if err := adapter.Close(); err != nil {
			logging.Warn().Err(err).Msg("failed to close log file")
		}
	}()

	srv := station.New(station.Options{
		Adapter: adapter,
		Version: version,
		Host:    flags.host,
	})

	logging.Info().
		Str("version", version).
		Str("commit", commit).
		Str("settings", flags.settingsFile).
		Msg("starting station")

	if !srv.Start() {
		return errors.New("station failed to start, see log for details")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			logging.Info().Msg("received SIGHUP, restarting station")
			if !srv.Restart() {
				return errors.New("station failed to restart, see log for details")
			}
			continue
		}
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		break
	}

	srv.Stop()
	logging.Info().Msg("station stopped gracefully")
	return nil
}

func cliConfig(flags *rootFlags, logFile string) platform.CLIConfig {
	return platform.CLIConfig{
		SettingsFile:  flags.settingsFile,
		AssetDir:      flags.assetDir,
		LogFile:       logFile,
		LogMaxSizeMB:  flags.logMaxSizeMB,
		LogMaxBackups: flags.logMaxBackups,
		LogMaxAgeDays: flags.logMaxAgeDays,
		LogCompress:   true,
	}
}
