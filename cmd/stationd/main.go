// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Set at build time:
//
//	go build -ldflags "-X main.version=1.4.0 -X main.commit=$(git rev-parse --short HEAD)"
var (
	version = "dev"
	commit  = "unknown"
)

type rootFlags struct {
	settingsFile  string
	assetDir      string
	logFile       string
	logMaxSizeMB  int
	logMaxBackups int
	logMaxAgeDays int
	host          string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "stationd",
		Short:         "Self-hosted peer station server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.settingsFile, "config", "c", "station.yaml", "settings file (YAML, created on first run)")
	pf.StringVar(&flags.assetDir, "assets", "", "directory of bundled web assets")
	pf.StringVar(&flags.logFile, "log-file", "", "rotating log file (overrides logging.file)")
	pf.IntVar(&flags.logMaxSizeMB, "log-max-size", 10, "log file size in MB before rotation")
	pf.IntVar(&flags.logMaxBackups, "log-max-backups", 5, "rotated log files to keep")
	pf.IntVar(&flags.logMaxAgeDays, "log-max-age", 30, "days to keep rotated log files")

	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newIdentityCmd(flags))
	root.AddCommand(newVersionCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Stderr.WriteString("stationd: " + err.Error() + "\n")
		os.Exit(1)
	}
}
