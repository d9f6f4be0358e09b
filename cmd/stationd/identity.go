// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tomtom215/station/internal/config"
	"github.com/tomtom215/station/internal/identity"
	"github.com/tomtom215/station/internal/platform"
)

func newIdentityCmd(flags *rootFlags) *cobra.Command {
	var showSecret bool
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Print the station identity, generating it on first run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.NewStore(platform.NewCLI(cliConfig(flags, "")), nil).Load()
			if err != nil {
				return err
			}
			return printIdentity(cmd.OutOrStdout(), settings, showSecret)
		},
	}
	cmd.Flags().BoolVar(&showSecret, "show-nsec", false, "also print the private key")
	return cmd
}

func printIdentity(w io.Writer, settings *config.Settings, showSecret bool) error {
	hex, err := identity.NpubToHex(settings.Identity.Npub)
	if err != nil {
		return fmt.Errorf("invalid station npub: %w", err)
	}
	fmt.Fprintf(w, "callsign: %s\n", settings.Callsign())
	fmt.Fprintf(w, "npub:     %s\n", settings.Identity.Npub)
	fmt.Fprintf(w, "hex:      %s\n", hex)
	if showSecret {
		fmt.Fprintf(w, "nsec:     %s\n", settings.Identity.Nsec)
	}
	return nil
}
