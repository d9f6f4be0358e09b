// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomtom215/station/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

func TestIdentityCommand_GeneratesAndPersists(t *testing.T) {
	settingsFile := filepath.Join(t.TempDir(), "station.yaml")

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&out)
		cmd.SetArgs(append([]string{"--config", settingsFile}, args...))
		if err := cmd.Execute(); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out.String()
	}

	first := run("identity")
	if !strings.Contains(first, "callsign: X3") {
		t.Errorf("missing callsign line:\n%s", first)
	}
	if strings.Contains(first, "nsec") {
		t.Error("nsec printed without --show-nsec")
	}

	info, err := os.Stat(settingsFile)
	if err != nil {
		t.Fatalf("settings file not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("settings file mode = %o, want 600", info.Mode().Perm())
	}

	second := run("identity", "--show-nsec")
	if !strings.HasPrefix(second, first) {
		t.Errorf("identity changed between runs:\n%s\n%s", first, second)
	}
	if !strings.Contains(second, "nsec:     nsec1") {
		t.Errorf("missing nsec line:\n%s", second)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "stationd dev (unknown) protocol 1.0") {
		t.Errorf("unexpected version output %q", out.String())
	}
}
