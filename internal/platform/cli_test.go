// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package platform

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomtom215/station/internal/config"
	"github.com/tomtom215/station/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

func TestCLI_SettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cli := NewCLI(CLIConfig{SettingsFile: filepath.Join(dir, "station.yaml")})

	doc, err := cli.LoadSettings()
	if err != nil || doc != nil {
		t.Fatalf("LoadSettings() before save = %v, %v", doc, err)
	}

	store := config.NewStore(cli, cli.GenerateKeyPair, config.WithoutEnv())
	first, err := store.Load()
	if err != nil {
		t.Fatalf("first Load() error = %v", err)
	}
	if first.Identity.Npub == "" || first.Identity.Nsec == "" {
		t.Fatal("identity not generated")
	}

	info, err := os.Stat(filepath.Join(dir, "station.yaml"))
	if err != nil {
		t.Fatalf("settings file not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("settings file mode = %v", info.Mode().Perm())
	}

	next := first.CopyWith(func(s *config.Settings) {
		s.Network.Port = 9191
		s.Station.Name = "Hilltop"
	})
	if err := store.Save(next); err != nil {
		t.Fatal(err)
	}

	second, err := store.Load()
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if second.Identity != first.Identity {
		t.Error("identity changed across loads")
	}
	if second.Network.Port != 9191 || second.Station.Name != "Hilltop" {
		t.Errorf("reloaded = port %d name %q", second.Network.Port, second.Station.Name)
	}
	if second.Network.RequestTimeout != first.Network.RequestTimeout {
		t.Errorf("request timeout = %v, want %v", second.Network.RequestTimeout, first.Network.RequestTimeout)
	}
	if second.Callsign() != first.Callsign() {
		t.Errorf("callsign = %s, want %s", second.Callsign(), first.Callsign())
	}
}

func TestCLI_LoadSettingsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station.yaml")
	if err := os.WriteFile(path, []byte("network: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewCLI(CLIConfig{SettingsFile: path}).LoadSettings(); err == nil {
		t.Error("LoadSettings() accepted malformed YAML")
	}
}

func TestCLI_LoadAsset(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "css"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "css", "site.css"), []byte("body{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	cli := NewCLI(CLIConfig{AssetDir: dir})

	tests := []struct {
		path string
		want string
	}{
		{"css/site.css", "body{}"},
		{"/css/site.css", "body{}"},
		{"missing.html", ""},
		{"../etc/passwd", ""},
	}
	for _, tt := range tests {
		if got := string(cli.LoadAsset(tt.path)); got != tt.want {
			t.Errorf("LoadAsset(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}

	if NewCLI(CLIConfig{}).LoadAsset("css/site.css") != nil {
		t.Error("asset served without an asset dir")
	}
}

func TestCLI_LogSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "station.log")
	cli := NewCLI(CLIConfig{LogFile: path, LogMaxSizeMB: 1})
	t.Cleanup(func() { _ = cli.Close() })

	cli.Log("warn", "disk nearly full")
	cli.OnStart(8080)
	if err := cli.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, "WARN disk nearly full") || !strings.Contains(out, "station started on port 8080") {
		t.Errorf("log file = %q", out)
	}
}

func TestNop(t *testing.T) {
	var a Adapter = &Nop{}
	if doc, _ := a.LoadSettings(); doc != nil {
		t.Error("fresh Nop has settings")
	}
	if err := a.SaveSettings(map[string]interface{}{"data_dir": "x"}); err != nil {
		t.Fatal(err)
	}
	if doc, _ := a.LoadSettings(); doc["data_dir"] != "x" {
		t.Errorf("settings = %v", doc)
	}
	if a.HandleRoute(nil, nil) || a.LoadAsset("index.html") != nil {
		t.Error("Nop hooks should decline")
	}
}
