// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package platform

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tomtom215/station/internal/fsutil"
	"github.com/tomtom215/station/internal/identity"
)

// CLIConfig configures the headless host.
type CLIConfig struct {
	// SettingsFile is the YAML settings document.
	SettingsFile string

	// AssetDir serves LoadAsset. Empty disables bundled assets.
	AssetDir string

	// LogFile receives the sink copy of every log line. Empty disables it.
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// CLI is the Adapter used by stationd: settings in a YAML file, assets from
// a directory and the log sink in a rotating file.
type CLI struct {
	cfg    CLIConfig
	assets fs.FS
	logs   *lumberjack.Logger
}

var _ Adapter = (*CLI)(nil)

// NewCLI creates the CLI adapter.
func NewCLI(cfg CLIConfig) *CLI {
	c := &CLI{cfg: cfg}
	if cfg.AssetDir != "" {
		c.assets = os.DirFS(cfg.AssetDir)
	}
	if cfg.LogFile != "" {
		c.logs = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   cfg.LogCompress,
		}
	}
	return c
}

// Log appends one line to the rotating log file.
func (c *CLI) Log(level, message string) {
	if c.logs == nil {
		return
	}
	line := time.Now().UTC().Format(time.RFC3339) + " " + strings.ToUpper(level) + " " + message + "\n"
	// The sink must not log through the logger it serves; write errors are
	// dropped.
	_, _ = c.logs.Write([]byte(line))
}

// LoadAsset reads path from the asset directory. Paths escaping the
// directory are refused.
func (c *CLI) LoadAsset(path string) []byte {
	if c.assets == nil {
		return nil
	}
	path = strings.TrimPrefix(path, "/")
	if !fs.ValidPath(path) {
		return nil
	}
	data, err := fs.ReadFile(c.assets, path)
	if err != nil {
		return nil
	}
	return data
}

// GenerateKeyPair creates a fresh secp256k1 key pair.
func (c *CLI) GenerateKeyPair() (identity.KeyPair, error) {
	return identity.GenerateKeyPair()
}

// LoadSettings parses the YAML settings file. A missing file means nothing
// has been saved yet.
func (c *CLI) LoadSettings() (map[string]interface{}, error) {
	if c.cfg.SettingsFile == "" {
		return nil, nil
	}
	if _, err := os.Stat(c.cfg.SettingsFile); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(c.cfg.SettingsFile), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load settings file %s: %w", c.cfg.SettingsFile, err)
	}
	return k.Raw(), nil
}

// SaveSettings writes doc as YAML, replacing the file atomically.
func (c *CLI) SaveSettings(doc map[string]interface{}) error {
	if c.cfg.SettingsFile == "" {
		return errors.New("no settings file configured")
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(doc, ""), nil); err != nil {
		return fmt.Errorf("failed to load settings document: %w", err)
	}
	data, err := k.Marshal(yaml.Parser())
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	// The file holds the station nsec.
	return fsutil.WriteFileAtomic(c.cfg.SettingsFile, data, 0o600)
}

// OnStart records the bound port in the log file.
func (c *CLI) OnStart(port int) {
	c.Log("info", fmt.Sprintf("station started on port %d", port))
}

// OnStop records the stop in the log file.
func (c *CLI) OnStop() {
	c.Log("info", "station stopped")
}

// HandleRoute implements Adapter; the CLI host serves no extra routes.
func (*CLI) HandleRoute(http.ResponseWriter, *http.Request) bool { return false }

// HandleMessage implements Adapter; the CLI host handles no extra frames.
func (*CLI) HandleMessage(context.Context, string, string, []byte) bool { return false }

// Close flushes and closes the log file.
func (c *CLI) Close() error {
	if c.logs == nil {
		return nil
	}
	return c.logs.Close()
}
