// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package platform

import (
	"context"
	"net/http"

	"github.com/tomtom215/station/internal/identity"
)

// Adapter is everything the station needs from its host. The station core
// never touches the host environment directly.
type Adapter interface {
	// Log receives a plain copy of every log event.
	Log(level, message string)

	// LoadAsset returns a bundled asset, or nil when it does not exist.
	LoadAsset(path string) []byte

	// GenerateKeyPair creates the station identity on first run.
	GenerateKeyPair() (identity.KeyPair, error)

	// LoadSettings returns the persisted settings document, or nil when
	// nothing has been saved yet.
	LoadSettings() (map[string]interface{}, error)

	// SaveSettings persists the settings document.
	SaveSettings(doc map[string]interface{}) error

	// OnStart runs after the listener is bound.
	OnStart(port int)

	// OnStop runs after the listener is closed.
	OnStop()

	// HandleRoute may serve a request before the route table. It returns
	// true when it wrote a response.
	HandleRoute(w http.ResponseWriter, r *http.Request) bool

	// HandleMessage receives typed WebSocket frames the station does not
	// know. It returns true when it handled the frame.
	HandleMessage(ctx context.Context, sessionID, msgType string, raw []byte) bool
}

// Nop implements every hook as a no-op with in-memory settings. Embed it to
// override only what a host needs.
type Nop struct {
	settings map[string]interface{}
}

// Log implements Adapter.
func (*Nop) Log(string, string) {}

// LoadAsset implements Adapter.
func (*Nop) LoadAsset(string) []byte { return nil }

// GenerateKeyPair implements Adapter.
func (*Nop) GenerateKeyPair() (identity.KeyPair, error) { return identity.GenerateKeyPair() }

// LoadSettings implements Adapter.
func (n *Nop) LoadSettings() (map[string]interface{}, error) { return n.settings, nil }

// SaveSettings implements Adapter.
func (n *Nop) SaveSettings(doc map[string]interface{}) error {
	n.settings = doc
	return nil
}

// OnStart implements Adapter.
func (*Nop) OnStart(int) {}

// OnStop implements Adapter.
func (*Nop) OnStop() {}

// HandleRoute implements Adapter.
func (*Nop) HandleRoute(http.ResponseWriter, *http.Request) bool { return false }

// HandleMessage implements Adapter.
func (*Nop) HandleMessage(context.Context, string, string, []byte) bool { return false }
