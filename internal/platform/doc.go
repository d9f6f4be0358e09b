// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

// Package platform defines the boundary between the station core and the
// process hosting it.
//
// A host supplies an Adapter: the log sink, bundled assets, key generation,
// settings persistence and the start, stop, route and message hooks. The
// CLI adapter backs stationd with a YAML settings file (koanf), an asset
// directory and a lumberjack-rotated log file. Nop is a do-nothing base for
// tests and embedding.
package platform
