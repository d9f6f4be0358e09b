// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

// Package protocol decodes device frames and routes them.
//
// A frame starting with '[' is a relay frame and goes to the relay
// collaborator untouched. An object is routed by its "type":
//
//	hello                     handshake, identity check, hello_ack
//	PING                      answered with PONG
//	PONG                      ignored
//	HTTP_RESPONSE             completes a pending proxy correlation
//	backup_provider_announce  upserts the provider directory
//	anything else             offered to the ExtensionHandler
//
// # Hello
//
// The key comes from the npub field, an "npub" tag on the embedded event, or
// the event pubkey. A callsign already bound to another key is rejected with
// callsign_npub_mismatch and the session is closed; other sessions are not
// affected.
//
// # Proxy
//
// Dispatcher.Proxy sends HTTP_REQUEST to a device and waits on a one-shot
// channel in the PendingTable. PendingTable.FailAll completes every waiter
// with ErrServerStopping during shutdown.
package protocol
