// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

/*
Package websocket tracks device connections to the station.

Key Components:

  - Session: one gorilla/websocket connection with a read loop feeding a
    FrameHandler and a write loop draining a buffered send queue
  - Registry: live sessions indexed by id and callsign, plus the broadcast
    loop
  - DisconnectLog: per-callsign disconnect records used to restore the
    original connect time on a quick reconnect
  - ProviderDirectory: short-lived backup-provider announcements

Session Lifecycle:

	upgrade -> Register (anonymous) -> hello -> Authenticate -> ... -> Remove

Remove is idempotent. It unregisters the session from the relay, stores a
DisconnectRecord, drops the provider entry, closes the socket and logs the
reason ("connection closed", "error", "kicked", "callsign_npub_mismatch").

Usage:

	reg := websocket.NewRegistry(websocket.Options{MaxConnections: 1000, Relay: relay})
	go reg.Run(ctx)

	sess := websocket.NewSession(conn, r.RemoteAddr)
	if err := reg.Register(sess); err != nil { ... }
	sess.Start(ctx, dispatcher, func(reason string) { reg.Remove(sess.ID(), reason) })

Timing:

  - writeWait: 10 seconds per frame
  - pongWait: 60 seconds without any inbound traffic closes the socket
  - pingPeriod: 54 seconds
  - ReconnectGrace: 5 minutes
  - ProviderTTL: 90 seconds

Thread Safety:

Every map is guarded by its own mutex. Send never blocks; a full queue
returns ErrSendBufferFull.
*/
package websocket
