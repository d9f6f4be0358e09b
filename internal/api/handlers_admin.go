// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/station/internal/logging"
)

// maxBroadcastBody bounds POST /api/broadcast bodies.
const maxBroadcastBody = 64 << 10

// BroadcastRequest is the body of POST /api/broadcast.
type BroadcastRequest struct {
	Message string `json:"message"`
}

// KickClient handles POST /api/clients/{callsign}/kick.
func (g *Gateway) KickClient(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	callsign := chi.URLParam(r, "callsign")
	if !g.cfg.Registry.Kick(callsign) {
		rw.NotFound("no connected device with that callsign")
		return
	}
	logging.Ctx(r.Context()).Info().Str("callsign", callsign).Msg("device kicked by operator")
	rw.JSON(map[string]interface{}{"success": true, "callsign": callsign})
}

// Broadcast handles POST /api/broadcast.
func (g *Gateway) Broadcast(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req BroadcastRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBroadcastBody)).Decode(&req); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		rw.BadRequest("message is required")
		return
	}

	if err := g.cfg.Registry.Broadcast(g.cfg.Settings().Callsign(), req.Message); err != nil {
		rw.ServiceUnavailable("broadcast queue full")
		return
	}
	rw.JSON(map[string]interface{}{"success": true, "recipients": g.cfg.Registry.Count()})
}
