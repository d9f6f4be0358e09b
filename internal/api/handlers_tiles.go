// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/station/internal/logging"
	"github.com/tomtom215/station/internal/tiles"
)

// Tile handles GET /tiles/{z}/{x}/{y}.png.
func (g *Gateway) Tile(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if g.cfg.Tiles == nil || !g.cfg.Settings().Tiles.Enabled {
		rw.NotFound("tile server disabled")
		return
	}

	key, err := tiles.ParseKey(chi.URLParam(r, "z"), chi.URLParam(r, "x"), chi.URLParam(r, "y"))
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	data, source, err := g.cfg.Tiles.Get(r.Context(), key)
	switch {
	case errors.Is(err, tiles.ErrZoomTooHigh), errors.Is(err, tiles.ErrBadCoordinates):
		rw.BadRequest(err.Error())
		return
	case err != nil:
		if !errors.Is(err, tiles.ErrTileNotFound) {
			logging.Ctx(r.Context()).Debug().Err(err).Str("tile", key.String()).Msg("tile unavailable")
		}
		rw.NotFound("tile not found")
		return
	}

	w.Header().Set("Content-Type", tiles.ContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("X-Tile-Source", string(source))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
