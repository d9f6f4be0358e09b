// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package api

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/station/internal/logging"
)

// LatestRelease handles GET /api/updates/latest. The cached feed document is
// returned verbatim.
func (g *Gateway) LatestRelease(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if g.cfg.Mirror == nil {
		rw.ServiceUnavailable("update mirror disabled")
		return
	}
	doc, err := g.cfg.Mirror.Latest()
	if err != nil {
		rw.ServiceUnavailable("no update information available yet")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// UpdateStatus handles GET /api/updates/status.
func (g *Gateway) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if g.cfg.Mirror == nil {
		NewResponseWriter(w, r).ServiceUnavailable("update mirror disabled")
		return
	}
	WriteJSON(w, r, g.cfg.Mirror.Status())
}

// UpdateAsset handles GET /updates/{filename}.
func (g *Gateway) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	if g.cfg.Mirror == nil {
		WriteNotFound(w, r, "update mirror disabled")
		return
	}
	name := chi.URLParam(r, "filename")
	p, err := g.cfg.Mirror.AssetPath(name)
	if err != nil {
		WriteNotFound(w, r, "file not found")
		return
	}

	f, err := os.Open(p)
	if err != nil {
		WriteNotFound(w, r, "file not found")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("file", name).Msg("stat update asset")
		NewResponseWriter(w, r).InternalError("failed to read file")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, info.ModTime(), f)
}
