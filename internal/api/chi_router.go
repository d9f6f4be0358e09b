// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/station/internal/middleware"
)

// chiMiddleware adapts http.HandlerFunc middleware to chi's
// func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// routes builds the fixed route table.
func (g *Gateway) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware(middleware.PrometheusMetrics))
	r.Use(chimiddleware.Compress(5))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, r, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).MethodNotAllowed()
	})

	// ========================
	// Station Info
	// ========================
	r.Get("/", g.StatusPage)
	r.Get("/status", g.Status)
	r.Get("/api/status", g.Status)
	r.Get("/api/geoip", g.GeoIP)
	r.Get("/.well-known/nostr.json", g.NostrJSON)
	r.Handle("/metrics", promhttp.Handler())

	// ========================
	// Clients
	// ========================
	r.Get("/api/clients", g.Clients)
	r.Get("/api/devices", g.Clients)
	r.Get("/api/backup/providers", g.BackupProviders)

	// Local administration, loopback only
	r.Group(func(r chi.Router) {
		r.Use(LoopbackOnly)
		r.Post("/api/clients/{callsign}/kick", g.KickClient)
		r.Post("/api/broadcast", g.Broadcast)
	})

	// ========================
	// Tiles and Updates
	// ========================
	r.Get("/tiles/{z}/{x}/{y}", g.Tile)
	r.Get("/api/updates/latest", g.LatestRelease)
	r.Get("/api/updates/status", g.UpdateStatus)
	r.Get("/updates/{filename}", g.UpdateAsset)

	// ========================
	// Blobs
	// ========================
	r.Route("/blossom", func(r chi.Router) {
		upload := r.With(g.mw.UploadRateLimit())
		upload.Post("/upload", g.BlobUpload)
		upload.Put("/upload", g.BlobUpload)
		r.Get("/{hash}", g.BlobGet)
		r.Head("/{hash}", g.BlobGet)
		r.Delete("/*", g.BlobDelete)
	})

	// ========================
	// Device Proxy
	// ========================
	r.HandleFunc("/device/{callsign}", g.DeviceProxy)
	r.HandleFunc("/device/{callsign}/*", g.DeviceProxy)

	return r
}
