// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/station/internal/blossom"
	"github.com/tomtom215/station/internal/logging"
)

// BlobUpload handles POST /blossom/upload.
func (g *Gateway) BlobUpload(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if g.cfg.Blobs == nil {
		rw.ServiceUnavailable("blob storage disabled")
		return
	}

	desc, err := g.cfg.Blobs.Ingest(r.Context(), r.Body, r.Header.Get("Content-Type"))
	switch {
	case errors.Is(err, blossom.ErrBlobTooLarge):
		rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, err.Error())
		return
	case errors.Is(err, blossom.ErrStorageFull):
		rw.Error(http.StatusInsufficientStorage, ErrCodeInsufficientSpace, err.Error())
		return
	case err != nil:
		logging.Ctx(r.Context()).Warn().Err(err).Msg("blob upload failed")
		rw.InternalError("upload failed")
		return
	}

	desc.URL = blobURL(r, desc.SHA256)
	logging.Ctx(r.Context()).Debug().Str("sha256", desc.SHA256).Int64("size", desc.Size).Msg("blob stored")
	rw.JSON(desc)
}

// BlobGet handles GET and HEAD /blossom/{hash}.
func (g *Gateway) BlobGet(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if g.cfg.Blobs == nil {
		rw.NotFound("blob storage disabled")
		return
	}

	p, desc, err := g.cfg.Blobs.BlobFile(chi.URLParam(r, "hash"))
	switch {
	case errors.Is(err, blossom.ErrInvalidHash):
		rw.BadRequest("invalid blob hash")
		return
	case err != nil:
		rw.NotFound("blob not found")
		return
	}

	f, err := os.Open(p)
	if err != nil {
		rw.NotFound("blob not found")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		rw.InternalError("failed to read blob")
		return
	}

	if desc.Type != "" {
		w.Header().Set("Content-Type", desc.Type)
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Length", strconv.FormatInt(desc.Size, 10))
	http.ServeContent(w, r, desc.SHA256, info.ModTime(), f)
}

// BlobDelete rejects every DELETE under /blossom.
func (g *Gateway) BlobDelete(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Forbidden("blob deletion is not permitted")
}

func blobURL(r *http.Request, hash string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/blossom/" + hash
}
