// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/goccy/go-json"

	"github.com/tomtom215/station/internal/logging"
)

// Recover converts a panic in any downstream handler into a JSON 500. If the
// handler already started the response, the connection is left to close
// with whatever was written.
func Recover(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sw, ok := w.(*statusWriter)
		if !ok {
			sw = &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		}

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, isErr := rec.(error); isErr && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			logging.Ctx(r.Context()).Error().
				Interface("panic", rec).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Bytes("stack", debug.Stack()).
				Msg("handler panic")

			if sw.wroteHeader {
				return
			}
			sw.Header().Set("Content-Type", "application/json")
			sw.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(sw).Encode(map[string]string{
				"error": "internal server error",
				"code":  "INTERNAL_ERROR",
			})
		}()

		next(sw, r)
	}
}
