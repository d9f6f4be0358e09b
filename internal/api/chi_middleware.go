// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package api

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// ChiMiddlewareConfig holds configuration for the gateway's chi middleware.
type ChiMiddlewareConfig struct {
	// CORS configuration
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSExposedHeaders []string
	CORSMaxAge         int // seconds

	// Upload throttling
	UploadRateRequests int
	UploadRateWindow   time.Duration
	UploadRateDisabled bool
}

// DefaultChiMiddlewareConfig returns the station defaults. Devices connect
// from arbitrary web origins, so CORS allows any origin without
// credentials.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"*"},
		CORSExposedHeaders: []string{"X-Request-ID", "X-Tile-Source"},
		CORSMaxAge:         86400,

		UploadRateRequests: 30,
		UploadRateWindow:   time.Minute,
	}
}

// ChiMiddleware provides chi-compatible middleware factories.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates a middleware factory with config.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   config.CORSAllowedOrigins,
		AllowedMethods:   config.CORSAllowedMethods,
		AllowedHeaders:   config.CORSAllowedHeaders,
		ExposedHeaders:   config.CORSExposedHeaders,
		AllowCredentials: false,
		MaxAge:           config.CORSMaxAge,
	})

	return &ChiMiddleware{
		config: config,
		cors:   corsHandler,
	}
}

// CORS returns the go-chi/cors middleware. Preflight requests are answered
// with 200 by the middleware itself. go-chi/cors only answers requests that
// carry an Origin header; the rest get the configured allow headers directly
// so every response advertises the policy.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := m.cors(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Origin") == "" {
				m.setPolicyHeaders(w.Header())
			}
			h.ServeHTTP(w, r)
		})
	}
}

func (m *ChiMiddleware) setPolicyHeaders(h http.Header) {
	for _, origin := range m.config.CORSAllowedOrigins {
		if origin == "*" {
			h.Set("Access-Control-Allow-Origin", "*")
			break
		}
	}
	if len(m.config.CORSAllowedMethods) > 0 {
		h.Set("Access-Control-Allow-Methods", strings.Join(m.config.CORSAllowedMethods, ", "))
	}
	if len(m.config.CORSAllowedHeaders) > 0 {
		h.Set("Access-Control-Allow-Headers", strings.Join(m.config.CORSAllowedHeaders, ", "))
	}
	if len(m.config.CORSExposedHeaders) > 0 {
		h.Set("Access-Control-Expose-Headers", strings.Join(m.config.CORSExposedHeaders, ", "))
	}
}

// UploadRateLimit throttles blob uploads per client IP.
func (m *ChiMiddleware) UploadRateLimit() func(http.Handler) http.Handler {
	if m.config.UploadRateDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		m.config.UploadRateRequests,
		m.config.UploadRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			WriteError(w, r, http.StatusTooManyRequests, ErrCodeTooManyRequests, "too many uploads, slow down")
		}),
	)
}

// LoopbackOnly rejects requests that did not originate from this host.
// RemoteAddr is used as-is; forwarded headers are never trusted here.
func LoopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLoopback(r.RemoteAddr) {
			NewResponseWriter(w, r).Forbidden("admin endpoints are only available from localhost")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
