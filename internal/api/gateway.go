// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package api

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/tomtom215/station/internal/blossom"
	"github.com/tomtom215/station/internal/config"
	"github.com/tomtom215/station/internal/identity"
	"github.com/tomtom215/station/internal/logging"
	"github.com/tomtom215/station/internal/metrics"
	"github.com/tomtom215/station/internal/middleware"
	"github.com/tomtom215/station/internal/protocol"
	"github.com/tomtom215/station/internal/tiles"
	"github.com/tomtom215/station/internal/updates"
	"github.com/tomtom215/station/internal/websocket"
)

// GeoLocation is the GeoIP answer for one address.
type GeoLocation struct {
	IP          string  `json:"ip"`
	Country     string  `json:"country,omitempty"`
	CountryCode string  `json:"country_code,omitempty"`
	Region      string  `json:"region,omitempty"`
	City        string  `json:"city,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone,omitempty"`
}

// GeoLocator resolves an address to a location. It returns
// ErrLocationNotFound when the address is unknown.
type GeoLocator interface {
	Locate(ctx context.Context, ip net.IP) (GeoLocation, error)
}

// RouteHook lets the host platform serve requests before the route table.
// It returns true when it wrote a response.
type RouteHook interface {
	HandleRoute(w http.ResponseWriter, r *http.Request) bool
}

// AssetLoader returns a bundled asset, or nil when it does not exist.
type AssetLoader interface {
	LoadAsset(path string) []byte
}

// BlobStore is the content-addressed blob collaborator.
type BlobStore interface {
	Ingest(ctx context.Context, r io.Reader, contentType string) (blossom.Descriptor, error)
	BlobFile(hash string) (string, blossom.Descriptor, error)
}

// NameLookup resolves NIP-05 names.
type NameLookup interface {
	Lookup(name string) (identity.Registration, bool)
}

// Config wires a Gateway. Settings, Registry and Dispatcher are required.
// Tiles and Mirror are nil when their feature is disabled; the remaining
// collaborators are optional.
type Config struct {
	Settings   func() *config.Settings
	Registry   *websocket.Registry
	Dispatcher *protocol.Dispatcher
	Tiles      *tiles.Cache
	Mirror     *updates.Mirror
	Blobs      BlobStore
	Names      NameLookup
	GeoIP      GeoLocator
	Routes     RouteHook
	Assets     AssetLoader
	Middleware *ChiMiddlewareConfig

	// BaseContext outlives individual requests and scopes WebSocket
	// sessions. Defaults to context.Background().
	BaseContext context.Context

	Version      string
	StartedAt    time.Time
	ProxyTimeout time.Duration
}

// Gateway is the station's HTTP front door.
type Gateway struct {
	cfg      Config
	mw       *ChiMiddleware
	upgrader gws.Upgrader
	router   http.Handler
}

// New creates a gateway.
func New(cfg Config) *Gateway {
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now()
	}
	if cfg.ProxyTimeout <= 0 {
		cfg.ProxyTimeout = protocol.DefaultProxyTimeout
	}
	g := &Gateway{
		cfg: cfg,
		mw:  NewChiMiddleware(cfg.Middleware),
		upgrader: gws.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			// Devices connect from native apps and arbitrary web origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	g.router = g.routes()
	return g
}

// Handler returns the full request pipeline: panic recovery, WebSocket
// upgrade, CORS and OPTIONS, the platform route hook, then the route table.
func (g *Gateway) Handler() http.Handler {
	return chiMiddleware(middleware.Recover)(
		chiMiddleware(middleware.RequestID)(
			http.HandlerFunc(g.serve),
		),
	)
}

func (g *Gateway) serve(w http.ResponseWriter, r *http.Request) {
	if gws.IsWebSocketUpgrade(r) {
		g.serveWebSocket(w, r)
		return
	}

	next := http.Handler(http.HandlerFunc(g.serveHTTP))
	if g.cfg.Settings().Network.CORSEnabled {
		next = g.mw.CORS()(next)
	}
	next.ServeHTTP(w, r)
}

func (g *Gateway) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if g.cfg.Routes != nil && g.cfg.Routes.HandleRoute(w, r) {
		return
	}
	g.router.ServeHTTP(w, r)
}

func (g *Gateway) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	if g.cfg.Registry.Full() {
		metrics.WSConnectionsRejected.WithLabelValues("capacity").Inc()
		NewResponseWriter(w, r).ServiceUnavailable("connection limit reached")
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		metrics.WSConnectionsRejected.WithLabelValues("upgrade_failed").Inc()
		logging.Ctx(r.Context()).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	s := websocket.NewSession(conn, r.RemoteAddr)
	if err := g.cfg.Registry.Register(s); err != nil {
		s.Close(gws.CloseTryAgainLater, err.Error())
		return
	}
	s.Start(g.cfg.BaseContext, g.cfg.Dispatcher, func(reason string) {
		g.cfg.Registry.Remove(s.ID(), reason)
	})
}
