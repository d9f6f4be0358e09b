// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package station

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/multierr"

	"github.com/tomtom215/station/internal/api"
	"github.com/tomtom215/station/internal/blossom"
	"github.com/tomtom215/station/internal/config"
	"github.com/tomtom215/station/internal/identity"
	"github.com/tomtom215/station/internal/logging"
	"github.com/tomtom215/station/internal/metrics"
	"github.com/tomtom215/station/internal/platform"
	"github.com/tomtom215/station/internal/protocol"
	"github.com/tomtom215/station/internal/supervisor"
	"github.com/tomtom215/station/internal/supervisor/services"
	"github.com/tomtom215/station/internal/tiles"
	"github.com/tomtom215/station/internal/updates"
	"github.com/tomtom215/station/internal/websocket"
)

const (
	// DefaultRestartDelay separates Stop and Start in Restart.
	DefaultRestartDelay = 500 * time.Millisecond

	// shutdownTimeout bounds the HTTP drain and the supervisor tree stop.
	shutdownTimeout = 10 * time.Second
)

// Options configures a Server. A nil Adapter runs with platform.Nop.
type Options struct {
	Adapter platform.Adapter

	// Version is reported in status responses.
	Version string

	// Host is the bind address. Empty listens on all interfaces.
	Host string

	// GeoIP answers /api/geoip. Nil makes the endpoint return 503.
	GeoIP api.GeoLocator

	// Relay receives pub/sub frames. May be nil.
	Relay websocket.Relay

	// StoreOptions are passed to the settings store.
	StoreOptions []config.StoreOption

	RestartDelay time.Duration
	ProxyTimeout time.Duration
}

// Server owns the station lifecycle. Start, Stop, Restart and
// UpdateSettings are serialized; every component is rebuilt on each start.
type Server struct {
	opts  Options
	store *config.Store

	loadMu     sync.Mutex // serializes first load so keys are generated once
	settingsMu sync.RWMutex
	settings   *config.Settings

	mu       sync.Mutex
	running  bool
	port     int
	cancel   context.CancelFunc
	done     <-chan error
	tree     *supervisor.SupervisorTree
	listener net.Listener
	registry *websocket.Registry
	pending  *protocol.PendingTable
	namesDB  *badger.DB
}

// New creates a stopped server.
func New(opts Options) *Server {
	if opts.Adapter == nil {
		opts.Adapter = &platform.Nop{}
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = DefaultRestartDelay
	}
	return &Server{
		opts:  opts,
		store: config.NewStore(opts.Adapter, opts.Adapter.GenerateKeyPair, opts.StoreOptions...),
	}
}

// Settings returns the current settings snapshot, loading it on first use.
// It returns nil when the settings cannot be loaded.
func (s *Server) Settings() *config.Settings {
	cfg, err := s.loadSettings()
	if err != nil {
		logging.Error().Err(err).Msg("failed to load settings")
		return nil
	}
	return cfg
}

func (s *Server) currentSettings() *config.Settings {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.settings
}

func (s *Server) loadSettings() (*config.Settings, error) {
	if cfg := s.currentSettings(); cfg != nil {
		return cfg, nil
	}
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if cfg := s.currentSettings(); cfg != nil {
		return cfg, nil
	}
	cfg, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	if s.settings == nil {
		s.settings = cfg
	}
	return s.settings, nil
}

// Running reports whether the listener is serving.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Port returns the bound port, or 0 when stopped.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Start binds the listener and starts every component. It returns false,
// leaving the server stopped, when any step fails. Starting a running
// server is a no-op that returns true.
func (s *Server) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return true
	}
	if err := s.start(); err != nil {
		logging.Error().Err(err).Msg("station failed to start")
		return false
	}
	return true
}

func (s *Server) start() (err error) {
	cfg, err := s.loadSettings()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	var cleanup []func() error
	defer func() {
		if err != nil {
			for i := len(cleanup) - 1; i >= 0; i-- {
				_ = cleanup[i]()
			}
		}
	}()

	ln, err := s.listen(cfg)
	if err != nil {
		return err
	}
	cleanup = append(cleanup, ln.Close)

	namesDB, err := identity.OpenStore(cfg.RegistryDir())
	if err != nil {
		return fmt.Errorf("open identity registry: %w", err)
	}
	cleanup = append(cleanup, namesDB.Close)
	names, err := identity.NewRegistry(namesDB)
	if err != nil {
		return fmt.Errorf("load identity registry: %w", err)
	}

	blobs, err := blossom.Open(blossom.Config{
		Dir:           cfg.BlossomDir(),
		MaxFileBytes:  cfg.Blossom.MaxFileMB << 20,
		MaxTotalBytes: cfg.Blossom.MaxStorageMB << 20,
	})
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	registry := websocket.NewRegistry(websocket.Options{
		MaxConnections: cfg.Network.MaxConnections,
		Relay:          s.opts.Relay,
	})
	pending := protocol.NewPendingTable()
	dispatcher := protocol.NewDispatcher(protocol.Config{
		Registry:   registry,
		Pending:    pending,
		Identities: names,
		Relay:      s.opts.Relay,
		Extension:  s.opts.Adapter,
		Station:    s.stationInfo,
	})

	tileCache := newTileCache(cfg)
	mirror := newMirror(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cleanup = append(cleanup, func() error { cancel(); return nil })

	gw := api.New(api.Config{
		Settings:     s.currentSettings,
		Registry:     registry,
		Dispatcher:   dispatcher,
		Tiles:        tileCache,
		Mirror:       mirror,
		Blobs:        blobs,
		Names:        names,
		GeoIP:        s.opts.GeoIP,
		Routes:       s.opts.Adapter,
		Assets:       s.opts.Adapter,
		BaseContext:  ctx,
		Version:      s.opts.Version,
		ProxyTimeout: s.opts.ProxyTimeout,
	})
	httpServer := &http.Server{
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Network.RequestTimeout,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: shutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}
	tree.AddMessagingService(services.NewRegistryService(registry))
	tree.AddMessagingService(services.NewJanitorService(registry, services.DefaultJanitorInterval))
	if mirror != nil {
		tree.AddMessagingService(services.NewMirrorService(mirror))
	}
	tree.AddAPIService(services.NewHTTPServerService(httpServer, ln, shutdownTimeout))

	logging.SetSink(s.opts.Adapter)

	s.done = tree.ServeBackground(ctx)
	s.cancel = cancel
	s.tree = tree
	s.listener = ln
	s.registry = registry
	s.pending = pending
	s.namesDB = namesDB
	s.port = ln.Addr().(*net.TCPAddr).Port
	s.running = true
	metrics.ServerUp.Set(1)

	logging.Info().
		Int("port", s.port).
		Str("callsign", cfg.Callsign()).
		Str("mode", cfg.Station.Mode).
		Bool("tls", cfg.TLS.Enabled).
		Bool("tiles", tileCache != nil).
		Bool("update_mirror", mirror != nil).
		Msg("station started")

	s.opts.Adapter.OnStart(s.port)
	return nil
}

// listen binds the station port. Go listeners set SO_REUSEADDR, so a
// restart can rebind while old connections sit in TIME_WAIT.
func (s *Server) listen(cfg *config.Settings) (net.Listener, error) {
	var tlsConfig *tls.Config
	if cfg.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load TLS key pair: %w", err)
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(cfg.Network.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}
	return ln, nil
}

func newTileCache(cfg *config.Settings) *tiles.Cache {
	if !cfg.Tiles.Enabled {
		return nil
	}
	var origin tiles.Fetcher
	if cfg.Tiles.OriginFallback {
		origin = tiles.NewOrigin(tiles.OriginConfig{
			URLTemplate: cfg.Tiles.OriginURL,
			Timeout:     cfg.Tiles.OriginTimeout,
			Rate:        cfg.Tiles.OriginRate,
		})
	}
	return tiles.New(tiles.Config{
		Dir:          cfg.TilesDir(),
		MaxZoom:      cfg.Tiles.MaxZoom,
		MemoryBytes:  cfg.Tiles.CacheBytes,
		FetchTimeout: cfg.Tiles.OriginTimeout,
	}, origin)
}

func newMirror(cfg *config.Settings) *updates.Mirror {
	if !cfg.Updates.MirrorEnabled {
		return nil
	}
	mirror := updates.New(updates.Config{
		FeedURL:       cfg.Updates.FeedURL,
		Interval:      cfg.Updates.Interval,
		Timeout:       cfg.Updates.Timeout,
		Dir:           cfg.UpdatesDir(),
		MirrorAssets:  cfg.Updates.MirrorAssets,
		MaxAssetBytes: cfg.Updates.MaxAssetMB << 20,
	})
	if err := mirror.Load(); err != nil {
		// A corrupt cache is replaced by the first successful poll.
		logging.Warn().Err(err).Msg("ignoring cached release document")
	}
	return mirror
}

func (s *Server) stationInfo() protocol.StationInfo {
	cfg := s.currentSettings()
	if cfg == nil {
		return protocol.StationInfo{}
	}
	return protocol.StationInfo{Callsign: cfg.Callsign(), Name: cfg.Station.Name}
}

// Stop shuts the station down: polling stops, sessions are closed, pending
// proxy requests fail with protocol.ErrServerStopping and the listener is
// closed before the platform stop hook runs. Stopping a stopped server is
// a no-op.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.stop()
}

func (s *Server) stop() {
	s.cancel()

	closed := s.registry.CloseAll(websocket.ReasonShutdown)
	failed := s.pending.FailAll(protocol.ErrServerStopping)

	var errs error
	select {
	case err := <-s.done:
		if err != nil && !errors.Is(err, context.Canceled) {
			errs = multierr.Append(errs, fmt.Errorf("supervisor tree: %w", err))
		}
	case <-time.After(shutdownTimeout + time.Second):
		errs = multierr.Append(errs, errors.New("supervisor tree did not stop in time"))
	}
	if unstopped, err := s.tree.UnstoppedServiceReport(); err == nil {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service failed to stop")
		}
	}

	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = multierr.Append(errs, fmt.Errorf("close listener: %w", err))
	}
	if err := s.namesDB.Close(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("close identity registry: %w", err))
	}

	for _, err := range multierr.Errors(errs) {
		logging.Warn().Err(err).Msg("station shutdown step failed")
	}
	logging.Info().
		Int("sessions_closed", closed).
		Int("proxy_requests_failed", failed).
		Msg("station stopped")

	s.running = false
	s.port = 0
	s.cancel, s.done, s.tree = nil, nil, nil
	s.listener, s.registry, s.pending, s.namesDB = nil, nil, nil, nil
	metrics.ServerUp.Set(0)

	s.opts.Adapter.OnStop()
}

// Restart stops the server, waits RestartDelay and starts it again.
func (s *Server) Restart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restart()
}

func (s *Server) restart() bool {
	if s.running {
		s.stop()
	}
	time.Sleep(s.opts.RestartDelay)
	metrics.ServerRestarts.Inc()
	if err := s.start(); err != nil {
		logging.Error().Err(err).Msg("station failed to restart")
		return false
	}
	return true
}

// UpdateSettings persists next and makes it current. A running server is
// restarted only when the port changed; every other change is picked up by
// readers of the current snapshot.
func (s *Server) UpdateSettings(next *config.Settings) error {
	if next == nil {
		return errors.New("settings must not be nil")
	}
	if err := s.store.Save(next); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.settingsMu.Lock()
	prev := s.settings
	s.settings = next
	s.settingsMu.Unlock()

	if s.running && prev != nil && prev.Network.Port != next.Network.Port {
		logging.Info().
			Int("old_port", prev.Network.Port).
			Int("new_port", next.Network.Port).
			Msg("port changed, restarting station")
		if !s.restart() {
			return fmt.Errorf("restart on port %d failed", next.Network.Port)
		}
	}
	return nil
}

// Registry returns the live session registry, or nil when stopped.
func (s *Server) Registry() *websocket.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry
}

// Pending returns the proxy correlation table, or nil when stopped.
func (s *Server) Pending() *protocol.PendingTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}
