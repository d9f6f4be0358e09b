// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package station

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gws "github.com/gorilla/websocket"

	"github.com/tomtom215/station/internal/config"
	"github.com/tomtom215/station/internal/logging"
	"github.com/tomtom215/station/internal/platform"
	"github.com/tomtom215/station/internal/protocol"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

// recordingAdapter captures lifecycle hooks on top of in-memory settings.
type recordingAdapter struct {
	platform.Nop

	mu     sync.Mutex
	starts []int
	stops  int
}

func (a *recordingAdapter) OnStart(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.starts = append(a.starts, port)
}

func (a *recordingAdapter) OnStop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stops++
}

func (a *recordingAdapter) counts() (starts, stops int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.starts), a.stops
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	if err := ln.Close(); err != nil {
		t.Fatal(err)
	}
	return port
}

// newTestServer seeds the adapter with settings on a free loopback port.
func newTestServer(t *testing.T, mutate func(*config.Settings)) (*Server, *recordingAdapter) {
	t.Helper()

	settings := config.Defaults().CopyWith(func(s *config.Settings) {
		s.DataDir = t.TempDir()
		s.Network.Port = freePort(t)
		s.Tiles.OriginFallback = false
		s.Station.Name = "Lifecycle Test"
		if mutate != nil {
			mutate(s)
		}
	})
	doc, err := config.ToMap(settings)
	if err != nil {
		t.Fatal(err)
	}
	adapter := &recordingAdapter{}
	if err := adapter.SaveSettings(doc); err != nil {
		t.Fatal(err)
	}

	srv := New(Options{
		Adapter:      adapter,
		Version:      "test",
		Host:         "127.0.0.1",
		StoreOptions: []config.StoreOption{config.WithoutEnv()},
		RestartDelay: 10 * time.Millisecond,
	})
	t.Cleanup(srv.Stop)
	return srv, adapter
}

func getStatus(t *testing.T, client *http.Client, url string) map[string]interface{} {
	t.Helper()
	resp, err := client.Get(url + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	return body
}

func baseURL(srv *Server) string {
	return fmt.Sprintf("http://127.0.0.1:%d", srv.Port())
}

func TestServer_StartStop(t *testing.T) {
	srv, adapter := newTestServer(t, nil)
	want := srv.Settings().Network.Port

	if !srv.Start() {
		t.Fatal("Start returned false")
	}
	if !srv.Running() || srv.Port() != want {
		t.Fatalf("running=%v port=%d, want true %d", srv.Running(), srv.Port(), want)
	}
	if !srv.Start() {
		t.Error("second Start should be a no-op returning true")
	}

	status := getStatus(t, http.DefaultClient, baseURL(srv))
	if status["callsign"] != srv.Settings().Callsign() {
		t.Errorf("callsign = %v, want %s", status["callsign"], srv.Settings().Callsign())
	}
	if status["name"] != "Lifecycle Test" {
		t.Errorf("name = %v", status["name"])
	}

	srv.Stop()
	if srv.Running() || srv.Port() != 0 {
		t.Error("server still reports running after Stop")
	}
	if _, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", want), 200*time.Millisecond); err == nil {
		t.Error("listener still accepting after Stop")
	}
	srv.Stop()

	starts, stops := adapter.counts()
	if starts != 1 || stops != 1 {
		t.Errorf("OnStart=%d OnStop=%d, want 1 1", starts, stops)
	}
	if adapter.starts[0] != want {
		t.Errorf("OnStart port = %d, want %d", adapter.starts[0], want)
	}
}

func TestServer_GeneratesIdentityOnce(t *testing.T) {
	adapter := &recordingAdapter{}
	doc, err := config.ToMap(config.Defaults().CopyWith(func(s *config.Settings) {
		s.DataDir = t.TempDir()
	}))
	if err != nil {
		t.Fatal(err)
	}
	delete(doc["identity"].(map[string]interface{}), "npub")
	delete(doc["identity"].(map[string]interface{}), "nsec")
	if err := adapter.SaveSettings(doc); err != nil {
		t.Fatal(err)
	}

	srv := New(Options{Adapter: adapter, StoreOptions: []config.StoreOption{config.WithoutEnv()}})
	first := srv.Settings()
	if first == nil || first.Identity.Npub == "" {
		t.Fatal("no identity generated")
	}

	again := New(Options{Adapter: adapter, StoreOptions: []config.StoreOption{config.WithoutEnv()}})
	if got := again.Settings().Identity.Npub; got != first.Identity.Npub {
		t.Errorf("reloaded npub = %s, want %s", got, first.Identity.Npub)
	}
}

func TestServer_StartFailures(t *testing.T) {
	t.Run("port in use", func(t *testing.T) {
		busy, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		defer busy.Close()

		srv, adapter := newTestServer(t, func(s *config.Settings) {
			s.Network.Port = busy.Addr().(*net.TCPAddr).Port
		})
		if srv.Start() {
			t.Fatal("Start succeeded on a busy port")
		}
		if srv.Running() {
			t.Error("server running after failed start")
		}
		if starts, _ := adapter.counts(); starts != 0 {
			t.Error("OnStart called for a failed start")
		}
	})

	t.Run("bad TLS pair", func(t *testing.T) {
		dir := t.TempDir()
		cert := filepath.Join(dir, "cert.pem")
		key := filepath.Join(dir, "key.pem")
		for _, p := range []string{cert, key} {
			if err := os.WriteFile(p, []byte("not pem"), 0o600); err != nil {
				t.Fatal(err)
			}
		}
		srv, _ := newTestServer(t, func(s *config.Settings) {
			s.TLS = config.TLSSettings{Enabled: true, CertFile: cert, KeyFile: key}
		})
		if srv.Start() {
			t.Fatal("Start succeeded with an invalid key pair")
		}
		port := srv.Settings().Network.Port
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			t.Fatalf("port not released after failed start: %v", err)
		}
		ln.Close()
	})
}

func TestServer_TLS(t *testing.T) {
	certFile, keyFile := writeSelfSigned(t)
	srv, _ := newTestServer(t, func(s *config.Settings) {
		s.TLS = config.TLSSettings{Enabled: true, CertFile: certFile, KeyFile: keyFile}
	})
	if !srv.Start() {
		t.Fatal("Start returned false")
	}

	client := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // self-signed test certificate
		},
	}
	status := getStatus(t, client, fmt.Sprintf("https://127.0.0.1:%d", srv.Port()))
	if status["tls_enabled"] != true {
		t.Errorf("tls_enabled = %v", status["tls_enabled"])
	}
}

func TestServer_StopFailsPendingAndClosesSessions(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	if !srv.Start() {
		t.Fatal("Start returned false")
	}

	conn, _, err := gws.DefaultDialer.Dial(fmt.Sprintf("ws://127.0.0.1:%d/", srv.Port()), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Registry().Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if srv.Registry().Count() != 1 {
		t.Fatal("session not registered")
	}

	result := srv.Pending().Register("req-1")
	srv.Stop()

	select {
	case res := <-result:
		if !errors.Is(res.Err, protocol.ErrServerStopping) {
			t.Errorf("pending result error = %v, want ErrServerStopping", res.Err)
		}
	default:
		t.Fatal("pending correlation not completed by Stop")
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err = conn.ReadMessage()
	var closeErr *gws.CloseError
	if !errors.As(err, &closeErr) || closeErr.Code != gws.CloseGoingAway {
		t.Errorf("expected close 1001, got %v", err)
	}
}

func TestServer_Restart(t *testing.T) {
	srv, adapter := newTestServer(t, nil)
	if !srv.Start() {
		t.Fatal("Start returned false")
	}
	if !srv.Restart() {
		t.Fatal("Restart returned false")
	}
	getStatus(t, http.DefaultClient, baseURL(srv))

	starts, stops := adapter.counts()
	if starts != 2 || stops != 1 {
		t.Errorf("OnStart=%d OnStop=%d, want 2 1", starts, stops)
	}
}

func TestServer_UpdateSettings(t *testing.T) {
	t.Run("port change restarts", func(t *testing.T) {
		srv, adapter := newTestServer(t, nil)
		if !srv.Start() {
			t.Fatal("Start returned false")
		}
		oldPort := srv.Port()
		newPort := freePort(t)

		next := srv.Settings().CopyWith(func(s *config.Settings) { s.Network.Port = newPort })
		if err := srv.UpdateSettings(next); err != nil {
			t.Fatal(err)
		}
		if srv.Port() != newPort {
			t.Fatalf("port = %d, want %d", srv.Port(), newPort)
		}
		getStatus(t, http.DefaultClient, baseURL(srv))
		if _, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", oldPort), 200*time.Millisecond); err == nil {
			t.Error("old port still accepting")
		}

		doc, _ := adapter.LoadSettings()
		network := doc["network"].(map[string]interface{})
		if fmt.Sprint(network["port"]) != fmt.Sprint(newPort) {
			t.Errorf("persisted port = %v, want %d", network["port"], newPort)
		}
		if starts, _ := adapter.counts(); starts != 2 {
			t.Errorf("OnStart calls = %d, want 2", starts)
		}
	})

	t.Run("other changes do not restart", func(t *testing.T) {
		srv, adapter := newTestServer(t, nil)
		if !srv.Start() {
			t.Fatal("Start returned false")
		}
		next := srv.Settings().CopyWith(func(s *config.Settings) { s.Station.Name = "Renamed" })
		if err := srv.UpdateSettings(next); err != nil {
			t.Fatal(err)
		}
		if starts, stops := adapter.counts(); starts != 1 || stops != 0 {
			t.Errorf("OnStart=%d OnStop=%d, want 1 0", starts, stops)
		}
		if status := getStatus(t, http.DefaultClient, baseURL(srv)); status["name"] != "Renamed" {
			t.Errorf("name = %v, want Renamed", status["name"])
		}
	})

	t.Run("stopped server only persists", func(t *testing.T) {
		srv, adapter := newTestServer(t, nil)
		newPort := freePort(t)
		next := srv.Settings().CopyWith(func(s *config.Settings) { s.Network.Port = newPort })
		if err := srv.UpdateSettings(next); err != nil {
			t.Fatal(err)
		}
		if srv.Running() {
			t.Error("UpdateSettings started a stopped server")
		}
		if starts, _ := adapter.counts(); starts != 0 {
			t.Error("OnStart called")
		}
		if !srv.Start() || srv.Port() != newPort {
			t.Errorf("start on updated port failed: port=%d", srv.Port())
		}
	})

	t.Run("nil settings", func(t *testing.T) {
		srv, _ := newTestServer(t, nil)
		if err := srv.UpdateSettings(nil); err == nil {
			t.Error("expected error for nil settings")
		}
	})
}

func writeSelfSigned(t *testing.T) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "station.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1)},
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}
