// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package updates

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/station/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

// feedServer serves a mutable feed body and an asset.
type feedServer struct {
	mu     sync.Mutex
	status int
	body   string
	polls  atomic.Int32
	srv    *httptest.Server
}

func newFeedServer(t *testing.T) *feedServer {
	t.Helper()
	f := &feedServer{status: http.StatusOK}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed":
			f.polls.Add(1)
			f.mu.Lock()
			status, body := f.status, f.body
			f.mu.Unlock()
			w.WriteHeader(status)
			io.WriteString(w, body)
		case "/dl/station-1.2.0.apk":
			io.WriteString(w, "APKDATA")
		case "/dl/huge.bin":
			io.WriteString(w, strings.Repeat("x", 64))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *feedServer) set(status int, body string) {
	f.mu.Lock()
	f.status, f.body = status, body
	f.mu.Unlock()
}

func releaseJSON(base, tag string) string {
	return `{"tag_name":"` + tag + `","assets":[` +
		`{"name":"station-1.2.0.apk","browser_download_url":"` + base + `/dl/station-1.2.0.apk","size":7},` +
		`{"name":"../evil.sh","browser_download_url":"` + base + `/dl/station-1.2.0.apk","size":7},` +
		`{"name":"huge.bin","browser_download_url":"` + base + `/dl/huge.bin","size":0}` +
		`]}`
}

func newTestMirror(t *testing.T, f *feedServer, mirrorAssets bool) (*Mirror, string) {
	t.Helper()
	dir := t.TempDir()
	m := New(Config{
		FeedURL:       f.srv.URL + "/feed",
		Interval:      time.Hour,
		Timeout:       2 * time.Second,
		Dir:           dir,
		MirrorAssets:  mirrorAssets,
		MaxAssetBytes: 32,
		Client:        f.srv.Client(),
	})
	return m, dir
}

func TestMirror_NoReleaseBeforeFirstPoll(t *testing.T) {
	f := newFeedServer(t)
	m, _ := newTestMirror(t, f, false)
	if _, err := m.Latest(); !errors.Is(err, ErrNoRelease) {
		t.Errorf("Latest() error = %v, want ErrNoRelease", err)
	}
}

func TestMirror_PollPersistsAndReloads(t *testing.T) {
	f := newFeedServer(t)
	f.set(http.StatusOK, releaseJSON(f.srv.URL, "v1.2.0"))
	m, dir := newTestMirror(t, f, false)

	if err := m.PollNow(context.Background()); err != nil {
		t.Fatalf("PollNow() error = %v", err)
	}
	got, err := m.Latest()
	if err != nil || !strings.Contains(string(got), "v1.2.0") {
		t.Fatalf("Latest() = %s, %v", got, err)
	}
	if st := m.Status(); st.Tag != "v1.2.0" || st.LastError != "" || st.LastSuccess.IsZero() {
		t.Errorf("Status() = %+v", st)
	}

	restarted := New(Config{FeedURL: f.srv.URL + "/feed", Dir: dir})
	if err := restarted.Load(); err != nil {
		t.Fatal(err)
	}
	reloaded, err := restarted.Latest()
	if err != nil || string(reloaded) != string(got) {
		t.Errorf("reloaded = %s, %v", reloaded, err)
	}
}

func TestMirror_FailuresKeepPreviousRelease(t *testing.T) {
	f := newFeedServer(t)
	f.set(http.StatusOK, releaseJSON(f.srv.URL, "v1"))
	m, _ := newTestMirror(t, f, false)
	if err := m.PollNow(context.Background()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, "oops"},
		{"not json", http.StatusOK, "<html>maintenance</html>"},
		{"rate limited", http.StatusTooManyRequests, `{"message":"slow down"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.set(tt.status, tt.body)
			if err := m.PollNow(context.Background()); err == nil {
				t.Fatal("PollNow() succeeded")
			}
			got, err := m.Latest()
			if err != nil || !strings.Contains(string(got), `"v1"`) {
				t.Errorf("Latest() = %s, %v; previous release lost", got, err)
			}
			if m.Status().LastError == "" {
				t.Error("LastError not recorded")
			}
		})
	}
}

func TestMirror_RetriesFailedPersist(t *testing.T) {
	f := newFeedServer(t)
	f.set(http.StatusOK, releaseJSON(f.srv.URL, "v2"))

	dir := filepath.Join(t.TempDir(), "updates")
	// A regular file where the cache directory belongs makes writes fail.
	if err := os.WriteFile(dir, []byte("blocker"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := New(Config{
		FeedURL:  f.srv.URL + "/feed",
		Interval: time.Hour,
		Timeout:  2 * time.Second,
		Dir:      dir,
		Client:   f.srv.Client(),
	})

	if err := m.PollNow(context.Background()); err != nil {
		t.Fatalf("PollNow() error = %v", err)
	}
	if _, err := m.Latest(); err != nil {
		t.Fatalf("Latest() error = %v", err)
	}

	if err := os.Remove(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	// Same document: nothing changed upstream, but the disk copy is missing.
	if err := m.PollNow(context.Background()); err != nil {
		t.Fatalf("second PollNow() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, ReleaseFile))
	if err != nil {
		t.Fatalf("release not written on retry: %v", err)
	}
	if !strings.Contains(string(data), `"v2"`) {
		t.Errorf("persisted release = %s", data)
	}
}

func TestMirror_AssetsMirroredSafely(t *testing.T) {
	f := newFeedServer(t)
	f.set(http.StatusOK, releaseJSON(f.srv.URL, "v1.2.0"))
	m, dir := newTestMirror(t, f, true)

	if err := m.PollNow(context.Background()); err != nil {
		t.Fatal(err)
	}

	p, err := m.AssetPath("station-1.2.0.apk")
	if err != nil {
		t.Fatalf("AssetPath() error = %v", err)
	}
	data, _ := os.ReadFile(p)
	if string(data) != "APKDATA" {
		t.Errorf("asset content = %q", data)
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "evil.sh")); !os.IsNotExist(err) {
		t.Error("path traversal asset written outside the mirror")
	}
	if _, err := m.AssetPath("huge.bin"); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("oversized asset mirrored: %v", err)
	}
	if st := m.Status(); len(st.Assets) != 1 || st.Assets[0] != "station-1.2.0.apk" {
		t.Errorf("Status().Assets = %v", st.Assets)
	}
}

func TestSanitizeAssetName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"station-1.2.0.apk", "station-1.2.0.apk"},
		{"Station_Setup.exe", "Station_Setup.exe"},
		{"../etc/passwd", ""},
		{".hidden", ""},
		{"a/b", ""},
		{"", ""},
		{ReleaseFile, ""},
	}
	for _, tt := range tests {
		if got := SanitizeAssetName(tt.in); got != tt.want {
			t.Errorf("SanitizeAssetName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMirror_ServePollsImmediatelyAndStops(t *testing.T) {
	f := newFeedServer(t)
	f.set(http.StatusOK, releaseJSON(f.srv.URL, "v2"))
	m, _ := newTestMirror(t, f, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for f.polls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if f.polls.Load() != 1 {
		t.Fatalf("polls = %d, want immediate poll", f.polls.Load())
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not stop")
	}
}
