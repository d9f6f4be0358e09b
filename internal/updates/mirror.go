// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

// Package updates mirrors a release feed for peers that cannot reach it
// directly.
package updates

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/station/internal/fsutil"
	"github.com/tomtom215/station/internal/logging"
	"github.com/tomtom215/station/internal/metrics"
	"github.com/tomtom215/station/internal/resilience"
)

const (
	// DefaultInterval between polls.
	DefaultInterval = time.Hour

	// DefaultTimeout bounds one feed request or asset download.
	DefaultTimeout = 30 * time.Second

	// ReleaseFile holds the cached feed document inside Dir.
	ReleaseFile = "release.json"

	maxFeedBytes = 5 << 20
	userAgent    = "Station-UpdateMirror/1.0"
)

var (
	// ErrNoRelease means no feed document has been fetched yet.
	ErrNoRelease = errors.New("no release information yet")

	// ErrAssetNotFound means the requested file is not mirrored.
	ErrAssetNotFound = errors.New("update asset not found")

	assetNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,254}$`)
)

// Config configures a Mirror.
type Config struct {
	FeedURL       string
	Interval      time.Duration
	Timeout       time.Duration
	Dir           string
	MirrorAssets  bool
	MaxAssetBytes int64
	Client        *http.Client
}

// Asset is one downloadable file of a release.
type Asset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
	Size        int64  `json:"size"`
}

// releaseDoc is the part of the feed the mirror reads. The full document is
// kept verbatim.
type releaseDoc struct {
	TagName string  `json:"tag_name"`
	Name    string  `json:"name"`
	Assets  []Asset `json:"assets"`
}

// Status reports poller health.
type Status struct {
	FeedURL     string    `json:"feed_url"`
	Tag         string    `json:"tag,omitempty"`
	LastAttempt time.Time `json:"last_attempt,omitempty"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	NextPoll    time.Time `json:"next_poll,omitempty"`
	Hash        string    `json:"hash,omitempty"`
	Assets      []string  `json:"assets,omitempty"`
}

// Mirror polls the feed, keeps the last good document on disk and
// optionally mirrors its assets next to it.
type Mirror struct {
	cfg     Config
	client  *http.Client
	breaker *resilience.Breaker[[]byte]

	mu        sync.RWMutex
	release   json.RawMessage
	status    Status
	persisted string // hash of the document on disk
}

// New creates a mirror. Call Load to pick up a document cached by a
// previous run.
func New(cfg Config) *Mirror {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Mirror{
		cfg:     cfg,
		client:  client,
		breaker: resilience.NewBreaker[[]byte](resilience.DefaultBreakerConfig("update-feed")),
		status:  Status{FeedURL: cfg.FeedURL},
	}
}

// Load reads the cached document from disk. A missing file is not an error.
func (m *Mirror) Load() error {
	data, err := os.ReadFile(filepath.Join(m.cfg.Dir, ReleaseFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cached release: %w", err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("cached release is not valid JSON")
	}
	var doc releaseDoc
	_ = json.Unmarshal(data, &doc)

	m.mu.Lock()
	m.release = data
	m.status.Tag = doc.TagName
	m.status.Hash = hashOf(data)
	m.persisted = m.status.Hash
	m.mu.Unlock()
	return nil
}

// Latest returns the cached feed document.
func (m *Mirror) Latest() (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.release == nil {
		return nil, ErrNoRelease
	}
	return append(json.RawMessage(nil), m.release...), nil
}

// Status returns a copy of the poller status.
func (m *Mirror) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := m.status
	st.Assets = append([]string(nil), m.status.Assets...)
	return st
}

// Serve polls immediately and then every Interval until ctx is canceled.
// A failed poll keeps the previous document; the next tick is the only
// retry.
func (m *Mirror) Serve(ctx context.Context) error {
	logging.Info().Str("feed", m.cfg.FeedURL).Dur("interval", m.cfg.Interval).Msg("update mirror started")

	if err := m.PollNow(ctx); err != nil {
		logging.Warn().Err(err).Msg("initial update poll failed")
	}

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		m.mu.Lock()
		m.status.NextPoll = time.Now().Add(m.cfg.Interval)
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			logging.Info().Str("component", "update-mirror").Msg("update mirror stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := m.PollNow(ctx); err != nil {
				logging.Warn().Err(err).Msg("scheduled update poll failed")
			}
		}
	}
}

// PollNow fetches the feed once.
func (m *Mirror) PollNow(ctx context.Context) error {
	m.mu.Lock()
	m.status.LastAttempt = time.Now()
	m.mu.Unlock()

	data, err := m.breaker.Execute(func() ([]byte, error) {
		return m.fetchFeed(ctx)
	})
	if err != nil {
		metrics.UpdatePolls.WithLabelValues(pollResult(err)).Inc()
		m.mu.Lock()
		m.status.LastError = err.Error()
		m.mu.Unlock()
		return err
	}

	var doc releaseDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		// Valid JSON that is not a release object is still cached verbatim.
		doc = releaseDoc{}
	}

	hash := hashOf(data)
	m.mu.Lock()
	changed := hash != m.status.Hash
	stale := hash != m.persisted
	m.mu.Unlock()

	// A failed write leaves persisted behind, so the next poll retries it.
	if stale {
		if err := fsutil.WriteFileAtomic(filepath.Join(m.cfg.Dir, ReleaseFile), data, 0o644); err != nil {
			logging.Warn().Err(err).Msg("cached release not persisted")
		} else {
			m.mu.Lock()
			m.persisted = hash
			m.mu.Unlock()
		}
	}

	m.mu.Lock()
	m.release = data
	m.status.Tag = doc.TagName
	m.status.Hash = hash
	m.status.LastSuccess = time.Now()
	m.status.LastError = ""
	m.mu.Unlock()

	if changed {
		metrics.UpdatePolls.WithLabelValues("ok").Inc()
		logging.Info().Str("tag", doc.TagName).Int("assets", len(doc.Assets)).Msg("release updated")
	} else {
		metrics.UpdatePolls.WithLabelValues("unchanged").Inc()
		logging.Debug().Str("tag", doc.TagName).Msg("release unchanged")
	}

	if m.cfg.MirrorAssets {
		m.mirrorAssets(ctx, doc.Assets)
	}
	return nil
}

var errHTTPStatus = errors.New("unexpected feed status")
var errInvalidFeed = errors.New("feed is not valid JSON")

func (m *Mirror) fetchFeed(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.FeedURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", errHTTPStatus, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	if !json.Valid(data) {
		return nil, errInvalidFeed
	}
	return data, nil
}

func pollResult(err error) string {
	switch {
	case errors.Is(err, errHTTPStatus):
		return "http_error"
	case errors.Is(err, errInvalidFeed):
		return "invalid"
	case resilience.IsRejected(err):
		return "rejected"
	default:
		return "network"
	}
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
