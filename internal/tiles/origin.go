// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package tiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/tomtom215/station/internal/metrics"
	"github.com/tomtom215/station/internal/resilience"
)

const (
	// DefaultOriginTimeout bounds a single origin fetch.
	DefaultOriginTimeout = 10 * time.Second

	// DefaultOriginConcurrency caps simultaneous origin fetches.
	DefaultOriginConcurrency = 4

	// maxTileBytes caps an origin response body.
	maxTileBytes = 2 << 20

	userAgent = "Station-TileCache/1.0"
)

// Fetcher produces tiles the local layers do not have.
type Fetcher interface {
	Fetch(ctx context.Context, key Key) ([]byte, error)
}

// OriginConfig configures an Origin.
type OriginConfig struct {
	// URLTemplate contains {z}, {x} and {y} placeholders.
	URLTemplate string

	// Timeout bounds each fetch. Zero uses DefaultOriginTimeout.
	Timeout time.Duration

	// Rate is requests per second to the origin. Zero disables limiting.
	Rate float64

	// Concurrency caps in-flight fetches. Zero uses DefaultOriginConcurrency.
	Concurrency int64

	// Client overrides the HTTP client, for tests.
	Client *http.Client
}

// Origin fetches tiles from an upstream tile server. Each fetch is a single
// attempt: a failed tile is retried only by the next request for it.
type Origin struct {
	template string
	timeout  time.Duration
	client   *http.Client
	limiter  *rate.Limiter
	sem      *semaphore.Weighted
	breaker  *resilience.Breaker[[]byte]
}

// NewOrigin creates an origin client.
func NewOrigin(cfg OriginConfig) *Origin {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultOriginTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultOriginConcurrency
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		burst := int(cfg.Rate)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}

	bcfg := resilience.DefaultBreakerConfig("tile-origin")
	bcfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrTileNotFound)
	}

	return &Origin{
		template: cfg.URLTemplate,
		timeout:  cfg.Timeout,
		client:   client,
		limiter:  limiter,
		sem:      semaphore.NewWeighted(cfg.Concurrency),
		breaker:  resilience.NewBreaker[[]byte](bcfg),
	}
}

// URL expands the template for key.
func (o *Origin) URL(key Key) string {
	return strings.NewReplacer(
		"{z}", strconv.Itoa(key.Z),
		"{x}", strconv.Itoa(key.X),
		"{y}", strconv.Itoa(key.Y),
	).Replace(o.template)
}

// Fetch downloads and validates one tile. The timeout covers waiting for a
// slot and for the rate limiter as well as the request itself.
func (o *Origin) Fetch(ctx context.Context, key Key) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("origin slot: %w", err)
	}
	defer o.sem.Release(1)

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("origin rate limit: %w", err)
		}
	}

	start := time.Now()
	data, err := o.breaker.Execute(func() ([]byte, error) {
		return o.fetch(ctx, key)
	})
	metrics.RecordOriginFetch(originResult(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (o *Origin) fetch(ctx context.Context, key Key) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.URL(key), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create origin request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/png,image/jpeg")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("origin request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: origin 404 for %s", ErrTileNotFound, key)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("origin status %d for %s", resp.StatusCode, key)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read origin body: %w", err)
	}
	if len(data) > maxTileBytes {
		return nil, fmt.Errorf("%w: origin body exceeds %d bytes", ErrInvalidTile, maxTileBytes)
	}
	if err := Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

func originResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTileNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTile):
		return "invalid"
	case resilience.IsRejected(err):
		return "rejected"
	default:
		return "error"
	}
}
