// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package services

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/station/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

type blockingRunner struct {
	started chan struct{}
}

func (b *blockingRunner) Run(ctx context.Context) error {
	close(b.started)
	<-ctx.Done()
	return ctx.Err()
}

func (b *blockingRunner) Serve(ctx context.Context) error {
	return b.Run(ctx)
}

type countingSweeper struct {
	calls atomic.Int32
}

func (c *countingSweeper) Sweep() (int, int) {
	n := c.calls.Add(1)
	return int(n), 0
}

func TestRegistryService(t *testing.T) {
	var _ suture.Service = (*RegistryService)(nil)

	runner := &blockingRunner{started: make(chan struct{})}
	svc := NewRegistryService(runner)
	if svc.String() != "session-registry" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	<-runner.started
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMirrorService(t *testing.T) {
	var _ suture.Service = (*MirrorService)(nil)

	poller := &blockingRunner{started: make(chan struct{})}
	svc := NewMirrorService(poller)
	if svc.String() != "update-mirror" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	<-poller.started
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestJanitorService(t *testing.T) {
	var _ suture.Service = (*JanitorService)(nil)

	t.Run("default interval", func(t *testing.T) {
		svc := NewJanitorService(&countingSweeper{}, 0)
		if svc.interval != DefaultJanitorInterval {
			t.Errorf("interval = %v, want %v", svc.interval, DefaultJanitorInterval)
		}
		if svc.String() != "janitor" {
			t.Errorf("String() = %q", svc.String())
		}
	})

	t.Run("sweeps on every tick", func(t *testing.T) {
		sweeper := &countingSweeper{}
		svc := NewJanitorService(sweeper, 5*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()

		deadline := time.Now().Add(2 * time.Second)
		for sweeper.calls.Load() < 3 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		cancel()

		if err := <-errCh; !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if sweeper.calls.Load() < 3 {
			t.Errorf("sweeps = %d, want at least 3", sweeper.calls.Load())
		}
	})
}
