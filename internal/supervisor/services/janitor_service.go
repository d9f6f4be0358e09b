// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package services

import (
	"context"
	"time"

	"github.com/tomtom215/station/internal/logging"
)

// DefaultJanitorInterval is how often stale registry state is swept.
const DefaultJanitorInterval = time.Minute

// Sweeper matches *websocket.Registry.
type Sweeper interface {
	Sweep() (records, providers int)
}

// JanitorService periodically purges expired reconnection records and
// backup-provider entries. Lookups purge lazily as well; the sweep bounds
// memory held for devices that never come back.
type JanitorService struct {
	sweeper  Sweeper
	interval time.Duration
	name     string
}

// NewJanitorService creates the sweep loop. A non-positive interval
// defaults to DefaultJanitorInterval.
func NewJanitorService(sweeper Sweeper, interval time.Duration) *JanitorService {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	return &JanitorService{sweeper: sweeper, interval: interval, name: "janitor"}
}

// Serve implements suture.Service.
func (j *JanitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			records, providers := j.sweeper.Sweep()
			if records+providers > 0 {
				logging.Debug().
					Int("disconnect_records", records).
					Int("providers", providers).
					Msg("janitor purged stale entries")
			}
		}
	}
}

// String implements fmt.Stringer for suture logs.
func (j *JanitorService) String() string {
	return j.name
}
