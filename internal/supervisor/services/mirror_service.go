// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package services

import (
	"context"
)

// Poller matches *updates.Mirror.
type Poller interface {
	Serve(ctx context.Context) error
}

// MirrorService runs the update feed poller. The poller polls once on every
// (re)start, so a restart after a crash refreshes immediately.
type MirrorService struct {
	poller Poller
	name   string
}

// NewMirrorService wraps an update mirror.
func NewMirrorService(poller Poller) *MirrorService {
	return &MirrorService{poller: poller, name: "update-mirror"}
}

// Serve implements suture.Service.
func (m *MirrorService) Serve(ctx context.Context) error {
	return m.poller.Serve(ctx)
}

// String implements fmt.Stringer for suture logs.
func (m *MirrorService) String() string {
	return m.name
}
