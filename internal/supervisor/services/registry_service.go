// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package services

import (
	"context"
)

// Runner matches *websocket.Registry.
type Runner interface {
	Run(ctx context.Context) error
}

// RegistryService delivers queued broadcasts to live sessions.
type RegistryService struct {
	registry Runner
	name     string
}

// NewRegistryService wraps a session registry.
func NewRegistryService(registry Runner) *RegistryService {
	return &RegistryService{registry: registry, name: "session-registry"}
}

// Serve implements suture.Service.
func (r *RegistryService) Serve(ctx context.Context) error {
	return r.registry.Run(ctx)
}

// String implements fmt.Stringer for suture logs.
func (r *RegistryService) String() string {
	return r.name
}
