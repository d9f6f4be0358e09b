// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/station/internal/metrics"
)

// DefaultProxyTimeout bounds the wait for a device's HTTP_RESPONSE.
const DefaultProxyTimeout = 30 * time.Second

// Proxy errors.
var (
	ErrNoDevice       = errors.New("no connected device with that callsign")
	ErrProxyTimeout   = errors.New("device did not respond in time")
	ErrServerStopping = errors.New("server stopping")
)

// ProxyRequest is an HTTP request to forward to a device.
type ProxyRequest struct {
	Method   string
	Path     string
	Headers  map[string]string
	Body     string
	IsBase64 bool
}

// Proxy forwards req to the session holding callsign and waits for the
// correlated HTTP_RESPONSE, at most timeout.
func (d *Dispatcher) Proxy(ctx context.Context, callsign string, req ProxyRequest, timeout time.Duration) (HTTPResponseMessage, error) {
	s, ok := d.registry.ByCallsign(callsign)
	if !ok {
		metrics.ProxyRequests.WithLabelValues("no_device").Inc()
		return HTTPResponseMessage{}, fmt.Errorf("%w: %s", ErrNoDevice, callsign)
	}
	if timeout <= 0 {
		timeout = DefaultProxyTimeout
	}

	id := uuid.New().String()
	ch := d.pending.Register(id)

	err := s.Send(HTTPRequestMessage{
		Type:      TypeHTTPRequest,
		RequestID: id,
		Method:    req.Method,
		Path:      req.Path,
		Headers:   req.Headers,
		Body:      req.Body,
		IsBase64:  req.IsBase64,
	})
	if err != nil {
		d.pending.Cancel(id)
		metrics.ProxyRequests.WithLabelValues("send_failed").Inc()
		return HTTPResponseMessage{}, fmt.Errorf("forward to %s: %w", callsign, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			metrics.ProxyRequests.WithLabelValues("stopping").Inc()
			return HTTPResponseMessage{}, res.Err
		}
		metrics.ProxyRequests.WithLabelValues("ok").Inc()
		return res.Response, nil
	case <-timer.C:
		d.pending.Cancel(id)
		metrics.ProxyRequests.WithLabelValues("timeout").Inc()
		return HTTPResponseMessage{}, ErrProxyTimeout
	case <-ctx.Done():
		d.pending.Cancel(id)
		metrics.ProxyRequests.WithLabelValues("canceled").Inc()
		return HTTPResponseMessage{}, ctx.Err()
	}
}
