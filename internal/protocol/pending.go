// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package protocol

import (
	"sync"

	"github.com/tomtom215/station/internal/metrics"
)

// ProxyResult completes a pending correlation. Err is set for synthetic
// failures such as shutdown.
type ProxyResult struct {
	Response HTTPResponseMessage
	Err      error
}

// PendingTable correlates proxied requests with device responses. Each id
// gets a one-shot channel that receives exactly one result.
type PendingTable struct {
	mu      sync.Mutex
	pending map[string]chan ProxyResult
}

// NewPendingTable creates an empty table.
func NewPendingTable() *PendingTable {
	return &PendingTable{pending: make(map[string]chan ProxyResult)}
}

// Register opens a correlation for id.
func (p *PendingTable) Register(id string) <-chan ProxyResult {
	ch := make(chan ProxyResult, 1)
	p.mu.Lock()
	p.pending[id] = ch
	n := len(p.pending)
	p.mu.Unlock()
	metrics.ProxyPending.Set(float64(n))
	return ch
}

// Resolve delivers a device response. Unknown ids return false.
func (p *PendingTable) Resolve(id string, resp HTTPResponseMessage) bool {
	return p.complete(id, ProxyResult{Response: resp})
}

// Cancel forgets id without delivering anything.
func (p *PendingTable) Cancel(id string) {
	p.mu.Lock()
	delete(p.pending, id)
	n := len(p.pending)
	p.mu.Unlock()
	metrics.ProxyPending.Set(float64(n))
}

// FailAll completes every correlation with err and returns how many there
// were.
func (p *PendingTable) FailAll(err error) int {
	p.mu.Lock()
	chans := p.pending
	p.pending = make(map[string]chan ProxyResult)
	p.mu.Unlock()

	for _, ch := range chans {
		ch <- ProxyResult{Err: err}
	}
	metrics.ProxyPending.Set(0)
	return len(chans)
}

// Len returns the number of open correlations.
func (p *PendingTable) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *PendingTable) complete(id string, res ProxyResult) bool {
	p.mu.Lock()
	ch, ok := p.pending[id]
	if ok {
		delete(p.pending, id)
	}
	n := len(p.pending)
	p.mu.Unlock()
	if !ok {
		return false
	}
	metrics.ProxyPending.Set(float64(n))
	ch <- res
	return true
}
