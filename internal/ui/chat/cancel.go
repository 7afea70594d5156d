// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
)

// =============================================================================
// CANCEL FUNCTION MANAGEMENT (THREAD-SAFE)
// =============================================================================

type cancelEntry struct {
	token uint64
	fn    context.CancelFunc
}

// cancelManager holds the cancel function of each in-flight exchange, keyed
// by conversation id. It is shared by pointer across Model copies.
// IMPORTANT: a finished exchange only clears its own entry; the token
// guards against a late ExchangeDoneMsg removing a newer exchange.
type cancelManager struct {
	mu      sync.Mutex
	next    uint64
	cancels map[string]cancelEntry
}

func newCancelManager() *cancelManager {
	return &cancelManager{cancels: make(map[string]cancelEntry)}
}

// set stores fn for convID and returns the token that finishes it. It
// refuses while another exchange for convID is still registered.
func (cm *cancelManager) set(convID string, fn context.CancelFunc) (uint64, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, live := cm.cancels[convID]; live {
		return 0, false
	}
	cm.next++
	cm.cancels[convID] = cancelEntry{token: cm.next, fn: fn}
	return cm.next, true
}

// finish releases the entry for convID if it still belongs to token.
func (cm *cancelManager) finish(convID string, token uint64) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if e, ok := cm.cancels[convID]; ok && e.token == token {
		e.fn()
		delete(cm.cancels, convID)
	}
}

// cancel cancels the exchange for convID. Reports whether one was running.
func (cm *cancelManager) cancel(convID string) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	e, ok := cm.cancels[convID]
	if ok {
		e.fn()
		delete(cm.cancels, convID)
	}
	return ok
}

// cancelAll cancels every in-flight exchange.
func (cm *cancelManager) cancelAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for id, e := range cm.cancels {
		e.fn()
		delete(cm.cancels, id)
	}
}

func (cm *cancelManager) running(convID string) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	_, ok := cm.cancels[convID]
	return ok
}
