// Package queue owns the two process-wide FIFOs that shuttle work between
// the transport goroutine and the frame goroutine: decoded Requests inbound,
// formatted response strings outbound.
//
// Both queues sit behind a single mutex because one logical exchange touches
// both; a second lock would only add an ordering hazard. The lock is held
// for pushes, pops and drains only, never across I/O or an engine call.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dorcha-inc/gamelink/internal/protocol"
)

// Default bounded-poll window for responses: 10 attempts x 10ms, roughly
// 100ms end to end. The controller applies its own timeout on top.
const (
	DefaultPollAttempts = 10
	DefaultPollInterval = 10 * time.Millisecond
)

// Manager owns the pending-work and result queues.
type Manager struct {
	mu      sync.Mutex
	pending []protocol.Request
	results []string

	clock        clockwork.Clock
	pollAttempts int
	pollInterval time.Duration
}

// NewManager creates a Manager with a real clock.
func NewManager(pollAttempts int, pollInterval time.Duration) *Manager {
	return NewManagerWithClock(pollAttempts, pollInterval, clockwork.NewRealClock())
}

// NewManagerWithClock creates a Manager with a custom clock.
// This is useful for testing the poll window with a fake clock.
func NewManagerWithClock(pollAttempts int, pollInterval time.Duration, clock clockwork.Clock) *Manager {
	if pollAttempts <= 0 {
		pollAttempts = DefaultPollAttempts
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Manager{
		clock:        clock,
		pollAttempts: pollAttempts,
		pollInterval: pollInterval,
	}
}

// Enqueue appends one decoded Request to the pending-work queue.
func (m *Manager) Enqueue(req protocol.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, req)
}

// Drain atomically removes and returns the entire current contents of the
// pending-work queue in enqueue order. Requests enqueued after the swap wait
// for the next drain.
func (m *Manager) Drain() []protocol.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) == 0 {
		return nil
	}
	batch := m.pending
	m.pending = nil
	return batch
}

// PushResult appends one formatted response to the result queue.
func (m *Manager) PushResult(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, response)
}

// TryPopResult removes and returns the oldest queued response, if any.
func (m *Manager) TryPopResult() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.results) == 0 {
		return "", false
	}
	response := m.results[0]
	m.results = m.results[1:]
	return response, true
}

// PollResult waits up to the bounded poll window for a response to appear.
// It returns false when the window elapses or the context is canceled.
//
// This is a documented busy-wait approximation of a condition variable; the
// window stays bounded so a stuck frame loop cannot park the transport
// goroutine forever.
func (m *Manager) PollResult(ctx context.Context) (string, bool) {
	for i := 0; i < m.pollAttempts; i++ {
		if response, ok := m.TryPopResult(); ok {
			return response, true
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-m.clock.After(m.pollInterval):
		}
	}
	return m.TryPopResult()
}

// PendingLen reports the current pending-work queue depth.
func (m *Manager) PendingLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// ResultLen reports the current result queue depth.
func (m *Manager) ResultLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}
