// Package streaming provides the in-memory per-run event feed consumed by
// the SSE and WebSocket endpoints. The orchestrator publishes step
// transitions and observations as it works through a run.
package streaming

import (
	"encoding/json"
	"sync"
	"time"
)

// Event types published by the orchestrator.
const (
	TypeStep        = "step"
	TypeObservation = "observation"
	TypeUncertainty = "uncertainty"
	TypeCompleted   = "completed"
	TypeFailed      = "failed"
)

// Event is one progress update for a run.
type Event struct {
	RunID     string    `json:"run_id"`
	Type      string    `json:"type"`
	Step      string    `json:"step,omitempty"`
	Iteration int       `json:"iteration,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Seq       uint64    `json:"seq"`
}

// Marshal returns the event as JSON for SSE frames and WebSocket messages.
func (e Event) Marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Manager is an in-memory pub/sub hub keyed by run ID, with a per-run ring
// buffer so late subscribers (and SSE Last-Event-ID reconnects) can replay
// recent events.
type Manager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	history     map[string]*ring
	capacity    int
	retention   time.Duration
}

// defaultRetention keeps a finished run's replay buffer around long enough
// for a late SSE reconnect to catch the terminal event.
const defaultRetention = 2 * time.Minute

// NewManager creates a manager whose per-run replay buffers hold capacity
// events (<= 0 uses 256).
func NewManager(capacity int) *Manager {
	if capacity <= 0 {
		capacity = 256
	}
	return &Manager{
		subscribers: make(map[string]map[chan Event]struct{}),
		history:     make(map[string]*ring),
		capacity:    capacity,
		retention:   defaultRetention,
	}
}

// SetRetention overrides how long a finished run's replay buffer is kept
// after FinishRun. d <= 0 drops the buffer immediately.
func (m *Manager) SetRetention(d time.Duration) {
	m.mu.Lock()
	m.retention = d
	m.mu.Unlock()
}

// Subscribe registers a channel for runID events. The caller must drain the
// channel and call Unsubscribe when done.
func (m *Manager) Subscribe(runID string, buffer int) chan Event {
	ch := make(chan Event, buffer)
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subscribers[runID]
	if subs == nil {
		subs = make(map[chan Event]struct{})
		m.subscribers[runID] = subs
	}
	subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes the channel.
func (m *Manager) Unsubscribe(runID string, ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if subs, ok := m.subscribers[runID]; ok {
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(m.subscribers, runID)
		}
	}
}

// Publish assigns a sequence number, records the event for replay, and
// delivers it to every subscriber. Slow subscribers drop events rather than
// block the run.
func (m *Manager) Publish(runID string, evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	evt.RunID = runID

	m.mu.Lock()
	rg := m.history[runID]
	if rg == nil {
		rg = newRing(m.capacity)
		m.history[runID] = rg
	}
	evt.Seq = rg.nextSeq
	rg.nextSeq++
	rg.push(evt)
	subs := m.subscribers[runID]
	m.mu.Unlock()

	for ch := range subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// ReplaySince returns buffered events with Seq > since, best-effort within
// the ring capacity.
func (m *Manager) ReplaySince(runID string, since uint64) []Event {
	m.mu.RLock()
	rg := m.history[runID]
	m.mu.RUnlock()
	if rg == nil {
		return nil
	}
	return rg.since(since)
}

// FinishRun marks a run terminal and schedules its replay buffer to be
// dropped after the retention window, so history does not grow without
// bound in a long-lived serve process.
func (m *Manager) FinishRun(runID string) {
	m.mu.RLock()
	retention := m.retention
	m.mu.RUnlock()
	if retention <= 0 {
		m.Forget(runID)
		return
	}
	time.AfterFunc(retention, func() { m.Forget(runID) })
}

// Forget drops a finished run's replay buffer.
func (m *Manager) Forget(runID string) {
	m.mu.Lock()
	delete(m.history, runID)
	m.mu.Unlock()
}

type ring struct {
	buf     []Event
	start   int
	count   int
	nextSeq uint64
}

func newRing(capacity int) *ring { return &ring{buf: make([]Event, capacity)} }

func (r *ring) push(e Event) {
	if len(r.buf) == 0 {
		return
	}
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) since(seq uint64) []Event {
	if r.count == 0 {
		return nil
	}
	out := make([]Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		ev := r.buf[(r.start+i)%len(r.buf)]
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}
