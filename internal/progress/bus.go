// Package progress provides the in-memory progress event bus that bridges
// provisioning runs to websocket subscribers.
package progress

import (
	"sync"
	"time"
)

// Event is one progress update for a provisioning run. Percent is the
// orchestrator-level 0-100 value, already remapped from provider progress.
type Event struct {
	RunID    string    `json:"run_id"`
	ClientID string    `json:"client_id,omitempty"`
	State    string    `json:"state"`
	Percent  int       `json:"percent"`
	Message  string    `json:"message,omitempty"`
	Error    string    `json:"error,omitempty"`
	Terminal bool      `json:"terminal"`
	At       time.Time `json:"at"`
}

// Publisher is the write side of the bus, used by the orchestrator.
type Publisher interface {
	Publish(runID string, event Event)
	Close(runID string)
}

const subscriberBuffer = 32

// closedRetention is how long a closed run's tombstone is kept around so
// that stragglers subscribing just after the run finished still observe a
// cleanly closed channel instead of an open, silent one.
const closedRetention = 5 * time.Minute

type channelSet struct {
	subscribers map[chan Event]struct{}
	closed      bool
}

// Bus fans progress events out to per-run subscribers. Events published to
// a run with no subscribers are dropped; publishing after Close is a no-op.
// Closed runs are forgotten after a retention window so the map does not
// grow with the number of runs ever executed.
type Bus struct {
	mu        sync.RWMutex
	runs      map[string]*channelSet
	retention time.Duration
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{runs: make(map[string]*channelSet), retention: closedRetention}
}

// Publish delivers the event to every current subscriber of the run. Slow
// subscribers whose buffer is full miss the event rather than blocking the
// orchestrator.
func (b *Bus) Publish(runID string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	set, ok := b.runs[runID]
	if !ok || set.closed {
		return
	}
	for ch := range set.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a new subscriber for the run and returns its channel
// plus an unsubscribe function. Subscribing to a closed or unknown run
// returns an already-closed channel.
func (b *Bus) Subscribe(runID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.runs[runID]
	if ok && set.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	if !ok {
		set = &channelSet{subscribers: make(map[chan Event]struct{})}
		b.runs[runID] = set
	}

	ch := make(chan Event, subscriberBuffer)
	set.subscribers[ch] = struct{}{}

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, still := set.subscribers[ch]; still {
			delete(set.subscribers, ch)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// Close marks the run finished and closes all subscriber channels. Further
// publishes and subscribes observe the closed state.
func (b *Bus) Close(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.runs[runID]
	if !ok {
		b.runs[runID] = &channelSet{closed: true}
		b.scheduleForget(runID)
		return
	}
	if set.closed {
		return
	}
	set.closed = true
	for ch := range set.subscribers {
		close(ch)
	}
	set.subscribers = nil
	b.scheduleForget(runID)
}

// scheduleForget arms the retention timer for a just-closed run. Caller
// holds the lock.
func (b *Bus) scheduleForget(runID string) {
	if b.retention <= 0 {
		return
	}
	time.AfterFunc(b.retention, func() { b.Forget(runID) })
}

// Forget drops all bookkeeping for the run. Used once no late subscriber
// can be expected, to keep the map from growing unbounded.
func (b *Bus) Forget(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.runs, runID)
}
