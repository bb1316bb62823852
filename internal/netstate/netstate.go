// Package netstate records whether the last network attempt suggested that
// connectivity was present.
package netstate

import (
	"log/slog"
	"sync"

	"github.com/tinoosan/ghusers/internal/metrics"
)

// State is the connectivity signal exposed to consumers.
type State int

const (
	Established State = iota
	NotConnected
)

func (s State) String() string {
	if s == NotConnected {
		return "not_connected"
	}
	return "established"
}

// Tracker holds the current State. It is mutated only by task outcomes and
// notifies subscribers on every change, never on a redundant write.
type Tracker struct {
	mu    sync.Mutex
	state State
	subs  map[int]chan State
	next  int
	log   *slog.Logger
}

// New returns a Tracker in the Established state.
func New(log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	metrics.Connectivity.Set(1)
	return &Tracker{subs: make(map[int]chan State), log: log}
}

// Current returns the last recorded state.
func (t *Tracker) Current() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Set records s and reports whether it differed from the previous state.
func (t *Tracker) Set(s State) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == s {
		return false
	}
	t.state = s
	if s == Established {
		metrics.Connectivity.Set(1)
	} else {
		metrics.Connectivity.Set(0)
	}
	t.log.Info("connectivity changed", "state", s)
	for id, ch := range t.subs {
		select {
		case ch <- s:
		default:
			metrics.SubscriberDrops.Inc()
			t.log.Warn("connectivity subscriber lagging, dropped notification", "subscriber", id, "state", s)
		}
	}
	return true
}

// Subscribe returns a channel receiving every subsequent state change and a
// function that unsubscribes and closes the channel. Notifications to a full
// channel are dropped so that task completion never blocks on a consumer.
func (t *Tracker) Subscribe(buf int) (<-chan State, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan State, buf)
	t.mu.Lock()
	id := t.next
	t.next++
	t.subs[id] = ch
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
			close(ch)
		})
	}
}
