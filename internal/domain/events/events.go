package events

import (
	"html"
	"sync"
	"time"

	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/logging"
	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/griffin-notebook/internal/shared/id"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// Kind identifies an event
type Kind string

const (
	FocusGained  Kind = "focus-gained"
	FocusLost    Kind = "focus-lost"
	SessionReady Kind = "session-ready"
	SessionError Kind = "session-error"
)

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	switch k {
	case FocusGained, FocusLost, SessionReady, SessionError:
		return true
	}
	return false
}

// DefaultBuffer is the per-subscriber queue length
const DefaultBuffer = 64

// Event is published when a notebook session changes
type Event struct {
	Kind      Kind      `json:"kind"`
	SessionID string    `json:"session_id,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	FileURL   string    `json:"file_url,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscription receives events until closed
type Subscription struct {
	ID id.ObserverID

	bus    *Bus
	ch     chan Event
	kinds  map[Kind]bool
	closed bool
}

// Events returns the delivery channel. It is closed by Close.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

func (s *Subscription) wants(k Kind) bool {
	return len(s.kinds) == 0 || s.kinds[k]
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose queue is full misses the event.
type Bus struct {
	logger    *logging.Logger
	metrics   *monitoring.Metrics
	sanitizer *bluemonday.Policy

	mu   sync.RWMutex
	subs map[id.ObserverID]*Subscription
}

// NewBus creates an event bus
func NewBus(log *logging.Logger) *Bus {
	if log == nil {
		log = logging.NewNop()
	}
	return &Bus{
		logger:    log.Named("events"),
		sanitizer: bluemonday.StrictPolicy(),
		subs:      make(map[id.ObserverID]*Subscription),
	}
}

// WithMetrics attaches a metrics collector
func (b *Bus) WithMetrics(metrics *monitoring.Metrics) *Bus {
	b.metrics = metrics
	return b
}

// Subscribe registers an observer for the given kinds, or all kinds when
// none are given. buffer <= 0 means DefaultBuffer.
func (b *Bus) Subscribe(buffer int, kinds ...Kind) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &Subscription{
		ID:  id.NewObserverID(),
		bus: b,
		ch:  make(chan Event, buffer),
	}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	b.mu.Unlock()
	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	delete(b.subs, sub.ID)
	close(sub.ch)
}

// Len returns the number of subscribers
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers e to every interested subscriber. Error text is reduced
// to plain text since hosts render it in a web view: tags are stripped and
// entities decoded, so quoted paths arrive as written.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Error != "" {
		e.Error = plainText(b.sanitizer, e.Error)
	}

	if b.metrics != nil {
		b.metrics.RecordEvent(string(e.Kind))
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if !sub.wants(e.Kind) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			b.logger.Warn("Dropping event for slow observer",
				zap.String("observer_id", sub.ID.String()),
				zap.String("kind", string(e.Kind)))
		}
	}
}

// Close unsubscribes everyone
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for oid, sub := range b.subs {
		sub.closed = true
		close(sub.ch)
		delete(b.subs, oid)
	}
}

// plainText strips markup from s without leaving entities behind. Decoding
// can expose markup that was escaped in the input, so it repeats until the
// text is stable.
func plainText(p *bluemonday.Policy, s string) string {
	for i := 0; i < 3; i++ {
		out := html.UnescapeString(p.Sanitize(s))
		if out == s {
			break
		}
		s = out
	}
	return s
}
