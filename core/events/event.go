package events

import (
	"sync"

	"tdcchain/core/types"
)

// Event represents a structured state change emitted by a ledger.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. journal, streams).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer holds events until the surrounding transaction decides whether they
// are published (Flush) or dropped (Reset).
type Buffer struct {
	pending []Event
}

func (b *Buffer) Emit(e Event) {
	if e == nil {
		return
	}
	b.pending = append(b.pending, e)
}

// Events returns the buffered events in emission order.
func (b *Buffer) Events() []Event {
	return append([]Event(nil), b.pending...)
}

// Flush forwards every buffered event to dst and empties the buffer.
func (b *Buffer) Flush(dst Emitter) {
	pending := b.pending
	b.pending = nil
	if dst == nil {
		return
	}
	for _, e := range pending {
		dst.Emit(e)
	}
}

// Reset drops every buffered event.
func (b *Buffer) Reset() { b.pending = nil }

// Multi fans an event out to several emitters in order.
type Multi []Emitter

func (m Multi) Emit(e Event) {
	for _, dst := range m {
		if dst != nil {
			dst.Emit(e)
		}
	}
}

// Feed delivers events to live subscribers. Slow subscribers lose events
// rather than stalling the ledger.
type Feed struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan *types.Event
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[int]chan *types.Event)}
}

func (f *Feed) Emit(e Event) {
	if f == nil || e == nil {
		return
	}
	payload := e.Event()
	if payload == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Subscribe registers a subscriber with the given channel capacity. The
// returned cancel function closes the channel.
func (f *Feed) Subscribe(capacity int) (<-chan *types.Event, func()) {
	if capacity <= 0 {
		capacity = 64
	}
	ch := make(chan *types.Event, capacity)
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	f.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers reports the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
