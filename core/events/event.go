package events

import (
	"sync"

	"rewardcenter/core/types"
)

// Event represents a structured state change emitted by a program.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. gateway, indexer).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies Emitter while discarding all events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer collects events emitted during a transaction so they can be
// published only once the transaction commits.
type Buffer struct {
	events []types.Event
}

// Emit records ledger events; other event kinds are ignored.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	if typed, ok := evt.(*types.Event); ok && typed != nil {
		b.events = append(b.events, *typed.Clone())
	}
}

// Events returns the buffered events.
func (b *Buffer) Events() []types.Event {
	if b == nil {
		return nil
	}
	out := make([]types.Event, len(b.events))
	for i := range b.events {
		out[i] = *b.events[i].Clone()
	}
	return out
}

// Reset drops buffered events.
func (b *Buffer) Reset() {
	if b != nil {
		b.events = b.events[:0]
	}
}

// Committed is delivered to hub subscribers for every committed transaction.
type Committed struct {
	TxHash [32]byte
	Seq    uint64
	Events []types.Event
}

// Hub fans committed transactions out to subscribers. Slow subscribers drop
// messages instead of blocking the executor; subscribers that need every
// transaction fill gaps from the executor's journal.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Committed
	onDrop func()
}

// OnDrop registers a callback run for every message a full subscriber misses.
func (h *Hub) OnDrop(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDrop = fn
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Committed)}
}

// Subscribe registers a subscriber with the given buffer size. The returned
// cancel function closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Committed, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Committed, buffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers msg to every subscriber without blocking.
func (h *Hub) Publish(msg Committed) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- msg:
		default:
			if h.onDrop != nil {
				h.onDrop()
			}
		}
	}
}
