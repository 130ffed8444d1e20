// Package mux implements the demultiplexing layer: an id allocator and
// a registry mapping call/channel ids to per-interaction inboxes, the
// same responsibility the teacher's Home Assistant client folds into
// a single pending map, generalized here to two id kinds and a
// shutdown fan-out.
package mux

import (
	"sync"

	"github.com/nugget/lmstudio-go/internal/wire"
)

// Inbox is an unbounded FIFO of inbound frames for exactly one call or
// channel. A nil *wire.Inbound read from Frames is the shutdown
// sentinel: after it, no further value is ever sent.
//
// post is called synchronously from the Pump's single event-loop
// goroutine, so it must never block on a slow consumer — a blocking
// post would stall delivery to every other in-flight call/channel.
// The queue is therefore a plain growable slice guarded by a mutex; a
// relay goroutine drains it onto the channel Frames returns, one
// inbox's backlog growing independently of how fast its own consumer
// keeps up.
type Inbox struct {
	mu    sync.Mutex
	cond  *sync.Cond
	queue []*wire.Inbound
	out   chan *wire.Inbound
}

// NewInbox creates an inbox and starts its relay goroutine.
func NewInbox() *Inbox {
	b := &Inbox{out: make(chan *wire.Inbound)}
	b.cond = sync.NewCond(&b.mu)
	go b.relay()
	return b
}

// Frames returns the channel of inbound frames. A nil value is the
// shutdown sentinel.
func (b *Inbox) Frames() <-chan *wire.Inbound {
	return b.out
}

// post appends a frame to the queue and returns immediately. Called
// only by the Pump goroutine.
func (b *Inbox) post(f *wire.Inbound) {
	b.mu.Lock()
	b.queue = append(b.queue, f)
	b.mu.Unlock()
	b.cond.Signal()
}

// shutdown enqueues the sentinel. Idempotent is not required: the
// Multiplexer guarantees shutdown is posted at most once per inbox.
func (b *Inbox) shutdown() {
	b.post(nil)
}

// relay drains the queue onto out, blocking only on the consumer's
// pace, never on the producer's — it exits once it has forwarded the
// shutdown sentinel.
func (b *Inbox) relay() {
	for {
		b.mu.Lock()
		for len(b.queue) == 0 {
			b.cond.Wait()
		}
		f := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()

		b.out <- f
		if f == nil {
			return
		}
	}
}
