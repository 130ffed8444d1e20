package mux

import (
	"sync"

	"github.com/nugget/lmstudio-go/internal/wire"
)

// Multiplexer allocates call and channel ids and routes inbound
// frames to the inbox registered for their id. Ids are monotonic and
// never reused within the lifetime of a Multiplexer (a reconnect gets
// a fresh Multiplexer, per the id-recycling decision in DESIGN.md).
//
// One mutex protects both maps and both counters, mirroring the
// teacher's single pendingMu guarding its pending map in
// internal/homeassistant/websocket.go — the id space here is just
// split into two kinds instead of one.
type Multiplexer struct {
	mu sync.Mutex

	nextCallID    int64
	nextChannelID int64

	calls    map[int64]*Inbox
	channels map[int64]*Inbox

	down bool
}

// New creates an empty Multiplexer.
func New() *Multiplexer {
	return &Multiplexer{
		calls:    make(map[int64]*Inbox),
		channels: make(map[int64]*Inbox),
	}
}

// AssignCallID registers box under a freshly allocated call id and
// returns it. The caller must release the id with ReleaseCall once the
// call completes (exactly one result is expected).
func (m *Multiplexer) AssignCallID(box *Inbox) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return 0, false
	}
	id := m.nextCallID
	m.nextCallID++
	m.calls[id] = box
	return id, true
}

// ReleaseCall removes a call's registration. Safe to call more than
// once; subsequent calls are no-ops.
func (m *Multiplexer) ReleaseCall(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.calls, id)
}

// AssignChannelID registers box under a freshly allocated channel id.
func (m *Multiplexer) AssignChannelID(box *Inbox) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return 0, false
	}
	id := m.nextChannelID
	m.nextChannelID++
	m.channels[id] = box
	return id, true
}

// ReleaseChannel removes a channel's registration.
func (m *Multiplexer) ReleaseChannel(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, id)
}

// Dispatch routes an inbound frame to its registered inbox and
// reports whether one was found. Frames for unknown ids (stale or
// late) are dropped by the caller, which should log them.
//
// Terminal frames (rpcResult, rpcError, channelClose) also release
// the registration: exactly one terminal frame is ever delivered per
// call, and no frame is delivered to a channel inbox after its close.
func (m *Multiplexer) Dispatch(f *wire.Inbound) (*Inbox, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case f.CallID != nil:
		box, ok := m.calls[*f.CallID]
		if !ok {
			return nil, false
		}
		if wire.IsTerminalCallFrame(f.Type) {
			delete(m.calls, *f.CallID)
		}
		return box, true
	case f.ChannelID != nil:
		box, ok := m.channels[*f.ChannelID]
		if !ok {
			return nil, false
		}
		if wire.IsTerminalChannelFrame(f.Type) {
			delete(m.channels, *f.ChannelID)
		}
		return box, true
	default:
		return nil, false
	}
}

// Shutdown delivers the shutdown sentinel to every currently
// registered inbox and marks the Multiplexer down: subsequent
// AssignCallID/AssignChannelID calls fail, so no new inbox is ever
// orphaned after shutdown begins.
func (m *Multiplexer) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return
	}
	m.down = true
	for id, box := range m.calls {
		box.shutdown()
		delete(m.calls, id)
	}
	for id, box := range m.channels {
		box.shutdown()
		delete(m.channels, id)
	}
}

// Post delivers a frame to box. Exposed so the Pump can post after a
// successful Dispatch lookup without reaching into Inbox internals.
func Post(box *Inbox, f *wire.Inbound) {
	box.post(f)
}
