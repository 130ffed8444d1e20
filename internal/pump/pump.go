// Package pump implements the Background Pump: the event-loop
// goroutine that owns a session's Transport, serializes outbound
// sends, and demultiplexes inbound frames into the Multiplexer's
// inboxes, plus one reader goroutine whose only job is calling
// Transport.Recv. Caller goroutines never touch the Transport directly,
// generalizing the teacher's readLoop-plus-sendAndWait pattern in
// internal/homeassistant/websocket.go into a connection owned by the
// Pump rather than guarded by a mutex shared with callers.
package pump

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nugget/lmstudio-go/internal/mux"
	"github.com/nugget/lmstudio-go/internal/transport"
	"github.com/nugget/lmstudio-go/internal/wire"
)

// Disconnected is returned to any caller whose suspension point
// observes the shutdown sentinel before a terminal frame arrived.
type Disconnected struct{ Cause error }

func (e *Disconnected) Error() string {
	if e.Cause != nil {
		return "disconnected: " + e.Cause.Error()
	}
	return "disconnected"
}
func (e *Disconnected) Unwrap() error { return e.Cause }

type sendRequest struct {
	frame  any
	result chan error
}

// Pump drives the event loop for one Session's Transport.
type Pump struct {
	tr  transport.Transport
	mux *mux.Multiplexer
	log *slog.Logger

	sendCh     chan sendRequest
	callSoonCh chan func()
	recvCh     chan recvResult

	terminated atomic.Bool
	termCause  error
	termMu     sync.Mutex

	done chan struct{}
	once sync.Once
}

type recvResult struct {
	frame *wire.Inbound
	err   error
}

// New creates a Pump over tr and m. The caller must call Start before
// any Submit/CallSoon.
func New(tr transport.Transport, m *mux.Multiplexer, log *slog.Logger) *Pump {
	if log == nil {
		log = slog.Default()
	}
	return &Pump{
		tr:         tr,
		mux:        m,
		log:        log,
		sendCh:     make(chan sendRequest),
		callSoonCh: make(chan func(), 16),
		recvCh:     make(chan recvResult, 16),
		done:       make(chan struct{}),
	}
}

// Start connects and authenticates the transport, then launches the
// reader goroutine and the event loop goroutine. It blocks until the
// handshake completes or fails — the one-shot readiness signal the
// spec calls for is simply this call returning.
func (p *Pump) Start(ctx context.Context, identifier, passkey string) error {
	if err := p.tr.Connect(ctx, identifier, passkey); err != nil {
		return err
	}
	go p.readLoop()
	go p.eventLoop()
	return nil
}

// SubmitSend hands a frame to the Pump goroutine and blocks until it
// has been written to the transport (or the Pump has terminated).
func (p *Pump) SubmitSend(frame any) error {
	if p.terminated.Load() {
		return p.disconnectedErr()
	}
	req := sendRequest{frame: frame, result: make(chan error, 1)}
	select {
	case p.sendCh <- req:
	case <-p.done:
		return p.disconnectedErr()
	}
	select {
	case err := <-req.result:
		return err
	case <-p.done:
		return p.disconnectedErr()
	}
}

// CallSoon schedules fn to run on the Pump goroutine, fire-and-forget.
// Used for lifecycle events such as a caller-initiated terminate.
func (p *Pump) CallSoon(fn func()) {
	select {
	case p.callSoonCh <- fn:
	case <-p.done:
	}
}

// Join waits until the Pump has terminated (its shutdown protocol has
// run); the goroutines may still be returning when it unblocks.
func (p *Pump) Join() {
	<-p.done
}

// readLoop is the only goroutine that ever calls Transport.Recv,
// satisfying the single-consumer contract on the receive side.
func (p *Pump) readLoop() {
	for {
		frame, err := p.tr.Recv()
		select {
		case p.recvCh <- recvResult{frame: frame, err: err}:
		case <-p.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// eventLoop is the cooperative event loop: it serializes sends,
// dispatches inbound frames to their inbox, and runs scheduled
// callbacks, all on one goroutine. Besides it, only readLoop touches
// the Transport, and only through Recv.
func (p *Pump) eventLoop() {
	for {
		select {
		case req := <-p.sendCh:
			p.log.Log(context.Background(), wire.LevelTrace, "frame sent", "frame", req.frame)
			req.result <- p.tr.Send(req.frame)

		case fn := <-p.callSoonCh:
			fn()

		case r := <-p.recvCh:
			if r.err != nil {
				p.terminate(r.err)
				return
			}
			p.dispatch(r.frame)

		case <-p.done:
			return
		}
	}
}

func (p *Pump) dispatch(f *wire.Inbound) {
	p.log.Log(context.Background(), wire.LevelTrace, "frame received", "type", f.Type, "callId", f.CallID, "channelId", f.ChannelID)
	box, ok := p.mux.Dispatch(f)
	if !ok {
		p.log.Debug("dropping frame for unknown id", "type", f.Type)
		return
	}
	mux.Post(box, f)
}

// terminate runs the shutdown protocol: mark terminated, shut down
// the multiplexer (fanning the sentinel out to every inbox), close
// the transport, then release Join.
func (p *Pump) terminate(cause error) {
	p.once.Do(func() {
		p.termMu.Lock()
		p.termCause = cause
		p.termMu.Unlock()
		p.terminated.Store(true)
		p.mux.Shutdown()
		p.tr.Close()
		close(p.done)
	})
}

// Terminate requests an orderly shutdown from any goroutine. Safe to
// call multiple times. The actual teardown runs via CallSoon so it is
// serialized with any in-flight send/dispatch on the event loop.
func (p *Pump) Terminate() {
	if p.terminated.Load() {
		return
	}
	done := make(chan struct{})
	p.CallSoon(func() {
		p.terminate(nil)
		close(done)
	})
	select {
	case <-done:
	case <-p.done:
	}
}

func (p *Pump) disconnectedErr() error {
	p.termMu.Lock()
	cause := p.termCause
	p.termMu.Unlock()
	return &Disconnected{Cause: cause}
}
