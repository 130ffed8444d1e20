package session

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/nugget/lmstudio-go/internal/mux"
	"github.com/nugget/lmstudio-go/internal/pump"
	"github.com/nugget/lmstudio-go/internal/wire"
)

// Channel is the handle returned by Session.OpenChannel. It yields the
// message payload of each channelSend frame, in wire order, until the
// server closes the channel or the connection is lost.
type Channel struct {
	mux  *mux.Multiplexer
	pump *pump.Pump
	id   int64
	box  *mux.Inbox
	log  *slog.Logger

	finished   bool
	termErr    error
	cancelOnce sync.Once
}

// Recv returns the next message payload. It returns io.EOF when the
// server has closed the channel normally, and *pump.Disconnected if
// the shutdown sentinel arrived first. After either, Recv always
// returns the same terminal error.
func (c *Channel) Recv(ctx context.Context) (json.RawMessage, error) {
	if c.finished {
		return nil, c.termErr
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case f := <-c.box.Frames():
		if f == nil {
			c.finished = true
			c.termErr = &pump.Disconnected{}
			return nil, c.termErr
		}
		switch f.Type {
		case wire.TypeChannelSend:
			return f.Message, nil
		case wire.TypeChannelClose:
			c.finished = true
			c.termErr = io.EOF
			return nil, io.EOF
		default:
			return nil, &ChannelError{Detail: "unexpected frame type " + f.Type + " for channel"}
		}
	}
}

// Cancel requests termination; idempotent and non-blocking. The
// channel does not terminate immediately — the server is expected to
// reply with a channelClose, observed via a subsequent Recv.
func (c *Channel) Cancel() {
	c.cancelOnce.Do(func() {
		if c.finished {
			return
		}
		frame := wire.NewChannelCancel(c.id)
		go func() {
			_ = c.pump.SubmitSend(frame)
		}()
	})
}

// ID returns the channel's wire id, useful for logging/diagnostics.
func (c *Channel) ID() int64 { return c.id }
