package session

import (
	"fmt"

	"github.com/nugget/lmstudio-go/internal/wire"
)

// RPCError reports a server-side rpcError reply.
type RPCError struct{ Info *wire.ErrorInfo }

func (e *RPCError) Error() string {
	if e.Info == nil {
		return "rpc error"
	}
	if e.Info.Cause != "" {
		return fmt.Sprintf("%s: %s", e.Info.Title, e.Info.Cause)
	}
	return e.Info.Title
}

// ChannelError reports a malformed inbound channel frame or a
// protocol violation (an unexpected frame type for a channel inbox).
type ChannelError struct{ Detail string }

func (e *ChannelError) Error() string { return "channel protocol violation: " + e.Detail }
