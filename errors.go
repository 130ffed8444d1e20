// Package lmstudio is a client SDK for a local model-hosting service,
// speaking a multiplexed JSON-over-websocket protocol that supports
// short-lived RPC calls and long-lived streaming channels.
package lmstudio

import (
	"github.com/nugget/lmstudio-go/internal/endpoint"
	"github.com/nugget/lmstudio-go/internal/pump"
	"github.com/nugget/lmstudio-go/internal/session"
	"github.com/nugget/lmstudio-go/internal/transport"
)

// Error taxonomy (spec.md §7). These are aliases of the concrete
// types produced deep in the stack, so errors.As works the same way
// whether a caller imports lmstudio or reaches into an internal
// package from a test in this module.
type (
	// ConnectError is a transport-level connect failure.
	ConnectError = transport.ConnectError
	// AuthError reports a handshake reply with success=false.
	AuthError = transport.AuthError
	// TxError wraps a mid-session send failure.
	TxError = transport.TxError
	// RxError wraps a mid-session receive failure.
	RxError = transport.RxError
	// Disconnected reports a shutdown sentinel observed before a
	// terminal frame.
	Disconnected = pump.Disconnected
	// RpcError reports a server-side rpcError reply.
	RpcError = session.RPCError
	// ChannelError reports a malformed inbound channel frame.
	ChannelError = session.ChannelError
	// PredictionError reports a model/server inference failure.
	PredictionError = endpoint.PredictionError
	// PredictionCancelled reports local or remote cancellation.
	PredictionCancelled = endpoint.PredictionCancelled
	// InvalidToolRequest reports an unknown tool name or arguments
	// violating its declared schema.
	InvalidToolRequest = endpoint.InvalidToolRequest
	// ValueError reports a caller-supplied parameter rejected before
	// any frame is sent.
	ValueError = endpoint.ValueError
	// RuntimeError reports caller misuse.
	RuntimeError = endpoint.RuntimeError
)
