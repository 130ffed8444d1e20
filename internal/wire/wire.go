// Package wire defines the JSON envelope shapes exchanged with the
// model-hosting service: the auth handshake, RPC call/result/error
// frames, and channel create/send/cancel/close frames. Every frame
// carries a discriminant "type" field and, except for the handshake,
// exactly one of callId or channelId.
package wire

import (
	"encoding/json"
	"log/slog"
)

// Frame type discriminants.
const (
	TypeRPCCall       = "rpcCall"
	TypeRPCResult     = "rpcResult"
	TypeRPCError      = "rpcError"
	TypeChannelCreate = "channelCreate"
	TypeChannelSend   = "channelSend"
	TypeChannelCancel = "channelCancel"
	TypeChannelClose  = "channelClose"
)

// LevelTrace is a custom log level below Debug, used to log every
// frame sent and received without flooding Debug output. Defined here
// rather than in the root package so internal/pump (which has no
// import path back to the root package) can log at it directly.
const LevelTrace = slog.Level(-8)

// AuthVersion is the handshake protocol version this client speaks.
const AuthVersion = 1

// Handshake is the first frame sent by the client on a new connection.
type Handshake struct {
	AuthVersion      int    `json:"authVersion"`
	ClientIdentifier string `json:"clientIdentifier"`
	ClientPasskey    string `json:"clientPasskey"`
}

// HandshakeReply is the server's response to a Handshake.
type HandshakeReply struct {
	Success bool       `json:"success"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo is the server's error shape, carried by rpcError and
// handshake failures.
type ErrorInfo struct {
	Title string          `json:"title"`
	Cause string          `json:"cause,omitempty"`
	Stack string          `json:"stack,omitempty"`
	Extra json.RawMessage `json:"-"`
}

// Inbound is the superset of fields any inbound frame may carry.
// A single struct is used for decoding because the discriminant must
// be inspected before the payload shape is known.
type Inbound struct {
	Type      string          `json:"type"`
	CallID    *int64          `json:"callId,omitempty"`
	ChannelID *int64          `json:"channelId,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *ErrorInfo      `json:"error,omitempty"`
	Message   json.RawMessage `json:"message,omitempty"`
}

// RPCCall is an outbound request/response call.
type RPCCall struct {
	Type      string `json:"type"`
	CallID    int64  `json:"callId"`
	Endpoint  string `json:"endpoint"`
	Parameter any    `json:"parameter"`
}

// NewRPCCall builds an outbound rpcCall frame.
func NewRPCCall(callID int64, endpoint string, parameter any) RPCCall {
	return RPCCall{Type: TypeRPCCall, CallID: callID, Endpoint: endpoint, Parameter: parameter}
}

// ChannelCreate is an outbound channel-open frame.
type ChannelCreate struct {
	Type              string `json:"type"`
	ChannelID         int64  `json:"channelId"`
	Endpoint          string `json:"endpoint"`
	CreationParameter any    `json:"creationParameter"`
}

// NewChannelCreate builds an outbound channelCreate frame.
func NewChannelCreate(channelID int64, endpoint string, param any) ChannelCreate {
	return ChannelCreate{Type: TypeChannelCreate, ChannelID: channelID, Endpoint: endpoint, CreationParameter: param}
}

// ChannelCancel is an outbound channel-teardown request.
type ChannelCancel struct {
	Type      string `json:"type"`
	ChannelID int64  `json:"channelId"`
}

// NewChannelCancel builds an outbound channelCancel frame.
func NewChannelCancel(channelID int64) ChannelCancel {
	return ChannelCancel{Type: TypeChannelCancel, ChannelID: channelID}
}

// IsTerminalChannelFrame reports whether an inbound frame ends a channel's life.
func IsTerminalChannelFrame(frameType string) bool {
	return frameType == TypeChannelClose
}

// IsTerminalCallFrame reports whether an inbound frame completes a call.
func IsTerminalCallFrame(frameType string) bool {
	return frameType == TypeRPCResult || frameType == TypeRPCError
}
