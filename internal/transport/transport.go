// Package transport owns the single websocket connection for one
// session namespace: connect, authenticate, send, receive, close. It
// never inspects payloads beyond the auth handshake and converts
// low-level I/O failures into the taxonomy the rest of the SDK
// switches on.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nugget/lmstudio-go/internal/buildinfo"
	"github.com/nugget/lmstudio-go/internal/wire"
)

// Buffer sizes and read limit, sized the same way the teacher's
// Home Assistant websocket client sizes them in
// internal/homeassistant/websocket.go: model metadata and download
// progress frames can be large, entity-registry-sized payloads in
// that codebase's domain.
const (
	readBufferSize  = 1 << 20  // 1MB
	writeBufferSize = 64 << 10 // 64KB
	maxMessageBytes = 100 << 20
)

// Transport is the minimal interface the Pump drives. A fake
// implementation backs the package's tests without a real server.
type Transport interface {
	Connect(ctx context.Context, identifier, passkey string) error
	Send(frame any) error
	Recv() (*wire.Inbound, error)
	Close() error
}

// ConnectError wraps a failure to establish or authenticate the
// websocket connection.
type ConnectError struct{ Err error }

func (e *ConnectError) Error() string { return fmt.Sprintf("connect: %v", e.Err) }
func (e *ConnectError) Unwrap() error { return e.Err }

// AuthError reports a handshake reply with success=false.
type AuthError struct{ Info *wire.ErrorInfo }

func (e *AuthError) Error() string {
	if e.Info == nil {
		return "authentication rejected"
	}
	return fmt.Sprintf("authentication rejected: %s", e.Info.Title)
}

// TxError wraps a mid-session send failure.
type TxError struct{ Err error }

func (e *TxError) Error() string { return fmt.Sprintf("send: %v", e.Err) }
func (e *TxError) Unwrap() error { return e.Err }

// RxError wraps a mid-session receive failure.
type RxError struct{ Err error }

func (e *RxError) Error() string { return fmt.Sprintf("receive: %v", e.Err) }
func (e *RxError) Unwrap() error { return e.Err }

// WS is the gorilla/websocket-backed Transport, one per Session.
type WS struct {
	url string

	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a Transport that dials ws://host/namespace. host is a
// bare host:port; no scheme conversion is done.
func New(host, namespace string) *WS {
	return &WS{url: buildURL(host, namespace)}
}

func buildURL(host, namespace string) string {
	u := url.URL{Scheme: "ws", Host: host, Path: "/" + namespace}
	return u.String()
}

// Connect dials the websocket and performs the auth handshake. On
// success the caller may begin Send/Recv; the Pump is expected to own
// all subsequent access per the single-consumer contract.
func (w *WS) Connect(ctx context.Context, identifier, passkey string) error {
	dialer := websocket.Dialer{
		ReadBufferSize:  readBufferSize,
		WriteBufferSize: writeBufferSize,
	}

	header := http.Header{"User-Agent": []string{buildinfo.UserAgent()}}
	conn, _, err := dialer.DialContext(ctx, w.url, header)
	if err != nil {
		return &ConnectError{Err: err}
	}
	conn.SetReadLimit(maxMessageBytes)

	hs := wire.Handshake{
		AuthVersion:      wire.AuthVersion,
		ClientIdentifier: identifier,
		ClientPasskey:    passkey,
	}
	if err := conn.WriteJSON(hs); err != nil {
		conn.Close()
		return &ConnectError{Err: err}
	}

	var reply wire.HandshakeReply
	if err := conn.ReadJSON(&reply); err != nil {
		conn.Close()
		return &ConnectError{Err: err}
	}
	if !reply.Success {
		conn.Close()
		return &AuthError{Info: reply.Error}
	}

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()
	return nil
}

// Send serializes and writes one outbound frame.
func (w *WS) Send(frame any) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return &TxError{Err: fmt.Errorf("not connected")}
	}
	if err := conn.WriteJSON(frame); err != nil {
		return &TxError{Err: err}
	}
	return nil
}

// Recv blocks for the next inbound frame. Called only by the Pump
// goroutine — Transport is single-consumer on the receive side.
func (w *WS) Recv() (*wire.Inbound, error) {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return nil, &RxError{Err: fmt.Errorf("not connected")}
	}

	var raw json.RawMessage
	if err := conn.ReadJSON(&raw); err != nil {
		return nil, &RxError{Err: err}
	}
	var in wire.Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, &RxError{Err: err}
	}
	return &in, nil
}

// Close requests orderly termination; idempotent.
func (w *WS) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}
