// Package session implements one connection per API namespace
// (system, files, repository, llm, embedding): lazy connect, the
// remote_call and open_channel primitives, and the Channel handle
// those calls hand back.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/lmstudio-go/internal/mux"
	"github.com/nugget/lmstudio-go/internal/pump"
	"github.com/nugget/lmstudio-go/internal/transport"
	"github.com/nugget/lmstudio-go/internal/wire"
)

// correlationID returns a request-correlation identifier logged
// alongside each call/channel id — a UUIDv7 so ids sort roughly by
// creation time in log output (teacher pattern: agent.generateRequestID).
func correlationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "corr_" + strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return id.String()
}

// NewTransportFunc builds a fresh Transport for one connection
// attempt. Session calls it at most once per connect; a reconnect
// calls it again to get a clean Transport for the new logical
// connection (ids are never carried over, per DESIGN.md).
type NewTransportFunc func() transport.Transport

// Session is one namespace's connection wrapper.
type Session struct {
	namespace        string
	newTransport     NewTransportFunc
	clientIdentifier string
	clientPasskey    string
	log              *slog.Logger

	mu        sync.Mutex
	m         *mux.Multiplexer
	p         *pump.Pump
	connected bool
}

// New creates a Session for namespace. No I/O happens until the first
// RemoteCall or OpenChannel (lazy connect, invariant 6 in spec.md §8).
func New(namespace string, newTransport NewTransportFunc, clientIdentifier, clientPasskey string, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		namespace:        namespace,
		newTransport:     newTransport,
		clientIdentifier: clientIdentifier,
		clientPasskey:    clientPasskey,
		log:              log.With("namespace", namespace),
	}
}

// ensureConnected performs the handshake exactly once; subsequent
// calls are no-ops while connected.
func (s *Session) ensureConnected(ctx context.Context) (*mux.Multiplexer, *pump.Pump, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return s.m, s.p, nil
	}

	s.log.Debug("connecting")
	m := mux.New()
	tr := s.newTransport()
	p := pump.New(tr, m, s.log)
	if err := p.Start(ctx, s.clientIdentifier, s.clientPasskey); err != nil {
		return nil, nil, err
	}

	s.m = m
	s.p = p
	s.connected = true
	s.log.Info("connected")
	return m, p, nil
}

// Disconnect releases the transport. A subsequent call lazily
// reconnects with a fresh Multiplexer and Transport.
func (s *Session) Disconnect() {
	s.mu.Lock()
	p := s.p
	s.connected = false
	s.p = nil
	s.m = nil
	s.mu.Unlock()

	if p != nil {
		p.Terminate()
	}
}

// RemoteCall sends an rpcCall and blocks until the matching
// rpcResult, rpcError, or shutdown sentinel arrives.
func (s *Session) RemoteCall(ctx context.Context, endpoint string, parameter any) (json.RawMessage, error) {
	m, p, err := s.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	box := mux.NewInbox()
	id, ok := m.AssignCallID(box)
	if !ok {
		return nil, &pump.Disconnected{}
	}
	defer m.ReleaseCall(id)

	log := s.log.With("call_id", id, "correlation_id", correlationID(), "endpoint", endpoint)
	log.Debug("rpc call")

	frame := wire.NewRPCCall(id, endpoint, parameter)
	if err := p.SubmitSend(frame); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case f := <-box.Frames():
		if f == nil {
			return nil, &pump.Disconnected{}
		}
		switch f.Type {
		case wire.TypeRPCResult:
			log.Debug("rpc result")
			return f.Result, nil
		case wire.TypeRPCError:
			log.Debug("rpc error", "error", f.Error)
			return nil, &RPCError{Info: f.Error}
		default:
			return nil, &ChannelError{Detail: "unexpected frame type " + f.Type + " for call"}
		}
	}
}

// OpenChannel sends a channelCreate and returns a Channel handle for
// streaming the response. On the returned Channel's Cancel, a
// channelCancel is sent if the channel has not already finished.
func (s *Session) OpenChannel(ctx context.Context, endpoint string, creationParameter any) (*Channel, error) {
	m, p, err := s.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	box := mux.NewInbox()
	id, ok := m.AssignChannelID(box)
	if !ok {
		return nil, &pump.Disconnected{}
	}

	log := s.log.With("channel_id", id, "correlation_id", correlationID(), "endpoint", endpoint)
	log.Debug("channel open")

	frame := wire.NewChannelCreate(id, endpoint, creationParameter)
	if err := p.SubmitSend(frame); err != nil {
		m.ReleaseChannel(id)
		return nil, err
	}

	return &Channel{
		mux:  m,
		pump: p,
		id:   id,
		box:  box,
		log:  log,
	}, nil
}
