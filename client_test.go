package lmstudio

import (
	"context"
	"errors"
	"testing"

	"github.com/nugget/lmstudio-go/internal/session"
	"github.com/nugget/lmstudio-go/internal/transport"
	"github.com/nugget/lmstudio-go/internal/wire"
)

func TestNewClientDefaults(t *testing.T) {
	c := NewClient()
	defer c.Close()

	if c.host != DefaultHost {
		t.Fatalf("expected default host %q, got %q", DefaultHost, c.host)
	}
	if c.clientIdentifier == "" {
		t.Fatal("expected a generated client identifier")
	}
	if c.defaultTTL != DefaultTTLSeconds {
		t.Fatalf("expected default ttl %d, got %d", DefaultTTLSeconds, c.defaultTTL)
	}
}

func TestNewClientOptionsOverrideDefaults(t *testing.T) {
	c := NewClient(
		WithHost("example:1111"),
		WithClientIdentifier("my-id"),
		WithClientPasskey("secret"),
		WithDefaultTTLSeconds(60),
	)
	defer c.Close()

	if c.host != "example:1111" {
		t.Fatalf("unexpected host: %q", c.host)
	}
	if c.clientIdentifier != "my-id" {
		t.Fatalf("unexpected client identifier: %q", c.clientIdentifier)
	}
	if c.clientPasskey != "secret" {
		t.Fatalf("unexpected passkey: %q", c.clientPasskey)
	}
	if c.defaultTTL != 60 {
		t.Fatalf("unexpected ttl: %d", c.defaultTTL)
	}
}

func TestWithConfigSeedsSettingsButOptionsWin(t *testing.T) {
	ttl := int64(120)
	cfg := &Config{Host: "cfg-host:1234", DefaultTTLSeconds: &ttl, ClientIdentifier: "cfg-id"}

	c := NewClient(WithConfig(cfg), WithHost("override-host:5555"))
	defer c.Close()

	if c.host != "override-host:5555" {
		t.Fatalf("expected later Option to win over config, got %q", c.host)
	}
	if c.clientIdentifier != "cfg-id" {
		t.Fatalf("expected config identifier to apply, got %q", c.clientIdentifier)
	}
	if c.defaultTTL != 120 {
		t.Fatalf("expected config ttl to apply, got %d", c.defaultTTL)
	}
}

func TestClientCloseIsIdempotent(t *testing.T) {
	c := NewClient()
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}
}

func TestGetSessionIsLazyAndCached(t *testing.T) {
	c := NewClient()
	defer c.Close()

	s1 := c.getSession(NamespaceLLM)
	s2 := c.getSession(NamespaceLLM)
	if s1 != s2 {
		t.Fatal("expected getSession to cache and return the same Session for a namespace")
	}
}

func TestAnyLLMPicksFirstLoaded(t *testing.T) {
	c := NewClient()
	defer c.Close()

	tr := newFakeTransport()
	c.sessions[NamespaceSystem] = session.New(NamespaceSystem, func() transport.Transport { return tr }, "client-1", "", nil)

	go func() {
		awaitSent(t, tr)
		callID := int64(0)
		tr.recvCh <- &wire.Inbound{Type: wire.TypeRPCResult, CallID: &callID, Result: []byte(`[{"identifier":"inst-1","modelKey":"qwen-7b"}]`)}
	}()

	llm, err := c.AnyLLM(context.Background())
	if err != nil {
		t.Fatalf("AnyLLM: %v", err)
	}
	if llm.modelKey != "qwen-7b" {
		t.Fatalf("expected modelKey qwen-7b, got %q", llm.modelKey)
	}
}

func TestAnyLLMErrorsWhenNoneLoaded(t *testing.T) {
	c := NewClient()
	defer c.Close()

	tr := newFakeTransport()
	c.sessions[NamespaceSystem] = session.New(NamespaceSystem, func() transport.Transport { return tr }, "client-1", "", nil)

	go func() {
		awaitSent(t, tr)
		callID := int64(0)
		tr.recvCh <- &wire.Inbound{Type: wire.TypeRPCResult, CallID: &callID, Result: []byte(`[]`)}
	}()

	_, err := c.AnyLLM(context.Background())
	var rt *RuntimeError
	if !errors.As(err, &rt) {
		t.Fatalf("expected *RuntimeError, got %T: %v", err, err)
	}
}

func TestHandlesCarryModelKey(t *testing.T) {
	c := NewClient()
	defer c.Close()

	llm := c.LLM("qwen-7b")
	if llm.modelKey != "qwen-7b" {
		t.Fatalf("unexpected model key: %q", llm.modelKey)
	}

	emb := c.Embedding("nomic-embed")
	if emb.modelKey != "nomic-embed" {
		t.Fatalf("unexpected model key: %q", emb.modelKey)
	}
}
