package lmstudio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nugget/lmstudio-go/internal/session"
	"github.com/nugget/lmstudio-go/internal/transport"
	"github.com/nugget/lmstudio-go/internal/wire"
)

func newTestLLMHandle(t *testing.T) (*LLMHandle, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	s := session.New("llm", func() transport.Transport { return tr }, "client-1", "", nil)
	t.Cleanup(s.Disconnect)
	return &LLMHandle{session: s, modelKey: "test-model", ttl: 3600}, tr
}

func TestCompleteStreamDeliversResult(t *testing.T) {
	llm, tr := newTestLLMHandle(t)

	ps, err := llm.CompleteStream(context.Background(), "say hi", PredictOptions{})
	if err != nil {
		t.Fatalf("CompleteStream: %v", err)
	}

	channelID := ps.ID()
	tr.recvCh <- &wire.Inbound{Type: wire.TypeChannelSend, ChannelID: &channelID, Message: []byte(`{"type":"fragment","fragment":"hi"}`)}
	tr.recvCh <- &wire.Inbound{Type: wire.TypeChannelSend, ChannelID: &channelID, Message: []byte(`{"type":"success","stopReason":"stop"}`)}
	tr.recvCh <- &wire.Inbound{Type: wire.TypeChannelClose, ChannelID: &channelID}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := ps.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.Content != "hi" {
		t.Fatalf("unexpected content: %q", res.Content)
	}
}

func TestCompleteStreamCancel(t *testing.T) {
	llm, tr := newTestLLMHandle(t)

	ps, err := llm.CompleteStream(context.Background(), "say hi", PredictOptions{})
	if err != nil {
		t.Fatalf("CompleteStream: %v", err)
	}
	ps.Cancel()

	channelID := ps.ID()
	tr.recvCh <- &wire.Inbound{Type: wire.TypeChannelSend, ChannelID: &channelID, Message: []byte(`{"type":"success","stopReason":"userStopped"}`)}
	tr.recvCh <- &wire.Inbound{Type: wire.TypeChannelClose, ChannelID: &channelID}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := ps.Wait(ctx)
	if res != nil {
		t.Fatalf("expected nil result on cancellation, got %+v", res)
	}
	var cancelled *PredictionCancelled
	if !errors.As(err, &cancelled) {
		t.Fatalf("expected *PredictionCancelled, got %T: %v", err, err)
	}
}

func TestTokenizeSingle(t *testing.T) {
	llm, tr := newTestLLMHandle(t)

	go func() {
		awaitSent(t, tr)
		callID := int64(0)
		tr.recvCh <- &wire.Inbound{Type: wire.TypeRPCResult, CallID: &callID, Result: []byte(`[[1,2,3]]`)}
	}()

	toks, err := llm.Tokenize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(toks) != 3 {
		t.Fatalf("unexpected tokens: %v", toks)
	}
}
