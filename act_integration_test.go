package lmstudio

import (
	"context"
	"testing"
	"time"

	"github.com/nugget/lmstudio-go/internal/session"
	"github.com/nugget/lmstudio-go/internal/transport"
	"github.com/nugget/lmstudio-go/internal/wire"
)

// TestActRunsUntilNoToolCalls exercises the full round loop: round one
// gets a tool call and dispatches it, round two gets a plain message
// with no tool calls and the loop stops.
func TestActRunsUntilNoToolCalls(t *testing.T) {
	tr := newFakeTransport()
	s := session.New("llm", func() transport.Transport { return tr }, "client-1", "", nil)
	defer s.Disconnect()
	llm := &LLMHandle{session: s, modelKey: "test-model", ttl: 3600}

	searchCalls := 0
	tools := []Tool{{
		Name: "search",
		Impl: func(ctx context.Context, args map[string]any) (string, error) {
			searchCalls++
			return "42", nil
		},
	}}

	go func() {
		// Round 1: respond on channel 0 with a tool call, then close.
		awaitChannelCount(t, tr, 1)
		chID := int64(0)
		tr.recvCh <- &wire.Inbound{Type: wire.TypeChannelSend, ChannelID: &chID,
			Message: []byte(`{"type":"toolCallRequest","toolCallRequest":{"id":"1","name":"search","arguments":{}}}`)}
		tr.recvCh <- &wire.Inbound{Type: wire.TypeChannelSend, ChannelID: &chID,
			Message: []byte(`{"type":"success","stopReason":"toolCalls"}`)}
		tr.recvCh <- &wire.Inbound{Type: wire.TypeChannelClose, ChannelID: &chID}

		// Round 2: respond on channel 1 with a plain message, no tools.
		awaitChannelCount(t, tr, 2)
		chID2 := int64(1)
		tr.recvCh <- &wire.Inbound{Type: wire.TypeChannelSend, ChannelID: &chID2,
			Message: []byte(`{"type":"message","content":"done"}`)}
		tr.recvCh <- &wire.Inbound{Type: wire.TypeChannelSend, ChannelID: &chID2,
			Message: []byte(`{"type":"success","stopReason":"stop"}`)}
		tr.recvCh <- &wire.Inbound{Type: wire.TypeChannelClose, ChannelID: &chID2}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	history := NewHistory(Message{Role: RoleUser, Content: "find the answer"})
	result, err := llm.Act(ctx, history, tools, ActOptions{})
	if err != nil {
		t.Fatalf("Act: %v", err)
	}
	if result.Rounds != 2 {
		t.Fatalf("expected 2 rounds, got %d", result.Rounds)
	}
	if searchCalls != 1 {
		t.Fatalf("expected the tool to be invoked exactly once, got %d", searchCalls)
	}

	// Act must not mutate the caller's history — it works against a
	// private clone, the same aliasing-safety as the original's
	// "agent_chat = Chat.from_history(chat); del chat".
	if msgs := history.Messages(); len(msgs) != 1 {
		t.Fatalf("expected Act to leave the caller's history untouched, got %+v", msgs)
	}
}

// TestActFinalRoundOmitsToolsAndSignalsInvalidRequest drives a
// MaxRounds:1 Act call where the model still requests a tool on the
// only (and therefore final) round; the endpoint's own validation
// rejects it since no Tools were sent, and Act surfaces that as
// *InvalidToolRequest.
func TestActFinalRoundOmitsToolsAndSignalsInvalidRequest(t *testing.T) {
	tr := newFakeTransport()
	s := session.New("llm", func() transport.Transport { return tr }, "client-1", "", nil)
	defer s.Disconnect()
	llm := &LLMHandle{session: s, modelKey: "test-model", ttl: 3600}

	tools := []Tool{{Name: "search", Impl: func(ctx context.Context, args map[string]any) (string, error) {
		return "unreachable", nil
	}}}

	go func() {
		awaitChannelCount(t, tr, 1)
		chID := int64(0)
		tr.recvCh <- &wire.Inbound{Type: wire.TypeChannelSend, ChannelID: &chID,
			Message: []byte(`{"type":"toolCallRequest","toolCallRequest":{"id":"1","name":"search","arguments":{}}}`)}
		tr.recvCh <- &wire.Inbound{Type: wire.TypeChannelSend, ChannelID: &chID,
			Message: []byte(`{"type":"success","stopReason":"toolCalls"}`)}
		tr.recvCh <- &wire.Inbound{Type: wire.TypeChannelClose, ChannelID: &chID}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	maxRounds := 1
	history := NewHistory(Message{Role: RoleUser, Content: "find the answer"})
	result, err := llm.Act(ctx, history, tools, ActOptions{MaxRounds: &maxRounds})

	var invalid *InvalidToolRequest
	if err == nil {
		t.Fatal("expected an *InvalidToolRequest error on the final round")
	}
	if !asInvalidToolRequest(err, &invalid) {
		t.Fatalf("expected *InvalidToolRequest, got %T: %v", err, err)
	}
	if result == nil || result.Rounds != 1 {
		t.Fatalf("expected a result describing 1 round even on failure, got %+v", result)
	}
}

func asInvalidToolRequest(err error, target **InvalidToolRequest) bool {
	it, ok := err.(*InvalidToolRequest)
	if ok {
		*target = it
	}
	return ok
}

func awaitChannelCount(t *testing.T, tr *fakeTransport, n int) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		tr.mu.Lock()
		count := 0
		for _, f := range tr.sent {
			if _, ok := f.(wire.ChannelCreate); ok {
				count++
			}
		}
		tr.mu.Unlock()
		if count >= n {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expected %d channelCreate frames, timed out", n)
		case <-time.After(5 * time.Millisecond):
		}
	}
}
