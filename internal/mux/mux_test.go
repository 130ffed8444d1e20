package mux

import (
	"testing"
	"time"

	"github.com/nugget/lmstudio-go/internal/wire"
)

func TestAssignCallIDMonotonic(t *testing.T) {
	m := New()
	box1 := NewInbox()
	box2 := NewInbox()

	id1, ok := m.AssignCallID(box1)
	if !ok {
		t.Fatal("AssignCallID failed")
	}
	id2, ok := m.AssignCallID(box2)
	if !ok {
		t.Fatal("AssignCallID failed")
	}
	if id2 <= id1 {
		t.Fatalf("ids not monotonic: %d then %d", id1, id2)
	}
}

func TestDispatchCallRoutesAndReleasesOnTerminal(t *testing.T) {
	m := New()
	box := NewInbox()
	id, _ := m.AssignCallID(box)

	f := &wire.Inbound{Type: wire.TypeRPCResult, CallID: &id}
	got, ok := m.Dispatch(f)
	if !ok || got != box {
		t.Fatalf("Dispatch did not route to the registered inbox")
	}

	// rpcResult is terminal: the registration should be gone now.
	if _, ok := m.Dispatch(&wire.Inbound{Type: wire.TypeRPCResult, CallID: &id}); ok {
		t.Fatal("expected no registration after a terminal call frame")
	}
}

func TestDispatchChannelSendDoesNotRelease(t *testing.T) {
	m := New()
	box := NewInbox()
	id, _ := m.AssignChannelID(box)

	f := &wire.Inbound{Type: wire.TypeChannelSend, ChannelID: &id}
	if _, ok := m.Dispatch(f); !ok {
		t.Fatal("expected dispatch to succeed")
	}
	// channelSend is not terminal: the registration should still exist.
	if _, ok := m.Dispatch(&wire.Inbound{Type: wire.TypeChannelSend, ChannelID: &id}); !ok {
		t.Fatal("expected registration to survive a non-terminal frame")
	}
}

func TestDispatchUnknownIDDropped(t *testing.T) {
	m := New()
	missing := int64(999)
	if _, ok := m.Dispatch(&wire.Inbound{Type: wire.TypeRPCResult, CallID: &missing}); ok {
		t.Fatal("expected Dispatch to report no inbox for an unknown id")
	}
}

func TestShutdownFansOutSentinelAndBlocksFurtherAssign(t *testing.T) {
	m := New()
	callBox := NewInbox()
	chanBox := NewInbox()
	m.AssignCallID(callBox)
	m.AssignChannelID(chanBox)

	m.Shutdown()

	if f := <-callBox.Frames(); f != nil {
		t.Fatal("expected nil sentinel on call inbox")
	}
	if f := <-chanBox.Frames(); f != nil {
		t.Fatal("expected nil sentinel on channel inbox")
	}

	if _, ok := m.AssignCallID(NewInbox()); ok {
		t.Fatal("expected AssignCallID to fail after shutdown")
	}
	if _, ok := m.AssignChannelID(NewInbox()); ok {
		t.Fatal("expected AssignChannelID to fail after shutdown")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	m := New()
	m.Shutdown()
	m.Shutdown() // must not panic or double-close anything
}

func TestPostDeliversToInbox(t *testing.T) {
	box := NewInbox()
	f := &wire.Inbound{Type: wire.TypeRPCResult}
	Post(box, f)
	if got := <-box.Frames(); got != f {
		t.Fatal("Post did not deliver the frame")
	}
}

// TestPostNeverBlocksOnSlowConsumer drives far more frames through
// post than the old fixed-size buffer ever held, with nothing reading
// Frames() yet — post must still return immediately every time, since
// it runs synchronously on the Pump's event loop and a block there
// would stall every other in-flight call/channel.
func TestPostNeverBlocksOnSlowConsumer(t *testing.T) {
	box := NewInbox()
	const n = 10_000

	done := make(chan struct{})
	go func() {
		for i := 0; i < n; i++ {
			box.post(&wire.Inbound{Type: wire.TypeChannelSend})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("post blocked with no consumer draining Frames()")
	}

	for i := 0; i < n; i++ {
		if f := <-box.Frames(); f == nil {
			t.Fatalf("unexpected sentinel at frame %d", i)
		}
	}
}
