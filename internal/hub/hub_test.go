package hub

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pointdeck/pointdeck/internal/room"
)

func TestHub_Ensure_Get_SamePointer(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, time.Second, zap.NewNop())
	reply := make(chan *room.Room, 1)

	h.Inbox() <- EnsureRoom{ID: "room-1", Reply: reply}
	r1 := <-reply

	h.Inbox() <- GetRoom{ID: "room-1", Reply: reply}
	r2 := <-reply

	if r1 == nil || r2 == nil || r1 != r2 {
		t.Fatalf("expected same room pointer")
	}

	h.Inbox() <- ShutdownHub{}
}

func TestHub_GetUnknownRoomIsNil(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, time.Second, zap.NewNop())
	reply := make(chan *room.Room, 1)

	h.Inbox() <- GetRoom{ID: "nope", Reply: reply}
	if r := <-reply; r != nil {
		t.Fatalf("expected nil for unknown room, got %v", r)
	}

	h.Inbox() <- ShutdownHub{}
}

func TestHub_RoomRemovedWhenLastUserLeaves(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, time.Second, zap.NewNop())
	reply := make(chan *room.Room, 1)

	h.Inbox() <- EnsureRoom{ID: "room-1", Reply: reply}
	r := <-reply

	out := make(chan []byte, 16)
	r.Inbox() <- room.Join{Username: "alice", IsVoter: true, Outbox: out}
	r.Inbox() <- room.Leave{Username: "alice"}

	// Removal flows room -> hub asynchronously; poll with a deadline.
	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		h.Inbox() <- GetRoom{ID: "room-1", Reply: reply}
		if got := <-reply; got == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("room was never removed after emptying")
		}
		time.Sleep(10 * time.Millisecond)
	}

	h.Inbox() <- ShutdownHub{}
}
