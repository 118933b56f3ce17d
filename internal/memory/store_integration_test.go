package memory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hostline/concierge/internal/log"
	"github.com/hostline/concierge/internal/memory"
	"github.com/hostline/concierge/internal/testutil"
)

func TestConversationStore(t *testing.T) {
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store, err := memory.NewStore(tdb.Pool, 200, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	t.Run("append assigns gapless sequences", func(t *testing.T) {
		const chat = "seq-chat"
		for i := 1; i <= 3; i++ {
			turn, err := store.Append(ctx, chat, memory.RoleUser, fmt.Sprintf("message %d", i))
			if err != nil {
				t.Fatalf("Append %d: %v", i, err)
			}
			if turn.Sequence != int64(i) {
				t.Errorf("turn %d: Sequence = %d", i, turn.Sequence)
			}
			if turn.ID == 0 || turn.CreatedAt.IsZero() {
				t.Errorf("turn %d missing assigned fields: %+v", i, turn)
			}
		}
	})

	t.Run("window returns newest turns oldest first", func(t *testing.T) {
		const chat = "window-chat"
		for i := 1; i <= 5; i++ {
			if _, err := store.Append(ctx, chat, memory.RoleUser, fmt.Sprintf("m%d", i)); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}

		turns, err := store.Window(ctx, chat, 3)
		if err != nil {
			t.Fatalf("Window: %v", err)
		}
		if len(turns) != 3 {
			t.Fatalf("got %d turns, want 3", len(turns))
		}
		for i, want := range []int64{3, 4, 5} {
			if turns[i].Sequence != want {
				t.Errorf("turns[%d].Sequence = %d, want %d", i, turns[i].Sequence, want)
			}
		}
		if turns[2].Content != "m5" {
			t.Errorf("last turn content = %q", turns[2].Content)
		}
	})

	t.Run("window larger than history returns everything", func(t *testing.T) {
		const chat = "short-chat"
		if _, err := store.Append(ctx, chat, memory.RoleUser, "only one"); err != nil {
			t.Fatalf("Append: %v", err)
		}
		turns, err := store.Window(ctx, chat, 50)
		if err != nil {
			t.Fatalf("Window: %v", err)
		}
		if len(turns) != 1 {
			t.Errorf("got %d turns, want 1", len(turns))
		}
	})

	t.Run("exchange persists adjacent turns", func(t *testing.T) {
		const chat = "exchange-chat"
		turns, err := store.AppendExchange(ctx, chat, "When is check-in?", "Check-in is at 3 PM.")
		if err != nil {
			t.Fatalf("AppendExchange: %v", err)
		}
		if len(turns) != 2 {
			t.Fatalf("got %d turns, want 2", len(turns))
		}
		if turns[0].Role != memory.RoleUser || turns[1].Role != memory.RoleAssistant {
			t.Errorf("roles = %v, %v", turns[0].Role, turns[1].Role)
		}
		if turns[1].Sequence != turns[0].Sequence+1 {
			t.Errorf("sequences %d, %d not adjacent", turns[0].Sequence, turns[1].Sequence)
		}
	})

	t.Run("chats are isolated", func(t *testing.T) {
		if _, err := store.Append(ctx, "iso-a", memory.RoleUser, "for a"); err != nil {
			t.Fatalf("Append: %v", err)
		}
		turns, err := store.Window(ctx, "iso-b", 10)
		if err != nil {
			t.Fatalf("Window: %v", err)
		}
		if len(turns) != 0 {
			t.Errorf("chat iso-b sees %d foreign turns", len(turns))
		}

		a, err := store.Append(ctx, "iso-b", memory.RoleUser, "for b")
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		// Sequences are per chat, not global.
		if a.Sequence != 1 {
			t.Errorf("iso-b first sequence = %d, want 1", a.Sequence)
		}
	})

	t.Run("clear removes a single chat", func(t *testing.T) {
		const chat = "clear-chat"
		if _, err := store.Append(ctx, chat, memory.RoleUser, "soon gone"); err != nil {
			t.Fatalf("Append: %v", err)
		}
		if err := store.Clear(ctx, chat); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		sum, err := store.Summary(ctx, chat)
		if err != nil {
			t.Fatalf("Summary: %v", err)
		}
		if sum.Turns != 0 {
			t.Errorf("Turns = %d after clear", sum.Turns)
		}
		// Clearing again is a no-op, not an error.
		if err := store.Clear(ctx, chat); err != nil {
			t.Errorf("second Clear: %v", err)
		}
	})

	t.Run("summary reports sequence bounds", func(t *testing.T) {
		const chat = "summary-chat"
		for i := 0; i < 4; i++ {
			if _, err := store.Append(ctx, chat, memory.RoleUser, "x"); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}
		sum, err := store.Summary(ctx, chat)
		if err != nil {
			t.Fatalf("Summary: %v", err)
		}
		if sum.Turns != 4 || sum.FirstSeq != 1 || sum.LastSeq != 4 {
			t.Errorf("summary = %+v", sum)
		}
		if sum.UpdatedAt.IsZero() {
			t.Error("UpdatedAt not set")
		}
	})

	t.Run("validation", func(t *testing.T) {
		if _, err := store.Append(ctx, "", memory.RoleUser, "hi"); !errors.Is(err, memory.ErrInvalidInput) {
			t.Errorf("empty chat id: err = %v", err)
		}
		if _, err := store.Append(ctx, "c", memory.RoleUser, "  "); !errors.Is(err, memory.ErrInvalidInput) {
			t.Errorf("blank content: err = %v", err)
		}
		if _, err := store.Append(ctx, "c", memory.Role("moderator"), "hi"); !errors.Is(err, memory.ErrInvalidInput) {
			t.Errorf("unknown role: err = %v", err)
		}
		if _, err := store.Window(ctx, "c", 0); !errors.Is(err, memory.ErrInvalidInput) {
			t.Errorf("zero window: err = %v", err)
		}
	})
}

func TestConversationStoreEviction(t *testing.T) {
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store, err := memory.NewStore(tdb.Pool, 5, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	const chat = "evict-chat"
	for i := 1; i <= 8; i++ {
		if _, err := store.Append(ctx, chat, memory.RoleUser, fmt.Sprintf("m%d", i)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	sum, err := store.Summary(ctx, chat)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Turns != 5 {
		t.Errorf("Turns = %d, want retention cap 5", sum.Turns)
	}
	// Oldest evicted, newest kept; sequences keep counting.
	if sum.FirstSeq != 4 || sum.LastSeq != 8 {
		t.Errorf("bounds = [%d, %d], want [4, 8]", sum.FirstSeq, sum.LastSeq)
	}

	// A later append still continues the sequence past the cap.
	turn, err := store.Append(ctx, chat, memory.RoleUser, "m9")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if turn.Sequence != 9 {
		t.Errorf("Sequence = %d, want 9", turn.Sequence)
	}
}

func TestConversationStoreConcurrentAppends(t *testing.T) {
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store, err := memory.NewStore(tdb.Pool, 200, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	const (
		chat       = "race-chat"
		writers    = 4
		perWriter  = 5
		totalTurns = writers * perWriter
	)

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				if _, err := store.Append(ctx, chat, memory.RoleUser, fmt.Sprintf("w%d-m%d", w, i)); err != nil {
					t.Errorf("Append: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	turns, err := store.Window(ctx, chat, totalTurns)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(turns) != totalTurns {
		t.Fatalf("got %d turns, want %d", len(turns), totalTurns)
	}
	// The advisory lock must keep the sequence gapless and duplicate
	// free regardless of writer interleaving.
	for i, turn := range turns {
		if turn.Sequence != int64(i+1) {
			t.Errorf("turns[%d].Sequence = %d, want %d", i, turn.Sequence, i+1)
		}
	}
}
