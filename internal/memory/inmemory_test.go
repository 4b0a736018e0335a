package memory

import (
	"context"
	"sync"
	"testing"
)

func TestAppendAssignsIncreasingSeq(t *testing.T) {
	s := NewInMemoryStore(10)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		turn, err := s.Append(ctx, "c1", SpeakerUser, "hello")
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if turn.Seq != want {
			t.Fatalf("Seq = %d, want %d", turn.Seq, want)
		}
	}
}

func TestAppendSeqSurvivesEviction(t *testing.T) {
	s := NewInMemoryStore(2)
	ctx := context.Background()

	var last Turn
	for i := 0; i < 5; i++ {
		var err error
		last, err = s.Append(ctx, "c1", SpeakerUser, "msg")
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if last.Seq != 5 {
		t.Fatalf("Seq = %d, want 5 (eviction must not rewind sequence numbers)", last.Seq)
	}

	turns, err := s.RecentContext(ctx, "c1", 10)
	if err != nil {
		t.Fatalf("RecentContext() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("retained %d turns, want 2", len(turns))
	}
	if turns[0].Seq != 4 || turns[1].Seq != 5 {
		t.Fatalf("retained seqs = %d,%d, want 4,5 (oldest evicted first)", turns[0].Seq, turns[1].Seq)
	}
}

func TestRecentContextUnknownConversation(t *testing.T) {
	s := NewInMemoryStore(10)
	turns, err := s.RecentContext(context.Background(), "missing", 5)
	if err != nil {
		t.Fatalf("RecentContext() error = %v, want nil for unknown id", err)
	}
	if turns != nil {
		t.Fatalf("turns = %v, want nil", turns)
	}
}

func TestRecentContextChronologicalAndBounded(t *testing.T) {
	s := NewInMemoryStore(10)
	ctx := context.Background()

	texts := []string{"one", "two", "three", "four"}
	for _, txt := range texts {
		if _, err := s.Append(ctx, "c1", SpeakerUser, txt); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	turns, err := s.RecentContext(ctx, "c1", 2)
	if err != nil {
		t.Fatalf("RecentContext() error = %v", err)
	}
	if len(turns) != 2 || turns[0].Text != "three" || turns[1].Text != "four" {
		t.Fatalf("turns = %+v, want last two in chronological order", turns)
	}
}

func TestConcurrentAppendsKeepSeqGapFree(t *testing.T) {
	s := NewInMemoryStore(200)
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.Append(ctx, "c1", SpeakerUser, "x"); err != nil {
				t.Errorf("Append() error = %v", err)
			}
		}()
	}
	wg.Wait()

	turns, err := s.RecentContext(ctx, "c1", n)
	if err != nil {
		t.Fatalf("RecentContext() error = %v", err)
	}
	if len(turns) != n {
		t.Fatalf("retained %d turns, want %d", len(turns), n)
	}
	for i, turn := range turns {
		if turn.Seq != int64(i+1) {
			t.Fatalf("turn %d has seq %d, want %d (no gaps)", i, turn.Seq, i+1)
		}
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := NewInMemoryStore(10)
	ctx := context.Background()

	if _, err := s.Append(ctx, "c1", SpeakerUser, "hi"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := s.Append(ctx, "c1", SpeakerAssistant, "hello!"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	snap, err := s.Snapshot(ctx, "c1")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	restored := NewInMemoryStore(10)
	if err := restored.Restore(ctx, "c1", snap); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	want, _ := s.RecentContext(ctx, "c1", 10)
	got, _ := restored.RecentContext(ctx, "c1", 10)
	if len(got) != len(want) {
		t.Fatalf("restored %d turns, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("turn %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	// Appends after restore continue the sequence, no reuse.
	turn, err := restored.Append(ctx, "c1", SpeakerUser, "again")
	if err != nil {
		t.Fatalf("Append() after restore error = %v", err)
	}
	if turn.Seq != 3 {
		t.Fatalf("Seq after restore = %d, want 3", turn.Seq)
	}
}

func TestResetIsScopedToConversation(t *testing.T) {
	s := NewInMemoryStore(10)
	ctx := context.Background()

	if _, err := s.Append(ctx, "c1", SpeakerUser, "a"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := s.Append(ctx, "c2", SpeakerUser, "b"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Reset(ctx, "c1"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	if turns, _ := s.RecentContext(ctx, "c1", 10); turns != nil {
		t.Fatalf("c1 turns = %v after reset, want nil", turns)
	}
	if turns, _ := s.RecentContext(ctx, "c2", 10); len(turns) != 1 {
		t.Fatalf("c2 turns = %v, want the single appended turn", turns)
	}
}
