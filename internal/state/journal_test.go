package state

import (
	"context"
	"testing"

	"github.com/user/classwatch/internal/types"
)

func testEvent(sessionID types.SessionID, state string) *types.EngagementEvent {
	return &types.EngagementEvent{
		CourseID:  "CSC4400",
		CameraID:  "MEET_TAB",
		SessionID: sessionID,
		State:     state,
	}
}

func TestJournalEmitSequence(t *testing.T) {
	j := NewJournal(t.TempDir())
	ctx := context.Background()

	for _, state := range []string{"Awake", "Drowsy", "Awake"} {
		if err := j.Emit(ctx, testEvent("sess-1", state)); err != nil {
			t.Fatal(err)
		}
	}

	count, err := j.Count("sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected 3 entries, got %d", count)
	}

	entries, err := j.Tail("sess-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.Seq != int64(i+1) {
			t.Errorf("expected seq %d, got %d", i+1, e.Seq)
		}
		if e.ID == "" {
			t.Error("expected entry id assigned")
		}
	}
	if entries[1].Event.State != "Drowsy" {
		t.Errorf("expected event payload preserved, got %q", entries[1].Event.State)
	}
}

func TestJournalTailLimit(t *testing.T) {
	j := NewJournal(t.TempDir())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := j.Emit(ctx, testEvent("sess-1", "Awake")); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := j.Tail("sess-1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Seq != 4 || entries[1].Seq != 5 {
		t.Errorf("expected the newest entries, got seqs %d, %d", entries[0].Seq, entries[1].Seq)
	}
}

func TestJournalRequiresSession(t *testing.T) {
	j := NewJournal(t.TempDir())
	if err := j.Emit(context.Background(), testEvent("", "Awake")); err == nil {
		t.Error("expected error for an event without a session id")
	}
}

func TestJournalSessions(t *testing.T) {
	j := NewJournal(t.TempDir())
	ctx := context.Background()

	ids, err := j.Sessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no sessions initially, got %v", ids)
	}

	j.Emit(ctx, testEvent("sess-b", "Awake"))
	j.Emit(ctx, testEvent("sess-a", "Awake"))

	ids, err = j.Sessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "sess-a" || ids[1] != "sess-b" {
		t.Errorf("expected sorted session ids, got %v", ids)
	}
}

func TestJournalMissingSession(t *testing.T) {
	j := NewJournal(t.TempDir())

	count, err := j.Count("nope")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected 0 for unknown session, got %d", count)
	}

	entries, err := j.Tail("nope", 10)
	if err != nil {
		t.Fatal(err)
	}
	if entries != nil {
		t.Errorf("expected nil entries for unknown session, got %v", entries)
	}
}
