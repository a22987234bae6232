package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreLoadMissing(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	_, err := store.Load(context.Background(), 42)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Load() error = %v, want ErrSessionNotFound", err)
	}
}

func TestMemoryStoreSaveLoadCopies(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	now := time.Now()

	sess := New(7, now)
	sess.BeginCreate(now)
	sess.PendingFriend.Name = "Ada"
	if err := store.Save(context.Background(), sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Mutating the saved pointer must not leak into the store.
	sess.PendingFriend.Name = "changed"

	got, err := store.Load(context.Background(), 7)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.PendingFriend.Name != "Ada" {
		t.Fatalf("pending name = %q, want Ada", got.PendingFriend.Name)
	}
	if got.State != StateAwaitingName {
		t.Fatalf("state = %q, want awaiting_name", got.State)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	if err := store.Save(context.Background(), New(7, time.Now())); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete(context.Background(), 7); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Load(context.Background(), 7); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Load() after delete = %v, want ErrSessionNotFound", err)
	}
}

func TestMemoryStoreSaveNil(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	if err := store.Save(context.Background(), nil); !errors.Is(err, ErrNilSession) {
		t.Fatalf("Save(nil) error = %v, want ErrNilSession", err)
	}
}

func TestSessionResetDropsPendingInput(t *testing.T) {
	t.Parallel()

	now := time.Now()
	sess := New(1, now)
	sess.BeginCreate(now)
	sess.PendingFriend.Name = "Ada"
	sess.BeginFriendID(ActionAsk, now)
	sess.PendingFriendID = "Y"

	sess.Reset(now)

	if sess.State != StateIdle {
		t.Fatalf("state = %q, want idle", sess.State)
	}
	if sess.PendingFriend.Name != "" || sess.PendingAction != ActionNone || sess.PendingFriendID != "" {
		t.Fatalf("pending input survived reset: %+v", sess)
	}
}

func TestBeginCreateClearsEarlierDraft(t *testing.T) {
	t.Parallel()

	now := time.Now()
	sess := New(1, now)
	sess.BeginCreate(now)
	sess.PendingFriend.Name = "Ada"

	sess.BeginCreate(now)
	if sess.PendingFriend.Name != "" {
		t.Fatalf("pending name = %q, want empty", sess.PendingFriend.Name)
	}
	if sess.State != StateAwaitingName {
		t.Fatalf("state = %q, want awaiting_name", sess.State)
	}
}
