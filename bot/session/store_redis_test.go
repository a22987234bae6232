package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRedisStoreKey(t *testing.T) {
	t.Parallel()

	store := &RedisStore{keyPrefix: defaultRedisKeyPrefix}
	if got := store.redisKey(42); got != "friendbook:session:42" {
		t.Fatalf("redisKey() = %q, want friendbook:session:42", got)
	}
}

func TestRedisStoreSaveSendsSetCommand(t *testing.T) {
	t.Parallel()

	var gotCommand []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprint(w, `{"result":"OK"}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewRedisStore(
		RedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
		WithTTL(0),
	)
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}

	sess := New(9, time.Now())
	if err := store.Save(context.Background(), sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if len(gotCommand) != 3 {
		t.Fatalf("command = %#v, want 3 elements", gotCommand)
	}
	if gotCommand[0] != "SET" || gotCommand[1] != "friendbook:session:9" {
		t.Fatalf("command = %#v", gotCommand[:2])
	}
}

func TestRedisStoreLoadRoundTrip(t *testing.T) {
	t.Parallel()

	seed := New(9, time.Now())
	seed.BeginFriendID(ActionAsk, time.Now())
	seed.PendingFriendID = "Y"

	payload, err := json.Marshal(seed)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	encoded, err := json.Marshal(string(payload))
	if err != nil {
		t.Fatalf("marshal encoded seed: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"result":%s}`, encoded)
	}))
	t.Cleanup(server.Close)

	store, err := NewRedisStore(
		RedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}

	got, err := store.Load(context.Background(), 9)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.ChatID != 9 || got.State != StateAwaitingFriendID || got.PendingFriendID != "Y" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestRedisStoreLoadMissing(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"result":null}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewRedisStore(
		RedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}

	if _, err := store.Load(context.Background(), 9); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Load() error = %v, want ErrSessionNotFound", err)
	}
}

func TestNewRedisStoreValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisStore(RedisConfig{URL: "", Token: "t"}); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := NewRedisStore(RedisConfig{URL: "https://r.test", Token: ""}); err == nil {
		t.Fatal("expected error for empty token")
	}
}
