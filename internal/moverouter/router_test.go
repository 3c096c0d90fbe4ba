package moverouter

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newIndex(t *testing.T) (*MessageIndex, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewMessageIndex(rdb, time.Hour), mr
}

func TestRouteCounts(t *testing.T) {
	idx, _ := newIndex(t)
	r := New(idx)
	ctx := context.Background()

	if _, err := r.Route(ctx, Message{AuthorID: "a"}, nil); !errors.Is(err, ErrNoGame) {
		t.Fatalf("expected ErrNoGame, got %v", err)
	}
	got, err := r.Route(ctx, Message{AuthorID: "a", ReplyToMessageID: "junk"}, []string{"a-b"})
	if err != nil || got != "a-b" {
		t.Fatalf("single game should ignore reply: %q %v", got, err)
	}
	if _, err := r.Route(ctx, Message{AuthorID: "a"}, []string{"a-b", "c-a"}); !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("expected ErrAmbiguous, got %v", err)
	}
}

func TestRouteByReply(t *testing.T) {
	idx, _ := newIndex(t)
	r := New(idx)
	ctx := context.Background()
	games := []string{"a-b", "c-a"}
	if err := idx.Remember(ctx, "m1", "c-a"); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if err := idx.Remember(ctx, "m2", "x-y"); err != nil {
		t.Fatalf("Remember: %v", err)
	}

	got, err := r.Route(ctx, Message{AuthorID: "a", ReplyToMessageID: "m1", ReplyToBot: true}, games)
	if err != nil || got != "c-a" {
		t.Fatalf("expected c-a, got %q %v", got, err)
	}
	// a non-bot message never routes, even if its id is registered
	if _, err := r.Route(ctx, Message{AuthorID: "a", ReplyToMessageID: "m1"}, games); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference for non-bot reply, got %v", err)
	}
	if _, err := r.Route(ctx, Message{AuthorID: "a", ReplyToMessageID: "m9", ReplyToBot: true}, games); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference for unknown message, got %v", err)
	}
	if _, err := r.Route(ctx, Message{AuthorID: "a", ReplyToMessageID: "m2", ReplyToBot: true}, games); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference for foreign game, got %v", err)
	}
}

func TestMessageIndexExpires(t *testing.T) {
	idx, mr := newIndex(t)
	ctx := context.Background()
	if err := idx.Remember(ctx, "m1", "a-b"); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	mr.FastForward(2 * time.Hour)
	if _, err := idx.Lookup(ctx, "m1"); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("expected expiry, got %v", err)
	}
}
