package eventstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"
)

// openTestMongo connects to MONGO_URI with a throwaway database that is
// dropped on cleanup. Without MONGO_URI it returns nil, or skips when required.
func openTestMongo(t *testing.T, required bool) *MongoStore {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		if required {
			t.Skip("MONGO_URI not set")
		}
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := OpenMongo(ctx, uri, fmt.Sprintf("eventstore_test_%d", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("OpenMongo: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.events.Database().Drop(ctx)
		s.Close()
	})
	return s
}

func TestMongoStoreRoundTrip(t *testing.T) {
	s := openTestMongo(t, true)
	ctx := context.Background()

	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes twice: %v", err)
	}
	e := Event{ID: "m1", GuildID: "g", ChannelID: "c", AuthorID: "u", CreatedAt: at(0), Content: "hello"}
	for i := 0; i < 2; i++ {
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("Append #%d: %v", i, err)
		}
	}
	if err := s.Append(ctx, Event{ID: "m2", GuildID: "g", ChannelID: "c", AuthorID: "v", CreatedAt: at(0), Content: "tie"}); err != nil {
		t.Fatalf("Append m2: %v", err)
	}
	if err := s.AppendEdit(ctx, "m1", at(5), "hello again"); err != nil {
		t.Fatalf("AppendEdit: %v", err)
	}
	if err := s.MarkDeleted(ctx, "nope"); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("MarkDeleted unknown = %v, want ErrEventNotFound", err)
	}

	got, err := s.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Edits) != 1 || got.Edits[0].Content != "hello again" {
		t.Fatalf("edits = %+v", got.Edits)
	}

	list, err := s.Query(ctx, Query{GuildID: "g", From: at(-1), To: at(10)})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(list) != 2 || list[0].ID != "m1" || list[1].ID != "m2" {
		t.Fatalf("query order = %+v", list)
	}

	if err := s.SetChannelExcluded(ctx, "g", "c", true); err != nil {
		t.Fatalf("SetChannelExcluded: %v", err)
	}
	ex, err := s.ExcludedChannels(ctx, "g")
	if err != nil || len(ex) != 1 || ex[0] != "c" {
		t.Fatalf("ExcludedChannels = %v, %v", ex, err)
	}
}
