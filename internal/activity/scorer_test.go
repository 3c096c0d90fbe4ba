package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/park285/Cheese-Discord-bot/internal/eventstore"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, events ...eventstore.Event) *Scorer {
	t.Helper()
	st := eventstore.NewMemoryStore()
	for _, e := range events {
		if e.GuildID == "" {
			e.GuildID = "g"
		}
		if e.ChannelID == "" {
			e.ChannelID = "general"
		}
		if err := st.Append(context.Background(), e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	return NewScorer(st, WithClock(func() time.Time { return now }))
}

func ev(id, user string, ago time.Duration) eventstore.Event {
	return eventstore.Event{ID: id, AuthorID: user, CreatedAt: now.Add(-ago)}
}

func TestBurstCountsOnce(t *testing.T) {
	start := time.Hour
	s := seed(t,
		ev("1", "u", start),
		ev("2", "u", start-10*time.Second),
		ev("3", "u", start-20*time.Second),
		ev("4", "u", start-70*time.Second),
	)
	got, err := s.ComputeScores(context.Background(), "g", DefaultWindow, nil)
	if err != nil {
		t.Fatalf("ComputeScores: %v", err)
	}
	if len(got) != 1 || got[0].Score != 2 {
		t.Fatalf("expected score 2, got %+v", got)
	}
}

func TestCooldownMeasuredFromLastCountedEvent(t *testing.T) {
	// 0, 50, 100: 50 is suppressed, 100 is 100s after the last counted event.
	start := time.Hour
	s := seed(t,
		ev("1", "u", start),
		ev("2", "u", start-50*time.Second),
		ev("3", "u", start-100*time.Second),
		ev("4", "u", start-160*time.Second),
	)
	got, _ := s.ComputeScoreForUser(context.Background(), "u", "g", DefaultWindow, nil)
	if got != 3 {
		t.Fatalf("expected 3 counted events, got %d", got)
	}
}

func TestExactCooldownGapCounts(t *testing.T) {
	evs := []eventstore.Event{
		{AuthorID: "u", CreatedAt: now},
		{AuthorID: "u", CreatedAt: now.Add(60 * time.Second)},
		{AuthorID: "u", CreatedAt: now.Add(119 * time.Second)},
	}
	got := Tally(evs, DefaultCooldown)
	if len(got) != 1 || got[0].Score != 2 {
		t.Fatalf("expected exactly-60s gap to count, got %+v", got)
	}
}

func TestCooldownIsPerUser(t *testing.T) {
	start := time.Hour
	s := seed(t,
		ev("1", "a", start),
		ev("2", "b", start-5*time.Second),
		ev("3", "a", start-10*time.Second),
		ev("4", "b", start-65*time.Second),
	)
	got, err := s.ComputeScores(context.Background(), "g", DefaultWindow, nil)
	if err != nil {
		t.Fatalf("ComputeScores: %v", err)
	}
	m := scoreMap(got)
	if m["a"] != 1 || m["b"] != 2 {
		t.Fatalf("unexpected per-user scores: %v", m)
	}
	if got[0].UserID != "a" || got[1].UserID != "b" {
		t.Fatalf("expected discovery order a,b: %+v", got)
	}
}

func TestWindowBoundaries(t *testing.T) {
	s := seed(t,
		ev("edge", "u", DefaultWindow),
		ev("old", "u", DefaultWindow+time.Hour),
		ev("inside", "v", DefaultWindow-time.Second),
		eventstore.Event{ID: "future", AuthorID: "w", CreatedAt: now.Add(time.Minute)},
	)
	got, err := s.ComputeScores(context.Background(), "g", DefaultWindow, nil)
	if err != nil {
		t.Fatalf("ComputeScores: %v", err)
	}
	m := scoreMap(got)
	if m["u"] != 0 || m["v"] != 1 || m["w"] != 0 {
		t.Fatalf("window not applied: %v", m)
	}
}

func TestExcludedChannelsAndBots(t *testing.T) {
	s := seed(t,
		eventstore.Event{ID: "1", AuthorID: "u", ChannelID: "spam", CreatedAt: now.Add(-time.Hour)},
		eventstore.Event{ID: "2", AuthorID: "bot", AuthorBot: true, CreatedAt: now.Add(-time.Hour)},
		eventstore.Event{ID: "3", AuthorID: "v", CreatedAt: now.Add(-time.Hour)},
	)
	got, err := s.ComputeScores(context.Background(), "g", DefaultWindow, []string{"spam"})
	if err != nil {
		t.Fatalf("ComputeScores: %v", err)
	}
	if len(got) != 1 || got[0].UserID != "v" {
		t.Fatalf("expected only v to score, got %+v", got)
	}
}

func TestEmptyAndInvalidWindow(t *testing.T) {
	s := seed(t)
	got, err := s.ComputeScores(context.Background(), "g", DefaultWindow, nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty scores, got %+v %v", got, err)
	}
	if _, err := s.ComputeScores(context.Background(), "g", 0, nil); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	if _, err := s.ComputeScoreForUser(context.Background(), "u", "g", -time.Second, nil); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow for user, got %v", err)
	}
}

func scoreMap(entries []ScoreEntry) map[string]int {
	m := make(map[string]int, len(entries))
	for _, e := range entries {
		m[e.UserID] = e.Score
	}
	return m
}
