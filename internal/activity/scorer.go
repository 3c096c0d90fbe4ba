// Package activity turns the event log into per-user activity scores.
//
// A score counts bursts, not messages: an event is counted only when at least
// the cooldown has passed since the same user's previous counted event.
package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Discord-bot/internal/eventstore"
	"github.com/park285/Cheese-Discord-bot/internal/obslog"
)

const (
	DefaultWindow   = 7 * 24 * time.Hour
	DefaultCooldown = 60 * time.Second
)

var ErrInvalidWindow = errors.New("activity window must be positive")

// ScoreEntry is one user's score. Entries are returned in discovery order,
// i.e. the order in which each user's first counted event appears.
type ScoreEntry struct {
	UserID string `json:"user_id"`
	Score  int    `json:"score"`
}

// Scorer computes scores over a trailing window ending at now.
type Scorer struct {
	store    eventstore.Store
	cooldown time.Duration
	now      func() time.Time
}

type Option func(*Scorer)

func WithCooldown(d time.Duration) Option {
	return func(s *Scorer) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

func NewScorer(store eventstore.Store, opts ...Option) *Scorer {
	s := &Scorer{store: store, cooldown: DefaultCooldown, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ComputeScores scores every user of guildID over (now-window, now].
func (s *Scorer) ComputeScores(ctx context.Context, guildID string, window time.Duration, excluded []string) ([]ScoreEntry, error) {
	q, err := s.query(guildID, window, excluded)
	if err != nil {
		return nil, err
	}
	events, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	entries := Tally(events, s.cooldown)
	obslog.L().Debug("activity_scores_computed",
		zap.String("guild_id", guildID),
		zap.Int("events", len(events)),
		zap.Int("users", len(entries)),
	)
	return entries, nil
}

// ComputeScoreForUser applies the same algorithm to one user's events.
func (s *Scorer) ComputeScoreForUser(ctx context.Context, userID, guildID string, window time.Duration, excluded []string) (int, error) {
	q, err := s.query(guildID, window, excluded)
	if err != nil {
		return 0, err
	}
	q.AuthorID = userID
	events, err := s.store.Query(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("query events: %w", err)
	}
	for _, e := range Tally(events, s.cooldown) {
		if e.UserID == userID {
			return e.Score, nil
		}
	}
	return 0, nil
}

func (s *Scorer) query(guildID string, window time.Duration, excluded []string) (eventstore.Query, error) {
	if window <= 0 {
		return eventstore.Query{}, ErrInvalidWindow
	}
	now := s.now().UTC()
	return eventstore.Query{
		GuildID:         guildID,
		From:            now.Add(-window),
		To:              now,
		ExcludeChannels: excluded,
	}, nil
}

// Tally scores events that are already filtered and ordered by creation time.
// Cooldown state is tracked per user.
func Tally(events []eventstore.Event, cooldown time.Duration) []ScoreEntry {
	var (
		entries []ScoreEntry
		index   = make(map[string]int)
		last    = make(map[string]time.Time)
	)
	for _, e := range events {
		prev, seen := last[e.AuthorID]
		if seen && e.CreatedAt.Sub(prev) < cooldown {
			continue
		}
		last[e.AuthorID] = e.CreatedAt
		i, ok := index[e.AuthorID]
		if !ok {
			i = len(entries)
			index[e.AuthorID] = i
			entries = append(entries, ScoreEntry{UserID: e.AuthorID})
		}
		entries[i].Score++
	}
	return entries
}
