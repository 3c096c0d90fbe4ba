// Package eventstore keeps the append-only log of observed guild messages.
//
// Events are never physically removed: deletion flips a flag and edits are
// appended to a per-message history. Queries return only live, human-authored
// events ordered by creation time and then by insertion order.
package eventstore

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrInvalidEvent  = errors.New("invalid event")
)

// Event is the stored snapshot of one platform message.
type Event struct {
	ID        string
	GuildID   string
	ChannelID string
	AuthorID  string
	AuthorBot bool
	CreatedAt time.Time
	Content   string
	Embed     string
	Deleted   bool
	Edits     []Edit
}

// Edit is one entry of a message's edit history.
type Edit struct {
	At      time.Time
	Content string
}

// Query selects events of one guild. From is exclusive and To inclusive;
// a zero bound is open. AuthorID restricts the result to a single user.
type Query struct {
	GuildID         string
	From            time.Time
	To              time.Time
	ExcludeChannels []string
	AuthorID        string
}

// Store is implemented by the sqlite, mongo and memory backends.
type Store interface {
	Append(ctx context.Context, e Event) error
	MarkDeleted(ctx context.Context, id string) error
	AppendEdit(ctx context.Context, id string, at time.Time, content string) error
	Get(ctx context.Context, id string) (*Event, error)
	Query(ctx context.Context, q Query) ([]Event, error)
	SetChannelExcluded(ctx context.Context, guildID, channelID string, excluded bool) error
	ExcludedChannels(ctx context.Context, guildID string) ([]string, error)
	Close() error
}

// normalize validates e and truncates its timestamp to the millisecond
// precision every backend can represent.
func normalize(e Event) (Event, error) {
	e.ID = strings.TrimSpace(e.ID)
	e.GuildID = strings.TrimSpace(e.GuildID)
	if e.ID == "" || e.GuildID == "" || strings.TrimSpace(e.AuthorID) == "" || e.CreatedAt.IsZero() {
		return e, ErrInvalidEvent
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Millisecond)
	e.Deleted = false
	e.Edits = nil
	return e, nil
}

func (q Query) matches(e *Event) bool {
	if e.Deleted || e.AuthorBot || e.GuildID != q.GuildID {
		return false
	}
	if q.AuthorID != "" && e.AuthorID != q.AuthorID {
		return false
	}
	if !q.From.IsZero() && !e.CreatedAt.After(q.From) {
		return false
	}
	if !q.To.IsZero() && e.CreatedAt.After(q.To) {
		return false
	}
	for _, ch := range q.ExcludeChannels {
		if ch == e.ChannelID {
			return false
		}
	}
	return true
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
