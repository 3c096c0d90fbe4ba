package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Discord-bot/internal/obslog"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS events (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        message_id TEXT NOT NULL UNIQUE,
        guild_id TEXT NOT NULL,
        channel_id TEXT NOT NULL,
        author_id TEXT NOT NULL,
        author_bot INTEGER NOT NULL DEFAULT 0,
        created_at INTEGER NOT NULL,
        content TEXT NOT NULL DEFAULT '',
        embed TEXT NOT NULL DEFAULT '',
        deleted INTEGER NOT NULL DEFAULT 0
    );`,
	`CREATE TABLE IF NOT EXISTS event_edits (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        message_id TEXT NOT NULL,
        edited_at INTEGER NOT NULL,
        content TEXT NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS channel_flags (
        guild_id TEXT NOT NULL,
        channel_id TEXT NOT NULL,
        excluded INTEGER NOT NULL DEFAULT 1,
        updated_at INTEGER NOT NULL,
        PRIMARY KEY (guild_id, channel_id)
    );`,
}

var sqliteIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_events_guild_created ON events(guild_id, created_at);",
	"CREATE INDEX IF NOT EXISTS idx_events_author_created ON events(guild_id, author_id, created_at);",
	"CREATE INDEX IF NOT EXISTS idx_event_edits_message ON event_edits(message_id, seq);",
}

// SQLiteStore persists events in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	for _, q := range sqliteSchema {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	for _, q := range sqliteIndexes {
		if _, err := db.Exec(q); err != nil {
			obslog.L().Warn("eventstore_index_error", zap.String("query", q), zap.Error(err))
		}
	}
	obslog.L().Info("eventstore_sqlite_open", zap.String("path", path))
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, e Event) error {
	e, err := normalize(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO events (message_id, guild_id, channel_id, author_id, author_bot, created_at, content, embed)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.GuildID, e.ChannelID, e.AuthorID, e.AuthorBot, toMillis(e.CreatedAt), e.Content, e.Embed)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) MarkDeleted(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE events SET deleted = 1 WHERE message_id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (s *SQLiteStore) AppendEdit(ctx context.Context, id string, at time.Time, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	var one int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM events WHERE message_id = ?`, id).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return ErrEventNotFound
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO event_edits (message_id, edited_at, content) VALUES (?, ?, ?)`, id, toMillis(at), content); err != nil {
		return fmt.Errorf("insert edit: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT message_id, guild_id, channel_id, author_id, author_bot, created_at, content, embed, deleted
         FROM events WHERE message_id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT edited_at, content FROM event_edits WHERE message_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var at int64
		var content string
		if err := rows.Scan(&at, &content); err != nil {
			return nil, err
		}
		e.Edits = append(e.Edits, Edit{At: fromMillis(at), Content: content})
	}
	return &e, rows.Err()
}

func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Event, error) {
	var (
		where = []string{"guild_id = ?", "deleted = 0", "author_bot = 0"}
		args  = []any{q.GuildID}
	)
	if !q.From.IsZero() {
		where = append(where, "created_at > ?")
		args = append(args, toMillis(q.From))
	}
	if !q.To.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, toMillis(q.To))
	}
	if q.AuthorID != "" {
		where = append(where, "author_id = ?")
		args = append(args, q.AuthorID)
	}
	if len(q.ExcludeChannels) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(q.ExcludeChannels)), ",")
		where = append(where, "channel_id NOT IN ("+marks+")")
		for _, ch := range q.ExcludeChannels {
			args = append(args, ch)
		}
	}
	query := `SELECT message_id, guild_id, channel_id, author_id, author_bot, created_at, content, embed, deleted
              FROM events WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at, seq`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetChannelExcluded(ctx context.Context, guildID, channelID string, excluded bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channel_flags (guild_id, channel_id, excluded, updated_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(guild_id, channel_id) DO UPDATE SET excluded = excluded.excluded, updated_at = excluded.updated_at`,
		guildID, channelID, excluded, toMillis(time.Now()))
	return err
}

func (s *SQLiteStore) ExcludedChannels(ctx context.Context, guildID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT channel_id FROM channel_flags WHERE guild_id = ? AND excluded = 1 ORDER BY channel_id`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var ch string
		if err := rows.Scan(&ch); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(r rowScanner) (Event, error) {
	var (
		e       Event
		created int64
	)
	if err := r.Scan(&e.ID, &e.GuildID, &e.ChannelID, &e.AuthorID, &e.AuthorBot, &created, &e.Content, &e.Embed, &e.Deleted); err != nil {
		return Event{}, err
	}
	e.CreatedAt = fromMillis(created)
	return e, nil
}
