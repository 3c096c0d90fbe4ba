package pvpchess

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/Cheese-Discord-bot/internal/chess"
)

// Registry persists games in Redis.
//
// Keys:
//
//	chess:game:<id>          JSON Game
//	chess:pair:<lo>:<hi>     id of the pair's active game
//	chess:index:user:<user>  set of game ids
type Registry struct {
	rdb  *redis.Client
	ttl  time.Duration
	now  func() time.Time
	flip func() (bool, error)
}

// NewRegistry creates a registry. ttl <= 0 keeps games until they finish.
func NewRegistry(rdb *redis.Client, ttl time.Duration) *Registry {
	if ttl < 0 {
		ttl = 0
	}
	return &Registry{rdb: rdb, ttl: ttl, now: time.Now, flip: secureCoin}
}

// ConnectRedis parses a redis:// or rediss:// URL and pings the server.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Create starts a game between a and b with randomly assigned colors. The
// pair check and the initial write run in one WATCH/MULTI transaction.
func (r *Registry) Create(ctx context.Context, channelID string, a, b Player) (*Game, error) {
	a.ID, b.ID = strings.TrimSpace(a.ID), strings.TrimSpace(b.ID)
	if a.ID == "" || b.ID == "" {
		return nil, ErrInvalidParticipants
	}
	if a.ID == b.ID {
		return nil, ErrSelfGame
	}
	swap, err := r.flip()
	if err != nil {
		return nil, fmt.Errorf("color shuffle: %w", err)
	}
	white, black := a, b
	if swap {
		white, black = b, a
	}

	now := r.now().UTC()
	g := &Game{
		ID:        GameID(white.ID, black.ID),
		FEN:       chess.StartFEN,
		MovesUCI:  []string{},
		MovesSAN:  []string{},
		Turn:      White,
		Status:    StatusActive,
		WhiteID:   white.ID,
		WhiteName: strings.TrimSpace(white.Name),
		BlackID:   black.ID,
		BlackName: strings.TrimSpace(black.Name),
		ChannelID: strings.TrimSpace(channelID),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}

	pk := pairKey(a.ID, b.ID)
	attempt := func() error {
		return r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, pk).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return ErrDuplicateGame
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Set(ctx, pk, g.ID, r.ttl)
				p.Set(ctx, gameKey(g.ID), raw, r.ttl)
				r.index(ctx, p, g)
				return nil
			})
			return err
		}, pk)
	}
	err = attempt()
	if errors.Is(err, redis.TxFailedErr) {
		err = attempt()
	}
	if errors.Is(err, redis.TxFailedErr) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Load returns ErrGameNotFound when id is unknown.
func (r *Registry) Load(ctx context.Context, id string) (*Game, error) {
	return r.load(ctx, r.rdb, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *Registry) load(ctx context.Context, c getter, id string) (*Game, error) {
	raw, err := c.Get(ctx, gameKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	var g Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decode game %s: %w", id, err)
	}
	return &g, nil
}

// Save upserts g. An existing record must still carry g.Version, otherwise
// ErrConflict is returned. On success g.Version is advanced.
func (r *Registry) Save(ctx context.Context, g *Game) error {
	key := gameKey(g.ID)
	err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := r.load(ctx, tx, g.ID)
		switch {
		case errors.Is(err, ErrGameNotFound):
		case err != nil:
			return err
		case cur.Version != g.Version:
			return ErrConflict
		}
		next := g.clone()
		next.Version++
		raw, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, raw, r.ttl)
			p.Set(ctx, pairKey(next.WhiteID, next.BlackID), next.ID, r.ttl)
			r.index(ctx, p, next)
			return nil
		})
		if err == nil {
			g.Version = next.Version
		}
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}

// Update applies fn to the current record under optimistic locking. A lost
// race is retried once; a second loss yields ErrConflict. Errors from fn are
// returned unchanged and nothing is written.
func (r *Registry) Update(ctx context.Context, id string, fn func(*Game) error) (*Game, error) {
	key := gameKey(id)
	var out *Game
	txf := func(tx *redis.Tx) error {
		cur, err := r.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(cur); err != nil {
			return err
		}
		cur.Version++
		raw, err := json.Marshal(cur)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, raw, r.ttl)
			if r.ttl > 0 {
				p.Expire(ctx, pairKey(cur.WhiteID, cur.BlackID), r.ttl)
				p.Expire(ctx, userIndexKey(cur.WhiteID), r.ttl)
				p.Expire(ctx, userIndexKey(cur.BlackID), r.ttl)
			}
			return nil
		})
		if err == nil {
			out = cur
		}
		return err
	}
	err := r.rdb.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		err = r.rdb.Watch(ctx, txf, key)
	}
	if errors.Is(err, redis.TxFailedErr) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the record, its pair lock and its index entries.
func (r *Registry) Delete(ctx context.Context, id string) error {
	g, err := r.Load(ctx, id)
	if err != nil {
		return err
	}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, gameKey(id), pairKey(g.WhiteID, g.BlackID))
		p.SRem(ctx, userIndexKey(g.WhiteID), id)
		p.SRem(ctx, userIndexKey(g.BlackID), id)
		return nil
	})
	return err
}

// GamesFor lists userID's games, oldest first. Index entries whose record
// has expired are pruned.
func (r *Registry) GamesFor(ctx context.Context, userID string) ([]*Game, error) {
	idx := userIndexKey(userID)
	ids, err := r.rdb.SMembers(ctx, idx).Result()
	if err != nil {
		return nil, err
	}
	var out []*Game
	for _, id := range ids {
		g, err := r.Load(ctx, id)
		if errors.Is(err, ErrGameNotFound) {
			_ = r.rdb.SRem(ctx, idx, id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *Registry) index(ctx context.Context, p redis.Pipeliner, g *Game) {
	for _, u := range []string{g.WhiteID, g.BlackID} {
		p.SAdd(ctx, userIndexKey(u), g.ID)
		if r.ttl > 0 {
			p.Expire(ctx, userIndexKey(u), r.ttl)
		}
	}
}

func gameKey(id string) string { return "chess:game:" + strings.TrimSpace(id) }

func userIndexKey(userID string) string { return "chess:index:user:" + strings.TrimSpace(userID) }

// pairKey is independent of argument order.
func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "chess:pair:" + a + ":" + b
}

func secureCoin() (bool, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	if err != nil {
		return false, err
	}
	return n.Int64() == 1, nil
}
