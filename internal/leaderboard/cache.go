package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/Cheese-Discord-bot/internal/activity"
)

// Cache stores computed score lists in Redis as JSON.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

type cachedScores struct {
	ComputedAt time.Time             `json:"computed_at"`
	Entries    []activity.ScoreEntry `json:"entries"`
}

// Get returns (nil, false, nil) on a miss.
func (c *Cache) Get(ctx context.Context, guildID string, window time.Duration, excluded []string) ([]activity.ScoreEntry, bool, error) {
	if c == nil || c.rdb == nil || c.ttl <= 0 {
		return nil, false, nil
	}
	raw, err := c.rdb.Get(ctx, cacheKey(guildID, window, excluded)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var v cachedScores
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false, nil
	}
	return v.Entries, true, nil
}

func (c *Cache) Put(ctx context.Context, guildID string, window time.Duration, excluded []string, entries []activity.ScoreEntry) error {
	if c == nil || c.rdb == nil || c.ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(cachedScores{ComputedAt: time.Now().UTC(), Entries: entries})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cacheKey(guildID, window, excluded), raw, c.ttl).Err()
}

// cacheKey includes a hash of the sorted exclusion set.
func cacheKey(guildID string, window time.Duration, excluded []string) string {
	ex := append([]string(nil), excluded...)
	sort.Strings(ex)
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.Join(ex, ",")))
	return fmt.Sprintf("leaderboard:%s:%d:%x", strings.TrimSpace(guildID), int64(window/time.Second), h.Sum64())
}
