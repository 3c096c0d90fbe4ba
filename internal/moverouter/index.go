package moverouter

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnknownMessage is returned by Lookup for ids that were never registered
// or have expired.
var ErrUnknownMessage = errors.New("message not registered")

// MessageIndex maps bot-sent message ids to game ids in Redis.
type MessageIndex struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewMessageIndex(rdb *redis.Client, ttl time.Duration) *MessageIndex {
	return &MessageIndex{rdb: rdb, ttl: ttl}
}

func messageKey(id string) string { return "chess:msg:" + strings.TrimSpace(id) }

// Remember registers messageID as a state message of gameID.
func (x *MessageIndex) Remember(ctx context.Context, messageID, gameID string) error {
	if strings.TrimSpace(messageID) == "" || strings.TrimSpace(gameID) == "" {
		return nil
	}
	return x.rdb.Set(ctx, messageKey(messageID), gameID, x.ttl).Err()
}

func (x *MessageIndex) Lookup(ctx context.Context, messageID string) (string, error) {
	id, err := x.rdb.Get(ctx, messageKey(messageID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrUnknownMessage
	}
	return id, err
}
