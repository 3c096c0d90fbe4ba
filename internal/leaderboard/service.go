package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/park285/Cheese-Discord-bot/internal/activity"
	"github.com/park285/Cheese-Discord-bot/internal/metrics"
	"github.com/park285/Cheese-Discord-bot/internal/obslog"
)

var ErrTimeout = errors.New("score computation timed out")

// ScoreSource is satisfied by *activity.Scorer.
type ScoreSource interface {
	ComputeScores(ctx context.Context, guildID string, window time.Duration, excluded []string) ([]activity.ScoreEntry, error)
}

// UserScoreSource is the optional single-user path of a ScoreSource.
type UserScoreSource interface {
	ComputeScoreForUser(ctx context.Context, userID, guildID string, window time.Duration, excluded []string) (int, error)
}

// ExclusionSource returns the stored per-guild channel exclusions.
type ExclusionSource interface {
	ExcludedChannels(ctx context.Context, guildID string) ([]string, error)
}

type Config struct {
	Window         time.Duration
	Size           int
	Timeout        time.Duration
	StaticExcluded []string
}

// Service serves boards from the cache or computes them.
type Service struct {
	scores  ScoreSource
	flags   ExclusionSource
	cache   *Cache
	metrics *metrics.Metrics
	cfg     Config
	group   singleflight.Group
}

func NewService(scores ScoreSource, flags ExclusionSource, cache *Cache, m *metrics.Metrics, cfg Config) *Service {
	if cfg.Window <= 0 {
		cfg.Window = activity.DefaultWindow
	}
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	return &Service{scores: scores, flags: flags, cache: cache, metrics: m, cfg: cfg}
}

// Excluded merges the configured channel list with the guild's stored flags.
func (s *Service) Excluded(ctx context.Context, guildID string) ([]string, error) {
	set := make(map[string]struct{}, len(s.cfg.StaticExcluded))
	for _, ch := range s.cfg.StaticExcluded {
		set[ch] = struct{}{}
	}
	if s.flags != nil {
		stored, err := s.flags.ExcludedChannels(ctx, guildID)
		if err != nil {
			return nil, fmt.Errorf("load exclusions: %w", err)
		}
		for _, ch := range stored {
			set[ch] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for ch := range set {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out, nil
}

// Scores returns the guild's full score list in discovery order.
func (s *Service) Scores(ctx context.Context, guildID string) ([]activity.ScoreEntry, error) {
	excluded, err := s.Excluded(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if entries, ok, err := s.cache.Get(ctx, guildID, s.cfg.Window, excluded); err != nil {
		obslog.L().Warn("leaderboard_cache_read_error", zap.String("guild_id", guildID), zap.Error(err))
	} else if ok {
		s.metrics.LeaderboardLookup("hit")
		return entries, nil
	}
	s.metrics.LeaderboardLookup("miss")

	v, err, _ := s.group.Do(cacheKey(guildID, s.cfg.Window, excluded), func() (any, error) {
		return s.compute(ctx, guildID, excluded)
	})
	if err != nil {
		return nil, err
	}
	return v.([]activity.ScoreEntry), nil
}

// Top returns the truncated board.
func (s *Service) Top(ctx context.Context, guildID string) ([]Row, error) {
	entries, err := s.Scores(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return Build(entries, s.cfg.Size), nil
}

// Standing returns userID's position in the guild. A user missing from the
// cached ranking gets a fresh single-user score with Ranked left false.
func (s *Service) Standing(ctx context.Context, guildID, userID string) (Standing, error) {
	entries, err := s.Scores(ctx, guildID)
	if err != nil {
		return Standing{}, err
	}
	st := StandingOf(entries, userID)
	if st.Ranked {
		return st, nil
	}
	// a cached list can predate the user's first counted message
	us, ok := s.scores.(UserScoreSource)
	if !ok {
		return st, nil
	}
	excluded, err := s.Excluded(ctx, guildID)
	if err != nil {
		return Standing{}, err
	}
	score, err := us.ComputeScoreForUser(ctx, userID, guildID, s.cfg.Window, excluded)
	if err != nil {
		return Standing{}, fmt.Errorf("score user %s: %w", userID, err)
	}
	st.Score = score
	return st, nil
}

// Window reports the configured scoring window.
func (s *Service) Window() time.Duration { return s.cfg.Window }

func (s *Service) compute(ctx context.Context, guildID string, excluded []string) ([]activity.ScoreEntry, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	type result struct {
		entries []activity.ScoreEntry
		err     error
	}
	start := time.Now()
	done := make(chan result, 1)
	go func() {
		entries, err := s.scores.ComputeScores(ctx, guildID, s.cfg.Window, excluded)
		done <- result{entries, err}
	}()

	select {
	case <-ctx.Done():
		s.metrics.ObserveScore("timeout", time.Since(start))
		obslog.L().Warn("leaderboard_compute_timeout", zap.String("guild_id", guildID), zap.Duration("timeout", s.cfg.Timeout))
		return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	case r := <-done:
		if r.err != nil {
			s.metrics.ObserveScore("error", time.Since(start))
			return nil, r.err
		}
		s.metrics.ObserveScore("ok", time.Since(start))
		if err := s.cache.Put(ctx, guildID, s.cfg.Window, excluded, r.entries); err != nil {
			obslog.L().Warn("leaderboard_cache_write_error", zap.String("guild_id", guildID), zap.Error(err))
		}
		obslog.L().Info("leaderboard_computed",
			zap.String("guild_id", guildID),
			zap.Int("users", len(r.entries)),
			zap.Duration("took", time.Since(start)),
		)
		return r.entries, nil
	}
}
