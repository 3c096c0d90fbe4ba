// Package scheduler runs the periodic jobs: weekly leaderboard posts and
// housekeeping.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/Cheese-Discord-bot/internal/config"
	"github.com/park285/Cheese-Discord-bot/internal/obslog"
)

// Poster publishes one guild's leaderboard into a channel.
type Poster interface {
	PostLeaderboard(ctx context.Context, guildID, channelID string) error
}

// maxParallel bounds concurrent guild refreshes.
const maxParallel = 4

type Scheduler struct {
	cron    *cron.Cron
	targets []config.LeaderboardTarget
	poster  Poster
	timeout time.Duration
	log     *zap.Logger

	mu      sync.Mutex
	running bool
}

func New(targets []config.LeaderboardTarget, poster Poster, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(),
		targets: targets,
		poster:  poster,
		timeout: timeout,
		log:     obslog.Named("scheduler"),
	}
}

// ScheduleLeaderboards registers the leaderboard post under a standard
// five-field cron spec.
func (s *Scheduler) ScheduleLeaderboards(spec string) error {
	if len(s.targets) == 0 {
		s.log.Info("leaderboard_schedule_skipped", zap.String("reason", "no targets"))
		return nil
	}
	return s.Every(spec, "leaderboard_post", func(ctx context.Context) error {
		return s.PostAll(ctx)
	})
}

// Every registers fn under spec. Overlapping runs of the same job are
// skipped.
func (s *Scheduler) Every(spec, name string, fn func(context.Context) error) error {
	var busy sync.Mutex
	_, err := s.cron.AddFunc(spec, func() {
		if !busy.TryLock() {
			s.log.Warn("job_skipped_overlap", zap.String("job", name))
			return
		}
		defer busy.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		start := time.Now()
		if err := fn(ctx); err != nil {
			s.log.Error("job_failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.log.Debug("job_done", zap.String("job", name), zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	s.log.Info("job_scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// PostAll posts every configured target concurrently. All targets are
// attempted; the first error is returned.
func (s *Scheduler) PostAll(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(maxParallel)
	for _, t := range s.targets {
		t := t
		g.Go(func() error {
			if err := s.poster.PostLeaderboard(ctx, t.GuildID, t.ChannelID); err != nil {
				s.log.Warn("leaderboard_post_failed", zap.String("guild_id", t.GuildID), zap.String("channel_id", t.ChannelID), zap.Error(err))
				return fmt.Errorf("guild %s: %w", t.GuildID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
