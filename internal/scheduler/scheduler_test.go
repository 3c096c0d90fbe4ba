package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/park285/Cheese-Discord-bot/internal/config"
)

type fakePoster struct {
	mu    sync.Mutex
	calls map[string]string
	fail  string
}

func (f *fakePoster) PostLeaderboard(_ context.Context, guildID, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]string{}
	}
	f.calls[guildID] = channelID
	if guildID == f.fail {
		return errors.New("boom")
	}
	return nil
}

func TestPostAllVisitsEveryTarget(t *testing.T) {
	targets := []config.LeaderboardTarget{{GuildID: "g1", ChannelID: "c1"}, {GuildID: "g2", ChannelID: "c2"}, {GuildID: "g3", ChannelID: "c3"}}
	p := &fakePoster{fail: "g2"}
	s := New(targets, p, time.Second)
	err := s.PostAll(context.Background())
	if err == nil {
		t.Fatalf("expected error from g2")
	}
	if len(p.calls) != 3 || p.calls["g3"] != "c3" {
		t.Fatalf("expected all targets attempted, got %v", p.calls)
	}
}

func TestScheduleRejectsBadCron(t *testing.T) {
	s := New([]config.LeaderboardTarget{{GuildID: "g", ChannelID: "c"}}, &fakePoster{}, time.Second)
	if err := s.ScheduleLeaderboards("every tuesday"); err == nil {
		t.Fatalf("expected parse error")
	}
	if err := s.ScheduleLeaderboards("0 12 * * 1"); err != nil {
		t.Fatalf("ScheduleLeaderboards: %v", err)
	}
	empty := New(nil, &fakePoster{}, time.Second)
	if err := empty.ScheduleLeaderboards("every tuesday"); err != nil {
		t.Fatalf("no targets should skip scheduling: %v", err)
	}
}

func TestEveryRunsJob(t *testing.T) {
	s := New(nil, &fakePoster{}, time.Second)
	ran := make(chan struct{}, 1)
	if err := s.Every("@every 1s", "tick", func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}); err != nil {
		t.Fatalf("Every: %v", err)
	}
	s.Start()
	defer s.Stop(context.Background())
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatalf("job did not run")
	}
}
