package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Discord-bot/internal/activity"
	appcfg "github.com/park285/Cheese-Discord-bot/internal/config"
	"github.com/park285/Cheese-Discord-bot/internal/control"
	"github.com/park285/Cheese-Discord-bot/internal/discord"
	"github.com/park285/Cheese-Discord-bot/internal/eventstore"
	"github.com/park285/Cheese-Discord-bot/internal/leaderboard"
	"github.com/park285/Cheese-Discord-bot/internal/metrics"
	"github.com/park285/Cheese-Discord-bot/internal/moverouter"
	"github.com/park285/Cheese-Discord-bot/internal/msgcat"
	"github.com/park285/Cheese-Discord-bot/internal/obslog"
	"github.com/park285/Cheese-Discord-bot/internal/pvp"
	"github.com/park285/Cheese-Discord-bot/internal/pvpchess"
	"github.com/park285/Cheese-Discord-bot/internal/scheduler"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Printf("config error: %v", err)
		return 1
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Printf("logger init error: %v", err)
		return 1
	}
	defer obslog.Sync()
	logger := obslog.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	events, err := eventstore.Open(ctx, cfg.EventStore, cfg.EventDBPath, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Error("event_store_open_error", zap.String("backend", cfg.EventStore), zap.Error(err))
		return 1
	}
	defer events.Close()

	rdb, err := pvpchess.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("redis_connect_error", zap.Error(err))
		return 1
	}
	defer rdb.Close()

	scorer := activity.NewScorer(events, activity.WithCooldown(cfg.ActivityCooldown))
	board := leaderboard.NewService(scorer, events, leaderboard.NewCache(rdb, cfg.LeaderboardCacheTTL), m, leaderboard.Config{
		Window:         cfg.ActivityWindow,
		Size:           cfg.LeaderboardSize,
		Timeout:        cfg.ScoreTimeout,
		StaticExcluded: cfg.ExcludedChannels,
	})

	games := pvpchess.NewManager(pvpchess.NewRegistry(rdb, cfg.ChessGameTTL), m)
	if cfg.DatabaseURL != "" {
		repo, err := pvpchess.NewRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("pvp_repo_init_error", zap.Error(err))
			return 1
		}
		defer repo.Close()
		games.AttachRepository(repo)
	} else {
		logger.Info("pvp_archive_disabled", zap.String("reason", "DATABASE_URL not set"))
	}

	catalog, err := msgcat.New(cfg.MessageCatalogDir)
	if err != nil {
		logger.Error("message_catalog_error", zap.Error(err))
		return 1
	}

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		logger.Error("discord_session_error", zap.Error(err))
		return 1
	}
	session.Identify.Intents = discord.Intents

	index := moverouter.NewMessageIndex(rdb, cfg.ChessMessageTTL)
	challenges := pvp.NewManager(cfg.ChallengeTTL)
	bot := discord.New(session, cfg.BotPrefix, discord.Deps{
		Events:     events,
		Board:      board,
		Challenges: challenges,
		Games:      games,
		Router:     moverouter.New(index),
		Messages:   index,
		Catalog:    catalog,
		Metrics:    m,
	})
	bot.Register(session)

	if err := session.Open(); err != nil {
		logger.Error("discord_open_error", zap.Error(err))
		return 1
	}
	defer session.Close()

	sched := scheduler.New(cfg.LeaderboardTargets, bot, cfg.ScoreTimeout*2)
	if err := sched.ScheduleLeaderboards(cfg.LeaderboardSchedule); err != nil {
		logger.Error("scheduler_error", zap.Error(err))
		return 1
	}
	if err := sched.Every("@every 1m", "challenge_sweep", func(context.Context) error {
		if n := challenges.Sweep(); n > 0 {
			logger.Debug("challenges_expired", zap.Int("count", n))
		}
		return nil
	}); err != nil {
		logger.Error("scheduler_error", zap.Error(err))
		return 1
	}
	sched.Start()
	defer sched.Stop(context.Background())

	var actions <-chan control.Action
	if cfg.ControlAddr != "" {
		ctl := control.New(cfg.ControlToken, m)
		actions = ctl.Actions()
		go func() {
			if err := ctl.ListenAndServe(cfg.ControlAddr); err != nil {
				logger.Error("control_server_error", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = ctl.Shutdown(sctx)
		}()
	}

	logger.Info("guild_bot_started", zap.String("prefix", cfg.BotPrefix), zap.String("event_store", cfg.EventStore))

	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal")
		return 0
	case a := <-actions:
		if a == control.ActionUpdate {
			uctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			out, err := control.RunUpdate(uctx, cfg.UpdateCommand)
			cancel()
			if err != nil {
				logger.Error("update_failed", zap.ByteString("output", out), zap.Error(err))
			} else {
				logger.Info("update_done", zap.ByteString("output", out))
			}
		}
		logger.Info("restart_requested", zap.String("action", string(a)))
		return control.ExitRestart
	}
}
