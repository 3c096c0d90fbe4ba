package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LeaderboardTarget is a channel that receives the scheduled leaderboard post.
type LeaderboardTarget struct {
	GuildID   string
	ChannelID string
}

type AppConfig struct {
	DiscordToken string
	BotPrefix    string

	RedisURL    string
	DatabaseURL string

	EventStore    string
	EventDBPath   string
	MongoURI      string
	MongoDatabase string

	ActivityWindow      time.Duration
	ActivityCooldown    time.Duration
	LeaderboardSize     int
	LeaderboardCacheTTL time.Duration
	ScoreTimeout        time.Duration
	ExcludedChannels    []string
	LeaderboardTargets  []LeaderboardTarget
	LeaderboardSchedule string

	ControlAddr   string
	ControlToken  string
	UpdateCommand string

	ChessGameTTL      time.Duration
	ChessMessageTTL   time.Duration
	ChallengeTTL      time.Duration
	MessageCatalogDir string
}

// Load reads an optional .env file and then the process environment.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the config from the current environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		BotPrefix:           "!",
		EventStore:          "sqlite",
		EventDBPath:         "data/events.db",
		MongoDatabase:       "guildbot",
		ActivityWindow:      7 * 24 * time.Hour,
		ActivityCooldown:    60 * time.Second,
		LeaderboardSize:     12,
		LeaderboardCacheTTL: 5 * time.Minute,
		ScoreTimeout:        30 * time.Second,
		LeaderboardSchedule: "0 12 * * 1",
		ControlAddr:         ":8080",
		UpdateCommand:       "git pull --ff-only",
		ChessMessageTTL:     720 * time.Hour,
		ChallengeTTL:        10 * time.Minute,
	}

	cfg.DiscordToken = env("DISCORD_TOKEN")
	if v := env("BOT_PREFIX"); v != "" {
		cfg.BotPrefix = v
	}
	cfg.RedisURL = env("REDIS_URL")
	cfg.DatabaseURL = env("DATABASE_URL")

	if v := strings.ToLower(env("EVENT_STORE")); v != "" {
		cfg.EventStore = v
	}
	if v := env("EVENT_DB_PATH"); v != "" {
		cfg.EventDBPath = v
	}
	cfg.MongoURI = env("MONGO_URI")
	if v := env("MONGO_DATABASE"); v != "" {
		cfg.MongoDatabase = v
	}

	var err error
	if cfg.ActivityWindow, err = durationEnv("ACTIVITY_WINDOW", cfg.ActivityWindow); err != nil {
		return nil, err
	}
	if cfg.ActivityCooldown, err = durationEnv("ACTIVITY_COOLDOWN", cfg.ActivityCooldown); err != nil {
		return nil, err
	}
	if cfg.LeaderboardCacheTTL, err = durationEnv("LEADERBOARD_CACHE_TTL", cfg.LeaderboardCacheTTL); err != nil {
		return nil, err
	}
	if cfg.ScoreTimeout, err = durationEnv("SCORE_TIMEOUT", cfg.ScoreTimeout); err != nil {
		return nil, err
	}
	if cfg.ChessGameTTL, err = durationEnv("CHESS_GAME_TTL", cfg.ChessGameTTL); err != nil {
		return nil, err
	}
	if cfg.ChessMessageTTL, err = durationEnv("CHESS_MESSAGE_TTL", cfg.ChessMessageTTL); err != nil {
		return nil, err
	}
	if cfg.ChallengeTTL, err = durationEnv("CHALLENGE_TTL", cfg.ChallengeTTL); err != nil {
		return nil, err
	}
	if v := env("LEADERBOARD_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LeaderboardSize = n
		}
	}

	cfg.ExcludedChannels = splitList(env("EXCLUDED_CHANNELS"))
	for _, pair := range splitList(env("LEADERBOARD_CHANNELS")) {
		guild, channel, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(guild) == "" || strings.TrimSpace(channel) == "" {
			return nil, fmt.Errorf("LEADERBOARD_CHANNELS: malformed entry %q (want guild:channel)", pair)
		}
		cfg.LeaderboardTargets = append(cfg.LeaderboardTargets, LeaderboardTarget{GuildID: strings.TrimSpace(guild), ChannelID: strings.TrimSpace(channel)})
	}
	if v := env("LEADERBOARD_SCHEDULE"); v != "" {
		cfg.LeaderboardSchedule = v
	}

	if v, ok := os.LookupEnv("CONTROL_ADDR"); ok {
		cfg.ControlAddr = strings.TrimSpace(v)
	}
	cfg.ControlToken = env("CONTROL_TOKEN")
	if v := env("UPDATE_COMMAND"); v != "" {
		cfg.UpdateCommand = v
	}
	cfg.MessageCatalogDir = env("MESSAGE_CATALOG_DIR")

	if cfg.DiscordToken == "" {
		return nil, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	switch cfg.EventStore {
	case "sqlite", "memory":
	case "mongo":
		if cfg.MongoURI == "" {
			return nil, errors.New("MONGO_URI is required when EVENT_STORE=mongo")
		}
	default:
		return nil, fmt.Errorf("EVENT_STORE: unsupported backend %q", cfg.EventStore)
	}
	if cfg.ActivityWindow <= 0 {
		return nil, errors.New("ACTIVITY_WINDOW must be positive")
	}
	if cfg.ControlAddr != "" && cfg.ControlToken == "" {
		return nil, errors.New("CONTROL_TOKEN is required when CONTROL_ADDR is set")
	}
	return cfg, nil
}

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := env(k)
	if v == "" {
		return def, nil
	}
	if v == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
