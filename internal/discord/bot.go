// Package discord binds the activity and chess features to a discordgo
// session: it records message events and answers prefix commands.
package discord

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Discord-bot/internal/eventstore"
	"github.com/park285/Cheese-Discord-bot/internal/leaderboard"
	"github.com/park285/Cheese-Discord-bot/internal/metrics"
	"github.com/park285/Cheese-Discord-bot/internal/moverouter"
	"github.com/park285/Cheese-Discord-bot/internal/msgcat"
	"github.com/park285/Cheese-Discord-bot/internal/obslog"
	"github.com/park285/Cheese-Discord-bot/internal/pvp"
	"github.com/park285/Cheese-Discord-bot/internal/pvpchess"
)

// Intents the bot needs from the gateway.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// handlerTimeout bounds the work done for a single gateway event.
const handlerTimeout = 45 * time.Second

// Chat is the part of *discordgo.Session the handlers call.
type Chat interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
}

// Deps are the feature services the bot dispatches to.
type Deps struct {
	Events     eventstore.Store
	Board      *leaderboard.Service
	Challenges *pvp.Manager
	Games      *pvpchess.Manager
	Router     *moverouter.Router
	Messages   *moverouter.MessageIndex
	Catalog    *msgcat.Catalog
	Metrics    *metrics.Metrics
}

type Bot struct {
	Deps
	chat   Chat
	prefix string
	log    *zap.Logger

	mu     sync.RWMutex
	selfID string
}

func New(chat Chat, prefix string, d Deps) *Bot {
	if strings.TrimSpace(prefix) == "" {
		prefix = "!"
	}
	if d.Catalog == nil {
		d.Catalog = msgcat.MustDefault()
	}
	return &Bot{Deps: d, chat: chat, prefix: prefix, log: obslog.Named("discord")}
}

// Register installs the gateway handlers on s.
func (b *Bot) Register(s *discordgo.Session) {
	s.AddHandler(b.onReady)
	s.AddHandler(b.onMessageCreate)
	s.AddHandler(b.onMessageUpdate)
	s.AddHandler(b.onMessageDelete)
}

// SetSelfID records the bot's own user id.
func (b *Bot) SetSelfID(id string) {
	b.mu.Lock()
	b.selfID = id
	b.mu.Unlock()
}

func (b *Bot) self() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.selfID
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User != nil {
		b.SetSelfID(r.User.ID)
		b.log.Info("discord_ready", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
	}
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	b.HandleMessage(ctx, m.Message)
}

func (b *Bot) onMessageUpdate(_ *discordgo.Session, m *discordgo.MessageUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	b.recordEdit(ctx, m.Message)
}

func (b *Bot) onMessageDelete(_ *discordgo.Session, m *discordgo.MessageDelete) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	b.recordDelete(ctx, m.Message)
}

// HandleMessage records a new message and runs any command it carries.
func (b *Bot) HandleMessage(ctx context.Context, m *discordgo.Message) {
	if m == nil || m.Author == nil {
		return
	}
	if m.GuildID != "" {
		b.recordCreate(ctx, m)
	}
	if m.Author.Bot || m.Author.ID == b.self() {
		return
	}
	content := strings.TrimSpace(m.Content)
	if strings.HasPrefix(content, b.prefix) {
		b.dispatch(ctx, m, strings.TrimSpace(strings.TrimPrefix(content, b.prefix)))
		return
	}
	// bare moves: anything in DMs, or a reply to a board in a channel
	if isMoveText(content) && (m.GuildID == "" || m.MessageReference != nil) {
		b.cmdMove(ctx, m, content)
	}
}

func (b *Bot) dispatch(ctx context.Context, m *discordgo.Message, line string) {
	name, rest := splitCommand(line)
	switch name {
	case "leaderboard", "lb", "top":
		b.cmdLeaderboard(ctx, m)
	case "rank":
		b.cmdRank(ctx, m)
	case "exclude":
		b.cmdExclude(ctx, m, rest, true)
	case "include":
		b.cmdExclude(ctx, m, rest, false)
	case "chess":
		b.cmdChess(ctx, m, rest)
	case "move", "mv":
		b.cmdMove(ctx, m, rest)
	case "resign":
		b.cmdResign(ctx, m)
	case "games":
		b.cmdGames(ctx, m)
	case "board":
		b.cmdBoard(ctx, m)
	}
}

var usersOnly = &discordgo.MessageAllowedMentions{
	Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
}

func (b *Bot) reply(m *discordgo.Message, text string) {
	b.send(m.ChannelID, &discordgo.MessageSend{Content: text, Reference: m.Reference(), AllowedMentions: usersOnly})
}

func (b *Bot) send(channelID string, data *discordgo.MessageSend) *discordgo.Message {
	msg, err := b.chat.ChannelMessageSendComplex(channelID, data)
	if err != nil {
		b.log.Error("discord_send_error", zap.String("channel_id", channelID), zap.Error(err))
		return nil
	}
	return msg
}

func (b *Bot) text(key string, data map[string]any) string {
	if data == nil {
		data = map[string]any{}
	}
	data["Prefix"] = b.prefix
	return b.Catalog.Text(key, data)
}
