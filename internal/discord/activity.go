package discord

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Discord-bot/internal/leaderboard"
)

func (b *Bot) windowDays() int {
	d := int(b.Board.Window().Hours() / 24)
	if d < 1 {
		d = 1
	}
	return d
}

func (b *Bot) cmdLeaderboard(ctx context.Context, m *discordgo.Message) {
	if m.GuildID == "" {
		b.reply(m, b.text("common.guild_only", nil))
		return
	}
	rows, err := b.Board.Top(ctx, m.GuildID)
	if err != nil {
		b.reply(m, b.activityError(err, m.GuildID))
		return
	}
	b.reply(m, b.formatBoard(rows))
}

// PostLeaderboard sends guildID's board to channelID.
func (b *Bot) PostLeaderboard(ctx context.Context, guildID, channelID string) error {
	rows, err := b.Board.Top(ctx, guildID)
	if err != nil {
		return err
	}
	_, err = b.chat.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         b.formatBoard(rows),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	return err
}

func (b *Bot) formatBoard(rows []leaderboard.Row) string {
	days := b.windowDays()
	if len(rows) == 0 {
		return b.text("activity.leaderboard.empty", map[string]any{"Days": days})
	}
	lines := []string{b.text("activity.leaderboard.header", map[string]any{"Days": days})}
	for _, r := range rows {
		lines = append(lines, b.text("activity.leaderboard.row", map[string]any{"Rank": r.Rank, "UserID": r.UserID, "Score": r.Score}))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) cmdRank(ctx context.Context, m *discordgo.Message) {
	if m.GuildID == "" {
		b.reply(m, b.text("common.guild_only", nil))
		return
	}
	target := m.Author.ID
	if len(m.Mentions) > 0 && m.Mentions[0] != nil {
		target = m.Mentions[0].ID
	}
	st, err := b.Board.Standing(ctx, m.GuildID, target)
	if err != nil {
		b.reply(m, b.activityError(err, m.GuildID))
		return
	}
	if !st.Ranked && st.Score > 0 {
		b.reply(m, b.text("activity.rank.fresh", map[string]any{"UserID": target, "Score": st.Score}))
		return
	}
	if !st.Ranked {
		b.reply(m, b.text("activity.rank.unranked", map[string]any{"UserID": target, "Days": b.windowDays()}))
		return
	}
	b.reply(m, b.text("activity.rank.ranked", map[string]any{
		"UserID":     target,
		"Rank":       st.Rank,
		"Total":      st.Total,
		"Score":      st.Score,
		"TopPercent": st.TopPercent,
	}))
}

// cmdExclude toggles whether a channel counts towards activity. The caller
// must hold Manage Channels in that channel.
func (b *Bot) cmdExclude(ctx context.Context, m *discordgo.Message, arg string, exclude bool) {
	if m.GuildID == "" {
		b.reply(m, b.text("common.guild_only", nil))
		return
	}
	channelID, ok := parseChannel(arg)
	if !ok {
		b.reply(m, b.text("activity.exclude.usage", nil))
		return
	}
	perms, err := b.chat.UserChannelPermissions(m.Author.ID, channelID)
	if err != nil {
		b.log.Warn("permission_lookup_error", zap.String("user_id", m.Author.ID), zap.String("channel_id", channelID), zap.Error(err))
		b.reply(m, b.text("common.permission_denied", nil))
		return
	}
	if perms&discordgo.PermissionManageChannels == 0 {
		b.reply(m, b.text("common.permission_denied", nil))
		return
	}
	if err := b.Events.SetChannelExcluded(ctx, m.GuildID, channelID, exclude); err != nil {
		b.log.Error("channel_flag_error", zap.String("guild_id", m.GuildID), zap.String("channel_id", channelID), zap.Error(err))
		b.reply(m, b.text("common.internal_error", nil))
		return
	}
	b.log.Info("channel_flag_set", zap.String("guild_id", m.GuildID), zap.String("channel_id", channelID), zap.Bool("excluded", exclude), zap.String("by", m.Author.ID))
	key := "activity.exclude.included"
	if exclude {
		key = "activity.exclude.excluded"
	}
	b.reply(m, b.text(key, map[string]any{"ChannelID": channelID}))
}

func (b *Bot) activityError(err error, guildID string) string {
	if errors.Is(err, leaderboard.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return b.text("common.timeout", nil)
	}
	b.log.Error("leaderboard_error", zap.String("guild_id", guildID), zap.Error(err))
	return b.text("common.internal_error", nil)
}
