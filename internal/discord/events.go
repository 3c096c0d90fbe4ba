package discord

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Discord-bot/internal/eventstore"
)

func (b *Bot) recordCreate(ctx context.Context, m *discordgo.Message) {
	ev := eventstore.Event{
		ID:        m.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
		AuthorBot: m.Author.Bot,
		CreatedAt: m.Timestamp,
		Content:   m.Content,
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	if len(m.Embeds) > 0 {
		if raw, err := json.Marshal(m.Embeds[0]); err == nil {
			ev.Embed = string(raw)
		}
	}
	if err := b.Events.Append(ctx, ev); err != nil {
		b.log.Error("event_append_error", zap.String("message_id", m.ID), zap.Error(err))
		return
	}
	b.Metrics.Event("create")
}

func (b *Bot) recordEdit(ctx context.Context, m *discordgo.Message) {
	// embed unfurls arrive as updates without an edit timestamp
	if m == nil || m.GuildID == "" || m.EditedTimestamp == nil {
		return
	}
	err := b.Events.AppendEdit(ctx, m.ID, *m.EditedTimestamp, m.Content)
	switch {
	case errors.Is(err, eventstore.ErrEventNotFound):
		b.log.Debug("event_edit_unknown", zap.String("message_id", m.ID))
	case err != nil:
		b.log.Error("event_edit_error", zap.String("message_id", m.ID), zap.Error(err))
	default:
		b.Metrics.Event("edit")
	}
}

func (b *Bot) recordDelete(ctx context.Context, m *discordgo.Message) {
	if m == nil || m.ID == "" {
		return
	}
	err := b.Events.MarkDeleted(ctx, m.ID)
	switch {
	case errors.Is(err, eventstore.ErrEventNotFound):
		b.log.Debug("event_delete_unknown", zap.String("message_id", m.ID))
	case err != nil:
		b.log.Error("event_delete_error", zap.String("message_id", m.ID), zap.Error(err))
	default:
		b.Metrics.Event("delete")
	}
}
