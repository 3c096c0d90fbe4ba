package discord

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Discord-bot/internal/chess"
	"github.com/park285/Cheese-Discord-bot/internal/moverouter"
	"github.com/park285/Cheese-Discord-bot/internal/pvp"
	"github.com/park285/Cheese-Discord-bot/internal/pvpchess"
)

func (b *Bot) cmdChess(ctx context.Context, m *discordgo.Message, rest string) {
	arg, _ := splitCommand(rest)
	switch {
	case arg == "accept":
		b.acceptChallenge(ctx, m)
	case arg == "decline":
		b.declineChallenge(m)
	case len(m.Mentions) > 0 && m.Mentions[0] != nil:
		b.challenge(m, m.Mentions[0])
	default:
		b.reply(m, b.text("chess.usage", nil))
	}
}

func (b *Bot) challenge(m *discordgo.Message, target *discordgo.User) {
	if target.Bot {
		b.reply(m, b.text("chess.challenge.bot", nil))
		return
	}
	ch, err := b.Challenges.CreateChallenge(m.ChannelID, m.Author.ID, displayName(m.Author), target.ID, displayName(target))
	switch {
	case errors.Is(err, pvp.ErrSelfChallenge):
		b.reply(m, b.text("chess.challenge.self", nil))
		return
	case errors.Is(err, pvp.ErrAlreadyPending):
		b.reply(m, b.text("chess.challenge.pending", nil))
		return
	case err != nil:
		b.reply(m, b.text("chess.usage", nil))
		return
	}
	b.log.Info("pvp_challenge", zap.String("challenge_id", ch.ID), zap.String("challenger", ch.ChallengerID), zap.String("target", ch.TargetID))
	b.reply(m, b.text("chess.challenge.created", map[string]any{
		"TargetID":     ch.TargetID,
		"ChallengerID": ch.ChallengerID,
		"Minutes":      int(ch.ExpiresAt.Sub(ch.CreatedAt).Minutes()),
	}))
}

func (b *Bot) acceptChallenge(ctx context.Context, m *discordgo.Message) {
	ch, err := b.Challenges.Accept(m.Author.ID)
	if err != nil {
		b.reply(m, b.text("chess.challenge.none", nil))
		return
	}
	g, err := b.Games.Start(ctx, m.ChannelID,
		pvpchess.Player{ID: ch.ChallengerID, Name: ch.ChallengerName},
		pvpchess.Player{ID: ch.TargetID, Name: displayName(m.Author)},
	)
	if err != nil {
		b.reply(m, b.chessError(err, ""))
		return
	}
	started := b.text("chess.game.started", map[string]any{"WhiteID": g.WhiteID, "BlackID": g.BlackID})
	b.sendGame(ctx, m.ChannelID, g, m.Reference(), started)
}

func (b *Bot) declineChallenge(m *discordgo.Message) {
	ch, err := b.Challenges.Decline(m.Author.ID)
	if err != nil {
		b.reply(m, b.text("chess.challenge.none", nil))
		return
	}
	b.reply(m, b.text("chess.challenge.declined", map[string]any{"TargetID": ch.TargetID, "ChallengerID": ch.ChallengerID}))
}

// cmdMove plays arg, or lists the options of the piece on arg when it is a
// single square.
func (b *Bot) cmdMove(ctx context.Context, m *discordgo.Message, arg string) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		b.reply(m, b.text("chess.usage", nil))
		return
	}
	gameID, err := b.routeGame(ctx, m)
	if err != nil {
		b.reply(m, b.chessError(err, arg))
		return
	}
	if isSquare(arg) {
		b.showOptions(ctx, m, gameID, strings.ToLower(arg))
		return
	}
	res, err := b.Games.Play(ctx, gameID, m.Author.ID, arg)
	if err != nil {
		b.reply(m, b.chessError(err, arg))
		return
	}
	extra := ""
	if res.Finished {
		extra = b.finishedText(res.Game)
	}
	b.sendGame(ctx, m.ChannelID, res.Game, m.Reference(), extra)
}

func (b *Bot) showOptions(ctx context.Context, m *discordgo.Message, gameID, square string) {
	moves, err := b.Games.Options(ctx, gameID, m.Author.ID, square)
	if err != nil {
		b.reply(m, b.chessError(err, square))
		return
	}
	if len(moves) == 0 {
		b.reply(m, b.text("chess.move.no_options", map[string]any{"Square": square}))
		return
	}
	b.reply(m, b.text("chess.move.options", map[string]any{"Square": square, "Moves": strings.Join(moves, ", ")}))
}

func (b *Bot) cmdResign(ctx context.Context, m *discordgo.Message) {
	gameID, err := b.routeGame(ctx, m)
	if err != nil {
		b.reply(m, b.chessError(err, ""))
		return
	}
	g, err := b.Games.Resign(ctx, gameID, m.Author.ID)
	if err != nil {
		b.reply(m, b.chessError(err, ""))
		return
	}
	b.sendGame(ctx, m.ChannelID, g, m.Reference(), b.text("chess.game.resigned", map[string]any{"UserID": m.Author.ID, "WinnerID": g.Winner}))
}

func (b *Bot) cmdGames(ctx context.Context, m *discordgo.Message) {
	games, err := b.Games.ActiveGames(ctx, m.Author.ID)
	if err != nil {
		b.reply(m, b.chessError(err, ""))
		return
	}
	if len(games) == 0 {
		b.reply(m, b.text("chess.list.none", nil))
		return
	}
	lines := []string{b.text("chess.list.header", nil)}
	for _, g := range games {
		lines = append(lines, b.text("chess.list.row", map[string]any{
			"ID":         g.ID,
			"OpponentID": g.Opponent(m.Author.ID),
			"Turn":       sideName(g.Turn),
		}))
	}
	b.reply(m, strings.Join(lines, "\n"))
}

func (b *Bot) cmdBoard(ctx context.Context, m *discordgo.Message) {
	gameID, err := b.routeGame(ctx, m)
	if err != nil {
		b.reply(m, b.chessError(err, ""))
		return
	}
	g, err := b.Games.Game(ctx, gameID)
	if err != nil {
		b.reply(m, b.chessError(err, ""))
		return
	}
	b.sendGame(ctx, m.ChannelID, g, m.Reference(), "")
}

// routeGame resolves which of the author's games m addresses.
func (b *Bot) routeGame(ctx context.Context, m *discordgo.Message) (string, error) {
	ids, err := b.Games.ActiveGameIDs(ctx, m.Author.ID)
	if err != nil {
		return "", err
	}
	msg := moverouter.Message{AuthorID: m.Author.ID, ChannelID: m.ChannelID}
	if ref := m.MessageReference; ref != nil && ref.MessageID != "" {
		msg.ReplyToMessageID = ref.MessageID
		if len(ids) > 1 {
			msg.ReplyToBot = b.isOwnMessage(m)
		}
	}
	return b.Router.Route(ctx, msg, ids)
}

func (b *Bot) isOwnMessage(m *discordgo.Message) bool {
	ref := m.ReferencedMessage
	if ref == nil {
		channelID := m.MessageReference.ChannelID
		if channelID == "" {
			channelID = m.ChannelID
		}
		fetched, err := b.chat.ChannelMessage(channelID, m.MessageReference.MessageID)
		if err != nil {
			b.log.Debug("reference_fetch_error", zap.String("message_id", m.MessageReference.MessageID), zap.Error(err))
			return false
		}
		ref = fetched
	}
	return ref.Author != nil && ref.Author.ID != "" && ref.Author.ID == b.self()
}

// sendGame posts the board of g, seen by the side to move, and registers
// the message for reply routing while the game is live.
func (b *Bot) sendGame(ctx context.Context, channelID string, g *pvpchess.Game, ref *discordgo.MessageReference, extra string) {
	lines := []string{}
	if extra != "" {
		lines = append(lines, extra)
	}
	lines = append(lines, b.stateText(g))
	data := &discordgo.MessageSend{
		Content:         strings.Join(lines, "\n"),
		Reference:       ref,
		AllowedMentions: usersOnly,
	}
	viewer := g.WhiteID
	if g.Turn == pvpchess.Black {
		viewer = g.BlackID
	}
	png, err := pvpchess.RenderBoard(g, viewer)
	if err != nil {
		b.log.Warn("board_render_error", zap.String("game_id", g.ID), zap.Error(err))
	} else {
		data.Files = []*discordgo.File{{Name: "board.png", ContentType: "image/png", Reader: bytes.NewReader(png)}}
	}
	msg := b.send(channelID, data)
	if msg == nil || g.Terminal() {
		return
	}
	if err := b.Messages.Remember(ctx, msg.ID, g.ID); err != nil {
		b.log.Warn("message_index_error", zap.String("message_id", msg.ID), zap.String("game_id", g.ID), zap.Error(err))
	}
}

func (b *Bot) stateText(g *pvpchess.Game) string {
	last := "-"
	if n := len(g.MovesSAN); n > 0 {
		last = g.MovesSAN[n-1]
	}
	return b.text("chess.game.state", map[string]any{
		"White":    g.WhiteName,
		"Black":    g.BlackName,
		"Turn":     sideName(g.Turn),
		"LastMove": last,
	})
}

func (b *Bot) finishedText(g *pvpchess.Game) string {
	result := "draw"
	switch chess.Result(g.Outcome) {
	case chess.WhiteWin:
		result = "White wins"
	case chess.BlackWin:
		result = "Black wins"
	}
	return b.text("chess.game.finished", map[string]any{"Result": result, "Method": g.Method})
}

func sideName(c pvpchess.Color) string {
	if c == pvpchess.Black {
		return "Black"
	}
	return "White"
}

// chessError maps an error to its user-facing text. Unknown errors are
// logged and reported generically.
func (b *Bot) chessError(err error, input string) string {
	data := map[string]any{"Input": input, "Square": input}
	switch {
	case errors.Is(err, moverouter.ErrNoGame), errors.Is(err, pvpchess.ErrGameNotFound):
		return b.text("chess.move.no_game", data)
	case errors.Is(err, moverouter.ErrAmbiguous):
		return b.text("chess.move.ambiguous", data)
	case errors.Is(err, moverouter.ErrInvalidReference):
		return b.text("chess.move.invalid_reference", data)
	case errors.Is(err, pvpchess.ErrNotYourTurn):
		return b.text("chess.move.not_turn", data)
	case errors.Is(err, pvpchess.ErrNotParticipant):
		return b.text("chess.move.not_participant", data)
	case errors.Is(err, chess.ErrGameOver):
		return b.text("chess.move.game_over", data)
	case errors.Is(err, chess.ErrIllegalMove):
		return b.text("chess.move.illegal", data)
	case errors.Is(err, chess.ErrUnparsableMove):
		return b.text("chess.move.unparsable", data)
	case errors.Is(err, chess.ErrEmptySquare):
		return b.text("chess.move.empty_square", data)
	case errors.Is(err, chess.ErrWrongColor):
		return b.text("chess.move.wrong_color", data)
	case errors.Is(err, chess.ErrInvalidSquare):
		return b.text("chess.move.invalid_square", data)
	case errors.Is(err, pvpchess.ErrDuplicateGame):
		return b.text("chess.game.duplicate", data)
	case errors.Is(err, pvpchess.ErrConflict):
		return b.text("chess.game.conflict", data)
	case errors.Is(err, pvpchess.ErrSelfGame):
		return b.text("chess.challenge.self", data)
	}
	b.log.Error("chess_error", zap.Error(err))
	return b.text("common.internal_error", nil)
}
