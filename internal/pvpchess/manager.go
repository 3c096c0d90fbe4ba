package pvpchess

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Discord-bot/internal/chess"
	"github.com/park285/Cheese-Discord-bot/internal/metrics"
	"github.com/park285/Cheese-Discord-bot/internal/obslog"
)

// Archiver stores finished games. *Repository implements it.
type Archiver interface {
	SaveResult(ctx context.Context, g *Game) error
}

// MoveResult describes an accepted move.
type MoveResult struct {
	Game     *Game
	Move     chess.Move
	State    chess.State
	Finished bool
}

type Manager struct {
	reg     *Registry
	repo    Archiver
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func NewManager(reg *Registry, m *metrics.Metrics) *Manager {
	return &Manager{reg: reg, metrics: m, log: obslog.Named("pvpchess"), now: time.Now}
}

// AttachRepository wires the finished-game archive.
func (m *Manager) AttachRepository(r Archiver) {
	if m != nil {
		m.repo = r
	}
}

// Registry exposes the underlying store.
func (m *Manager) Registry() *Registry { return m.reg }

// Start creates a game between challenger and target.
func (m *Manager) Start(ctx context.Context, channelID string, challenger, target Player) (*Game, error) {
	g, err := m.reg.Create(ctx, channelID, challenger, target)
	if err != nil {
		if !errors.Is(err, ErrDuplicateGame) {
			m.log.Warn("pvp_game_create_error", zap.String("challenger", challenger.ID), zap.String("target", target.ID), zap.Error(err))
		}
		return nil, err
	}
	m.metrics.Game("created")
	m.log.Info("pvp_game_create",
		zap.String("game_id", g.ID),
		zap.String("channel_id", g.ChannelID),
		zap.String("white_id", g.WhiteID),
		zap.String("black_id", g.BlackID),
	)
	return g, nil
}

// Play validates and applies notation for userID. The new position is
// persisted before Play returns.
func (m *Manager) Play(ctx context.Context, gameID, userID, notation string) (*MoveResult, error) {
	res := &MoveResult{}
	g, err := m.reg.Update(ctx, gameID, func(cur *Game) error {
		if cur.Terminal() {
			return chess.ErrGameOver
		}
		color, ok := cur.ColorOf(userID)
		if !ok {
			return ErrNotParticipant
		}
		pos, err := cur.Position()
		if err != nil {
			return err
		}
		if !chess.IsPlayersTurn(pos, color) {
			return ErrNotYourTurn
		}
		next, mv, err := chess.SubmitMove(pos, notation)
		if err != nil {
			return err
		}
		res.Move = mv
		res.State = cur.apply(next, mv, m.now().UTC())
		return nil
	})
	if err != nil {
		m.metrics.Move(moveOutcome(err))
		if errors.Is(err, chess.ErrGameOver) {
			if stale, lerr := m.reg.Load(ctx, gameID); lerr == nil && stale.Terminal() {
				_ = m.finalize(ctx, stale)
			}
		}
		if IsUserError(err) {
			m.log.Debug("pvp_move_rejected", zap.String("game_id", gameID), zap.String("user_id", userID), zap.String("input", notation), zap.Error(err))
		}
		return nil, err
	}
	m.metrics.Move("accepted")
	res.Game = g
	m.log.Info("pvp_move",
		zap.String("game_id", g.ID),
		zap.String("user_id", userID),
		zap.String("uci", res.Move.UCI),
		zap.String("turn", string(g.Turn)),
		zap.String("status", string(g.Status)),
	)
	if g.Terminal() {
		res.Finished = true
		_ = m.finalize(ctx, g)
	}
	return res, nil
}

// Resign ends the game with the opponent as winner.
func (m *Manager) Resign(ctx context.Context, gameID, userID string) (*Game, error) {
	g, err := m.reg.Update(ctx, gameID, func(cur *Game) error {
		if cur.Terminal() {
			return chess.ErrGameOver
		}
		if _, ok := cur.ColorOf(userID); !ok {
			return ErrNotParticipant
		}
		cur.resign(userID, m.now().UTC())
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("pvp_resign", zap.String("game_id", g.ID), zap.String("resigner", userID), zap.String("winner", g.Winner))
	_ = m.finalize(ctx, g)
	return g, nil
}

// Options lists destination squares for the piece on square. Only the side
// to move may ask.
func (m *Manager) Options(ctx context.Context, gameID, userID, square string) ([]string, error) {
	g, err := m.reg.Load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	color, ok := g.ColorOf(userID)
	if !ok {
		return nil, ErrNotParticipant
	}
	if g.Terminal() {
		_ = m.finalize(ctx, g)
		return nil, chess.ErrGameOver
	}
	pos, err := g.Position()
	if err != nil {
		return nil, err
	}
	if !chess.IsPlayersTurn(pos, color) {
		return nil, ErrNotYourTurn
	}
	return chess.QueryMoves(pos, square)
}

// Game loads a single record, finalising it first if it already ended.
func (m *Manager) Game(ctx context.Context, gameID string) (*Game, error) {
	g, err := m.reg.Load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.Terminal() {
		_ = m.finalize(ctx, g)
		return nil, ErrGameNotFound
	}
	return g, nil
}

// ActiveGames returns userID's unfinished games. Records left terminal by an
// interrupted finalisation are archived and removed on the way.
func (m *Manager) ActiveGames(ctx context.Context, userID string) ([]*Game, error) {
	games, err := m.reg.GamesFor(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, err
	}
	out := games[:0]
	for _, g := range games {
		if g.Terminal() {
			_ = m.finalize(ctx, g)
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

// ActiveGameIDs is ActiveGames reduced to ids.
func (m *Manager) ActiveGameIDs(ctx context.Context, userID string) ([]string, error) {
	games, err := m.ActiveGames(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(games))
	for _, g := range games {
		ids = append(ids, g.ID)
	}
	return ids, nil
}

// finalize archives a terminal game and deletes it from the registry. On an
// archive failure the record is kept so a later access retries.
func (m *Manager) finalize(ctx context.Context, g *Game) error {
	if m.repo != nil {
		if err := m.repo.SaveResult(ctx, g); err != nil {
			m.log.Error("pvp_result_persist_error", zap.String("game_id", g.ID), zap.String("outcome", g.Outcome), zap.Error(err))
			return err
		}
		m.log.Info("pvp_result_persist", zap.String("game_id", g.ID), zap.String("outcome", g.Outcome), zap.String("method", g.Method))
	}
	if err := m.reg.Delete(ctx, g.ID); err != nil && !errors.Is(err, ErrGameNotFound) {
		m.log.Error("pvp_game_delete_error", zap.String("game_id", g.ID), zap.Error(err))
		return err
	}
	m.metrics.Game("finished")
	return nil
}

// IsUserError reports errors caused by player input rather than the system.
func IsUserError(err error) bool {
	for _, target := range []error{
		chess.ErrIllegalMove, chess.ErrUnparsableMove, chess.ErrInvalidSquare,
		chess.ErrEmptySquare, chess.ErrWrongColor, chess.ErrGameOver,
		ErrNotYourTurn, ErrNotParticipant,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func moveOutcome(err error) string {
	switch {
	case errors.Is(err, chess.ErrIllegalMove):
		return "illegal"
	case errors.Is(err, chess.ErrUnparsableMove):
		return "unparsable"
	case errors.Is(err, ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrGameNotFound):
		return "not_found"
	case IsUserError(err):
		return "rejected"
	}
	return "error"
}
