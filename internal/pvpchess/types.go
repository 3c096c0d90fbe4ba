package pvpchess

import (
	"errors"
	"strings"
	"time"

	"github.com/park285/Cheese-Discord-bot/internal/chess"
)

var (
	ErrDuplicateGame       = errors.New("these players already have an active game")
	ErrConflict            = errors.New("game was modified concurrently, try again")
	ErrGameNotFound        = errors.New("game not found")
	ErrNotYourTurn         = errors.New("it is not your turn")
	ErrNotParticipant      = errors.New("user is not playing this game")
	ErrSelfGame            = errors.New("cannot play against yourself")
	ErrInvalidParticipants = errors.New("invalid participants")
)

// Status represents a game lifecycle state.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusFinished Status = "FINISHED"
	StatusResigned Status = "RESIGNED"
	StatusDraw     Status = "DRAW"
)

// Player is a participant as seen by the chat platform.
type Player struct {
	ID   string
	Name string
}

// Game is the persisted record of a match. ID is "{white}-{black}".
type Game struct {
	ID        string    `json:"id"`
	FEN       string    `json:"fen"`
	MovesUCI  []string  `json:"moves_uci"`
	MovesSAN  []string  `json:"moves_san"`
	Turn      Color     `json:"turn"`
	Status    Status    `json:"status"`
	WhiteID   string    `json:"white_id"`
	WhiteName string    `json:"white_name"`
	BlackID   string    `json:"black_id"`
	BlackName string    `json:"black_name"`
	ChannelID string    `json:"channel_id"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Winner    string    `json:"winner,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Method    string    `json:"method,omitempty"`
}

// Color is re-exported so callers need not import the rules package.
type Color = chess.Color

const (
	White = chess.White
	Black = chess.Black
)

// GameID derives the registry key from the assigned colors.
func GameID(whiteID, blackID string) string {
	return strings.TrimSpace(whiteID) + "-" + strings.TrimSpace(blackID)
}

// ColorOf reports the side userID plays.
func (g *Game) ColorOf(userID string) (Color, bool) {
	switch userID {
	case g.WhiteID:
		return White, true
	case g.BlackID:
		return Black, true
	}
	return "", false
}

// Opponent returns the other participant's id, or "" for outsiders.
func (g *Game) Opponent(userID string) string {
	switch userID {
	case g.WhiteID:
		return g.BlackID
	case g.BlackID:
		return g.WhiteID
	}
	return ""
}

// NameOf returns the display name for a side.
func (g *Game) NameOf(c Color) string {
	if c == White {
		return g.WhiteName
	}
	return g.BlackName
}

// Terminal reports whether the game has ended.
func (g *Game) Terminal() bool { return g.Status != StatusActive }

// Position replays the move list so repetition is tracked. A record without
// moves falls back to its FEN.
func (g *Game) Position() (*chess.Position, error) {
	if len(g.MovesUCI) == 0 {
		return chess.ParseFEN(g.FEN)
	}
	return chess.Replay(g.MovesUCI)
}

// LastMove returns the most recent move in coordinate notation.
func (g *Game) LastMove() string {
	if n := len(g.MovesUCI); n > 0 {
		return g.MovesUCI[n-1]
	}
	return ""
}

func (g *Game) apply(next *chess.Position, mv chess.Move, at time.Time) chess.State {
	g.FEN = next.FEN()
	g.MovesUCI = append(g.MovesUCI, mv.UCI)
	g.MovesSAN = append(g.MovesSAN, mv.SAN)
	g.Turn = next.Turn()
	g.UpdatedAt = at
	st := next.State()
	if !st.Terminal {
		return st
	}
	g.Method = st.Method
	g.Outcome = string(st.Result)
	switch st.Result {
	case chess.WhiteWin:
		g.Status = StatusFinished
		g.Winner = g.WhiteID
	case chess.BlackWin:
		g.Status = StatusFinished
		g.Winner = g.BlackID
	default:
		g.Status = StatusDraw
	}
	return st
}

func (g *Game) resign(userID string, at time.Time) {
	g.Status = StatusResigned
	g.Winner = g.Opponent(userID)
	if c, _ := g.ColorOf(g.Winner); c != "" {
		g.Outcome = string(c)
	}
	g.Method = "resignation"
	g.UpdatedAt = at
}

func (g *Game) clone() *Game {
	cp := *g
	cp.MovesUCI = append([]string(nil), g.MovesUCI...)
	cp.MovesSAN = append([]string(nil), g.MovesSAN...)
	return &cp
}
