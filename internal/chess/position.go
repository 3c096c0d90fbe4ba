package chess

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	ErrInvalidPosition = errors.New("invalid chess position")
	ErrInvalidSquare   = errors.New("invalid square")
	ErrEmptySquare     = errors.New("no piece on square")
	ErrWrongColor      = errors.New("piece belongs to the other side")
	ErrUnparsableMove  = errors.New("unparsable move notation")
	ErrIllegalMove     = errors.New("illegal move")
	ErrGameOver        = errors.New("game already finished")
)

// Color identifies a side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// Result is the outcome of a terminal position.
type Result string

const (
	NoResult Result = ""
	WhiteWin Result = "white"
	BlackWin Result = "black"
	Draw     Result = "draw"
)

// State reports whether a position is still playable.
type State struct {
	Terminal bool
	Result   Result
	Method   string
}

// Position is an immutable snapshot of a game. Moves produce new positions.
type Position struct {
	game *nchess.Game
}

// NewPosition returns the standard starting position.
func NewPosition() *Position {
	return &Position{game: nchess.NewGame()}
}

// ParseFEN loads a position from Forsyth-Edwards Notation.
func ParseFEN(fen string) (*Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return NewPosition(), nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	return &Position{game: nchess.NewGame(opt)}, nil
}

// Replay rebuilds the game from the standard start by applying moves in
// coordinate notation. Unlike ParseFEN it keeps the position history, which
// repetition draws depend on.
func Replay(moves []string) (*Position, error) {
	g := nchess.NewGame()
	for i, uci := range moves {
		mv, err := nchess.UCINotation{}.Decode(g.Position(), strings.ToLower(strings.TrimSpace(uci)))
		if err != nil {
			return nil, fmt.Errorf("%w: move %d %q: %v", ErrInvalidPosition, i+1, uci, err)
		}
		if err := g.Move(mv, nil); err != nil {
			return nil, fmt.Errorf("%w: move %d %q: %v", ErrInvalidPosition, i+1, uci, err)
		}
	}
	return &Position{game: g}, nil
}

// FEN serializes the position.
func (p *Position) FEN() string { return p.game.FEN() }

// Turn returns the side to move.
func (p *Position) Turn() Color { return colorFrom(p.game.Position().Turn()) }

// Board exposes the piece placement for rendering.
func (p *Position) Board() *nchess.Board { return p.game.Position().Board() }

// State evaluates the automatic end-of-game predicates.
func (p *Position) State() State {
	switch p.game.Outcome() {
	case nchess.WhiteWon:
		return State{Terminal: true, Result: WhiteWin, Method: methodName(p.game.Method())}
	case nchess.BlackWon:
		return State{Terminal: true, Result: BlackWin, Method: methodName(p.game.Method())}
	case nchess.Draw:
		return State{Terminal: true, Result: Draw, Method: methodName(p.game.Method())}
	}
	return State{}
}

// ParseSquare converts algebraic coordinates such as "e4".
func ParseSquare(s string) (nchess.Square, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return nchess.NoSquare, fmt.Errorf("%w: %q", ErrInvalidSquare, s)
	}
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1')), nil
}

func colorFrom(c nchess.Color) Color {
	if c == nchess.White {
		return White
	}
	return Black
}

func methodName(m nchess.Method) string {
	switch m {
	case nchess.Checkmate:
		return "checkmate"
	case nchess.Resignation:
		return "resignation"
	case nchess.Stalemate:
		return "stalemate"
	case nchess.InsufficientMaterial:
		return "insufficient_material"
	case nchess.ThreefoldRepetition:
		return "threefold_repetition"
	case nchess.FivefoldRepetition:
		return "fivefold_repetition"
	case nchess.FiftyMoveRule:
		return "fifty_move_rule"
	case nchess.SeventyFiveMoveRule:
		return "seventy_five_move_rule"
	case nchess.DrawOffer:
		return "draw_offer"
	default:
		return "unknown"
	}
}
