package chess

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var (
	coordMoveRe = regexp.MustCompile(`^([a-h][1-8])[\s\-]*([a-h][1-8])\s*=?([qrbn])?$`)
	sanMoveRe   = regexp.MustCompile(`^(?:[KQRBN]?[a-h]?[1-8]?x?[a-h][1-8](?:=?[QRBN])?|O-O(?:-O)?|0-0(?:-0)?)[+#]?$`)
)

// Move describes an applied move in both notations.
type Move struct {
	UCI  string
	SAN  string
	From string
	To   string
}

// IsPlayersTurn reports whether claimed is the side to move.
func IsPlayersTurn(p *Position, claimed Color) bool {
	return p != nil && p.Turn() == claimed
}

// QueryMoves lists the squares reachable by the side-to-move's piece on square.
func QueryMoves(p *Position, square string) ([]string, error) {
	sq, err := ParseSquare(square)
	if err != nil {
		return nil, err
	}
	pos := p.game.Position()
	piece := pos.Board().Piece(sq)
	if piece == nchess.NoPiece {
		return nil, fmt.Errorf("%w: %s", ErrEmptySquare, sq.String())
	}
	if piece.Color() != pos.Turn() {
		return nil, fmt.Errorf("%w: %s", ErrWrongColor, sq.String())
	}
	seen := make(map[string]struct{})
	var out []string
	for _, mv := range p.game.ValidMoves() {
		if mv.S1() != sq {
			continue
		}
		to := mv.S2().String()
		if _, ok := seen[to]; ok {
			continue
		}
		seen[to] = struct{}{}
		out = append(out, to)
	}
	sort.Strings(out)
	return out, nil
}

// SubmitMove validates notation against p and returns the resulting position.
// p itself is never modified. Coordinate notation (e2e4, e7e8q) is primary;
// SAN (Nf3, O-O) is accepted as a fallback.
func SubmitMove(p *Position, notation string) (*Position, Move, error) {
	if p.State().Terminal {
		return nil, Move{}, ErrGameOver
	}
	raw := strings.TrimSpace(notation)
	if raw == "" {
		return nil, Move{}, ErrUnparsableMove
	}

	uci, err := p.resolveUCI(raw)
	if err != nil {
		return nil, Move{}, err
	}

	next := p.game.Clone()
	pos := next.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return nil, Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	if err := next.Move(mv, nil); err != nil {
		return nil, Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}
	return &Position{game: next}, Move{UCI: uci, SAN: san, From: uci[:2], To: uci[2:4]}, nil
}

func (p *Position) resolveUCI(raw string) (string, error) {
	if m := coordMoveRe.FindStringSubmatch(strings.ToLower(raw)); m != nil {
		uci := m[1] + m[2] + m[3]
		if p.isLegalUCI(uci) {
			return uci, nil
		}
		// bare pawn promotions default to a queen
		if m[3] == "" && p.isLegalUCI(uci+"q") {
			return uci + "q", nil
		}
		return "", fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}
	if !sanMoveRe.MatchString(raw) {
		return "", fmt.Errorf("%w: %q", ErrUnparsableMove, raw)
	}
	pos := p.game.Position()
	mv, err := nchess.AlgebraicNotation{}.Decode(pos, strings.ReplaceAll(raw, "0", "O"))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrIllegalMove, raw)
	}
	uci := strings.ToLower(nchess.UCINotation{}.Encode(pos, mv))
	if !p.isLegalUCI(uci) {
		return "", fmt.Errorf("%w: %s", ErrIllegalMove, raw)
	}
	return uci, nil
}

func (p *Position) isLegalUCI(uci string) bool {
	for _, mv := range p.game.ValidMoves() {
		if strings.EqualFold(mv.String(), uci) {
			return true
		}
	}
	return false
}
