package pvpchess

import (
	"fmt"

	"github.com/park285/Cheese-Discord-bot/internal/boardimg"
	"github.com/park285/Cheese-Discord-bot/internal/chess"
)

// RenderBoard draws g from viewerID's side, highlighting the last move.
func RenderBoard(g *Game, viewerID string) ([]byte, error) {
	if g == nil {
		return nil, fmt.Errorf("game is nil")
	}
	pos, err := g.Position()
	if err != nil {
		return nil, err
	}
	opts := boardimg.Options{
		Header:    hudHeader(g),
		Highlight: lastHighlight(g),
		Flip:      viewerID != "" && viewerID == g.BlackID,
	}
	return boardimg.Render(pos.Board(), opts)
}

func hudHeader(g *Game) string {
	turn := len(g.MovesUCI)/2 + 1
	side := "White"
	if g.Turn == Black {
		side = "Black"
	}
	return fmt.Sprintf("%s vs %s - %s to move, turn %d", g.WhiteName, g.BlackName, side, turn)
}

func lastHighlight(g *Game) *boardimg.Highlight {
	uci := g.LastMove()
	if len(uci) < 4 {
		return nil
	}
	from, err := chess.ParseSquare(uci[:2])
	if err != nil {
		return nil
	}
	to, err := chess.ParseSquare(uci[2:4])
	if err != nil {
		return nil
	}
	return &boardimg.Highlight{From: from, To: to}
}
