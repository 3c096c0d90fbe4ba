package chess

import (
	"errors"
	"testing"
)

func play(t *testing.T, p *Position, moves ...string) *Position {
	t.Helper()
	for _, mv := range moves {
		next, _, err := SubmitMove(p, mv)
		if err != nil {
			t.Fatalf("SubmitMove(%s): %v", mv, err)
		}
		p = next
	}
	return p
}

func TestStartPositionFEN(t *testing.T) {
	p := NewPosition()
	if p.FEN() != StartFEN {
		t.Fatalf("start fen mismatch: %q", p.FEN())
	}
	if p.Turn() != White {
		t.Fatalf("expected white to move")
	}
	if p.State().Terminal {
		t.Fatalf("start position reported terminal")
	}
}

func TestFENRoundTripIsIdempotent(t *testing.T) {
	p := play(t, NewPosition(), "e2e4", "e7e5", "g1f3", "b8c6")
	fen := p.FEN()
	q, err := ParseFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	if q.FEN() != fen {
		t.Fatalf("round trip changed fen: %q -> %q", fen, q.FEN())
	}
	if q.Turn() != White {
		t.Fatalf("turn lost in round trip")
	}
}

func TestParseFENRejectsGarbage(t *testing.T) {
	if _, err := ParseFEN("not a position"); !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("expected ErrInvalidPosition, got %v", err)
	}
}

func TestQueryMoves(t *testing.T) {
	p := NewPosition()
	got, err := QueryMoves(p, "e2")
	if err != nil {
		t.Fatalf("QueryMoves e2: %v", err)
	}
	if len(got) != 2 || got[0] != "e3" || got[1] != "e4" {
		t.Fatalf("unexpected e2 options: %v", got)
	}

	got, err = QueryMoves(p, "G1")
	if err != nil {
		t.Fatalf("QueryMoves g1: %v", err)
	}
	if len(got) != 2 || got[0] != "f3" || got[1] != "h3" {
		t.Fatalf("unexpected g1 options: %v", got)
	}

	if _, err := QueryMoves(p, "e4"); !errors.Is(err, ErrEmptySquare) {
		t.Fatalf("expected ErrEmptySquare, got %v", err)
	}
	if _, err := QueryMoves(p, "e7"); !errors.Is(err, ErrWrongColor) {
		t.Fatalf("expected ErrWrongColor, got %v", err)
	}
	if _, err := QueryMoves(p, "z9"); !errors.Is(err, ErrInvalidSquare) {
		t.Fatalf("expected ErrInvalidSquare, got %v", err)
	}
}

func TestSubmitMoveErrorsAreDistinct(t *testing.T) {
	p := NewPosition()
	if _, _, err := SubmitMove(p, "e2e5"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if _, _, err := SubmitMove(p, "Ke5"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected SAN ErrIllegalMove, got %v", err)
	}
	if _, _, err := SubmitMove(p, "hello"); !errors.Is(err, ErrUnparsableMove) {
		t.Fatalf("expected ErrUnparsableMove, got %v", err)
	}
	if _, _, err := SubmitMove(p, ""); !errors.Is(err, ErrUnparsableMove) {
		t.Fatalf("expected ErrUnparsableMove on empty, got %v", err)
	}
}

func TestSubmitMoveDoesNotMutateInput(t *testing.T) {
	p := NewPosition()
	next, mv, err := SubmitMove(p, "Nf3")
	if err != nil {
		t.Fatalf("SubmitMove SAN: %v", err)
	}
	if mv.UCI != "g1f3" || mv.SAN != "Nf3" {
		t.Fatalf("unexpected move: %+v", mv)
	}
	if p.FEN() != StartFEN {
		t.Fatalf("input position mutated: %q", p.FEN())
	}
	if next.Turn() != Black {
		t.Fatalf("expected black to move")
	}

	_, mv, err = SubmitMove(p, "e2 e4")
	if err != nil || mv.From != "e2" || mv.To != "e4" {
		t.Fatalf("spaced coordinate move: %+v %v", mv, err)
	}
}

func TestPromotionDefaultsToQueen(t *testing.T) {
	p, err := ParseFEN("8/P6k/8/8/8/8/8/K7 w - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	_, mv, err := SubmitMove(p, "a7a8")
	if err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	if mv.UCI != "a7a8q" {
		t.Fatalf("expected queen promotion, got %s", mv.UCI)
	}
	_, mv, err = SubmitMove(p, "a7a8n")
	if err != nil || mv.UCI != "a7a8n" {
		t.Fatalf("explicit underpromotion: %+v %v", mv, err)
	}
}

func TestCheckmateIsTerminal(t *testing.T) {
	p := play(t, NewPosition(), "f2f3", "e7e5", "g2g4", "d8h4")
	st := p.State()
	if !st.Terminal || st.Result != BlackWin || st.Method != "checkmate" {
		t.Fatalf("expected black checkmate, got %+v", st)
	}
	if _, _, err := SubmitMove(p, "e2e4"); !errors.Is(err, ErrGameOver) {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}
}

func TestStalemateIsDraw(t *testing.T) {
	p, err := ParseFEN("7k/8/6K1/5Q2/8/8/8/8 w - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	p = play(t, p, "f5f7")
	st := p.State()
	if !st.Terminal || st.Result != Draw || st.Method != "stalemate" {
		t.Fatalf("expected stalemate draw, got %+v", st)
	}
}

func TestIsPlayersTurn(t *testing.T) {
	p := NewPosition()
	if !IsPlayersTurn(p, White) || IsPlayersTurn(p, Black) {
		t.Fatalf("turn check wrong at start")
	}
	p = play(t, p, "e2e4")
	if IsPlayersTurn(p, White) || !IsPlayersTurn(p, Black) {
		t.Fatalf("turn check wrong after e4")
	}
}

func TestReplayKeepsRepetitionHistory(t *testing.T) {
	cycle := []string{"g1f3", "g8f6", "f3g1", "f6g8"}
	var moves []string
	p := NewPosition()
	for i := 0; i < 20 && !p.State().Terminal; i++ {
		mv := cycle[i%len(cycle)]
		p = play(t, p, mv)
		moves = append(moves, mv)
	}
	if st := p.State(); !st.Terminal || st.Result != Draw {
		t.Fatalf("expected repetition draw within five cycles, got %+v", st)
	}

	replayed, err := Replay(moves)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if st := replayed.State(); !st.Terminal || st.Result != Draw {
		t.Fatalf("replay lost the draw: %+v", st)
	}

	fromFEN := NewPosition()
	for _, mv := range moves {
		fresh, err := ParseFEN(fromFEN.FEN())
		if err != nil {
			t.Fatalf("ParseFEN: %v", err)
		}
		fromFEN = play(t, fresh, mv)
	}
	if fromFEN.State().Terminal {
		t.Fatalf("a bare FEN carries no history, expected a live position")
	}
	if replayed.FEN() != fromFEN.FEN() {
		t.Fatalf("replayed FEN %q differs from %q", replayed.FEN(), fromFEN.FEN())
	}

	if _, err := Replay([]string{"e2e4", "e2e4"}); !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("expected ErrInvalidPosition for impossible history, got %v", err)
	}
}
