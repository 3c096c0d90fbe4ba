package pvpchess

import (
	"context"
	"errors"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/park285/Cheese-Discord-bot/internal/chess"
	"github.com/park285/Cheese-Discord-bot/internal/metrics"
)

type memArchive struct {
	mu    sync.Mutex
	games []*Game
	err   error
}

func (a *memArchive) SaveResult(_ context.Context, g *Game) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.games = append(a.games, g)
	return nil
}

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	reg := NewRegistry(rdb, 0)
	reg.flip = func() (bool, error) { return false, nil }
	return NewManager(reg, metrics.New()), mr
}

var (
	alice = Player{ID: "100", Name: "alice"}
	bob   = Player{ID: "200", Name: "bob"}
	carol = Player{ID: "300", Name: "carol"}
)

func TestFoolsMateDeletesRecord(t *testing.T) {
	m, _ := newTestManager(t)
	archive := &memArchive{}
	m.AttachRepository(archive)
	ctx := context.Background()

	g, err := m.Start(ctx, "chan", alice, bob)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if g.ID != "100-200" || g.WhiteID != alice.ID {
		t.Fatalf("unexpected game: %+v", g)
	}

	plies := []struct{ user, move string }{
		{alice.ID, "f2f3"}, {bob.ID, "e7e5"}, {alice.ID, "g2g4"}, {bob.ID, "d8h4"},
	}
	var last *MoveResult
	for _, p := range plies {
		last, err = m.Play(ctx, g.ID, p.user, p.move)
		if err != nil {
			t.Fatalf("Play %s: %v", p.move, err)
		}
	}
	if !last.Finished || last.State.Result != chess.BlackWin || last.Game.Winner != bob.ID {
		t.Fatalf("expected black checkmate, got %+v", last)
	}
	if _, err := m.Registry().Load(ctx, g.ID); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected record deleted, got %v", err)
	}
	if len(archive.games) != 1 || archive.games[0].Method != "checkmate" {
		t.Fatalf("expected archived checkmate, got %+v", archive.games)
	}
	// the pair may start again
	if _, err := m.Start(ctx, "chan", bob, alice); err != nil {
		t.Fatalf("restart after finish: %v", err)
	}
}

func TestTurnEnforcementDoesNotMutate(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	g, _ := m.Start(ctx, "chan", alice, bob)

	if _, err := m.Play(ctx, g.ID, bob.ID, "e7e5"); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	if _, err := m.Play(ctx, g.ID, carol.ID, "e2e4"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if _, err := m.Play(ctx, g.ID, alice.ID, "e2e5"); !errors.Is(err, chess.ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if _, err := m.Play(ctx, g.ID, alice.ID, "banana"); !errors.Is(err, chess.ErrUnparsableMove) {
		t.Fatalf("expected ErrUnparsableMove, got %v", err)
	}
	stored, err := m.Registry().Load(ctx, g.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stored.FEN != chess.StartFEN || stored.Version != g.Version || len(stored.MovesUCI) != 0 {
		t.Fatalf("rejected moves mutated state: %+v", stored)
	}
}

func TestPlayPersistsBeforeReturning(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	g, _ := m.Start(ctx, "chan", alice, bob)
	res, err := m.Play(ctx, g.ID, alice.ID, "Nf3")
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	stored, _ := m.Registry().Load(ctx, g.ID)
	if stored.FEN != res.Game.FEN || stored.Turn != Black || stored.MovesSAN[0] != "Nf3" || stored.MovesUCI[0] != "g1f3" {
		t.Fatalf("stored game does not reflect move: %+v", stored)
	}
}

func TestConcurrentCreateYieldsOneGame(t *testing.T) {
	m, _ := newTestManager(t)
	m.Registry().flip = secureCoin
	ctx := context.Background()

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, dup   int
		otherErrs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := alice, bob
			if i%2 == 1 {
				a, b = bob, alice
			}
			_, err := m.Start(ctx, "chan", a, b)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrDuplicateGame), errors.Is(err, ErrConflict):
				dup++
			default:
				otherErrs = append(otherErrs, err)
			}
		}(i)
	}
	wg.Wait()
	if ok != 1 || dup != n-1 || len(otherErrs) > 0 {
		t.Fatalf("expected exactly one game: ok=%d dup=%d errs=%v", ok, dup, otherErrs)
	}
	games, err := m.ActiveGames(ctx, alice.ID)
	if err != nil || len(games) != 1 {
		t.Fatalf("expected one stored game, got %d (%v)", len(games), err)
	}
}

func TestDuplicateAndSelfGame(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	if _, err := m.Start(ctx, "chan", alice, bob); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := m.Start(ctx, "chan", bob, alice); !errors.Is(err, ErrDuplicateGame) {
		t.Fatalf("expected ErrDuplicateGame, got %v", err)
	}
	if _, err := m.Start(ctx, "chan", alice, alice); !errors.Is(err, ErrSelfGame) {
		t.Fatalf("expected ErrSelfGame, got %v", err)
	}
	if _, err := m.Start(ctx, "chan", alice, carol); err != nil {
		t.Fatalf("a second opponent is allowed: %v", err)
	}
	ids, _ := m.ActiveGameIDs(ctx, alice.ID)
	if len(ids) != 2 {
		t.Fatalf("expected two games for alice, got %v", ids)
	}
}

func TestResignIsTerminal(t *testing.T) {
	m, _ := newTestManager(t)
	archive := &memArchive{}
	m.AttachRepository(archive)
	ctx := context.Background()
	g, _ := m.Start(ctx, "chan", alice, bob)
	done, err := m.Resign(ctx, g.ID, alice.ID)
	if err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if done.Status != StatusResigned || done.Winner != bob.ID || done.Outcome != "black" {
		t.Fatalf("unexpected resign result: %+v", done)
	}
	if _, err := m.Registry().Load(ctx, g.ID); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected record deleted after resign, got %v", err)
	}
}

func TestTerminalRecordFinalisedOnAccess(t *testing.T) {
	m, _ := newTestManager(t)
	archive := &memArchive{err: errors.New("db down")}
	m.AttachRepository(archive)
	ctx := context.Background()
	g, _ := m.Start(ctx, "chan", alice, bob)
	if _, err := m.Resign(ctx, g.ID, bob.ID); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	// archive failed, so the terminal record is kept
	if _, err := m.Registry().Load(ctx, g.ID); err != nil {
		t.Fatalf("expected terminal record kept, got %v", err)
	}
	archive.err = nil
	games, err := m.ActiveGames(ctx, alice.ID)
	if err != nil || len(games) != 0 {
		t.Fatalf("terminal game listed as active: %v %v", games, err)
	}
	if _, err := m.Registry().Load(ctx, g.ID); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected record finalised, got %v", err)
	}
	if len(archive.games) != 1 {
		t.Fatalf("expected one archived game, got %d", len(archive.games))
	}
}

func TestOptions(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	g, _ := m.Start(ctx, "chan", alice, bob)
	got, err := m.Options(ctx, g.ID, alice.ID, "b1")
	if err != nil || len(got) != 2 || got[0] != "a3" || got[1] != "c3" {
		t.Fatalf("unexpected options: %v %v", got, err)
	}
	if _, err := m.Options(ctx, g.ID, bob.ID, "b8"); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	if _, err := m.Options(ctx, g.ID, alice.ID, "e7"); !errors.Is(err, chess.ErrWrongColor) {
		t.Fatalf("expected ErrWrongColor, got %v", err)
	}
}

func TestSaveDetectsStaleVersion(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	g, _ := m.Start(ctx, "chan", alice, bob)
	stale := g.clone()
	if _, err := m.Play(ctx, g.ID, alice.ID, "e2e4"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := m.Registry().Save(ctx, stale); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for stale save, got %v", err)
	}
	fresh, _ := m.Registry().Load(ctx, g.ID)
	before := fresh.Version
	if err := m.Registry().Save(ctx, fresh); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if fresh.Version != before+1 {
		t.Fatalf("expected version bump, got %d", fresh.Version)
	}
}

func TestRepetitionDrawEndsGame(t *testing.T) {
	m, _ := newTestManager(t)
	archive := &memArchive{}
	m.AttachRepository(archive)
	ctx := context.Background()
	g, _ := m.Start(ctx, "chan", alice, bob)

	cycle := []struct{ user, move string }{
		{alice.ID, "Nf3"}, {bob.ID, "Nf6"}, {alice.ID, "Ng1"}, {bob.ID, "Ng8"},
	}
	var last *MoveResult
	for i := 0; i < 20; i++ {
		p := cycle[i%len(cycle)]
		res, err := m.Play(ctx, g.ID, p.user, p.move)
		if err != nil {
			t.Fatalf("ply %d %s: %v", i+1, p.move, err)
		}
		last = res
		if res.Finished {
			break
		}
	}
	if last == nil || !last.Finished || last.Game.Status != StatusDraw || last.Game.Outcome != "draw" {
		t.Fatalf("expected repetition draw, got %+v", last)
	}
	if _, err := m.Registry().Load(ctx, g.ID); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected record deleted after draw, got %v", err)
	}
	if len(archive.games) != 1 || archive.games[0].Status != StatusDraw {
		t.Fatalf("expected archived draw, got %+v", archive.games)
	}
}
