package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anastasiosv/snake-rivals-arena/internal/domain"
)

// fakeGameStore is an in-memory GameStore.
type fakeGameStore struct {
	games   map[string]*domain.LiveGame
	listErr error
}

func newFakeGameStore() *fakeGameStore {
	return &fakeGameStore{games: make(map[string]*domain.LiveGame)}
}

func (f *fakeGameStore) ListLiveGames(_ context.Context) ([]domain.LiveGame, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var games []domain.LiveGame
	for _, g := range f.games {
		games = append(games, *g)
	}
	return games, nil
}

func (f *fakeGameStore) GetLiveGame(_ context.Context, gameID string) (*domain.LiveGame, error) {
	g, ok := f.games[gameID]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	copied := *g
	return &copied, nil
}

func (f *fakeGameStore) UpsertLiveGame(_ context.Context, game *domain.LiveGame) error {
	copied := *game
	f.games[game.ID] = &copied
	return nil
}

func (f *fakeGameStore) DeleteLiveGame(_ context.Context, gameID string) error {
	if _, ok := f.games[gameID]; !ok {
		return domain.ErrGameNotFound
	}
	delete(f.games, gameID)
	return nil
}

// fakeGameFeed records broadcasts and serves canned spectator counts.
type fakeGameFeed struct {
	spectators map[string]int
	broadcast  []string
	ended      []string
}

func newFakeGameFeed() *fakeGameFeed {
	return &fakeGameFeed{spectators: make(map[string]int)}
}

func (f *fakeGameFeed) GameSpectators(gameID string) int {
	return f.spectators[gameID]
}

func (f *fakeGameFeed) BroadcastLiveGame(game domain.LiveGame) {
	f.broadcast = append(f.broadcast, game.ID)
}

func (f *fakeGameFeed) BroadcastLiveGameEnded(gameID string) {
	f.ended = append(f.ended, gameID)
}

func liveGame(id string, spectators int) *domain.LiveGame {
	return &domain.LiveGame{
		ID:           id,
		Player:       domain.User{ID: "u-" + id, Username: "Player-" + id},
		Mode:         domain.GameModeWalls,
		CurrentScore: 42,
		StartedAt:    time.Now().UTC(),
		Spectators:   spectators,
	}
}

func TestListLiveEmptyDirectory(t *testing.T) {
	svc := NewSpectateService(newFakeGameStore(), testLogger())

	games, err := svc.ListLive(context.Background())
	if err != nil {
		t.Fatalf("ListLive error: %v", err)
	}
	if games == nil {
		t.Fatal("games should be an empty slice, not nil")
	}
	if len(games) != 0 {
		t.Errorf("len(games) = %d, want 0", len(games))
	}
}

func TestListLiveOverlaysSpectators(t *testing.T) {
	store := newFakeGameStore()
	store.games["g1"] = liveGame("g1", 2)
	store.games["g2"] = liveGame("g2", 5)

	feed := newFakeGameFeed()
	feed.spectators["g1"] = 7 // live count beats stored count
	feed.spectators["g2"] = 1 // stored count wins

	svc := NewSpectateService(store, testLogger())
	svc.SetFeed(feed)

	games, err := svc.ListLive(context.Background())
	if err != nil {
		t.Fatalf("ListLive error: %v", err)
	}
	counts := make(map[string]int)
	for _, g := range games {
		counts[g.ID] = g.Spectators
	}
	if counts["g1"] != 7 {
		t.Errorf("g1 spectators = %d, want live count 7", counts["g1"])
	}
	if counts["g2"] != 5 {
		t.Errorf("g2 spectators = %d, want stored count 5", counts["g2"])
	}
}

func TestGetLiveNotFound(t *testing.T) {
	svc := NewSpectateService(newFakeGameStore(), testLogger())

	_, err := svc.GetLive(context.Background(), "missing")
	if !errors.Is(err, domain.ErrGameNotFound) {
		t.Errorf("GetLive = %v, want ErrGameNotFound", err)
	}
}

func TestRegisterAndEndGame(t *testing.T) {
	store := newFakeGameStore()
	feed := newFakeGameFeed()
	svc := NewSpectateService(store, testLogger())
	svc.SetFeed(feed)
	ctx := context.Background()

	game := liveGame("g1", 0)
	if err := svc.RegisterGame(ctx, game); err != nil {
		t.Fatalf("RegisterGame error: %v", err)
	}
	if len(feed.broadcast) != 1 || feed.broadcast[0] != "g1" {
		t.Errorf("broadcasts = %v, want [g1]", feed.broadcast)
	}

	got, err := svc.GetLive(ctx, "g1")
	if err != nil {
		t.Fatalf("GetLive error: %v", err)
	}
	if got.Player.Username != game.Player.Username {
		t.Errorf("Player.Username = %q, want %q", got.Player.Username, game.Player.Username)
	}

	if err := svc.EndGame(ctx, "g1"); err != nil {
		t.Fatalf("EndGame error: %v", err)
	}
	if len(feed.ended) != 1 || feed.ended[0] != "g1" {
		t.Errorf("ended broadcasts = %v, want [g1]", feed.ended)
	}
	if _, err := svc.GetLive(ctx, "g1"); !errors.Is(err, domain.ErrGameNotFound) {
		t.Errorf("GetLive after EndGame = %v, want ErrGameNotFound", err)
	}
}

func TestRegisterGameValidation(t *testing.T) {
	svc := NewSpectateService(newFakeGameStore(), testLogger())
	ctx := context.Background()

	bad := []*domain.LiveGame{
		{ID: "", Player: domain.User{ID: "u1"}, Mode: domain.GameModeWalls},
		{ID: "g1", Player: domain.User{}, Mode: domain.GameModeWalls},
		{ID: "g1", Player: domain.User{ID: "u1"}, Mode: "speedrun"},
	}
	for _, game := range bad {
		if err := svc.RegisterGame(ctx, game); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("RegisterGame(%+v) = %v, want ErrInvalidRequest", game, err)
		}
	}
}

func TestEndGameNotFound(t *testing.T) {
	svc := NewSpectateService(newFakeGameStore(), testLogger())

	if err := svc.EndGame(context.Background(), "missing"); !errors.Is(err, domain.ErrGameNotFound) {
		t.Errorf("EndGame = %v, want ErrGameNotFound", err)
	}
}
