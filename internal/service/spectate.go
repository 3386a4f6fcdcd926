package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anastasiosv/snake-rivals-arena/internal/domain"
)

// GameStore is the persistence behind the live game directory.
type GameStore interface {
	ListLiveGames(ctx context.Context) ([]domain.LiveGame, error)
	GetLiveGame(ctx context.Context, gameID string) (*domain.LiveGame, error)
	UpsertLiveGame(ctx context.Context, game *domain.LiveGame) error
	DeleteLiveGame(ctx context.Context, gameID string) error
}

// GameFeed surfaces live spectator counts and pushes game state changes.
type GameFeed interface {
	GameSpectators(gameID string) int
	BroadcastLiveGame(game domain.LiveGame)
	BroadcastLiveGameEnded(gameID string)
}

// SpectateService is the read-side directory of games currently in
// progress. The HTTP API only reads from it; RegisterGame and EndGame are
// the collaborator interface for game servers and the seeder.
type SpectateService struct {
	store  GameStore
	feed   GameFeed
	logger *slog.Logger
}

// NewSpectateService creates a new spectate service
func NewSpectateService(store GameStore, logger *slog.Logger) *SpectateService {
	return &SpectateService{
		store:  store,
		logger: logger,
	}
}

// SetFeed attaches the websocket hub for spectator counts and broadcasts
func (s *SpectateService) SetFeed(feed GameFeed) {
	s.feed = feed
}

// ListLive returns all currently tracked live games. When the feed is
// attached, connected spectator counts override stale stored values.
func (s *SpectateService) ListLive(ctx context.Context) ([]domain.LiveGame, error) {
	games, err := s.store.ListLiveGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing live games: %w", err)
	}
	if games == nil {
		games = []domain.LiveGame{}
	}
	for i := range games {
		s.overlaySpectators(&games[i])
	}
	return games, nil
}

// GetLive returns one live game by id; absence comes back as
// domain.ErrGameNotFound.
func (s *SpectateService) GetLive(ctx context.Context, gameID string) (*domain.LiveGame, error) {
	game, err := s.store.GetLiveGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	s.overlaySpectators(game)
	return game, nil
}

func (s *SpectateService) overlaySpectators(game *domain.LiveGame) {
	if s.feed == nil {
		return
	}
	if n := s.feed.GameSpectators(game.ID); n > game.Spectators {
		game.Spectators = n
	}
}

// RegisterGame adds or refreshes a live game in the directory and notifies
// its spectators.
func (s *SpectateService) RegisterGame(ctx context.Context, game *domain.LiveGame) error {
	if game.ID == "" || game.Player.ID == "" || !game.Mode.Valid() {
		return domain.ErrInvalidRequest
	}
	if err := s.store.UpsertLiveGame(ctx, game); err != nil {
		return err
	}
	if s.feed != nil {
		s.feed.BroadcastLiveGame(*game)
	}
	return nil
}

// EndGame removes a finished game from the directory and notifies its
// spectators.
func (s *SpectateService) EndGame(ctx context.Context, gameID string) error {
	if err := s.store.DeleteLiveGame(ctx, gameID); err != nil {
		return err
	}
	if s.feed != nil {
		s.feed.BroadcastLiveGameEnded(gameID)
	}
	return nil
}
