package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anastasiosv/snake-rivals-arena/internal/config"
	"github.com/anastasiosv/snake-rivals-arena/internal/domain"
)

// ScoreStore is the persistence the leaderboard engine needs.
type ScoreStore interface {
	ApplyScore(ctx context.Context, userID string, score int64, mode domain.GameMode, now time.Time) (*domain.User, error)
	TopUsers(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	UserCount(ctx context.Context) (int64, error)
}

// RankCache answers rank queries from the Redis mirror.
type RankCache interface {
	SetHighScoreIfHigher(ctx context.Context, userID string, score int64) (bool, error)
	Rank(ctx context.Context, userID string) (int, error)
}

// Broadcaster pushes leaderboard snapshots to connected spectators.
type Broadcaster interface {
	BroadcastLeaderboard(entries []domain.LeaderboardEntry, totalPlayers int64)
}

// LeaderboardService owns score submission and ranking.
type LeaderboardService struct {
	store  ScoreStore
	ranks  RankCache
	hub    Broadcaster
	config *config.LeaderboardConfig
	logger *slog.Logger
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(
	store ScoreStore,
	ranks RankCache,
	cfg *config.LeaderboardConfig,
	logger *slog.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		store:  store,
		ranks:  ranks,
		config: cfg,
		logger: logger,
	}
}

// SetHub attaches the websocket hub for broadcasting after submissions
func (s *LeaderboardService) SetHub(hub Broadcaster) {
	s.hub = hub
}

// SubmitScore records one play for a user. It never returns an error:
// an unknown user, invalid input or a storage failure all come back as
// Success=false. On success games_played advances by exactly one and the
// high score only ever moves up; the score record is appended either way.
// NewRank is filled from the rank mirror on a best-effort basis.
func (s *LeaderboardService) SubmitScore(ctx context.Context, userID string, score int64, mode domain.GameMode) domain.SubmitScoreResponse {
	if userID == "" || score < 0 || !mode.Valid() {
		s.logger.Warn("rejecting invalid score submission",
			"user_id", userID,
			"score", score,
			"mode", mode,
		)
		return domain.SubmitScoreResponse{Success: false}
	}

	user, err := s.store.ApplyScore(ctx, userID, score, mode, time.Now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Debug("score submission for unknown user", "user_id", userID)
		} else {
			s.logger.Error("failed to apply score", "user_id", userID, "error", err)
		}
		return domain.SubmitScoreResponse{Success: false}
	}

	// Mirror and broadcast are best-effort; the submission already committed.
	if _, err := s.ranks.SetHighScoreIfHigher(ctx, userID, user.HighScore); err != nil {
		s.logger.Warn("failed to update rank mirror", "user_id", userID, "error", err)
	}

	resp := domain.SubmitScoreResponse{Success: true}
	if rank, err := s.ranks.Rank(ctx, userID); err == nil {
		resp.NewRank = rank
	} else if !domain.IsNotFoundError(err) {
		s.logger.Warn("failed to read rank", "user_id", userID, "error", err)
	}

	s.broadcastSnapshot(ctx)

	return resp
}

// broadcastSnapshot pushes the current top of the leaderboard to spectators
func (s *LeaderboardService) broadcastSnapshot(ctx context.Context) {
	if s.hub == nil {
		return
	}

	entries, err := s.TopScores(ctx, s.config.DefaultLimit)
	if err != nil {
		s.logger.Warn("failed to build leaderboard snapshot", "error", err)
		return
	}
	total, err := s.store.UserCount(ctx)
	if err != nil {
		s.logger.Warn("failed to count users for snapshot", "error", err)
	}
	s.hub.BroadcastLeaderboard(entries, total)
}

// TopScores returns up to limit leaderboard entries ordered by high score
// descending with dense 1-based ranks. An empty store yields an empty
// slice, never an error.
func (s *LeaderboardService) TopScores(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}

	entries, err := s.store.TopUsers(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("getting top users: %w", err)
	}
	if entries == nil {
		return []domain.LeaderboardEntry{}, nil
	}

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
