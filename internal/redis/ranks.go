package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/anastasiosv/snake-rivals-arena/internal/config"
	"github.com/anastasiosv/snake-rivals-arena/internal/domain"
)

// highScoreKey is the sorted set mirroring every user's high score. Postgres
// stays the system of record; this mirror only answers rank queries.
const highScoreKey = "arena:highscores"

// RankMirror provides Redis-backed rank lookups over user high scores
type RankMirror struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRankMirror creates a new rank mirror
func NewRankMirror(cfg *config.RedisConfig, logger *slog.Logger) (*RankMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RankMirror{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (m *RankMirror) Close() error {
	return m.client.Close()
}

// Client returns the underlying Redis client
func (m *RankMirror) Client() *redis.Client {
	return m.client
}

// SetHighScoreIfHigher records a user's score in the mirror if it beats the
// score already stored. Returns whether the mirror was updated.
func (m *RankMirror) SetHighScoreIfHigher(ctx context.Context, userID string, score int64) (bool, error) {
	current, err := m.client.ZScore(ctx, highScoreKey, userID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("getting current score: %w", err)
	}

	if err == nil && float64(score) <= current {
		return false, nil
	}

	err = m.client.ZAdd(ctx, highScoreKey, redis.Z{
		Score:  float64(score),
		Member: userID,
	}).Err()
	if err != nil {
		return false, fmt.Errorf("setting score: %w", err)
	}
	return true, nil
}

// Rank returns a user's 1-based rank by high score, descending
func (m *RankMirror) Rank(ctx context.Context, userID string) (int, error) {
	rank, err := m.client.ZRevRank(ctx, highScoreKey, userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, domain.ErrUserNotFound
		}
		return 0, fmt.Errorf("getting rank: %w", err)
	}
	return int(rank) + 1, nil
}

// Count returns the number of users in the mirror
func (m *RankMirror) Count(ctx context.Context) (int64, error) {
	count, err := m.client.ZCard(ctx, highScoreKey).Result()
	if err != nil {
		return 0, fmt.Errorf("counting mirror entries: %w", err)
	}
	return count, nil
}

// BatchSetScores replaces mirror entries using pipelining. Used by the sync
// worker when rebuilding from the database.
func (m *RankMirror) BatchSetScores(ctx context.Context, scores map[string]int64) error {
	if len(scores) == 0 {
		return nil
	}

	pipe := m.client.Pipeline()
	for userID, score := range scores {
		pipe.ZAdd(ctx, highScoreKey, redis.Z{
			Score:  float64(score),
			Member: userID,
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("batch setting scores: %w", err)
	}
	return nil
}

// RemoveUser drops a user from the mirror
func (m *RankMirror) RemoveUser(ctx context.Context, userID string) error {
	if err := m.client.ZRem(ctx, highScoreKey, userID).Err(); err != nil {
		return fmt.Errorf("removing user: %w", err)
	}
	return nil
}
