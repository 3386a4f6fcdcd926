package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/anastasiosv/snake-rivals-arena/internal/auth"
	"github.com/anastasiosv/snake-rivals-arena/internal/config"
	"github.com/anastasiosv/snake-rivals-arena/internal/domain"
	"github.com/anastasiosv/snake-rivals-arena/internal/postgres"
)

type seedUser struct {
	username string
	score    int64
	mode     domain.GameMode
}

// Demo accounts for local development. All share the same password so the
// frontend team can log in as any of them.
var seedUsers = []seedUser{
	{username: "SnakeMaster", score: 450, mode: domain.GameModeWalls},
	{username: "NeonViper", score: 380, mode: domain.GameModeWalls},
	{username: "CyberSnake", score: 320, mode: domain.GameModePassThrough},
}

const seedPassword = "password123"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	withGames := flag.Bool("live-games", false, "Also register demo live games for the spectate view")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	authService := auth.NewService(repo, cfg.Auth.BcryptCost, logger)

	users := make([]*domain.User, 0, len(seedUsers))
	for _, s := range seedUsers {
		user, err := seedOne(ctx, authService, repo, s, logger)
		if err != nil {
			logger.Error("failed to seed user", "username", s.username, "error", err)
			os.Exit(1)
		}
		users = append(users, user)
	}

	if *withGames {
		if err := seedLiveGames(ctx, repo, users); err != nil {
			logger.Error("failed to seed live games", "error", err)
			os.Exit(1)
		}
		logger.Info("demo live games registered")
	}

	logger.Info("seeding complete", "users", len(users))
}

// seedOne creates the account if it does not exist yet, then records its
// demo score. Rerunning the seeder against an already seeded database is
// harmless because scores only move high scores upward.
func seedOne(
	ctx context.Context,
	authService *auth.Service,
	repo *postgres.Repository,
	s seedUser,
	logger *slog.Logger,
) (*domain.User, error) {
	user, err := authService.Signup(ctx, s.username, seedPassword)
	switch {
	case err == nil:
		logger.Info("created user", "username", s.username)
	case errors.Is(err, domain.ErrUsernameTaken):
		user, err = repo.GetUserByUsername(ctx, s.username)
		if err != nil {
			return nil, err
		}
		logger.Info("user already exists", "username", s.username)
	default:
		return nil, err
	}

	user, err = repo.ApplyScore(ctx, user.ID, s.score, s.mode, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("recording seed score: %w", err)
	}
	logger.Info("recorded score", "username", s.username, "score", s.score, "mode", s.mode)
	return user, nil
}

// seedLiveGames registers an in-progress game for each seeded account so
// the spectate view has something to show.
func seedLiveGames(ctx context.Context, repo *postgres.Repository, users []*domain.User) error {
	modes := []domain.GameMode{domain.GameModeWalls, domain.GameModePassThrough}
	for i, user := range users {
		game := &domain.LiveGame{
			ID:           uuid.NewString(),
			Player:       *user,
			Mode:         modes[i%len(modes)],
			CurrentScore: user.HighScore / 2,
			StartedAt:    time.Now().UTC().Add(-time.Duration(i+1) * time.Minute),
			Spectators:   0,
		}
		if err := repo.UpsertLiveGame(ctx, game); err != nil {
			return err
		}
	}
	return nil
}
