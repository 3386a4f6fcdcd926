package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anastasiosv/snake-rivals-arena/internal/config"
	"github.com/anastasiosv/snake-rivals-arena/internal/domain"
)

// Repository provides PostgreSQL-based data access. It is the system of
// record for users, score history and live games; Redis only mirrors ranks.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			username VARCHAR(64) NOT NULL UNIQUE,
			password_hash VARCHAR(100) NOT NULL,
			high_score BIGINT NOT NULL DEFAULT 0,
			games_played BIGINT NOT NULL DEFAULT 0,
			last_played TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS score_records (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			score BIGINT NOT NULL CHECK (score >= 0),
			mode VARCHAR(20) NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS live_games (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			mode VARCHAR(20) NOT NULL,
			current_score BIGINT NOT NULL DEFAULT 0,
			started_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			spectators INT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_high_score ON users(high_score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_score_records_user ON score_records(user_id, recorded_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const userColumns = `id, username, password_hash, high_score, games_played, last_played, created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.HighScore,
		&u.GamesPlayed,
		&u.LastPlayed,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user. A colliding username fails with
// domain.ErrUsernameTaken and never overwrites the existing row.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, high_score, games_played, last_played, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.HighScore,
		user.GamesPlayed,
		user.LastPlayed,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by id
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by exact username match
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return user, nil
}

// UserCount returns the total number of registered users
func (r *Repository) UserCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// ApplyScore records one score submission for a user: it appends a score
// record and advances the user's counters in a single transaction. The
// high-score comparison and the games-played increment run as one UPDATE
// statement, so concurrent submissions for the same user cannot clobber
// each other.
func (r *Repository) ApplyScore(ctx context.Context, userID string, score int64, mode domain.GameMode, now time.Time) (*domain.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	update := `
		UPDATE users
		SET high_score = GREATEST(high_score, $2),
		    games_played = games_played + 1,
		    last_played = $3
		WHERE id = $1
		RETURNING ` + userColumns
	user, err := scanUser(tx.QueryRow(ctx, update, userID, score, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("updating user counters: %w", err)
	}

	insert := `
		INSERT INTO score_records (user_id, score, mode, recorded_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.Exec(ctx, insert, userID, score, string(mode), now); err != nil {
		return nil, fmt.Errorf("inserting score record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing score: %w", err)
	}
	return user, nil
}

// TopUsers returns up to limit users ordered by high score descending.
// Ties break on earliest last_played, then id, so the order is stable.
// Each row carries the mode of the user's most recent score record,
// defaulting to walls for users with no records yet.
func (r *Repository) TopUsers(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	query := `
		SELECT u.id, u.username, u.high_score, u.games_played, u.last_played, u.created_at,
		       COALESCE(sr.mode, 'walls')
		FROM users u
		LEFT JOIN LATERAL (
			SELECT mode FROM score_records
			WHERE user_id = u.id
			ORDER BY recorded_at DESC, id DESC
			LIMIT 1
		) sr ON true
		ORDER BY u.high_score DESC, u.last_played ASC NULLS LAST, u.id ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying top users: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var u domain.User
		var mode string
		err := rows.Scan(
			&u.ID,
			&u.Username,
			&u.HighScore,
			&u.GamesPlayed,
			&u.LastPlayed,
			&u.CreatedAt,
			&mode,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning top user: %w", err)
		}

		timestamp := u.CreatedAt
		if u.LastPlayed != nil {
			timestamp = *u.LastPlayed
		}
		entries = append(entries, domain.LeaderboardEntry{
			Player:    u,
			Score:     u.HighScore,
			Mode:      domain.GameMode(mode),
			Timestamp: timestamp,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating top users: %w", err)
	}
	return entries, nil
}

// AllHighScores returns every user's high score, keyed by user id. Used by
// the sync worker to rebuild the Redis rank mirror.
func (r *Repository) AllHighScores(ctx context.Context) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, high_score FROM users`)
	if err != nil {
		return nil, fmt.Errorf("querying high scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]int64)
	for rows.Next() {
		var id string
		var score int64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("scanning high score: %w", err)
		}
		scores[id] = score
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating high scores: %w", err)
	}
	return scores, nil
}

const liveGameColumns = `g.id, g.mode, g.current_score, g.started_at, g.spectators,
	u.id, u.username, u.high_score, u.games_played, u.last_played, u.created_at`

func scanLiveGame(row pgx.Row) (*domain.LiveGame, error) {
	var g domain.LiveGame
	var mode string
	err := row.Scan(
		&g.ID,
		&mode,
		&g.CurrentScore,
		&g.StartedAt,
		&g.Spectators,
		&g.Player.ID,
		&g.Player.Username,
		&g.Player.HighScore,
		&g.Player.GamesPlayed,
		&g.Player.LastPlayed,
		&g.Player.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.Mode = domain.GameMode(mode)
	return &g, nil
}

// ListLiveGames returns all currently tracked live games in storage order
func (r *Repository) ListLiveGames(ctx context.Context) ([]domain.LiveGame, error) {
	query := `
		SELECT ` + liveGameColumns + `
		FROM live_games g
		JOIN users u ON u.id = g.user_id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing live games: %w", err)
	}
	defer rows.Close()

	var games []domain.LiveGame
	for rows.Next() {
		game, err := scanLiveGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning live game: %w", err)
		}
		games = append(games, *game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating live games: %w", err)
	}
	return games, nil
}

// GetLiveGame retrieves a live game by id. Absence is reported as
// domain.ErrGameNotFound, not as a storage failure.
func (r *Repository) GetLiveGame(ctx context.Context, gameID string) (*domain.LiveGame, error) {
	query := `
		SELECT ` + liveGameColumns + `
		FROM live_games g
		JOIN users u ON u.id = g.user_id
		WHERE g.id = $1
	`
	game, err := scanLiveGame(r.pool.QueryRow(ctx, query, gameID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGameNotFound
		}
		return nil, fmt.Errorf("getting live game: %w", err)
	}
	return game, nil
}

// UpsertLiveGame registers or refreshes a live game. This is the write half
// of the directory used by game servers and the seeder, not by the HTTP API.
func (r *Repository) UpsertLiveGame(ctx context.Context, game *domain.LiveGame) error {
	query := `
		INSERT INTO live_games (id, user_id, mode, current_score, started_at, spectators)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id)
		DO UPDATE SET current_score = $4, spectators = $6
	`
	_, err := r.pool.Exec(ctx, query,
		game.ID,
		game.Player.ID,
		string(game.Mode),
		game.CurrentScore,
		game.StartedAt,
		game.Spectators,
	)
	if err != nil {
		return fmt.Errorf("upserting live game: %w", err)
	}
	return nil
}

// DeleteLiveGame removes a finished game from the directory
func (r *Repository) DeleteLiveGame(ctx context.Context, gameID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM live_games WHERE id = $1`, gameID)
	if err != nil {
		return fmt.Errorf("deleting live game: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrGameNotFound
	}
	return nil
}
