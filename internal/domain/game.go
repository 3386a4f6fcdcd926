package domain

import "time"

// GameMode is the arena variant a score was achieved in.
type GameMode string

const (
	GameModeWalls       GameMode = "walls"
	GameModePassThrough GameMode = "pass-through"
)

// Valid reports whether m is one of the known game modes.
func (m GameMode) Valid() bool {
	return m == GameModeWalls || m == GameModePassThrough
}

// ParseGameMode converts a wire string into a GameMode.
func ParseGameMode(s string) (GameMode, error) {
	m := GameMode(s)
	if !m.Valid() {
		return "", ErrInvalidMode
	}
	return m, nil
}

// ScoreRecord is one immutable historical score entry. Every submission
// appends exactly one record, whether or not it beats the high score.
type ScoreRecord struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"userId"`
	Score      int64     `json:"score"`
	Mode       GameMode  `json:"mode"`
	RecordedAt time.Time `json:"recordedAt"`
}

// LeaderboardEntry is a derived projection over users, computed at query
// time; it is never persisted. Ranks are dense and 1-based.
type LeaderboardEntry struct {
	Rank      int       `json:"rank"`
	Player    User      `json:"player"`
	Score     int64     `json:"score"`
	Mode      GameMode  `json:"mode"`
	Timestamp time.Time `json:"timestamp"`
}

// LiveGame is one in-progress spectatable session. The directory only reads
// these; population comes from outside the request path.
type LiveGame struct {
	ID           string    `json:"id"`
	Player       User      `json:"player"`
	Mode         GameMode  `json:"mode"`
	CurrentScore int64     `json:"currentScore"`
	StartedAt    time.Time `json:"startedAt"`
	Spectators   int       `json:"spectators"`
}

// SubmitScoreRequest is the payload for a score submission.
type SubmitScoreRequest struct {
	Score int64    `json:"score"`
	Mode  GameMode `json:"mode"`
}

// SubmitScoreResponse reports whether the submission was applied and the
// player's rank after it, when the rank cache could provide one.
type SubmitScoreResponse struct {
	Success bool `json:"success"`
	NewRank int  `json:"newRank,omitempty"`
}
