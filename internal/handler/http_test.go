package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anastasiosv/snake-rivals-arena/internal/auth"
	"github.com/anastasiosv/snake-rivals-arena/internal/domain"
	"github.com/anastasiosv/snake-rivals-arena/internal/websocket"
)

// fakeBackend implements the three service interfaces the handler consumes.
type fakeBackend struct {
	users   map[string]*domain.User // keyed by username
	byID    map[string]*domain.User
	entries []domain.LeaderboardEntry
	games   map[string]*domain.LiveGame
	submit  domain.SubmitScoreResponse
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users: make(map[string]*domain.User),
		byID:  make(map[string]*domain.User),
		games: make(map[string]*domain.LiveGame),
	}
}

func (f *fakeBackend) addUser(id, username, password string) *domain.User {
	user := &domain.User{ID: id, Username: username, PasswordHash: password}
	f.users[username] = user
	f.byID[id] = user
	return user
}

func (f *fakeBackend) Signup(_ context.Context, username, password string) (*domain.User, error) {
	req := domain.SignupRequest{Username: username, Password: password}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, exists := f.users[username]; exists {
		return nil, domain.ErrUsernameTaken
	}
	return f.addUser("id-"+username, username, password), nil
}

func (f *fakeBackend) Login(_ context.Context, username, password string) (*domain.User, error) {
	user, ok := f.users[username]
	if !ok || user.PasswordHash != password {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

func (f *fakeBackend) ResolveUser(_ context.Context, token string) (*domain.User, error) {
	userID, err := auth.ResolveToken(token)
	if err != nil {
		return nil, err
	}
	user, ok := f.byID[userID]
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	return user, nil
}

func (f *fakeBackend) SubmitScore(_ context.Context, userID string, score int64, mode domain.GameMode) domain.SubmitScoreResponse {
	return f.submit
}

func (f *fakeBackend) TopScores(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	entries := f.entries
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return entries, nil
}

func (f *fakeBackend) ListLive(_ context.Context) ([]domain.LiveGame, error) {
	games := []domain.LiveGame{}
	for _, g := range f.games {
		games = append(games, *g)
	}
	return games, nil
}

func (f *fakeBackend) GetLive(_ context.Context, gameID string) (*domain.LiveGame, error) {
	g, ok := f.games[gameID]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	return g, nil
}

func newTestServer(t *testing.T, backend *fakeBackend) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(backend, backend, backend, websocket.NewHub(logger), []string{"*"}, logger)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, token string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("sending request: %v", err)
	}
	return resp
}

func getJSON(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("sending request: %v", err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestSignupEndpoint(t *testing.T) {
	srv := newTestServer(t, newFakeBackend())

	resp := postJSON(t, srv.URL+"/auth/signup", "", domain.SignupRequest{
		Username: "SnakeMaster",
		Password: "password123",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var body domain.AuthResponse
	decode(t, resp, &body)
	if body.User.Username != "SnakeMaster" {
		t.Errorf("username = %q, want SnakeMaster", body.User.Username)
	}
	if body.Token != auth.IssueToken(body.User.ID) {
		t.Errorf("token = %q, want token for %q", body.Token, body.User.ID)
	}
}

func TestSignupRejectsShortUsername(t *testing.T) {
	srv := newTestServer(t, newFakeBackend())

	resp := postJSON(t, srv.URL+"/auth/signup", "", domain.SignupRequest{
		Username: "ab",
		Password: "password123",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSignupDuplicateConflict(t *testing.T) {
	backend := newFakeBackend()
	backend.addUser("u1", "SnakeMaster", "password123")
	srv := newTestServer(t, backend)

	resp := postJSON(t, srv.URL+"/auth/signup", "", domain.SignupRequest{
		Username: "SnakeMaster",
		Password: "otherpassword",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestLoginEndpoint(t *testing.T) {
	backend := newFakeBackend()
	backend.addUser("u1", "SnakeMaster", "password123")
	srv := newTestServer(t, backend)

	resp := postJSON(t, srv.URL+"/auth/login", "", domain.LoginRequest{
		Username: "SnakeMaster",
		Password: "password123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body domain.AuthResponse
	decode(t, resp, &body)
	if body.User.ID != "u1" {
		t.Errorf("user id = %q, want u1", body.User.ID)
	}

	resp = postJSON(t, srv.URL+"/auth/login", "", domain.LoginRequest{
		Username: "SnakeMaster",
		Password: "wrong",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", resp.StatusCode)
	}
}

func TestMeRequiresAuth(t *testing.T) {
	backend := newFakeBackend()
	backend.addUser("u1", "SnakeMaster", "password123")
	srv := newTestServer(t, backend)

	resp := getJSON(t, srv.URL+"/auth/me", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", resp.StatusCode)
	}

	resp = getJSON(t, srv.URL+"/auth/me", "garbage")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", resp.StatusCode)
	}

	resp = getJSON(t, srv.URL+"/auth/me", auth.IssueToken("u1"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var user domain.User
	decode(t, resp, &user)
	if user.Username != "SnakeMaster" {
		t.Errorf("username = %q, want SnakeMaster", user.Username)
	}
}

func TestSubmitScoreEndpoint(t *testing.T) {
	backend := newFakeBackend()
	backend.addUser("u1", "SnakeMaster", "password123")
	backend.submit = domain.SubmitScoreResponse{Success: true, NewRank: 3}
	srv := newTestServer(t, backend)
	token := auth.IssueToken("u1")

	// Submission requires a valid token
	resp := postJSON(t, srv.URL+"/leaderboard", "", domain.SubmitScoreRequest{Score: 100, Mode: domain.GameModeWalls})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/leaderboard", token, domain.SubmitScoreRequest{Score: 100, Mode: domain.GameModeWalls})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body domain.SubmitScoreResponse
	decode(t, resp, &body)
	if !body.Success || body.NewRank != 3 {
		t.Errorf("body = %+v, want success with rank 3", body)
	}

	// Invalid payloads are rejected before reaching the engine
	resp = postJSON(t, srv.URL+"/leaderboard", token, domain.SubmitScoreRequest{Score: -5, Mode: domain.GameModeWalls})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("negative score status = %d, want 400", resp.StatusCode)
	}
	resp = postJSON(t, srv.URL+"/leaderboard", token, domain.SubmitScoreRequest{Score: 100, Mode: "speedrun"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad mode status = %d, want 400", resp.StatusCode)
	}
}

func TestGetLeaderboardEndpoint(t *testing.T) {
	backend := newFakeBackend()
	now := time.Now().UTC()
	backend.entries = []domain.LeaderboardEntry{
		{Rank: 1, Player: domain.User{ID: "u1", Username: "SnakeMaster", HighScore: 450}, Score: 450, Mode: domain.GameModeWalls, Timestamp: now},
		{Rank: 2, Player: domain.User{ID: "u2", Username: "NeonViper", HighScore: 380}, Score: 380, Mode: domain.GameModeWalls, Timestamp: now},
	}
	srv := newTestServer(t, backend)

	resp := getJSON(t, srv.URL+"/leaderboard", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var entries []domain.LeaderboardEntry
	decode(t, resp, &entries)
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Player.Username != "SnakeMaster" {
		t.Errorf("first entry = %q, want SnakeMaster", entries[0].Player.Username)
	}

	resp = getJSON(t, srv.URL+"/leaderboard?limit=1", "")
	decode(t, resp, &entries)
	if len(entries) != 1 {
		t.Errorf("limited: len(entries) = %d, want 1", len(entries))
	}
}

func TestSpectateEndpoints(t *testing.T) {
	backend := newFakeBackend()
	backend.games["g1"] = &domain.LiveGame{
		ID:           "g1",
		Player:       domain.User{ID: "u1", Username: "SnakeMaster"},
		Mode:         domain.GameModeWalls,
		CurrentScore: 120,
		StartedAt:    time.Now().UTC(),
		Spectators:   4,
	}
	srv := newTestServer(t, backend)

	resp := getJSON(t, srv.URL+"/spectate/live", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want 200", resp.StatusCode)
	}
	var games []domain.LiveGame
	decode(t, resp, &games)
	if len(games) != 1 || games[0].ID != "g1" {
		t.Errorf("games = %+v, want one game g1", games)
	}

	resp = getJSON(t, srv.URL+"/spectate/live/g1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	var game domain.LiveGame
	decode(t, resp, &game)
	if game.CurrentScore != 120 || game.Spectators != 4 {
		t.Errorf("game = %+v, want currentScore 120 with 4 spectators", game)
	}

	resp = getJSON(t, srv.URL+"/spectate/live/missing", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing game status = %d, want 404", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, newFakeBackend())

	for _, path := range []string{"/", "/health", "/ready"} {
		resp := getJSON(t, srv.URL+path, "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
}
