package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/anastasiosv/snake-rivals-arena/internal/auth"
	"github.com/anastasiosv/snake-rivals-arena/internal/domain"
	"github.com/anastasiosv/snake-rivals-arena/internal/websocket"
)

// AuthService is the credential surface the API needs.
type AuthService interface {
	Signup(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*domain.User, error)
	ResolveUser(ctx context.Context, token string) (*domain.User, error)
}

// LeaderboardService is the ranking surface the API needs.
type LeaderboardService interface {
	SubmitScore(ctx context.Context, userID string, score int64, mode domain.GameMode) domain.SubmitScoreResponse
	TopScores(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// SpectateService is the live game directory surface the API needs.
type SpectateService interface {
	ListLive(ctx context.Context) ([]domain.LiveGame, error)
	GetLive(ctx context.Context, gameID string) (*domain.LiveGame, error)
}

// Handler provides HTTP handlers for the arena API
type Handler struct {
	auth        AuthService
	leaderboard LeaderboardService
	spectate    SpectateService
	hub         *websocket.Hub
	origins     []string
	logger      *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	authService AuthService,
	leaderboard LeaderboardService,
	spectate SpectateService,
	hub *websocket.Hub,
	origins []string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		auth:        authService,
		leaderboard: leaderboard,
		spectate:    spectate,
		hub:         hub,
		origins:     origins,
		logger:      logger,
	}
}

// errorResponse is the error body shape the frontend expects
type errorResponse struct {
	Error string `json:"error"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))

	r.Get("/", h.Welcome)
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// Spectator push feed
	r.Get("/ws", h.HandleWebSocket)

	r.Post("/auth/signup", h.Signup)
	r.Post("/auth/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(h.auth, h.unauthorized))
		r.Post("/auth/logout", h.Logout)
		r.Get("/auth/me", h.Me)
		r.Post("/leaderboard", h.SubmitScore)
	})

	r.Get("/leaderboard", h.GetLeaderboard)
	r.Get("/spectate/live", h.ListLiveGames)
	r.Get("/spectate/live/{gameID}", h.GetLiveGame)

	return r
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// unauthorized is the single 401 shape for every credential failure, so
// missing users and malformed tokens cannot be told apart from outside
func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	h.writeError(w, http.StatusUnauthorized, domain.ErrInvalidCredentials)
}

// Welcome describes the API surface
func (h *Handler) Welcome(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Welcome to the Snake Rivals Arena API!",
		"version": "1.0.0",
		"endpoints": map[string][]string{
			"authentication": {"/auth/login", "/auth/signup", "/auth/logout", "/auth/me"},
			"leaderboard":    {"/leaderboard"},
			"spectate":       {"/spectate/live", "/spectate/live/{gameId}"},
		},
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// Signup handles account creation
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	user, err := h.auth.Signup(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			h.writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, domain.ErrUsernameTaken):
			h.writeError(w, http.StatusConflict, err)
		default:
			h.logger.Error("failed to create user", "error", err)
			h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, domain.AuthResponse{
		User:  *user,
		Token: auth.IssueToken(user.ID),
	})
}

// Login handles authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	user, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, err)
			return
		}
		h.logger.Error("failed to authenticate user", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeJSON(w, http.StatusOK, domain.AuthResponse{
		User:  *user,
		Token: auth.IssueToken(user.ID),
	})
}

// Logout acknowledges a logout. Tokens are stateless, so there is nothing
// to revoke server-side.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
}

// Me returns the authenticated user
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		h.unauthorized(w, r)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// SubmitScore records a play for the authenticated user
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		h.unauthorized(w, r)
		return
	}

	var req domain.SubmitScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if req.Score < 0 {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if !req.Mode.Valid() {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidMode)
		return
	}

	resp := h.leaderboard.SubmitScore(r.Context(), user.ID, req.Score, req.Mode)
	h.writeJSON(w, http.StatusOK, resp)
}

// GetLeaderboard returns the top of the leaderboard
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	entries, err := h.leaderboard.TopScores(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to get leaderboard", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeJSON(w, http.StatusOK, entries)
}

// ListLiveGames returns all spectatable games
func (h *Handler) ListLiveGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.spectate.ListLive(r.Context())
	if err != nil {
		h.logger.Error("failed to list live games", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeJSON(w, http.StatusOK, games)
}

// GetLiveGame returns one spectatable game by id
func (h *Handler) GetLiveGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	game, err := h.spectate.GetLive(r.Context(), gameID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, domain.ErrGameNotFound)
			return
		}
		h.logger.Error("failed to get live game", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeJSON(w, http.StatusOK, game)
}
