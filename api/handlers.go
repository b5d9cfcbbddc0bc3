package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"retro-arcade-server/auth"
	"retro-arcade-server/config"
	"retro-arcade-server/dberrors"
	"retro-arcade-server/leaderboard"
	"retro-arcade-server/scoring"
	"retro-arcade-server/storage"
)

const bearerPrefix = "Bearer "

// ScoreNotifier receives a notification whenever a score is saved; the ws
// hub implements it. May be nil.
type ScoreNotifier interface {
	NotifyScoreSaved(game string)
}

// Handler holds dependencies for API handlers.
type Handler struct {
	Config   *config.Config
	Store    storage.Backend
	Boards   *leaderboard.Manager
	Notifier ScoreNotifier
}

// NewHandler creates a new API handler with the given dependencies.
func NewHandler(cfg *config.Config, store storage.Backend, boards *leaderboard.Manager, notifier ScoreNotifier) *Handler {
	return &Handler{Config: cfg, Store: store, Boards: boards, Notifier: notifier}
}

// Routes registers all API endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/register", h.Register)
	mux.HandleFunc("/api/login", h.Login)
	mux.HandleFunc("/api/scores", h.SaveScore)
	mux.HandleFunc("/api/scores/me", h.MyScores)
	mux.HandleFunc("/api/leaderboard", h.Leaderboard)
	mux.HandleFunc("/api/leaderboard/global", h.GlobalLeaderboard)
	mux.HandleFunc("/api/highscores", h.GameHighScores)
	mux.HandleFunc("/api/settings", h.Settings)
}

// CORS sets CORS headers on the response. Call before writing body.
func CORS(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

// extractClaims validates the Authorization header and returns the token
// claims, or nil on failure. When AUTH_JWKS_URL is configured, tokens are
// validated against the external JWKS; otherwise against the local secret.
func (h *Handler) extractClaims(r *http.Request) jwt.MapClaims {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return nil
	}
	token := strings.TrimSpace(authHeader[len(bearerPrefix):])
	var claims jwt.MapClaims
	var err error
	if h.Config.AuthJWKSURL != "" {
		claims, err = auth.ValidateExternalToken(h.Config.AuthJWKSURL, token)
	} else {
		claims, err = auth.ValidateSessionToken(h.Config.JWTSecret, token)
	}
	if err != nil {
		return nil
	}
	return claims
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "tag", "api", "err", err)
	}
}

// storeError maps storage errors to HTTP status codes.
func storeError(w http.ResponseWriter, op string, err error) {
	slog.Warn("storage operation failed", "tag", "api", "op", op, "err", err)
	if dberrors.IsConnection(err) {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// --- Auth ---

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token       string `json:"token"`
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	LoginStreak int    `json:"login_streak,omitempty"`
}

// Register creates a user account and returns a session token.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		http.Error(w, "username, email and password are required", http.StatusBadRequest)
		return
	}
	if len(req.Username) > h.Config.MaxNameLength {
		http.Error(w, "username too long", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	userID, err := h.Store.CreateUser(r.Context(), req.Username, req.Email, hash)
	if err != nil {
		if errors.Is(err, dberrors.ErrUserExists) {
			http.Error(w, "username or email already exists", http.StatusConflict)
			return
		}
		storeError(w, "create_user", err)
		return
	}

	token, err := auth.IssueSessionToken(h.Config.JWTSecret, userID, req.Username,
		time.Duration(h.Config.SessionTTLHours)*time.Hour)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, UserID: userID, Username: req.Username})
}

type loginRequest struct {
	// Identifier is a username or email.
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Login verifies credentials (username or email), advances the login
// streak, and returns a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.Store.GetUserByUsername(r.Context(), req.Identifier)
	if err != nil {
		storeError(w, "get_user", err)
		return
	}
	if user == nil {
		user, err = h.Store.GetUserByEmail(r.Context(), req.Identifier)
		if err != nil {
			storeError(w, "get_user", err)
			return
		}
	}
	if user == nil || !auth.VerifyPassword(req.Password, user.PasswordHash) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	streak, err := h.Store.UpdateLoginStreak(r.Context(), user.UserID)
	if err != nil {
		storeError(w, "update_login_streak", err)
		return
	}
	token, err := auth.IssueSessionToken(h.Config.JWTSecret, user.UserID, user.Username,
		time.Duration(h.Config.SessionTTLHours)*time.Hour)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Token: token, UserID: user.UserID, Username: user.Username, LoginStreak: streak,
	})
}

// --- Scores ---

type saveScoreRequest struct {
	PlayerName string `json:"player_name"`
	Game       string `json:"game"`
	Score      int    `json:"score"`
	Level      int    `json:"level"`

	// Optional: when Difficulty is set the server runs the scoring
	// pipeline and persists the final score instead of the raw one.
	Difficulty  string `json:"difficulty,omitempty"`
	DurationSec int    `json:"duration_sec,omitempty"`
}

type saveScoreResponse struct {
	PlayerName   string             `json:"player_name"`
	Game         string             `json:"game"`
	Score        int                `json:"score"`
	Level        int                `json:"level"`
	NewHighScore bool               `json:"new_high_score"`
	Breakdown    *scoring.Breakdown `json:"breakdown,omitempty"`
}

// SaveScore persists one score entry. Authentication is optional: an
// authenticated save defaults the player name to the account username and
// also updates the per-user high score for known games.
func (h *Handler) SaveScore(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req saveScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Level < 1 {
		req.Level = 1
	}
	if req.Score < 0 {
		http.Error(w, "score must not be negative", http.StatusBadRequest)
		return
	}

	var userID int64
	claims := h.extractClaims(r)
	if claims != nil {
		userID = auth.UserIDFromClaims(claims)
		if req.PlayerName == "" {
			req.PlayerName = auth.UsernameFromClaims(claims)
		}
	}
	req.PlayerName = strings.TrimSpace(req.PlayerName)
	if req.PlayerName == "" || req.Game == "" {
		http.Error(w, "player_name and game are required", http.StatusBadRequest)
		return
	}
	if len(req.PlayerName) > h.Config.MaxNameLength {
		http.Error(w, "player_name too long", http.StatusBadRequest)
		return
	}

	finalScore := req.Score
	var breakdown *scoring.Breakdown
	if req.Difficulty != "" {
		loginStreak := 0
		if userID != 0 {
			if scores, err := h.Store.GetUserScores(r.Context(), userID); err == nil && scores != nil {
				loginStreak = scores.LoginStreak
			}
		}
		b := scoring.CalculateBreakdown(req.Score, req.Difficulty, req.Level, loginStreak, 0, req.DurationSec)
		breakdown = &b
		finalScore = b.FinalScore
	}

	if err := h.Store.SaveScore(r.Context(), req.PlayerName, req.Game, finalScore, req.Level); err != nil {
		storeError(w, "save_score", err)
		return
	}

	newHigh := false
	if userID != 0 && storage.KnownGame(req.Game) {
		var err error
		newHigh, err = h.Store.UpdateGameScore(r.Context(), userID, req.Game, finalScore)
		if err != nil {
			slog.Warn("failed to update high score", "tag", "api", "user_id", userID, "err", err)
		}
	}

	if h.Boards != nil {
		h.Boards.Invalidate(req.Game)
	}
	if h.Notifier != nil {
		h.Notifier.NotifyScoreSaved(req.Game)
	}

	writeJSON(w, http.StatusCreated, saveScoreResponse{
		PlayerName:   req.PlayerName,
		Game:         req.Game,
		Score:        finalScore,
		Level:        req.Level,
		NewHighScore: newHigh,
		Breakdown:    breakdown,
	})
}

// MyScores returns the authenticated user's per-game high scores.
func (h *Handler) MyScores(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims := h.extractClaims(r)
	userID := auth.UserIDFromClaims(claims)
	if userID == 0 {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}
	scores, err := h.Store.GetUserScores(r.Context(), userID)
	if err != nil {
		storeError(w, "get_user_scores", err)
		return
	}
	if scores == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

// --- Leaderboards ---

// LeaderboardResponse is the JSON structure for /api/leaderboard.
type LeaderboardResponse struct {
	Game    string                   `json:"game"`
	Entries []storage.LeaderboardRow `json:"entries"`
}

func (h *Handler) limitParam(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = h.Config.LeaderboardLimit
	}
	return limit
}

// Leaderboard returns the per-game score entry board (cached).
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	game := r.URL.Query().Get("game")
	if game == "" {
		http.Error(w, "game is required", http.StatusBadRequest)
		return
	}
	entries, err := h.Boards.Get(r.Context(), game, h.limitParam(r))
	if err != nil {
		storeError(w, "get_leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, LeaderboardResponse{Game: game, Entries: entries})
}

// GlobalLeaderboard returns users ranked by total score.
func (h *Handler) GlobalLeaderboard(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	entries, err := h.Store.GetGlobalLeaderboard(r.Context(), h.limitParam(r))
	if err != nil {
		storeError(w, "get_global_leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GameHighScores returns users ranked by their high score in one game.
func (h *Handler) GameHighScores(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	game := r.URL.Query().Get("game")
	entries, err := h.Store.GetGameLeaderboard(r.Context(), game, h.limitParam(r))
	if err != nil {
		if errors.Is(err, dberrors.ErrUnknownGame) {
			http.Error(w, "unknown game", http.StatusBadRequest)
			return
		}
		storeError(w, "get_game_leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Settings ---

type settingsUpdateRequest struct {
	Difficulty *string `json:"difficulty,omitempty"`
	Volume     *int    `json:"volume,omitempty"`
	Keybinds   *string `json:"keybinds,omitempty"`
}

// Settings serves the authenticated user's preferences: GET returns them,
// PUT applies a partial update.
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	claims := h.extractClaims(r)
	userID := auth.UserIDFromClaims(claims)
	if userID == 0 {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := h.Store.GetUserSettings(r.Context(), userID)
		if err != nil {
			storeError(w, "get_user_settings", err)
			return
		}
		if settings == nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, settings)

	case http.MethodPut:
		var req settingsUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		upd := storage.SettingsUpdate{
			Difficulty: req.Difficulty,
			Volume:     req.Volume,
			Keybinds:   req.Keybinds,
		}
		if err := h.Store.UpdateUserSettings(r.Context(), userID, upd); err != nil {
			storeError(w, "update_user_settings", err)
			return
		}
		settings, err := h.Store.GetUserSettings(r.Context(), userID)
		if err != nil {
			storeError(w, "get_user_settings", err)
			return
		}
		writeJSON(w, http.StatusOK, settings)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
