package storage

import (
	"context"
	"time"
)

// Games supported by the arcade. Per-user high scores live in fixed columns,
// so the set is closed; free-form game names are still accepted for raw
// score entries.
var Games = []string{"pacman", "tetris", "snake", "space_invaders", "hybrid"}

// gameColumns maps a game name to its column in the scores table. Game names
// are never interpolated into SQL directly; only values from this map are.
var gameColumns = map[string]string{
	"pacman":         "pacman_score",
	"tetris":         "tetris_score",
	"snake":          "snake_score",
	"space_invaders": "space_invaders_score",
	"hybrid":         "hybrid_score",
}

// KnownGame reports whether game has a per-user high score column.
func KnownGame(game string) bool {
	_, ok := gameColumns[game]
	return ok
}

// ScoreEntry is one finished game run. Entries are immutable once saved.
type ScoreEntry struct {
	ID         string    `json:"id"`
	PlayerName string    `json:"player_name"`
	Game       string    `json:"game"`
	Score      int       `json:"score"`
	Level      int       `json:"level"`
	CreatedAt  time.Time `json:"created_at"`
}

// LeaderboardRow is the reduced per-game leaderboard view: score DESC.
type LeaderboardRow struct {
	PlayerName string    `json:"player_name"`
	Score      int       `json:"score"`
	Level      int       `json:"level"`
	CreatedAt  time.Time `json:"created_at"`
}

// User is one row of the users table.
type User struct {
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserScores holds a user's per-game high scores and streak state.
type UserScores struct {
	UserID             int64  `json:"user_id"`
	TotalScore         int    `json:"total_score"`
	PacmanScore        int    `json:"pacman_score"`
	TetrisScore        int    `json:"tetris_score"`
	SnakeScore         int    `json:"snake_score"`
	SpaceInvadersScore int    `json:"space_invaders_score"`
	HybridScore        int    `json:"hybrid_score"`
	LoginStreak        int    `json:"login_streak"`
	LastLoginDate      string `json:"last_login_date,omitempty"` // YYYY-MM-DD
}

// GlobalEntry is one row of the global (total score) leaderboard.
type GlobalEntry struct {
	Username    string `json:"username"`
	TotalScore  int    `json:"total_score"`
	LoginStreak int    `json:"login_streak"`
}

// GameEntry is one row of a per-game high score leaderboard.
type GameEntry struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// UserSettings holds per-user preferences. Keybinds is a JSON object
// serialized as text; the server treats it as opaque.
type UserSettings struct {
	UserID     int64  `json:"user_id"`
	Difficulty string `json:"difficulty"`
	Volume     int    `json:"volume"`
	Keybinds   string `json:"keybinds"`
}

// SettingsUpdate carries a partial settings change; nil fields are untouched.
type SettingsUpdate struct {
	Difficulty *string
	Volume     *int
	Keybinds   *string
}

// Backend abstracts one database engine (production Postgres or the local
// SQLite backup). Implementations are safe for concurrent use once
// connected; the underlying pool serializes access.
type Backend interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	Connected() bool
	Name() string

	// InitSchema creates tables and indexes if absent. Safe to call
	// repeatedly.
	InitSchema(ctx context.Context) error

	// Score entries
	SaveScore(ctx context.Context, playerName, game string, score, level int) error
	GetLeaderboard(ctx context.Context, game string, limit int) ([]LeaderboardRow, error)

	// Users
	CreateUser(ctx context.Context, username, email, passwordHash string) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateLoginStreak(ctx context.Context, userID int64) (int, error)

	// Per-user high scores
	UpdateGameScore(ctx context.Context, userID int64, game string, score int) (bool, error)
	GetUserScores(ctx context.Context, userID int64) (*UserScores, error)
	GetGlobalLeaderboard(ctx context.Context, limit int) ([]GlobalEntry, error)
	GetGameLeaderboard(ctx context.Context, game string, limit int) ([]GameEntry, error)

	// Settings
	GetUserSettings(ctx context.Context, userID int64) (*UserSettings, error)
	UpdateUserSettings(ctx context.Context, userID int64, upd SettingsUpdate) error
}

// clampLimit normalizes a requested leaderboard size.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > 200 {
		return 200
	}
	return limit
}
