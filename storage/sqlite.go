package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"retro-arcade-server/dberrors"
)

const sqliteCreateSchemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	user_id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT UNIQUE NOT NULL,
	email TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS scores (
	user_id INTEGER PRIMARY KEY REFERENCES users(user_id) ON DELETE CASCADE,
	total_score INTEGER DEFAULT 0,
	pacman_score INTEGER DEFAULT 0,
	tetris_score INTEGER DEFAULT 0,
	snake_score INTEGER DEFAULT 0,
	space_invaders_score INTEGER DEFAULT 0,
	hybrid_score INTEGER DEFAULT 0,
	login_streak INTEGER DEFAULT 0,
	last_login_date TEXT
);
CREATE TABLE IF NOT EXISTS user_settings (
	user_id INTEGER PRIMARY KEY REFERENCES users(user_id) ON DELETE CASCADE,
	difficulty TEXT DEFAULT 'intermediate',
	volume INTEGER DEFAULT 100,
	keybinds TEXT DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS score_entries (
	id TEXT PRIMARY KEY,
	player_name TEXT NOT NULL,
	game TEXT NOT NULL,
	score INTEGER NOT NULL,
	level INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
CREATE INDEX IF NOT EXISTS idx_scores_total ON scores(total_score DESC);
CREATE INDEX IF NOT EXISTS idx_score_entries_game_score ON score_entries(game, score DESC);
`

// SQLite is the local backup backend. It keeps scores available offline and
// receives a copy of every score save when Postgres is the primary.
type SQLite struct {
	path string
	db   *sql.DB
}

// NewSQLite returns an unconnected SQLite backend storing data at path.
// Use ":memory:" for an ephemeral database (tests).
func NewSQLite(path string) *SQLite {
	return &SQLite{path: path}
}

// Name identifies the backend for logging.
func (s *SQLite) Name() string { return "SQLite (Local)" }

// Connected reports whether the database handle is open.
func (s *SQLite) Connected() bool { return s != nil && s.db != nil }

// Connect opens the database file, creating parent directories as needed.
// WAL mode keeps concurrent reads cheap; writes are serialized by SQLite.
// Calling Connect on an already-connected backend is a no-op.
func (s *SQLite) Connect(ctx context.Context) error {
	if s.db != nil {
		return nil
	}
	dsn := s.path
	if s.path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return dberrors.Connection(err)
		}
		dsn = fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=30000&_foreign_keys=on", s.path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return dberrors.Connection(err)
	}
	if s.path == ":memory:" {
		// A second connection would see a different empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return dberrors.Connection(err)
	}
	s.db = db
	slog.Info("connected to SQLite", "tag", "storage", "path", s.path)
	return nil
}

// Close closes the database handle. Safe to call when not connected.
func (s *SQLite) Close(ctx context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		if err != nil {
			return dberrors.Connection(err)
		}
	}
	return nil
}

// InitSchema creates tables and indexes if absent.
func (s *SQLite) InitSchema(ctx context.Context) error {
	if s.db == nil {
		return dberrors.Connection(dberrors.ErrNotConnected)
	}
	if _, err := s.db.ExecContext(ctx, sqliteCreateSchemaSQL); err != nil {
		return dberrors.Schema(err)
	}
	return nil
}

// SaveScore inserts one score entry row.
func (s *SQLite) SaveScore(ctx context.Context, playerName, game string, score, level int) error {
	if s.db == nil {
		return dberrors.Connection(dberrors.ErrNotConnected)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO score_entries (id, player_name, game, score, level, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), playerName, game, score, level, time.Now().UTC())
	return dberrors.Persistence("save_score", err)
}

// GetLeaderboard returns up to limit entries for game, best score first.
func (s *SQLite) GetLeaderboard(ctx context.Context, game string, limit int) ([]LeaderboardRow, error) {
	if s.db == nil {
		return nil, dberrors.Connection(dberrors.ErrNotConnected)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT player_name, score, level, created_at
		FROM score_entries
		WHERE game = ?
		ORDER BY score DESC
		LIMIT ?`,
		game, clampLimit(limit))
	if err != nil {
		return nil, dberrors.Persistence("get_leaderboard", err)
	}
	defer rows.Close()
	out := []LeaderboardRow{}
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(&r.PlayerName, &r.Score, &r.Level, &r.CreatedAt); err != nil {
			return nil, dberrors.Persistence("get_leaderboard", err)
		}
		out = append(out, r)
	}
	return out, dberrors.Persistence("get_leaderboard", rows.Err())
}

// CreateUser registers a user and seeds their scores and settings rows.
// Returns dberrors.ErrUserExists when the username or email is taken.
func (s *SQLite) CreateUser(ctx context.Context, username, email, passwordHash string) (int64, error) {
	if s.db == nil {
		return 0, dberrors.Connection(dberrors.ErrNotConnected)
	}
	var existing int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM users WHERE username = ? OR email = ?`,
		username, email).Scan(&existing)
	if err == nil {
		return 0, dberrors.ErrUserExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, dberrors.Persistence("create_user", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)`,
		username, email, passwordHash, time.Now().UTC())
	if err != nil {
		return 0, dberrors.Persistence("create_user", err)
	}
	userID, err := res.LastInsertId()
	if err != nil {
		return 0, dberrors.Persistence("create_user", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO scores (user_id) VALUES (?)`, userID); err != nil {
		return 0, dberrors.Persistence("create_user", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO user_settings (user_id) VALUES (?)`, userID); err != nil {
		return 0, dberrors.Persistence("create_user", err)
	}
	return userID, nil
}

func (s *SQLite) getUserBy(ctx context.Context, field, value string) (*User, error) {
	if s.db == nil {
		return nil, dberrors.Connection(dberrors.ErrNotConnected)
	}
	var u User
	query := `SELECT user_id, username, email, password_hash, created_at FROM users WHERE ` + field + ` = ?`
	err := s.db.QueryRowContext(ctx, query, value).
		Scan(&u.UserID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, dberrors.Persistence("get_user", err)
	}
	return &u, nil
}

// GetUserByUsername returns the user or (nil, nil) if not found.
func (s *SQLite) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.getUserBy(ctx, "username", username)
}

// GetUserByEmail returns the user or (nil, nil) if not found.
func (s *SQLite) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUserBy(ctx, "email", email)
}

// UpdateLoginStreak advances the user's login streak and returns the new
// value. Semantics match the Postgres backend.
func (s *SQLite) UpdateLoginStreak(ctx context.Context, userID int64) (int, error) {
	if s.db == nil {
		return 0, dberrors.Connection(dberrors.ErrNotConnected)
	}
	var streak int
	var lastLogin sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT login_streak, last_login_date FROM scores WHERE user_id = ?`,
		userID).Scan(&streak, &lastLogin)
	if err != nil {
		return 0, dberrors.Persistence("update_login_streak", err)
	}
	newStreak := nextStreak(streak, lastLogin.String, time.Now())
	_, err = s.db.ExecContext(ctx,
		`UPDATE scores SET login_streak = ?, last_login_date = ? WHERE user_id = ?`,
		newStreak, time.Now().Format(dateLayout), userID)
	if err != nil {
		return 0, dberrors.Persistence("update_login_streak", err)
	}
	return newStreak, nil
}

// UpdateGameScore stores score as the user's high score for game when it
// beats the current one, and recomputes the total.
func (s *SQLite) UpdateGameScore(ctx context.Context, userID int64, game string, score int) (bool, error) {
	if s.db == nil {
		return false, dberrors.Connection(dberrors.ErrNotConnected)
	}
	col, ok := gameColumns[game]
	if !ok {
		return false, dberrors.ErrUnknownGame
	}
	var current int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(`+col+`, 0) FROM scores WHERE user_id = ?`, userID).Scan(&current)
	if err != nil {
		return false, dberrors.Persistence("update_game_score", err)
	}
	if score <= current {
		return false, nil
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE scores SET `+col+` = ? WHERE user_id = ?`, score, userID); err != nil {
		return false, dberrors.Persistence("update_game_score", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE scores
		SET total_score = pacman_score + tetris_score + snake_score + space_invaders_score + hybrid_score
		WHERE user_id = ?`, userID)
	if err != nil {
		return false, dberrors.Persistence("update_game_score", err)
	}
	return true, nil
}

// GetUserScores returns the user's score row, or (nil, nil) if absent.
func (s *SQLite) GetUserScores(ctx context.Context, userID int64) (*UserScores, error) {
	if s.db == nil {
		return nil, dberrors.Connection(dberrors.ErrNotConnected)
	}
	var sc UserScores
	var lastLogin sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, total_score, pacman_score, tetris_score, snake_score,
			space_invaders_score, hybrid_score, login_streak, last_login_date
		FROM scores WHERE user_id = ?`,
		userID).Scan(&sc.UserID, &sc.TotalScore, &sc.PacmanScore, &sc.TetrisScore,
		&sc.SnakeScore, &sc.SpaceInvadersScore, &sc.HybridScore, &sc.LoginStreak, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, dberrors.Persistence("get_user_scores", err)
	}
	sc.LastLoginDate = lastLogin.String
	return &sc, nil
}

// GetGlobalLeaderboard returns users ranked by total score.
func (s *SQLite) GetGlobalLeaderboard(ctx context.Context, limit int) ([]GlobalEntry, error) {
	if s.db == nil {
		return nil, dberrors.Connection(dberrors.ErrNotConnected)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.username, s.total_score, s.login_streak
		FROM users u
		JOIN scores s ON u.user_id = s.user_id
		ORDER BY s.total_score DESC
		LIMIT ?`,
		clampLimit(limit))
	if err != nil {
		return nil, dberrors.Persistence("get_global_leaderboard", err)
	}
	defer rows.Close()
	out := []GlobalEntry{}
	for rows.Next() {
		var e GlobalEntry
		if err := rows.Scan(&e.Username, &e.TotalScore, &e.LoginStreak); err != nil {
			return nil, dberrors.Persistence("get_global_leaderboard", err)
		}
		out = append(out, e)
	}
	return out, dberrors.Persistence("get_global_leaderboard", rows.Err())
}

// GetGameLeaderboard returns users ranked by their high score in one game.
func (s *SQLite) GetGameLeaderboard(ctx context.Context, game string, limit int) ([]GameEntry, error) {
	if s.db == nil {
		return nil, dberrors.Connection(dberrors.ErrNotConnected)
	}
	col, ok := gameColumns[game]
	if !ok {
		return nil, dberrors.ErrUnknownGame
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.username, s.`+col+` AS score
		FROM users u
		JOIN scores s ON u.user_id = s.user_id
		WHERE s.`+col+` > 0
		ORDER BY s.`+col+` DESC
		LIMIT ?`,
		clampLimit(limit))
	if err != nil {
		return nil, dberrors.Persistence("get_game_leaderboard", err)
	}
	defer rows.Close()
	out := []GameEntry{}
	for rows.Next() {
		var e GameEntry
		if err := rows.Scan(&e.Username, &e.Score); err != nil {
			return nil, dberrors.Persistence("get_game_leaderboard", err)
		}
		out = append(out, e)
	}
	return out, dberrors.Persistence("get_game_leaderboard", rows.Err())
}

// GetUserSettings returns the user's settings row, or (nil, nil) if absent.
func (s *SQLite) GetUserSettings(ctx context.Context, userID int64) (*UserSettings, error) {
	if s.db == nil {
		return nil, dberrors.Connection(dberrors.ErrNotConnected)
	}
	var st UserSettings
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, difficulty, volume, keybinds FROM user_settings WHERE user_id = ?`,
		userID).Scan(&st.UserID, &st.Difficulty, &st.Volume, &st.Keybinds)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, dberrors.Persistence("get_user_settings", err)
	}
	return &st, nil
}

// UpdateUserSettings applies a partial settings change.
func (s *SQLite) UpdateUserSettings(ctx context.Context, userID int64, upd SettingsUpdate) error {
	if s.db == nil {
		return dberrors.Connection(dberrors.ErrNotConnected)
	}
	sets, args := buildSettingsUpdate(upd, sqlitePlaceholder)
	if len(sets) == 0 {
		return nil
	}
	args = append(args, userID)
	query := "UPDATE user_settings SET " + joinSets(sets) + " WHERE user_id = ?"
	_, err := s.db.ExecContext(ctx, query, args...)
	return dberrors.Persistence("update_user_settings", err)
}

// Ensure both backends satisfy the interface at compile time.
var (
	_ Backend = (*SQLite)(nil)
	_ Backend = (*Postgres)(nil)
)
