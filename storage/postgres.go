package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"retro-arcade-server/config"
	"retro-arcade-server/dberrors"
)

const pgCreateSchemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	user_id SERIAL PRIMARY KEY,
	username VARCHAR(50) UNIQUE NOT NULL,
	email VARCHAR(100) UNIQUE NOT NULL,
	password_hash VARCHAR(255) NOT NULL,
	created_at TIMESTAMP DEFAULT NOW()
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
	last_login_date DATE
);
CREATE TABLE IF NOT EXISTS user_settings (
	user_id INTEGER PRIMARY KEY REFERENCES users(user_id) ON DELETE CASCADE,
	difficulty VARCHAR(20) DEFAULT 'intermediate',
	volume INTEGER DEFAULT 100,
	keybinds TEXT DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS score_entries (
	id UUID PRIMARY KEY,
	player_name VARCHAR(50) NOT NULL,
	game VARCHAR(30) NOT NULL,
	score INTEGER NOT NULL,
	level INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
CREATE INDEX IF NOT EXISTS idx_scores_total ON scores(total_score DESC);
CREATE INDEX IF NOT EXISTS idx_score_entries_game_score ON score_entries(game, score DESC);
`

// uniqueViolation is the Postgres error code for duplicate keys.
const uniqueViolation = "23505"

// Postgres is the production backend, backed by a pgx connection pool.
type Postgres struct {
	cfg  config.DatabaseConfig
	pool *pgxpool.Pool
}

// NewPostgres returns an unconnected Postgres backend.
func NewPostgres(cfg config.DatabaseConfig) *Postgres {
	return &Postgres{cfg: cfg}
}

// Name identifies the backend for logging.
func (p *Postgres) Name() string { return "PostgreSQL (Production)" }

// Connected reports whether the pool is open.
func (p *Postgres) Connected() bool { return p != nil && p.pool != nil }

func (p *Postgres) connString() string {
	if p.cfg.ConnectionString != "" {
		return p.cfg.ConnectionString
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		p.cfg.User, p.cfg.Password, p.cfg.Host, p.cfg.Port, p.cfg.Name)
}

// Connect establishes the connection pool and pings the server. Calling
// Connect on an already-connected backend is a no-op.
func (p *Postgres) Connect(ctx context.Context) error {
	if p.pool != nil {
		return nil
	}
	pcfg, err := pgxpool.ParseConfig(p.connString())
	if err != nil {
		return dberrors.Connection(err)
	}
	pcfg.MinConns = int32(p.cfg.PoolMinConns)
	pcfg.MaxConns = int32(p.cfg.PoolMaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return dberrors.Connection(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return dberrors.Connection(err)
	}
	p.pool = pool
	slog.Info("connected to Postgres", "tag", "storage",
		"min_conns", p.cfg.PoolMinConns, "max_conns", p.cfg.PoolMaxConns)
	return nil
}

// Close releases all pooled connections. Safe to call when not connected.
func (p *Postgres) Close(ctx context.Context) error {
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	return nil
}

// InitSchema creates tables and indexes if absent.
func (p *Postgres) InitSchema(ctx context.Context) error {
	if p.pool == nil {
		return dberrors.Connection(dberrors.ErrNotConnected)
	}
	if _, err := p.pool.Exec(ctx, pgCreateSchemaSQL); err != nil {
		return dberrors.Schema(err)
	}
	return nil
}

// SaveScore inserts one score entry row.
func (p *Postgres) SaveScore(ctx context.Context, playerName, game string, score, level int) error {
	if p.pool == nil {
		return dberrors.Connection(dberrors.ErrNotConnected)
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO score_entries (id, player_name, game, score, level)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), playerName, game, score, level)
	return dberrors.Persistence("save_score", err)
}

// GetLeaderboard returns up to limit entries for game, best score first.
// Unknown games yield an empty board, not an error.
func (p *Postgres) GetLeaderboard(ctx context.Context, game string, limit int) ([]LeaderboardRow, error) {
	if p.pool == nil {
		return nil, dberrors.Connection(dberrors.ErrNotConnected)
	}
	rows, err := p.pool.Query(ctx, `
		SELECT player_name, score, level, created_at
		FROM score_entries
		WHERE game = $1
		ORDER BY score DESC
		LIMIT $2`,
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
func (p *Postgres) CreateUser(ctx context.Context, username, email, passwordHash string) (int64, error) {
	if p.pool == nil {
		return 0, dberrors.Connection(dberrors.ErrNotConnected)
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, dberrors.Persistence("create_user", err)
	}
	defer tx.Rollback(ctx)

	var userID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING user_id`,
		username, email, passwordHash).Scan(&userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, dberrors.ErrUserExists
		}
		return 0, dberrors.Persistence("create_user", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO scores (user_id) VALUES ($1)`, userID); err != nil {
		return 0, dberrors.Persistence("create_user", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO user_settings (user_id) VALUES ($1)`, userID); err != nil {
		return 0, dberrors.Persistence("create_user", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, dberrors.Persistence("create_user", err)
	}
	return userID, nil
}

func (p *Postgres) getUserBy(ctx context.Context, field, value string) (*User, error) {
	if p.pool == nil {
		return nil, dberrors.Connection(dberrors.ErrNotConnected)
	}
	var u User
	query := `SELECT user_id, username, email, password_hash, created_at FROM users WHERE ` + field + ` = $1`
	err := p.pool.QueryRow(ctx, query, value).
		Scan(&u.UserID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, dberrors.Persistence("get_user", err)
	}
	return &u, nil
}

// GetUserByUsername returns the user or (nil, nil) if not found.
func (p *Postgres) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return p.getUserBy(ctx, "username", username)
}

// GetUserByEmail returns the user or (nil, nil) if not found.
func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return p.getUserBy(ctx, "email", email)
}

// UpdateLoginStreak advances the user's login streak: +1 on a consecutive
// day, unchanged on a same-day login, reset to 1 after a gap. Returns the
// new streak.
func (p *Postgres) UpdateLoginStreak(ctx context.Context, userID int64) (int, error) {
	if p.pool == nil {
		return 0, dberrors.Connection(dberrors.ErrNotConnected)
	}
	var streak int
	var lastLogin *time.Time
	err := p.pool.QueryRow(ctx,
		`SELECT login_streak, last_login_date FROM scores WHERE user_id = $1`,
		userID).Scan(&streak, &lastLogin)
	if err != nil {
		return 0, dberrors.Persistence("update_login_streak", err)
	}
	var last string
	if lastLogin != nil {
		last = lastLogin.Format("2006-01-02")
	}
	newStreak := nextStreak(streak, last, time.Now())
	_, err = p.pool.Exec(ctx,
		`UPDATE scores SET login_streak = $1, last_login_date = $2 WHERE user_id = $3`,
		newStreak, time.Now().Format("2006-01-02"), userID)
	if err != nil {
		return 0, dberrors.Persistence("update_login_streak", err)
	}
	return newStreak, nil
}

// UpdateGameScore stores score as the user's high score for game when it
// beats the current one, and recomputes the total. Reports whether the
// score was a new high.
func (p *Postgres) UpdateGameScore(ctx context.Context, userID int64, game string, score int) (bool, error) {
	if p.pool == nil {
		return false, dberrors.Connection(dberrors.ErrNotConnected)
	}
	col, ok := gameColumns[game]
	if !ok {
		return false, dberrors.ErrUnknownGame
	}
	var current int
	err := p.pool.QueryRow(ctx,
		`SELECT COALESCE(`+col+`, 0) FROM scores WHERE user_id = $1`, userID).Scan(&current)
	if err != nil {
		return false, dberrors.Persistence("update_game_score", err)
	}
	if score <= current {
		return false, nil
	}
	_, err = p.pool.Exec(ctx, `UPDATE scores SET `+col+` = $1 WHERE user_id = $2`, score, userID)
	if err != nil {
		return false, dberrors.Persistence("update_game_score", err)
	}
	_, err = p.pool.Exec(ctx, `
		UPDATE scores
		SET total_score = pacman_score + tetris_score + snake_score + space_invaders_score + hybrid_score
		WHERE user_id = $1`, userID)
	if err != nil {
		return false, dberrors.Persistence("update_game_score", err)
	}
	return true, nil
}

// GetUserScores returns the user's score row, or (nil, nil) if absent.
func (p *Postgres) GetUserScores(ctx context.Context, userID int64) (*UserScores, error) {
	if p.pool == nil {
		return nil, dberrors.Connection(dberrors.ErrNotConnected)
	}
	var s UserScores
	var lastLogin *time.Time
	err := p.pool.QueryRow(ctx, `
		SELECT user_id, total_score, pacman_score, tetris_score, snake_score,
			space_invaders_score, hybrid_score, login_streak, last_login_date
		FROM scores WHERE user_id = $1`,
		userID).Scan(&s.UserID, &s.TotalScore, &s.PacmanScore, &s.TetrisScore,
		&s.SnakeScore, &s.SpaceInvadersScore, &s.HybridScore, &s.LoginStreak, &lastLogin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, dberrors.Persistence("get_user_scores", err)
	}
	if lastLogin != nil {
		s.LastLoginDate = lastLogin.Format("2006-01-02")
	}
	return &s, nil
}

// GetGlobalLeaderboard returns users ranked by total score.
func (p *Postgres) GetGlobalLeaderboard(ctx context.Context, limit int) ([]GlobalEntry, error) {
	if p.pool == nil {
		return nil, dberrors.Connection(dberrors.ErrNotConnected)
	}
	rows, err := p.pool.Query(ctx, `
		SELECT u.username, s.total_score, s.login_streak
		FROM users u
		JOIN scores s ON u.user_id = s.user_id
		ORDER BY s.total_score DESC
		LIMIT $1`,
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
// Zero scores are skipped.
func (p *Postgres) GetGameLeaderboard(ctx context.Context, game string, limit int) ([]GameEntry, error) {
	if p.pool == nil {
		return nil, dberrors.Connection(dberrors.ErrNotConnected)
	}
	col, ok := gameColumns[game]
	if !ok {
		return nil, dberrors.ErrUnknownGame
	}
	rows, err := p.pool.Query(ctx, `
		SELECT u.username, s.`+col+` AS score
		FROM users u
		JOIN scores s ON u.user_id = s.user_id
		WHERE s.`+col+` > 0
		ORDER BY s.`+col+` DESC
		LIMIT $1`,
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
func (p *Postgres) GetUserSettings(ctx context.Context, userID int64) (*UserSettings, error) {
	if p.pool == nil {
		return nil, dberrors.Connection(dberrors.ErrNotConnected)
	}
	var s UserSettings
	err := p.pool.QueryRow(ctx,
		`SELECT user_id, difficulty, volume, keybinds FROM user_settings WHERE user_id = $1`,
		userID).Scan(&s.UserID, &s.Difficulty, &s.Volume, &s.Keybinds)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, dberrors.Persistence("get_user_settings", err)
	}
	return &s, nil
}

// UpdateUserSettings applies a partial settings change.
func (p *Postgres) UpdateUserSettings(ctx context.Context, userID int64, upd SettingsUpdate) error {
	if p.pool == nil {
		return dberrors.Connection(dberrors.ErrNotConnected)
	}
	sets, args := buildSettingsUpdate(upd, pgPlaceholder)
	if len(sets) == 0 {
		return nil
	}
	args = append(args, userID)
	query := fmt.Sprintf("UPDATE user_settings SET %s WHERE user_id = $%d",
		joinSets(sets), len(args))
	_, err := p.pool.Exec(ctx, query, args...)
	return dberrors.Persistence("update_user_settings", err)
}
