package storage

import (
	"context"
	"log/slog"

	"retro-arcade-server/config"
	"retro-arcade-server/dberrors"
)

// Manager is the database manager used by the rest of the server. It
// prefers the production Postgres backend and falls back to the local
// SQLite backup when Postgres is not configured or unreachable. Score
// writes are mirrored to the backup so the local database stays usable
// offline.
//
// Manager adds no locking of its own; each backend's pool serializes
// concurrent access.
type Manager struct {
	production Backend // nil when not configured
	local      Backend

	active          Backend
	usingProduction bool
}

// NewManager builds a Manager from configuration. The production backend is
// only created when cfg.DB is configured.
func NewManager(cfg *config.Config) *Manager {
	m := &Manager{local: NewSQLite(cfg.LocalDBPath)}
	if cfg.DB.IsConfigured() {
		m.production = NewPostgres(cfg.DB)
	}
	return m
}

// NewManagerWithBackends builds a Manager over explicit backends.
// production may be nil. Used by tests and by callers that provision their
// own backends.
func NewManagerWithBackends(production, local Backend) *Manager {
	return &Manager{production: production, local: local}
}

// Name identifies the active backend for logging.
func (m *Manager) Name() string {
	if m.active != nil {
		return m.active.Name()
	}
	return "Not connected"
}

// Connected reports whether an active backend is available.
func (m *Manager) Connected() bool {
	return m != nil && m.active != nil && m.active.Connected()
}

// UsingProduction reports whether Postgres is the active backend.
func (m *Manager) UsingProduction() bool { return m.usingProduction }

// Connect establishes backends: the local backup always, production when
// configured. Production becomes the active backend when reachable;
// otherwise the local backup serves everything. Calling Connect while
// already connected is a no-op. Returns a connection-class error only when
// no backend at all could be established.
func (m *Manager) Connect(ctx context.Context) error {
	if m.Connected() {
		return nil
	}

	if err := m.local.Connect(ctx); err != nil {
		slog.Warn("local backup unavailable", "tag", "storage", "err", err)
	}

	if m.production != nil {
		if err := m.production.Connect(ctx); err != nil {
			slog.Warn("production database unreachable, using local storage only",
				"tag", "storage", "err", err)
		} else {
			m.active = m.production
			m.usingProduction = true
		}
	}
	if m.active == nil {
		if !m.local.Connected() {
			return dberrors.Connection(dberrors.ErrNotConnected)
		}
		m.active = m.local
	}
	slog.Info("database connected", "tag", "storage", "backend", m.Name(),
		"local_backup", m.local.Connected(), "production", m.usingProduction)
	return nil
}

// Close releases all connections on every backend. Safe to call without a
// prior Connect, and safe to call twice. Operations after Close fail with
// a connection-class error until Connect is called again.
func (m *Manager) Close(ctx context.Context) error {
	var firstErr error
	if m.production != nil && m.production.Connected() {
		if err := m.production.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.local.Connected() {
		if err := m.local.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.active = nil
	m.usingProduction = false
	slog.Info("database disconnected", "tag", "storage")
	return firstErr
}

// InitSchema initializes the schema on the active backend and, when
// production is active, on the local backup as well. Idempotent.
func (m *Manager) InitSchema(ctx context.Context) error {
	if !m.Connected() {
		return dberrors.Connection(dberrors.ErrNotConnected)
	}
	if err := m.active.InitSchema(ctx); err != nil {
		return err
	}
	if m.usingProduction && m.local.Connected() {
		if err := m.local.InitSchema(ctx); err != nil {
			slog.Warn("failed to init local backup schema", "tag", "storage", "err", err)
		}
	}
	slog.Info("database schema initialized", "tag", "storage", "backend", m.Name())
	return nil
}

// SaveScore persists a score entry on the active backend and mirrors it to
// the local backup when production is active. A backup failure is logged,
// not returned.
func (m *Manager) SaveScore(ctx context.Context, playerName, game string, score, level int) error {
	if !m.Connected() {
		return dberrors.Connection(dberrors.ErrNotConnected)
	}
	if err := m.active.SaveScore(ctx, playerName, game, score, level); err != nil {
		return err
	}
	if m.usingProduction && m.local.Connected() {
		if err := m.local.SaveScore(ctx, playerName, game, score, level); err != nil {
			slog.Warn("failed to mirror score to local backup", "tag", "storage", "err", err)
		}
	}
	return nil
}

// GetLeaderboard returns the per-game board from the active backend.
func (m *Manager) GetLeaderboard(ctx context.Context, game string, limit int) ([]LeaderboardRow, error) {
	if !m.Connected() {
		return nil, dberrors.Connection(dberrors.ErrNotConnected)
	}
	return m.active.GetLeaderboard(ctx, game, limit)
}

// CreateUser registers a user on the active backend.
func (m *Manager) CreateUser(ctx context.Context, username, email, passwordHash string) (int64, error) {
	if !m.Connected() {
		return 0, dberrors.Connection(dberrors.ErrNotConnected)
	}
	return m.active.CreateUser(ctx, username, email, passwordHash)
}

// GetUserByUsername looks up a user on the active backend.
func (m *Manager) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	if !m.Connected() {
		return nil, dberrors.Connection(dberrors.ErrNotConnected)
	}
	return m.active.GetUserByUsername(ctx, username)
}

// GetUserByEmail looks up a user on the active backend.
func (m *Manager) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	if !m.Connected() {
		return nil, dberrors.Connection(dberrors.ErrNotConnected)
	}
	return m.active.GetUserByEmail(ctx, email)
}

// UpdateLoginStreak advances the user's streak on the active backend.
func (m *Manager) UpdateLoginStreak(ctx context.Context, userID int64) (int, error) {
	if !m.Connected() {
		return 0, dberrors.Connection(dberrors.ErrNotConnected)
	}
	return m.active.UpdateLoginStreak(ctx, userID)
}

// UpdateGameScore records a per-user high score, mirrored to the local
// backup when production is active.
func (m *Manager) UpdateGameScore(ctx context.Context, userID int64, game string, score int) (bool, error) {
	if !m.Connected() {
		return false, dberrors.Connection(dberrors.ErrNotConnected)
	}
	isHigh, err := m.active.UpdateGameScore(ctx, userID, game, score)
	if err != nil {
		return false, err
	}
	if m.usingProduction && m.local.Connected() {
		if _, err := m.local.UpdateGameScore(ctx, userID, game, score); err != nil {
			slog.Warn("failed to mirror high score to local backup", "tag", "storage", "err", err)
		}
	}
	return isHigh, nil
}

// GetUserScores returns the user's score row from the active backend.
func (m *Manager) GetUserScores(ctx context.Context, userID int64) (*UserScores, error) {
	if !m.Connected() {
		return nil, dberrors.Connection(dberrors.ErrNotConnected)
	}
	return m.active.GetUserScores(ctx, userID)
}

// GetGlobalLeaderboard returns the total-score board from the active backend.
func (m *Manager) GetGlobalLeaderboard(ctx context.Context, limit int) ([]GlobalEntry, error) {
	if !m.Connected() {
		return nil, dberrors.Connection(dberrors.ErrNotConnected)
	}
	return m.active.GetGlobalLeaderboard(ctx, limit)
}

// GetGameLeaderboard returns a per-game high score board from the active backend.
func (m *Manager) GetGameLeaderboard(ctx context.Context, game string, limit int) ([]GameEntry, error) {
	if !m.Connected() {
		return nil, dberrors.Connection(dberrors.ErrNotConnected)
	}
	return m.active.GetGameLeaderboard(ctx, game, limit)
}

// GetUserSettings returns the user's settings from the active backend.
func (m *Manager) GetUserSettings(ctx context.Context, userID int64) (*UserSettings, error) {
	if !m.Connected() {
		return nil, dberrors.Connection(dberrors.ErrNotConnected)
	}
	return m.active.GetUserSettings(ctx, userID)
}

// UpdateUserSettings applies a partial settings change on the active backend.
func (m *Manager) UpdateUserSettings(ctx context.Context, userID int64, upd SettingsUpdate) error {
	if !m.Connected() {
		return dberrors.Connection(dberrors.ErrNotConnected)
	}
	return m.active.UpdateUserSettings(ctx, userID, upd)
}

// Manager exposes the same surface as a single backend.
var _ Backend = (*Manager)(nil)
