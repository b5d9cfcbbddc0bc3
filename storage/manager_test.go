package storage

import (
	"context"
	"errors"
	"testing"

	"retro-arcade-server/dberrors"
)

// fakeBackend records calls so Manager routing can be asserted.
type fakeBackend struct {
	name        string
	connectErr  error
	connected   bool
	saveCalls   int
	schemaCalls int
	highCalls   int
	boards      []LeaderboardRow
}

func (f *fakeBackend) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}
func (f *fakeBackend) Close(ctx context.Context) error { f.connected = false; return nil }
func (f *fakeBackend) Connected() bool                 { return f.connected }
func (f *fakeBackend) Name() string                    { return f.name }

func (f *fakeBackend) InitSchema(ctx context.Context) error { f.schemaCalls++; return nil }

func (f *fakeBackend) SaveScore(ctx context.Context, playerName, game string, score, level int) error {
	f.saveCalls++
	f.boards = append(f.boards, LeaderboardRow{PlayerName: playerName, Score: score, Level: level})
	return nil
}

func (f *fakeBackend) GetLeaderboard(ctx context.Context, game string, limit int) ([]LeaderboardRow, error) {
	return f.boards, nil
}

func (f *fakeBackend) CreateUser(ctx context.Context, username, email, passwordHash string) (int64, error) {
	return 1, nil
}
func (f *fakeBackend) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return nil, nil
}
func (f *fakeBackend) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return nil, nil
}
func (f *fakeBackend) UpdateLoginStreak(ctx context.Context, userID int64) (int, error) {
	return 1, nil
}
func (f *fakeBackend) UpdateGameScore(ctx context.Context, userID int64, game string, score int) (bool, error) {
	f.highCalls++
	return true, nil
}
func (f *fakeBackend) GetUserScores(ctx context.Context, userID int64) (*UserScores, error) {
	return &UserScores{UserID: userID}, nil
}
func (f *fakeBackend) GetGlobalLeaderboard(ctx context.Context, limit int) ([]GlobalEntry, error) {
	return nil, nil
}
func (f *fakeBackend) GetGameLeaderboard(ctx context.Context, game string, limit int) ([]GameEntry, error) {
	return nil, nil
}
func (f *fakeBackend) GetUserSettings(ctx context.Context, userID int64) (*UserSettings, error) {
	return nil, nil
}
func (f *fakeBackend) UpdateUserSettings(ctx context.Context, userID int64, upd SettingsUpdate) error {
	return nil
}

var _ Backend = (*fakeBackend)(nil)

func TestManagerPrefersProduction(t *testing.T) {
	prod := &fakeBackend{name: "PostgreSQL"}
	local := &fakeBackend{name: "SQLite"}
	m := NewManagerWithBackends(prod, local)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !m.UsingProduction() {
		t.Error("expected production to be the active backend")
	}
	if m.Name() != "PostgreSQL" {
		t.Errorf("Name = %q, want PostgreSQL", m.Name())
	}
	if !local.connected {
		t.Error("local backup should be connected too")
	}
}

func TestManagerConnectIdempotent(t *testing.T) {
	prod := &fakeBackend{name: "PostgreSQL"}
	m := NewManagerWithBackends(prod, &fakeBackend{name: "SQLite"})
	ctx := context.Background()

	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if !m.Connected() {
		t.Error("manager should remain connected")
	}
}

func TestManagerFallsBackToLocal(t *testing.T) {
	prod := &fakeBackend{name: "PostgreSQL", connectErr: errors.New("refused")}
	local := &fakeBackend{name: "SQLite"}
	m := NewManagerWithBackends(prod, local)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect should fall back, got %v", err)
	}
	if m.UsingProduction() {
		t.Error("production should not be active")
	}
	if m.Name() != "SQLite" {
		t.Errorf("Name = %q, want SQLite", m.Name())
	}
}

func TestManagerConnectFailsWithNoBackend(t *testing.T) {
	prod := &fakeBackend{name: "PostgreSQL", connectErr: errors.New("refused")}
	local := &fakeBackend{name: "SQLite", connectErr: errors.New("disk full")}
	m := NewManagerWithBackends(prod, local)

	err := m.Connect(context.Background())
	if !dberrors.IsConnection(err) {
		t.Errorf("expected connection error when no backend is available, got %v", err)
	}
}

func TestManagerMirrorsWritesToBackup(t *testing.T) {
	prod := &fakeBackend{name: "PostgreSQL"}
	local := &fakeBackend{name: "SQLite"}
	m := NewManagerWithBackends(prod, local)
	ctx := context.Background()

	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := m.InitSchema(ctx); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	if prod.schemaCalls != 1 || local.schemaCalls != 1 {
		t.Errorf("schema calls prod=%d local=%d, want 1/1", prod.schemaCalls, local.schemaCalls)
	}

	if err := m.SaveScore(ctx, "p", "tetris", 100, 1); err != nil {
		t.Fatalf("SaveScore: %v", err)
	}
	if prod.saveCalls != 1 || local.saveCalls != 1 {
		t.Errorf("save calls prod=%d local=%d, want 1/1", prod.saveCalls, local.saveCalls)
	}

	if _, err := m.UpdateGameScore(ctx, 1, "tetris", 100); err != nil {
		t.Fatalf("UpdateGameScore: %v", err)
	}
	if prod.highCalls != 1 || local.highCalls != 1 {
		t.Errorf("high score calls prod=%d local=%d, want 1/1", prod.highCalls, local.highCalls)
	}
}

func TestManagerNoMirrorWhenLocalOnly(t *testing.T) {
	local := &fakeBackend{name: "SQLite"}
	m := NewManagerWithBackends(nil, local)
	ctx := context.Background()

	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := m.SaveScore(ctx, "p", "snake", 10, 1); err != nil {
		t.Fatalf("SaveScore: %v", err)
	}
	if local.saveCalls != 1 {
		t.Errorf("save calls = %d, want 1", local.saveCalls)
	}
}

func TestManagerOperationsAfterClose(t *testing.T) {
	local := &fakeBackend{name: "SQLite"}
	m := NewManagerWithBackends(nil, local)
	ctx := context.Background()

	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := m.SaveScore(ctx, "p", "tetris", 1, 1); !dberrors.IsConnection(err) {
		t.Errorf("SaveScore after Close: got %v, want connection error", err)
	}
	if _, err := m.GetLeaderboard(ctx, "tetris", 10); !dberrors.IsConnection(err) {
		t.Errorf("GetLeaderboard after Close: got %v, want connection error", err)
	}
	if err := m.InitSchema(ctx); !dberrors.IsConnection(err) {
		t.Errorf("InitSchema after Close: got %v, want connection error", err)
	}

	// Reconnecting restores service.
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if err := m.SaveScore(ctx, "p", "tetris", 1, 1); err != nil {
		t.Errorf("SaveScore after reconnect: %v", err)
	}
}
