package storage

import (
	"context"
	"errors"
	"testing"

	"retro-arcade-server/dberrors"
)

// newTestSQLite opens a connected in-memory backend with schema in place.
func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s := NewSQLite(":memory:")
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	if err := s.InitSchema(ctx); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	return s
}

func TestInitSchemaIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	// Second run must not fail: all DDL is create-if-not-exists.
	if err := s.InitSchema(context.Background()); err != nil {
		t.Fatalf("second InitSchema: %v", err)
	}
}

func TestConnectIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect while connected: %v", err)
	}
	if !s.Connected() {
		t.Error("backend should still be connected")
	}
}

func TestSaveScoreAndLeaderboardRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	if err := s.SaveScore(ctx, "Player1", "tetris", 5000, 10); err != nil {
		t.Fatalf("SaveScore: %v", err)
	}
	rows, err := s.GetLeaderboard(ctx, "tetris", 10)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].PlayerName != "Player1" || rows[0].Score != 5000 || rows[0].Level != 10 {
		t.Errorf("unexpected row: %+v", rows[0])
	}
	if rows[0].CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestLeaderboardOrderAndLimit(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for i, score := range []int{100, 50, 200} {
		if err := s.SaveScore(ctx, "p", "snake", score, i+1); err != nil {
			t.Fatalf("SaveScore: %v", err)
		}
	}
	rows, err := s.GetLeaderboard(ctx, "snake", 3)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	want := []int{200, 100, 50}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(rows))
	}
	for i, w := range want {
		if rows[i].Score != w {
			t.Errorf("row %d: score = %d, want %d", i, rows[i].Score, w)
		}
	}

	// More entries than limit: result is truncated.
	rows, err = s.GetLeaderboard(ctx, "snake", 2)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows with limit=2, got %d", len(rows))
	}
	if rows[0].Score != 200 || rows[1].Score != 100 {
		t.Errorf("unexpected truncated board: %+v", rows)
	}
}

func TestLeaderboardUnknownGameIsEmpty(t *testing.T) {
	s := newTestSQLite(t)
	rows, err := s.GetLeaderboard(context.Background(), "nonexistent_game", 10)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected empty board, got %d rows", len(rows))
	}
}

func TestOperationsAfterCloseFail(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Close again is safe.
	if err := s.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	err := s.SaveScore(ctx, "p", "tetris", 1, 1)
	if !dberrors.IsConnection(err) {
		t.Errorf("SaveScore after Close: got %v, want connection error", err)
	}
	if !errors.Is(err, dberrors.ErrNotConnected) {
		t.Errorf("error should wrap ErrNotConnected, got %v", err)
	}
	if _, err := s.GetLeaderboard(ctx, "tetris", 10); !dberrors.IsConnection(err) {
		t.Errorf("GetLeaderboard after Close: got %v, want connection error", err)
	}
}

func TestCreateUserAndLookup(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	id, err := s.CreateUser(ctx, "alice", "alice@example.com", "hash1")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero user id")
	}

	// Duplicate username or email is rejected.
	if _, err := s.CreateUser(ctx, "alice", "other@example.com", "h"); !errors.Is(err, dberrors.ErrUserExists) {
		t.Errorf("duplicate username: got %v, want ErrUserExists", err)
	}
	if _, err := s.CreateUser(ctx, "bob", "alice@example.com", "h"); !errors.Is(err, dberrors.ErrUserExists) {
		t.Errorf("duplicate email: got %v, want ErrUserExists", err)
	}

	u, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u == nil || u.UserID != id || u.Email != "alice@example.com" || u.PasswordHash != "hash1" {
		t.Errorf("unexpected user: %+v", u)
	}
	u, err = s.GetUserByEmail(ctx, "alice@example.com")
	if err != nil || u == nil || u.Username != "alice" {
		t.Errorf("GetUserByEmail: user=%+v err=%v", u, err)
	}
	u, err = s.GetUserByUsername(ctx, "nobody")
	if err != nil || u != nil {
		t.Errorf("missing user should be (nil, nil), got %+v / %v", u, err)
	}

	// New users start with a zeroed scores row and default settings.
	scores, err := s.GetUserScores(ctx, id)
	if err != nil || scores == nil {
		t.Fatalf("GetUserScores: scores=%+v err=%v", scores, err)
	}
	if scores.TotalScore != 0 || scores.LoginStreak != 0 {
		t.Errorf("expected zeroed scores, got %+v", scores)
	}
	settings, err := s.GetUserSettings(ctx, id)
	if err != nil || settings == nil {
		t.Fatalf("GetUserSettings: settings=%+v err=%v", settings, err)
	}
	if settings.Difficulty != "intermediate" || settings.Volume != 100 {
		t.Errorf("unexpected default settings: %+v", settings)
	}
}

func TestUpdateGameScoreHighScoreSemantics(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	id, err := s.CreateUser(ctx, "carol", "carol@example.com", "h")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	isHigh, err := s.UpdateGameScore(ctx, id, "tetris", 500)
	if err != nil || !isHigh {
		t.Fatalf("first score should be a new high: high=%v err=%v", isHigh, err)
	}
	// Lower score is not recorded.
	isHigh, err = s.UpdateGameScore(ctx, id, "tetris", 300)
	if err != nil || isHigh {
		t.Fatalf("lower score should not be a new high: high=%v err=%v", isHigh, err)
	}
	isHigh, err = s.UpdateGameScore(ctx, id, "snake", 200)
	if err != nil || !isHigh {
		t.Fatalf("snake score should be a new high: high=%v err=%v", isHigh, err)
	}

	scores, err := s.GetUserScores(ctx, id)
	if err != nil {
		t.Fatalf("GetUserScores: %v", err)
	}
	if scores.TetrisScore != 500 || scores.SnakeScore != 200 {
		t.Errorf("unexpected per-game scores: %+v", scores)
	}
	if scores.TotalScore != 700 {
		t.Errorf("total = %d, want 700", scores.TotalScore)
	}

	if _, err := s.UpdateGameScore(ctx, id, "pinball", 10); !errors.Is(err, dberrors.ErrUnknownGame) {
		t.Errorf("unknown game: got %v, want ErrUnknownGame", err)
	}
}

func TestGlobalAndGameLeaderboards(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	a, _ := s.CreateUser(ctx, "alice", "a@example.com", "h")
	b, _ := s.CreateUser(ctx, "bob", "b@example.com", "h")
	c, _ := s.CreateUser(ctx, "carol", "c@example.com", "h")

	s.UpdateGameScore(ctx, a, "tetris", 100)
	s.UpdateGameScore(ctx, b, "tetris", 300)
	s.UpdateGameScore(ctx, c, "snake", 200)

	global, err := s.GetGlobalLeaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("GetGlobalLeaderboard: %v", err)
	}
	if len(global) != 3 {
		t.Fatalf("expected 3 global entries, got %d", len(global))
	}
	if global[0].Username != "bob" || global[0].TotalScore != 300 {
		t.Errorf("unexpected leader: %+v", global[0])
	}

	game, err := s.GetGameLeaderboard(ctx, "tetris", 10)
	if err != nil {
		t.Fatalf("GetGameLeaderboard: %v", err)
	}
	// carol has no tetris score, so only two rows.
	if len(game) != 2 {
		t.Fatalf("expected 2 tetris entries, got %d", len(game))
	}
	if game[0].Username != "bob" || game[0].Score != 300 {
		t.Errorf("unexpected tetris leader: %+v", game[0])
	}

	if _, err := s.GetGameLeaderboard(ctx, "pinball", 10); !errors.Is(err, dberrors.ErrUnknownGame) {
		t.Errorf("unknown game: got %v, want ErrUnknownGame", err)
	}
}

func TestUpdateLoginStreak(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	id, _ := s.CreateUser(ctx, "dave", "d@example.com", "h")

	streak, err := s.UpdateLoginStreak(ctx, id)
	if err != nil {
		t.Fatalf("UpdateLoginStreak: %v", err)
	}
	if streak != 1 {
		t.Errorf("first login streak = %d, want 1", streak)
	}
	// Logging in again the same day keeps the streak.
	streak, err = s.UpdateLoginStreak(ctx, id)
	if err != nil {
		t.Fatalf("UpdateLoginStreak: %v", err)
	}
	if streak != 1 {
		t.Errorf("same-day streak = %d, want 1", streak)
	}
}

func TestUpdateUserSettings(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	id, _ := s.CreateUser(ctx, "erin", "e@example.com", "h")

	diff := "hard"
	vol := 80
	if err := s.UpdateUserSettings(ctx, id, SettingsUpdate{Difficulty: &diff, Volume: &vol}); err != nil {
		t.Fatalf("UpdateUserSettings: %v", err)
	}
	settings, err := s.GetUserSettings(ctx, id)
	if err != nil {
		t.Fatalf("GetUserSettings: %v", err)
	}
	if settings.Difficulty != "hard" || settings.Volume != 80 {
		t.Errorf("unexpected settings: %+v", settings)
	}
	// Untouched fields keep their values.
	if settings.Keybinds != "{}" {
		t.Errorf("keybinds = %q, want {}", settings.Keybinds)
	}

	// Empty update is a no-op.
	if err := s.UpdateUserSettings(ctx, id, SettingsUpdate{}); err != nil {
		t.Fatalf("empty UpdateUserSettings: %v", err)
	}
}
