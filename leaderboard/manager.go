// Package leaderboard serves per-game leaderboards through a small TTL
// cache, so bursts of reads don't hammer the database between score saves.
package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"retro-arcade-server/storage"
)

// Fetcher is the slice of the storage surface the cache needs.
type Fetcher interface {
	GetLeaderboard(ctx context.Context, game string, limit int) ([]storage.LeaderboardRow, error)
}

type cachedBoard struct {
	rows      []storage.LeaderboardRow
	fetchedAt time.Time
}

// Manager caches leaderboards per (game, limit) with a TTL, invalidated
// whenever a score for the game is saved. On fetch errors a stale copy is
// served when one exists.
type Manager struct {
	store Fetcher
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]cachedBoard
}

// NewManager creates a cache over store with the given TTL.
func NewManager(store Fetcher, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		ttl:   ttl,
		cache: make(map[string]cachedBoard),
	}
}

func cacheKey(game string, limit int) string {
	return fmt.Sprintf("%s|%d", game, limit)
}

// Get returns the board for game, from cache when fresh.
func (m *Manager) Get(ctx context.Context, game string, limit int) ([]storage.LeaderboardRow, error) {
	key := cacheKey(game, limit)

	m.mu.Lock()
	if c, ok := m.cache[key]; ok && time.Since(c.fetchedAt) < m.ttl {
		m.mu.Unlock()
		return c.rows, nil
	}
	m.mu.Unlock()

	rows, err := m.store.GetLeaderboard(ctx, game, limit)
	if err != nil {
		m.mu.Lock()
		c, ok := m.cache[key]
		m.mu.Unlock()
		if ok {
			slog.Warn("leaderboard fetch failed, serving stale copy",
				"tag", "leaderboard", "game", game, "err", err)
			return c.rows, nil
		}
		return nil, err
	}

	m.mu.Lock()
	m.cache[key] = cachedBoard{rows: rows, fetchedAt: time.Now()}
	m.mu.Unlock()
	return rows, nil
}

// Invalidate drops every cached board for game, regardless of limit.
func (m *Manager) Invalidate(game string) {
	prefix := game + "|"
	m.mu.Lock()
	for key := range m.cache {
		if strings.HasPrefix(key, prefix) {
			delete(m.cache, key)
		}
	}
	m.mu.Unlock()
}
