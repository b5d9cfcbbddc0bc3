package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"retro-arcade-server/config"
	"retro-arcade-server/leaderboard"
	"retro-arcade-server/wsutil"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development; restrict in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fetchTimeout bounds the board lookup done inside the hub loop.
const fetchTimeout = 5 * time.Second

// subscription is a subscribe/unsubscribe request routed through the hub
// loop so the subscriber map has a single owner.
type subscription struct {
	client *Client
	game   string
	on     bool
}

// Hub maintains the set of connected clients and their per-game
// subscriptions, and pushes refreshed leaderboards when scores arrive.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	subscribe chan subscription
	scored    chan string // game names with fresh scores

	// subscribers maps client -> set of subscribed games. Owned by Run.
	subscribers map[*Client]map[string]bool

	boards *leaderboard.Manager
	cfg    *config.Config
}

// NewHub creates a Hub serving boards from the given leaderboard cache.
func NewHub(cfg *config.Config, boards *leaderboard.Manager) *Hub {
	return &Hub{
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		scored:      make(chan string, 64),
		subscribers: make(map[*Client]map[string]bool),
		boards:      boards,
		cfg:         cfg,
	}
}

// NotifyScoreSaved tells the hub a score for game was saved. Non-blocking;
// drops the notification when the hub is backed up (the next save will
// refresh the board anyway).
func (h *Hub) NotifyScoreSaved(game string) {
	select {
	case h.scored <- game:
	default:
	}
}

// Run is the hub's main loop. Run it as a goroutine; it returns when ctx is
// cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("hub shutting down", "tag", "ws")
			return

		case client := <-h.Register:
			h.subscribers[client] = make(map[string]bool)
			slog.Info("client connected", "tag", "ws", "total", len(h.subscribers))

		case client := <-h.Unregister:
			if _, ok := h.subscribers[client]; ok {
				delete(h.subscribers, client)
				close(client.Send)
				slog.Info("client disconnected", "tag", "ws", "total", len(h.subscribers))
			}

		case sub := <-h.subscribe:
			games, ok := h.subscribers[sub.client]
			if !ok {
				break
			}
			if sub.on {
				games[sub.game] = true
				// Send the current board right away.
				h.sendBoard(ctx, sub.game, sub.client)
			} else {
				delete(games, sub.game)
			}

		case game := <-h.scored:
			for client, games := range h.subscribers {
				if games[game] {
					h.sendBoard(ctx, game, client)
				}
			}
		}
	}
}

// sendBoard fetches the board for game and pushes it to client.
func (h *Hub) sendBoard(ctx context.Context, game string, client *Client) {
	fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	rows, err := h.boards.Get(fctx, game, h.cfg.LeaderboardLimit)
	if err != nil {
		slog.Warn("failed to fetch board for push", "tag", "ws", "game", game, "err", err)
		return
	}
	msg, err := json.Marshal(LeaderboardUpdateMsg{Type: "leaderboard", Game: game, Entries: rows})
	if err != nil {
		return
	}
	wsutil.SafeSend(client.Send, msg)
}

// ServeWS handles WebSocket upgrade requests and creates a new Client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "tag", "ws", "err", err)
		return
	}

	client := &Client{
		Hub:  h,
		Conn: conn,
		Send: make(chan []byte, 256),
	}

	h.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
