package ws

import (
	"encoding/json"

	"retro-arcade-server/storage"
)

// InboundEnvelope is the generic envelope for all client-to-server messages.
// The Type field is used for routing; Raw holds the full JSON payload.
type InboundEnvelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements custom unmarshaling to capture the raw payload.
func (e *InboundEnvelope) UnmarshalJSON(data []byte) error {
	type typeOnly struct {
		Type string `json:"type"`
	}
	var t typeOnly
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	e.Type = t.Type
	e.Raw = json.RawMessage(data)
	return nil
}

// --- Client-to-Server message payloads ---

// SubscribeMsg asks for live leaderboard updates for one game.
type SubscribeMsg struct {
	Type string `json:"type"`
	Game string `json:"game"`
}

// UnsubscribeMsg stops live updates for one game.
type UnsubscribeMsg struct {
	Type string `json:"type"`
	Game string `json:"game"`
}

// --- Server-to-Client messages ---

// LeaderboardUpdateMsg carries the refreshed board for a game. Sent right
// after a subscribe and whenever a score for the game is saved.
type LeaderboardUpdateMsg struct {
	Type    string                   `json:"type"` // "leaderboard"
	Game    string                   `json:"game"`
	Entries []storage.LeaderboardRow `json:"entries"`
}

// ErrorMsg reports a client error.
type ErrorMsg struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}
