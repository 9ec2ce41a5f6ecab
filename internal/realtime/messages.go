// Package realtime delivers board presence and change notifications over
// WebSockets.
package realtime

import (
	"encoding/json"
	"time"
)

const (
	presenceChanged = "presence.changed"
	// roomClosed ends connections to a board; EntityID narrows it to one user.
	roomClosed = "room.closed"
)

// Participant is one user viewing a board.
type Participant struct {
	UserID       string    `json:"userId"`
	UserName     string    `json:"userName"`
	Color        string    `json:"color"`
	ConnectedAt  time.Time `json:"connectedAt"`
	FocusBlockID string    `json:"focusBlockId"`
}

// Event is a board mutation fanned out to everyone in the board's room.
type Event struct {
	BoardID  string          `json:"boardId"`
	Type     string          `json:"type"`
	EntityID string          `json:"entityId,omitempty"`
	Actor    string          `json:"actor,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an event, encoding payload as JSON.
func NewEvent(boardID, eventType, entityID, actor string, payload any) Event {
	ev := Event{BoardID: boardID, Type: eventType, EntityID: entityID, Actor: actor}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			ev.Payload = raw
		}
	}
	return ev
}

type serverMessage struct {
	Type         string        `json:"type"`
	BoardID      string        `json:"boardId,omitempty"`
	Participants []Participant `json:"participants,omitempty"`
	Event        *Event        `json:"event,omitempty"`
}

type clientMessage struct {
	Type    string `json:"type"`
	BlockID string `json:"blockId"`
}
