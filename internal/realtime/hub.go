package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"journeymap/api/internal/logging"
	"journeymap/api/internal/util"
)

// Hub owns the board rooms of this instance.
type Hub struct {
	broker   Broker
	presence PresenceStore
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewHub creates a hub. allowedOrigin "*" or "" accepts any origin.
func NewHub(broker Broker, presence PresenceStore, allowedOrigin string, logger *logging.Logger) *Hub {
	if broker == nil {
		broker = NewLocalBroker()
	}
	if presence == nil {
		presence = NewMemoryPresence()
	}
	h := &Hub{
		broker:   broker,
		presence: presence,
		logger:   logging.OrNop(logger).Named("realtime"),
		rooms:    make(map[string]map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigin),
	}
	return h
}

func originChecker(allowed string) func(*http.Request) bool {
	allowed = strings.TrimRight(strings.TrimSpace(allowed), "/")
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if allowed == "" || allowed == "*" || origin == "" {
			return true
		}
		return strings.EqualFold(strings.TrimRight(origin, "/"), allowed)
	}
}

// Run delivers broker events to local rooms until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	h.broker.Run(ctx, func(ev Event) { h.deliver(ctx, ev) })
}

// Publish sends ev to every instance. Failures are logged; notifications are
// best effort.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	if h == nil {
		return
	}
	if err := h.broker.Publish(ctx, ev); err != nil {
		h.logger.Warn("publish board event failed", "board_id", ev.BoardID, "type", ev.Type, "error", err)
	}
}

// Participants lists who is currently viewing a board.
func (h *Hub) Participants(ctx context.Context, boardID string) ([]Participant, error) {
	return h.presence.List(ctx, boardID)
}

// Serve upgrades the request and joins the caller to boardID's room. The
// caller must already be authenticated and authorized.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, boardID string, p Participant) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	if p.ConnectedAt.IsZero() {
		p.ConnectedAt = time.Now().UTC()
	}
	p.FocusBlockID = ""
	c := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		boardID: boardID,
		connID:  util.NewID("conn"),
		user:    p,
	}

	// Pumps run on a fresh context: the request context ends when Serve returns.
	ctx := context.WithoutCancel(r.Context())
	h.register(ctx, c)
	go c.writePump()
	go c.readPump(ctx)
	return nil
}

func (h *Hub) register(ctx context.Context, c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.boardID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.boardID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()

	if err := h.presence.Join(ctx, c.boardID, c.connID, c.user); err != nil {
		h.logger.Warn("record presence failed", "board_id", c.boardID, "error", err)
	}
	h.logger.Debug("client joined", "board_id", c.boardID, "user_id", c.user.UserID, "conn_id", c.connID)
	h.presenceChanged(ctx, c.boardID)
}

func (h *Hub) unregister(ctx context.Context, c *Client) {
	h.mu.Lock()
	room := h.rooms[c.boardID]
	if _, ok := room[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.boardID)
	}
	close(c.send)
	h.mu.Unlock()

	if err := h.presence.Leave(ctx, c.boardID, c.connID); err != nil {
		h.logger.Warn("clear presence failed", "board_id", c.boardID, "error", err)
	}
	h.logger.Debug("client left", "board_id", c.boardID, "user_id", c.user.UserID, "conn_id", c.connID)
	h.presenceChanged(ctx, c.boardID)
}

func (h *Hub) presenceChanged(ctx context.Context, boardID string) {
	h.Publish(ctx, Event{BoardID: boardID, Type: presenceChanged})
}

func (h *Hub) deliver(ctx context.Context, ev Event) {
	var msg serverMessage
	switch ev.Type {
	case roomClosed:
		h.closeRoom(ctx, ev.BoardID, ev.EntityID)
		return
	case presenceChanged:
		participants, err := h.presence.List(ctx, ev.BoardID)
		if err != nil {
			h.logger.Warn("list presence failed", "board_id", ev.BoardID, "error", err)
			return
		}
		msg = serverMessage{Type: "presence", BoardID: ev.BoardID, Participants: participants}
		if msg.Participants == nil {
			msg.Participants = []Participant{}
		}
	default:
		e := ev
		msg = serverMessage{Type: "event", BoardID: ev.BoardID, Event: &e}
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal realtime message failed", "error", err)
		return
	}
	h.broadcast(ev.BoardID, payload)
}

// broadcast queues payload for every client in the room. Clients whose
// buffer is full are disconnected.
func (h *Hub) broadcast(boardID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[boardID] {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("disconnecting slow client", "board_id", boardID, "conn_id", c.connID)
			c.kick()
		}
	}
}

// Connections returns the number of open connections on this instance.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, room := range h.rooms {
		n += len(room)
	}
	return n
}

// Disconnect closes every connection to boardID on all instances, e.g. after
// the board is deleted.
func (h *Hub) Disconnect(ctx context.Context, boardID string) {
	h.Publish(ctx, Event{BoardID: boardID, Type: roomClosed})
}

// DisconnectUser closes userID's connections to each of boardIDs on all
// instances, e.g. after the user leaves the project.
func (h *Hub) DisconnectUser(ctx context.Context, boardIDs []string, userID string) {
	for _, boardID := range boardIDs {
		h.Publish(ctx, Event{BoardID: boardID, Type: roomClosed, EntityID: userID})
	}
}

// closeRoom ends local connections to boardID, only userID's when set.
// Messages already queued are written before the close frame.
func (h *Hub) closeRoom(ctx context.Context, boardID, userID string) {
	h.mu.RLock()
	var closing []*Client
	for c := range h.rooms[boardID] {
		if userID == "" || c.user.UserID == userID {
			closing = append(closing, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range closing {
		h.unregister(ctx, c)
	}
}
