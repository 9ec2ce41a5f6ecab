package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
	sendBuffer     = 256
)

// Client is one WebSocket connection in a board room.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	boardID string
	connID  string
	user    Participant

	closeOnce sync.Once
}

// kick closes the connection; readPump then unregisters the client.
func (c *Client) kick() {
	c.closeOnce.Do(func() { _ = c.conn.Close() })
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(ctx, c)
		c.kick()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.hub.presence.Touch(ctx, c.boardID, c.connID)
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket closed", "conn_id", c.connID, "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "focus":
			if err := c.hub.presence.Focus(ctx, c.boardID, c.connID, msg.BlockID); err != nil {
				c.hub.logger.Warn("record focus failed", "conn_id", c.connID, "error", err)
				continue
			}
			c.hub.presenceChanged(ctx, c.boardID)
		case "ping":
			_ = c.hub.presence.Touch(ctx, c.boardID, c.connID)
			c.enqueue(serverMessage{Type: "pong"})
		}
	}
}

// enqueue sends a message to this client only.
func (c *Client) enqueue(msg serverMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.rooms[c.boardID][c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.kick()
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.kick()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
