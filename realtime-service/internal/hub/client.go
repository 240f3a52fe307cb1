package hub

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-gig-live/pkg/log"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/config"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
)

// Client is one authenticated socket.
type Client struct {
	ID          string
	Identity    *domain.Identity
	ConnectedAt time.Time

	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	config config.WebSocketConfig
	ctx    context.Context

	// rooms is guarded by hub.mu.
	rooms map[string]struct{}
}

func NewClient(id string, identity *domain.Identity, hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = 256
	}

	l := log.L().With().
		Str(log.FieldSocketID, id).
		Str(log.FieldUserID, identity.UserID).
		Logger()

	return &Client{
		ID:          id,
		Identity:    identity,
		ConnectedAt: time.Now().UTC(),
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, buffer),
		config:      cfg,
		// Detached from the HTTP request so a disconnect never cancels
		// in-flight writes.
		ctx:   log.WithLogger(context.Background(), l),
		rooms: make(map[string]struct{}),
	}
}

// Context carries the client's logger.
func (c *Client) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c *Client) UserID() string {
	return c.Identity.UserID
}

// ReadPump feeds inbound frames to handle until the socket fails, then
// unregisters the client and calls onClose.
func (c *Client) ReadPump(handle func(*Client, []byte), onClose func(*Client)) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		if onClose != nil {
			onClose(c)
		}
	}()

	if c.config.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.config.MaxMessageSize)
	}
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.Ctx(c.ctx)
				l.Warn().Err(err).Msg("websocket read error")
			}
			break
		}

		handle(c, message)
	}
}

// WritePump drains the send buffer and keeps the connection alive with pings.
// It returns when the hub closes the buffer.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
