package notifications

import (
	"sync"
	"time"

	"gatehouse/internal/middleware"
	"gatehouse/internal/models"
	"gatehouse/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 16384

	sendBufferSize = 256
)

// Client is the middleman between one authenticated websocket connection and
// the room hub. Each connection gets its own session id.
type Client struct {
	SessionID     string
	ParticipantID uuid.UUID
	Role          models.Role
	Name          string

	// The websocket connection. Nil in tests.
	Conn *websocket.Conn

	// Buffered channel of outbound frames.
	Send chan []byte

	// IncomingHandler is called for each text frame read from the peer.
	IncomingHandler func(*Client, []byte)

	// OnClose runs once when the read loop ends.
	OnClose func(*Client)

	closeOnce sync.Once
}

// NewClient creates a Client for an authenticated participant.
func NewClient(conn *websocket.Conn, participantID uuid.UUID, role models.Role, name string) *Client {
	return &Client{
		SessionID:     uuid.NewString(),
		ParticipantID: participantID,
		Role:          role,
		Name:          name,
		Conn:          conn,
		Send:          make(chan []byte, sendBufferSize),
	}
}

// ID returns the session id.
func (c *Client) ID() string { return c.SessionID }

// ReadPump pumps frames from the websocket connection to IncomingHandler.
func (c *Client) ReadPump() {
	defer func() {
		if c.OnClose != nil {
			c.OnClose(c)
		}
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { _ = c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Warn("websocket read failed",
					"participant_id", c.ParticipantID, "session_id", c.SessionID, "error", err)
			}
			break
		}

		if c.IncomingHandler != nil {
			c.IncomingHandler(c, message)
		}
	}
}

// WritePump pumps frames from the send queue to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The queue was closed.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues a frame without blocking. A full or closed queue drops it.
func (c *Client) TrySend(message []byte) {
	defer func() {
		if r := recover(); r != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues("closed").Inc()
		}
	}()

	select {
	case c.Send <- message:
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues("full").Inc()
		middleware.Logger.Warn("websocket send queue full, frame dropped",
			"participant_id", c.ParticipantID, "session_id", c.SessionID)
	}
}

// Close closes the send queue, which makes WritePump send a close frame and exit.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}
