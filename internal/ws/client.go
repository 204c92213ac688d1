package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the deadline for a single write to the peer.
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong before assuming the peer is gone.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxFrameSize bounds inbound frames.
	maxFrameSize = 16 << 10

	// sendBufferSize is the per-connection outbound queue. A full queue marks
	// the consumer as too slow and the connection is dropped.
	sendBufferSize = 64
)

// Client is one authenticated websocket connection.
type Client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte

	// done signals writePump to stop. The send channel itself is never
	// closed: the hub may still hold a reference to a dropped client and
	// call trySend on it, which must stay safe.
	done chan struct{}

	// rooms the connection joined; owned by the hub's mutex.
	rooms map[string]struct{}

	closeOnce sync.Once
}

func newClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		rooms:  make(map[string]struct{}),
	}
}

// UserID returns the authenticated user behind the connection.
func (c *Client) UserID() string { return c.userID }

// trySend queues a frame without blocking. Returns false when the connection
// is closed or the buffer is full.
func (c *Client) trySend(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close tears the connection down. Safe to call more than once, from any
// goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// writePump drains the send queue to the peer and keeps the connection alive
// with pings. One writePump goroutine per connection owns all writes.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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
