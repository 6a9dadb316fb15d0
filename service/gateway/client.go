package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"estategate/logger"
)

// Client is one live session admitted by the gateway. A single identity
// may hold several clients (multi-device), each with its own send queue
// drained by a single writer goroutine.
type Client struct {
	ConnID      string
	Identity    Identity
	ConnectedAt time.Time

	ws   *websocket.Conn
	Send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(connID string, identity Identity, ws *websocket.Conn, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 256
	}
	return &Client{
		ConnID:      connID,
		Identity:    identity,
		ConnectedAt: time.Now(),
		ws:          ws,
		Send:        make(chan []byte, sendQueueSize),
		done:        make(chan struct{}),
	}
}

// Enqueue offers a payload to the send queue without blocking. A full
// queue means a slow consumer; the frame is dropped for this client only
// and delivery to everyone else is unaffected.
func (c *Client) Enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- payload:
		return true
	default:
		logger.Warnf("[client] send queue full, drop frame conn=%s user=%s", c.ConnID, c.Identity.ID)
		return false
	}
}

// Close is idempotent; it stops the writer pump and closes the socket.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

func (c *Client) Done() <-chan struct{} { return c.done }

// writePump is the only goroutine allowed to write to the socket. It
// drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump(writeTimeout, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.Send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Infof("[client] write err conn=%s: %v", c.ConnID, err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
