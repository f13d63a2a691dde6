package signaling

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame or control message to the peer.
	writeWait = 10 * time.Second

	// Outbound frames queued per connection before sends start failing.
	sendQueueSize = 64
)

// Handle is the registry's view of one client connection: deliver a
// serialized frame, or close with a reason code. The concrete type is Conn;
// router and registry tests substitute fakes.
type Handle interface {
	Send(frame []byte) error
	Close(code int, reason string)
}

// Conn wraps one client's websocket connection. Frames are queued on a
// buffered channel and drained by a single writer goroutine, so Send never
// blocks on network I/O; write failures surface on the connection itself
// (the read loop observes the closed socket), not on the Send call.
type Conn struct {
	ws  *websocket.Conn
	log *slog.Logger

	sendCh chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func NewConn(ws *websocket.Conn, log *slog.Logger) *Conn {
	return &Conn{
		ws:     ws,
		log:    log,
		sendCh: make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// Send queues one text frame for delivery. It fails only when the connection
// is already closed or the peer is too slow to drain its queue.
func (c *Conn) Send(frame []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.sendCh <- frame:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendQueueFull
	}
}

// Close sends a close frame with the given code and reason and tears the
// connection down. Safe to call multiple times; only the first wins.
func (c *Conn) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(code, reason)
		if err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
			c.log.Debug("write close frame", "err", err)
		}
		close(c.done)
		_ = c.ws.Close()
	})
}

// WritePump drains the send queue onto the websocket and emits keepalive
// pings. It runs in its own goroutine and exits when the connection closes
// or a write fails; a failed write closes the socket, which the read loop
// observes as connection teardown.
func (c *Conn) WritePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.sendCh:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("write frame", "err", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
