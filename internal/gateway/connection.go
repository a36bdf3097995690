// ABOUTME: Represents one authenticated websocket connection and its write pump
// ABOUTME: Outbound frames travel through a buffered channel so a slow peer never blocks the dispatcher

package gateway

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// writeWait bounds how long a single frame write may take before the
// peer is considered dead.
const writeWait = 10 * time.Second

var errConnClosed = errors.New("connection closed")
var errSendBufferFull = errors.New("send buffer full")

// Conn is a live, authenticated connection. The room field is owned by
// the dispatcher goroutine; everything else is immutable after creation
// except the socket and channels, which are internally synchronized.
type Conn struct {
	ID          string
	ConnectedAt time.Time
	RemoteAddr  string
	ClientInfo  map[string]string

	// room is the current room code, empty when not in a room.
	// Read and written only by the dispatcher.
	room string

	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	downOnce  sync.Once
}

// newConn wraps an upgraded websocket in a Conn with a fresh id.
func newConn(ws *websocket.Conn, r *http.Request, sendBuffer int) *Conn {
	return &Conn{
		ID:          uuid.New().String(),
		ConnectedAt: time.Now(),
		RemoteAddr:  r.RemoteAddr,
		ClientInfo: map[string]string{
			"user_agent": r.UserAgent(),
		},
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// enqueue queues an outbound frame without blocking. A full buffer
// means the peer is too slow to live; the caller handles the failure by
// initiating this connection's cleanup.
func (c *Conn) enqueue(data []byte) error {
	if data == nil {
		return nil
	}
	select {
	case <-c.done:
		return errConnClosed
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// closeSocket tears down the underlying websocket. Safe to call from
// any goroutine, any number of times. Closing unblocks the read loop,
// which then schedules the dispatcher-side cleanup.
func (c *Conn) closeSocket() {
	c.closeOnce.Do(func() {
		_ = c.ws.Close()
	})
}

// shutdown stops the write pump. Called by the dispatcher after the
// connection is purged from every registry.
func (c *Conn) shutdown() {
	c.downOnce.Do(func() {
		close(c.done)
	})
}

// writePump drains the send channel onto the socket. If pingInterval is
// positive it also emits websocket pings; the read side enforces the
// matching pong deadline. Any write failure kills the socket, which
// surfaces as a read error and triggers cleanup.
func (c *Conn) writePump(pingInterval time.Duration) {
	var pingCh <-chan time.Time
	if pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		pingCh = ticker.C
	}

	defer c.closeSocket()

	for {
		select {
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-pingCh:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
