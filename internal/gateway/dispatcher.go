// ABOUTME: Single-consumer dispatcher: every state mutation flows through one ordered queue
// ABOUTME: Reception is concurrent, execution is strictly FIFO; the queue is the lock

package gateway

import (
	"fmt"
)

// itemKind distinguishes client actions from lifecycle work items.
type itemKind int

const (
	itemAction itemKind = iota
	itemConnect
	itemDisconnect
)

// workItem is one unit of dispatcher work. Lifecycle items carry no frame.
type workItem struct {
	kind   itemKind
	conn   *Conn
	action action
	frame  *inboundFrame
}

// enqueue pushes a work item onto the global queue, blocking while the
// queue is full (backpressure on the reader, never reordering) and
// giving up on shutdown.
func (g *Gateway) enqueue(item workItem) {
	select {
	case g.queue <- item:
	case <-g.shutdownCh:
	}
}

// runDispatcher drains the queue and executes handlers one at a time.
// Nothing raised inside a handler terminates this loop.
func (g *Gateway) runDispatcher() {
	defer close(g.dispatcherDone)
	for {
		select {
		case <-g.shutdownCh:
			return
		case item := <-g.queue:
			g.process(item)
		}
	}
}

// process executes one work item, converting any handler failure into
// an error frame for the originating connection.
func (g *Gateway) process(item workItem) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("handler panic",
				"action", string(item.action),
				"connection_id", item.conn.ID,
				"panic", r,
			)
			g.sendError(item.conn, fmt.Sprintf("Error handling action '%s': %v", item.action, r))
		}
	}()

	switch item.kind {
	case itemConnect:
		g.handleConnect(item.conn)
	case itemDisconnect:
		g.handleDisconnect(item.conn)
	case itemAction:
		handler, ok := g.handlers[item.action]
		if !ok {
			// Unknown actions are rejected at parse time; reaching here
			// means the closed set and the handler table disagree.
			g.sendError(item.conn, fmt.Sprintf("Unknown action: %s", item.action))
			return
		}
		if err := handler(item.conn, item.frame); err != nil {
			g.logger.Error("handler failed",
				"action", string(item.action),
				"connection_id", item.conn.ID,
				"error", err,
			)
			g.sendError(item.conn, fmt.Sprintf("Error handling action '%s': %s", item.action, err))
		}
	}
}

// dispatch validates one raw wire message from the connection's read
// loop. Parse failures are answered directly from the receive path;
// recognized frames join the global FIFO queue.
func (g *Gateway) dispatch(c *Conn, data []byte) {
	act, frame, err := parseFrame(data)
	if err != nil {
		g.sendError(c, err.Error())
		return
	}
	g.enqueue(workItem{kind: itemAction, conn: c, action: act, frame: frame})
}
