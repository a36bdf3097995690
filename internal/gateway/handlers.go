// ABOUTME: Action handlers executed by the dispatcher goroutine
// ABOUTME: Each mutates registry state and emits its replies within a single invocation

package gateway

import (
	"fmt"
)

// handlerFunc executes one queued action. A returned error is reported
// to the sender as "Error handling action '<action>': <detail>"; expected
// protocol and state errors are sent directly and return nil.
type handlerFunc func(c *Conn, f *inboundFrame) error

// newHandlerTable maps the closed action set to its handlers.
func (g *Gateway) newHandlerTable() map[action]handlerFunc {
	return map[action]handlerFunc{
		actionJoinRoom:      g.handleJoinRoom,
		actionLeaveRoom:     g.handleLeaveRoom,
		actionBroadcast:     g.handleBroadcast,
		actionPythonExecute: g.handlePythonExecute,
		actionPythonOutput:  g.handlePythonOutput,
		actionSubscribe:     g.handleSubscribe,
		actionUnsubscribe:   g.handleUnsubscribe,
		actionCommand:       g.handleCommand,
		actionQuery:         g.handleQuery,
	}
}

// handleConnect registers an authenticated connection and welcomes it.
func (g *Gateway) handleConnect(c *Conn) {
	g.conns.add(c)
	g.logger.Info("connection registered",
		"connection_id", c.ID,
		"remote", c.RemoteAddr,
		"total", g.conns.snapshot(),
	)
	g.sendFrame(c, welcomeFrame{
		Action:       "welcome",
		ConnectionID: c.ID,
		Message:      "Connected to Bylexa WebSocket Gateway",
	})
}

// handleDisconnect purges a closed connection from every registry,
// exactly once, and notifies its former room.
func (g *Gateway) handleDisconnect(c *Conn) {
	if !g.conns.has(c.ID) {
		return
	}

	if room, left := g.leaveCurrentRoom(c); left {
		g.logger.Debug("disconnect left room", "connection_id", c.ID, "room_code", room)
	}
	g.subs.dropConn(c)
	g.conns.remove(c.ID)
	c.shutdown()

	g.logger.Info("connection removed",
		"connection_id", c.ID,
		"total", g.conns.snapshot(),
	)
}

// leaveCurrentRoom removes the connection from its room, deleting the
// room if emptied, and broadcasts the "left" event to remaining members.
// Reports the room code and whether the connection was in a room.
func (g *Gateway) leaveCurrentRoom(c *Conn) (string, bool) {
	if c.room == "" {
		return "", false
	}
	code := c.room
	g.rooms.remove(code, c)
	c.room = ""

	g.broadcastToRoom(code, marshalFrame(roomEventFrame{
		Action:       "room_event",
		Event:        "left",
		ConnectionID: c.ID,
		RoomCode:     code,
	}), c.ID)
	return code, true
}

func (g *Gateway) handleJoinRoom(c *Conn, f *inboundFrame) error {
	if f.RoomCode == "" {
		g.sendError(c, "Missing 'room_code' field")
		return nil
	}

	// Leave the old room first so a rejoin of the same room stays consistent.
	g.leaveCurrentRoom(c)

	g.rooms.add(f.RoomCode, c)
	c.room = f.RoomCode

	g.sendFrame(c, roomJoinedFrame{
		Action:   "room_joined",
		RoomCode: f.RoomCode,
		Members:  len(g.rooms.members(f.RoomCode)),
	})

	g.broadcastToRoom(f.RoomCode, marshalFrame(roomEventFrame{
		Action:       "room_event",
		Event:        "joined",
		ConnectionID: c.ID,
		RoomCode:     f.RoomCode,
	}), c.ID)

	g.logger.Debug("room joined", "connection_id", c.ID, "room_code", f.RoomCode)
	return nil
}

func (g *Gateway) handleLeaveRoom(c *Conn, _ *inboundFrame) error {
	if c.room == "" {
		g.sendError(c, "Not in a room")
		return nil
	}
	code, _ := g.leaveCurrentRoom(c)

	g.sendFrame(c, roomLeftFrame{
		Action:   "room_left",
		RoomCode: code,
	})
	return nil
}

func (g *Gateway) handleBroadcast(c *Conn, f *inboundFrame) error {
	target := f.RoomCode
	if target == "" {
		target = c.room
	}
	if target == "" {
		g.sendError(c, "Not in a room and no 'room_code' specified")
		return nil
	}
	if g.rooms.members(target) == nil {
		g.sendError(c, fmt.Sprintf("Room %s does not exist", target))
		return nil
	}

	// Senders are excluded unless they explicitly ask for self-delivery.
	exclude := c.ID
	if f.ExcludeSelf != nil && !*f.ExcludeSelf {
		exclude = ""
	}

	g.broadcastToRoom(target, marshalFrame(broadcastFrame{
		Action:   "broadcast",
		Sender:   c.ID,
		Message:  f.Message,
		Command:  f.Command,
		RoomCode: target,
	}), exclude)
	return nil
}

func (g *Gateway) handlePythonExecute(c *Conn, f *inboundFrame) error {
	if f.Code == "" {
		g.sendError(c, "Missing 'code' field")
		return nil
	}

	target := f.RoomCode
	if target == "" {
		target = c.room
	}
	// Relay is best-effort: no resolvable room means nothing to do.
	if target == "" || g.rooms.members(target) == nil {
		return nil
	}

	g.broadcastToRoom(target, marshalFrame(pythonExecuteFrame{
		Action: "python_execute",
		Code:   f.Code,
		Sender: c.ID,
	}), c.ID)
	return nil
}

func (g *Gateway) handlePythonOutput(c *Conn, f *inboundFrame) error {
	if emptyValue(f.Result) {
		g.sendError(c, "Missing 'result' field")
		return nil
	}

	// Dropped silently when the original sender is gone.
	origin, ok := g.conns.get(f.OriginalSender)
	if !ok {
		return nil
	}

	g.sendFrame(origin, pythonResultFrame{
		Action:   "python_result",
		Result:   f.Result,
		Executor: c.ID,
		Code:     f.Code,
	})
	return nil
}

func (g *Gateway) handleSubscribe(c *Conn, f *inboundFrame) error {
	if f.EventType == "" {
		g.sendError(c, "Missing 'event_type' field")
		return nil
	}

	g.subs.subscribe(f.EventType, c)

	g.sendFrame(c, subscribedFrame{
		Action:    "subscribed",
		EventType: f.EventType,
	})
	return nil
}

func (g *Gateway) handleUnsubscribe(c *Conn, f *inboundFrame) error {
	if f.EventType == "" {
		g.sendError(c, "Missing 'event_type' field")
		return nil
	}

	g.subs.unsubscribe(f.EventType, c)

	g.sendFrame(c, subscribedFrame{
		Action:    "unsubscribed",
		EventType: f.EventType,
	})
	return nil
}

func (g *Gateway) handleCommand(c *Conn, f *inboundFrame) error {
	command, ok := f.Command.(string)
	if !ok || command == "" {
		g.sendError(c, "Missing 'command' field")
		return nil
	}

	// A re-delivered command (same sender, message_id, and text) is a
	// retry after a lost reply: answer it from the reply cache instead
	// of running the interpreter again. Side effects are not re-fired.
	var dedupeKey string
	if f.MessageID != "" {
		dedupeKey = c.ID + ":" + f.MessageID + ":" + command
		if cached, ok := g.dedupe.Get(dedupeKey); ok {
			if data, ok := cached.([]byte); ok {
				g.logger.Debug("duplicate command, replaying cached result",
					"connection_id", c.ID,
					"message_id", f.MessageID,
				)
				g.deliver(c, data)
				return nil
			}
		}
	}

	result, err := g.interp.ProcessText(g.baseCtx, command)
	if err != nil {
		return fmt.Errorf("processing command: %w", err)
	}

	reply := marshalFrame(commandResultFrame{
		Action:    "command_result",
		Result:    result,
		MessageID: f.MessageID,
	})
	if dedupeKey != "" {
		g.dedupe.Put(dedupeKey, reply)
	}
	g.deliver(c, reply)

	if f.BroadcastEvent {
		eventType := f.EventType
		if eventType == "" {
			eventType = "command"
		}
		g.publishEvent(eventType, map[string]any{
			"command": command,
			"result":  result,
			"sender":  c.ID,
		})
	}
	return nil
}

func (g *Gateway) handleQuery(c *Conn, f *inboundFrame) error {
	if f.QueryType == "" {
		g.sendError(c, "Missing 'query_type' field")
		return nil
	}

	// Built as a map so each query type contributes exactly its own
	// keys, empty maps included.
	response := map[string]any{
		"action":     "query_result",
		"query_type": f.QueryType,
	}

	switch f.QueryType {
	case "rooms":
		response["rooms"] = g.rooms.counts()
	case "connections":
		// Registration happens only after authentication, so every
		// tracked connection is authenticated.
		response["count"] = len(g.conns.conns)
		response["authenticated"] = len(g.conns.conns)
	case "subscribers":
		response["subscribers"] = g.subs.counts()
	default:
		response["error"] = fmt.Sprintf("Unknown query type: %s", f.QueryType)
	}

	g.sendFrame(c, response)
	return nil
}
