// Package gateway is the realtime connection gateway of bylexa-gateway.
//
// # Overview
//
// The gateway accepts persistent websocket connections, authenticates
// them at handshake time, and tracks two kinds of shared state: rooms
// (named groups of connections that receive each other's broadcasts)
// and event subscriptions (per-event-type interest lists).
//
// # Wire Protocol
//
// Each frame is one JSON object tagged by its "action" field. Inbound
// actions: join_room, leave_room, broadcast, python_execute,
// python_output, subscribe, unsubscribe, command, query. Outbound kinds
// include welcome, error, room_joined, room_left, room_event,
// broadcast, subscribed, unsubscribed, event, command_result,
// python_execute, python_result, and query_result.
//
// # Concurrency Model
//
// Reception is concurrent: every connection has its own read loop that
// decodes frames and enqueues work. Execution is not: a single
// dispatcher goroutine drains one global FIFO queue and runs handlers
// one at a time, so every mutation of connection, room, and
// subscription state is totally ordered without per-structure locks.
// The queue is the lock. Outbound frames go through per-connection
// buffered channels drained by write pumps, so a slow peer never
// blocks the dispatcher; a dead peer's delivery failure silently
// triggers that peer's own cleanup.
//
// # Failure Isolation
//
// Nothing raised inside a handler terminates the dispatcher. Malformed
// frames, unknown actions, and state errors are answered with error
// frames on the offending connection; other connections never observe
// a peer's failure.
//
// # Key Files
//
//   - gateway.go: Gateway struct, handshake gate, Run/Shutdown
//   - dispatcher.go: the ordered queue and its single consumer
//   - handlers.go: one handler per inbound action
//   - registry.go: connection, room, and subscription registries
//   - connection.go: per-connection state and write pump
//   - frames.go: the closed action set and frame definitions
package gateway
