// ABOUTME: Dispatcher-owned registries: connections, rooms, event subscriptions
// ABOUTME: The single-writer queue is the lock; no mutexes, no mutation outside the worker

package gateway

import "sync/atomic"

// connRegistry tracks every live, authenticated connection by id.
// Mutated only by the dispatcher goroutine. The atomic counter exists
// so the readiness endpoint can report a count without entering the
// serialization point.
type connRegistry struct {
	conns map[string]*Conn
	count atomic.Int64
}

func newConnRegistry() *connRegistry {
	return &connRegistry{conns: make(map[string]*Conn)}
}

func (r *connRegistry) add(c *Conn) {
	r.conns[c.ID] = c
	r.count.Store(int64(len(r.conns)))
}

func (r *connRegistry) remove(id string) {
	delete(r.conns, id)
	r.count.Store(int64(len(r.conns)))
}

func (r *connRegistry) get(id string) (*Conn, bool) {
	c, ok := r.conns[id]
	return c, ok
}

func (r *connRegistry) has(id string) bool {
	_, ok := r.conns[id]
	return ok
}

// snapshot returns the eventually-consistent connection count.
// Safe from any goroutine.
func (r *connRegistry) snapshot() int {
	return int(r.count.Load())
}

// roomRegistry maps room codes to member sets. A room with zero members
// does not exist. Mutated only by the dispatcher goroutine.
type roomRegistry struct {
	rooms map[string]map[string]*Conn
}

func newRoomRegistry() *roomRegistry {
	return &roomRegistry{rooms: make(map[string]map[string]*Conn)}
}

// add inserts the connection into the room, creating it if absent.
func (r *roomRegistry) add(code string, c *Conn) {
	members, ok := r.rooms[code]
	if !ok {
		members = make(map[string]*Conn)
		r.rooms[code] = members
	}
	members[c.ID] = c
}

// remove drops the connection from the room, deleting the room if it
// becomes empty. Reports whether the connection was a member.
func (r *roomRegistry) remove(code string, c *Conn) bool {
	members, ok := r.rooms[code]
	if !ok {
		return false
	}
	if _, member := members[c.ID]; !member {
		return false
	}
	delete(members, c.ID)
	if len(members) == 0 {
		delete(r.rooms, code)
	}
	return true
}

// members returns the room's member set, or nil if the room does not exist.
func (r *roomRegistry) members(code string) map[string]*Conn {
	return r.rooms[code]
}

// counts returns member counts per room code.
func (r *roomRegistry) counts() map[string]int {
	counts := make(map[string]int, len(r.rooms))
	for code, members := range r.rooms {
		counts[code] = len(members)
	}
	return counts
}

// subscriptionRegistry maps event types to subscriber sets. An event
// type with no subscribers does not exist. Mutated only by the
// dispatcher goroutine.
type subscriptionRegistry struct {
	subs map[string]map[string]*Conn
}

func newSubscriptionRegistry() *subscriptionRegistry {
	return &subscriptionRegistry{subs: make(map[string]map[string]*Conn)}
}

// subscribe idempotently adds the connection to the event type's set.
func (r *subscriptionRegistry) subscribe(eventType string, c *Conn) {
	subscribers, ok := r.subs[eventType]
	if !ok {
		subscribers = make(map[string]*Conn)
		r.subs[eventType] = subscribers
	}
	subscribers[c.ID] = c
}

// unsubscribe idempotently removes the connection, deleting the event
// type's set if it becomes empty.
func (r *subscriptionRegistry) unsubscribe(eventType string, c *Conn) {
	subscribers, ok := r.subs[eventType]
	if !ok {
		return
	}
	delete(subscribers, c.ID)
	if len(subscribers) == 0 {
		delete(r.subs, eventType)
	}
}

// subscribers returns the subscriber set for an event type, or nil.
func (r *subscriptionRegistry) subscribers(eventType string) map[string]*Conn {
	return r.subs[eventType]
}

// dropConn removes the connection from every subscriber set.
func (r *subscriptionRegistry) dropConn(c *Conn) {
	for eventType := range r.subs {
		r.unsubscribe(eventType, c)
	}
}

// counts returns subscriber counts per event type.
func (r *subscriptionRegistry) counts() map[string]int {
	counts := make(map[string]int, len(r.subs))
	for eventType, subscribers := range r.subs {
		counts[eventType] = len(subscribers)
	}
	return counts
}
