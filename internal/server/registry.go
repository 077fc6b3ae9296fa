// Package server coordinates room membership, message fan-out, and session
// cleanup for the friendchat WebSocket system via the Registry type.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Registry tracks which sessions belong to which room and fans messages out
// to room members. It is the only shared mutable resource between connection
// goroutines; all operations are safe for concurrent use. Instances are
// injected into handlers rather than held in a package-level singleton.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[RoomKey]map[*Client]struct{}
	sessions map[*Client]struct{}
	wg       sync.WaitGroup
	log      *slog.Logger
}

// NewRegistry creates an empty Registry. The logger must not be nil.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		rooms:    make(map[RoomKey]map[*Client]struct{}),
		sessions: make(map[*Client]struct{}),
		log:      log,
	}
}

// Attach registers a live session with the registry and starts its read and
// write pumps. Every accepted connection is attached, joined to a room or
// not, so shutdown can reach it.
func (reg *Registry) Attach(c *Client) {
	reg.mu.Lock()
	c.closed = false
	reg.sessions[c] = struct{}{}
	sessionCount := len(reg.sessions)
	reg.mu.Unlock()

	reg.log.Debug("session attached",
		slog.String("session_id", c.sessionID),
		slog.Int("sessions", sessionCount))

	reg.wg.Add(2)
	go func() {
		defer reg.wg.Done()
		c.writePump()
	}()
	go func() {
		defer reg.wg.Done()
		c.readPump()
	}()
}

// Detach removes a session from the registry, leaving its room if it ever
// joined one, and closes its send channel. Detaching a session that was
// never attached, or detaching twice, is a no-op, so concurrent close paths
// converge on exactly one cleanup.
func (reg *Registry) Detach(c *Client) {
	reg.mu.Lock()
	if _, ok := reg.sessions[c]; !ok {
		reg.mu.Unlock()
		return
	}
	delete(reg.sessions, c)
	if c.joined {
		reg.removeMemberLocked(c.room, c)
	}
	c.closed = true
	sessionCount := len(reg.sessions)
	reg.mu.Unlock()

	// Close the channel after releasing the lock.
	close(c.send)
	reg.log.Debug("session detached",
		slog.String("session_id", c.sessionID),
		slog.Int("sessions", sessionCount))
}

// Join adds a session to the member set of key. Joining a room the session
// is already a member of is a no-op.
func (reg *Registry) Join(key RoomKey, c *Client) {
	reg.mu.Lock()
	members, ok := reg.rooms[key]
	if !ok {
		members = make(map[*Client]struct{})
		reg.rooms[key] = members
	}
	members[c] = struct{}{}
	c.joined = true
	memberCount := len(members)
	reg.mu.Unlock()

	reg.log.Info("session joined room",
		slog.String("room", key.String()),
		slog.String("session_id", c.sessionID),
		slog.Uint64("user_id", c.identity.ID),
		slog.Int("members", memberCount))
}

// Leave removes a session from the member set of key. Removing a non-member
// or leaving a room that does not exist is a no-op, not an error.
func (reg *Registry) Leave(key RoomKey, c *Client) {
	reg.mu.Lock()
	reg.removeMemberLocked(key, c)
	reg.mu.Unlock()
}

func (reg *Registry) removeMemberLocked(key RoomKey, c *Client) {
	members, ok := reg.rooms[key]
	if !ok {
		return
	}
	if _, ok := members[c]; !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(reg.rooms, key)
	}
}

// Broadcast delivers payload to every current member of key, sender
// included. A failed delivery to one member never aborts delivery to the
// rest; members whose buffers are full are detached and torn down.
func (reg *Registry) Broadcast(key RoomKey, payload []byte, from Identity) {
	members := reg.memberSnapshot(key)

	reg.log.Debug("broadcasting message",
		slog.String("room", key.String()),
		slog.Uint64("from", from.ID),
		slog.Int("members", len(members)))

	var failed []*Client
	for _, member := range members {
		if !reg.safeSend(member, payload) {
			failed = append(failed, member)
		}
	}
	reg.dropFailed(failed)
}

// memberSnapshot returns a point-in-time copy of the member set so fan-out
// iterates without holding the lock against join/leave.
func (reg *Registry) memberSnapshot(key RoomKey) []*Client {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return lo.Keys(reg.rooms[key])
}

// safeSend attempts a bounded, non-blocking delivery to a single recipient.
// A slow consumer with a full buffer fails its own delivery without stalling
// fan-out to the other members.
func (reg *Registry) safeSend(c *Client, payload []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			reg.log.Warn("recovered from send on closed session", slog.Any("panic", r))
		}
	}()

	reg.mu.RLock()
	defer reg.mu.RUnlock()

	if _, ok := reg.sessions[c]; !ok || c.closed {
		return false
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// dropFailed detaches recipients that could not be delivered to and closes
// their send channels so their write pumps terminate.
func (reg *Registry) dropFailed(failed []*Client) {
	if len(failed) == 0 {
		return
	}

	reg.mu.Lock()
	var channelsToClose []chan []byte
	for _, c := range failed {
		if _, ok := reg.sessions[c]; !ok {
			continue
		}
		delete(reg.sessions, c)
		if c.joined {
			reg.removeMemberLocked(c.room, c)
		}
		c.closed = true
		channelsToClose = append(channelsToClose, c.send)
		reg.log.Warn("session dropped due to full send buffer",
			slog.String("session_id", c.sessionID),
			slog.String("room", c.room.String()))
	}
	reg.mu.Unlock()

	for _, ch := range channelsToClose {
		close(ch)
	}
}

// MemberCount returns the current number of members in the room for key.
func (reg *Registry) MemberCount(key RoomKey) int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms[key])
}

// SessionCount returns the number of attached sessions, joined or not.
func (reg *Registry) SessionCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.sessions)
}

// Shutdown closes every attached session's connection and waits for all pump
// goroutines to finish, or until the timeout is reached.
func (reg *Registry) Shutdown(timeout time.Duration) error {
	reg.mu.Lock()
	sessions := lo.Keys(reg.sessions)
	reg.mu.Unlock()

	reg.log.Info("shutting down sessions", slog.Int("count", len(sessions)))

	for _, c := range sessions {
		if c.conn == nil {
			continue
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			reg.log.Warn("error closing session connection",
				slog.String("session_id", c.sessionID),
				slog.Any("error", err))
		}
	}

	done := make(chan struct{})
	go func() {
		reg.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		reg.log.Info("registry shutdown completed")
		return nil
	case <-time.After(timeout):
		reg.log.Warn("registry shutdown timeout reached")
		return context.DeadlineExceeded
	}
}
