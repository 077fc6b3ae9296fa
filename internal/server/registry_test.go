package server

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient builds a session without a physical connection and registers
// it directly, skipping Attach so no pump goroutines are started.
func newTestClient(reg *Registry, id uint64) *Client {
	c := NewClient(nil, reg, Identity{ID: id, Username: "user"}, "test", discardLogger())
	reg.mu.Lock()
	reg.sessions[c] = struct{}{}
	reg.mu.Unlock()
	return c
}

func TestJoinIsIdempotent(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(discardLogger())
	key := NewRoomKey(5, 9)
	c := newTestClient(reg, 5)

	reg.Join(key, c)
	reg.Join(key, c)

	req.Equal(1, reg.MemberCount(key))
	req.True(c.joined)
}

func TestLeaveNonMemberIsNoOp(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(discardLogger())
	key := NewRoomKey(5, 9)
	c := newTestClient(reg, 5)

	// Leaving a room that does not exist must not panic or mutate anything.
	reg.Leave(key, c)
	req.Equal(0, reg.MemberCount(key))

	other := newTestClient(reg, 9)
	reg.Join(key, other)
	reg.Leave(key, c)
	req.Equal(1, reg.MemberCount(key))
}

func TestLeaveRemovesMemberAndPrunesRoom(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(discardLogger())
	key := NewRoomKey(5, 9)
	c := newTestClient(reg, 5)

	reg.Join(key, c)
	reg.Leave(key, c)
	req.Equal(0, reg.MemberCount(key))

	reg.mu.RLock()
	_, exists := reg.rooms[key]
	reg.mu.RUnlock()
	req.False(exists)
}

func TestBroadcastReachesAllMembersIncludingSender(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(discardLogger())
	key := NewRoomKey(5, 9)
	a := newTestClient(reg, 5)
	b := newTestClient(reg, 9)
	reg.Join(key, a)
	reg.Join(key, b)

	payload := []byte(`{"message":"hi","user_id":5,"username":"u5","type":"chat_message"}`)
	reg.Broadcast(key, payload, a.identity)

	req.Equal(payload, <-a.send)
	req.Equal(payload, <-b.send)
}

func TestBroadcastScopedToRoom(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(discardLogger())
	a := newTestClient(reg, 5)
	outsider := newTestClient(reg, 30)
	reg.Join(NewRoomKey(5, 9), a)
	reg.Join(NewRoomKey(30, 31), outsider)

	reg.Broadcast(NewRoomKey(5, 9), []byte("hello"), a.identity)

	req.Len(a.send, 1)
	req.Empty(outsider.send)
}

func TestBroadcastToEmptyRoomIsNoOp(t *testing.T) {
	reg := NewRegistry(discardLogger())
	// Must not panic or block.
	reg.Broadcast(NewRoomKey(1, 2), []byte("nobody home"), Identity{ID: 1})
}

func TestBroadcastIsolatesSlowConsumer(t *testing.T) {
	req := require.New(t)

	cfg := NewConfig()
	cfg.SendBufferSize = 1
	SetConfig(cfg)
	t.Cleanup(func() { SetConfig(nil) })

	reg := NewRegistry(discardLogger())
	key := NewRoomKey(5, 9)
	slow := newTestClient(reg, 5)
	healthy := newTestClient(reg, 9)
	reg.Join(key, slow)
	reg.Join(key, healthy)

	// Fill the slow consumer's buffer so the next delivery to it fails.
	slow.send <- []byte("backlog")

	reg.Broadcast(key, []byte("fresh"), healthy.identity)

	// The healthy member still got the message.
	req.Equal([]byte("fresh"), <-healthy.send)

	// The slow one was detached: gone from the room, send channel closed
	// behind the backlog.
	req.Equal(1, reg.MemberCount(key))
	req.Equal([]byte("backlog"), <-slow.send)
	_, open := <-slow.send
	req.False(open)
}

func TestDetachIsIdempotent(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(discardLogger())
	key := NewRoomKey(5, 9)
	c := newTestClient(reg, 5)
	reg.Join(key, c)

	reg.Detach(c)
	req.Equal(0, reg.MemberCount(key))
	req.Equal(0, reg.SessionCount())

	// Second detach must not close the channel twice or panic.
	reg.Detach(c)
}

func TestDetachOfNeverJoinedSession(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(discardLogger())
	c := newTestClient(reg, 0)
	c.room = NewRoomKey(0, 9)

	// Anonymous sessions attach but never join; detach must leave the room
	// table untouched.
	reg.Detach(c)
	req.Equal(0, reg.MemberCount(NewRoomKey(0, 9)))
	req.Equal(0, reg.SessionCount())
}

func TestSafeSendToUnattachedSessionFails(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(discardLogger())
	c := NewClient(nil, reg, Identity{ID: 5}, "test", discardLogger())

	req.False(reg.safeSend(c, []byte("x")))
	req.Empty(c.send)
}
