// Package server attaches resolved identities to WebSocket sessions and keeps
// the anonymous sentinel used when authentication fails or is absent.
package server

// Identity is the user identity resolved by the upgrade gatekeeper and
// attached to a session. It is immutable for the lifetime of the connection.
type Identity struct {
	ID       uint64
	Username string
}

// Anonymous is the identity of an unauthenticated or unresolved session.
var Anonymous = Identity{}

// IsAnonymous reports whether the identity is the anonymous sentinel.
// The sentinel id is 0, so a real user with id 0 would collide with it;
// inherited behavior, kept as-is.
func (i Identity) IsAnonymous() bool {
	return i.ID == 0
}
