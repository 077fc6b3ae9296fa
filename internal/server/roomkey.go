// Package server derives the canonical room identifier for a pairwise chat.
package server

import "fmt"

// RoomKey identifies the room shared by two participants. The pair is stored
// ordered, so the key is independent of which side initiated the connection.
type RoomKey struct {
	Low  uint64
	High uint64
}

// NewRoomKey returns the canonical key for the unordered pair (a, b).
// NewRoomKey(a, b) == NewRoomKey(b, a) for all a, b.
func NewRoomKey(a, b uint64) RoomKey {
	if a > b {
		a, b = b, a
	}
	return RoomKey{Low: a, High: b}
}

// String renders the key in the chat_<low>_<high> form used in logs.
func (k RoomKey) String() string {
	return fmt.Sprintf("chat_%d_%d", k.Low, k.High)
}
