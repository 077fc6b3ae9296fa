// Package user models the user-directory collaborator of the chat core. The
// real directory lives in the friends backend; this package defines the
// lookup contract the chat server depends on and an in-memory implementation
// for the standalone binary and for tests.
package user

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrNotFound is returned by Lookup when no user exists for the given id.
var ErrNotFound = errors.New("user: not found")

// User is a directory entry: an opaque numeric id plus a display name.
type User struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}

// Directory resolves user ids to directory entries.
type Directory interface {
	Lookup(id uint64) (User, error)
}

// InMemoryDirectory is a concurrency-safe Directory backed by a map.
type InMemoryDirectory struct {
	mu    sync.RWMutex
	users map[uint64]User
}

// NewInMemoryDirectory creates a directory seeded with the given users.
func NewInMemoryDirectory(users ...User) *InMemoryDirectory {
	d := &InMemoryDirectory{users: make(map[uint64]User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// Add inserts or replaces a directory entry.
func (d *InMemoryDirectory) Add(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

// Lookup returns the user for id, or ErrNotFound.
func (d *InMemoryDirectory) Lookup(id uint64) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// LoadFile reads a JSON array of users from path and returns a directory
// seeded with them. Used by the standalone binary to stand in for the
// friends backend.
func LoadFile(path string) (*InMemoryDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("user: reading seed file: %w", err)
	}

	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("user: parsing seed file %s: %w", path, err)
	}
	return NewInMemoryDirectory(users...), nil
}
