package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewClientCarriesIdentityAndRoom(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(discardLogger())
	identity := Identity{ID: 5, Username: "u5"}

	c := NewClient(nil, reg, identity, "test", discardLogger())
	c.room = NewRoomKey(identity.ID, 9)

	req.Equal(identity, c.Identity())
	req.False(c.Identity().IsAnonymous())
	req.Equal(NewRoomKey(9, 5), c.Room())
}

func TestNewClientAnonymousIdentity(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(discardLogger())

	c := NewClient(nil, reg, Anonymous, "test", discardLogger())
	req.True(c.Identity().IsAnonymous())
}
