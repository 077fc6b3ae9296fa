package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRoomKeySymmetric(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
	}{
		{"distinct ids", 5, 9},
		{"reversed", 9, 5},
		{"equal ids", 7, 7},
		{"anonymous sentinel", 0, 12},
		{"large ids", 1<<63 + 1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			req.Equal(NewRoomKey(tt.a, tt.b), NewRoomKey(tt.b, tt.a))
			req.LessOrEqual(NewRoomKey(tt.a, tt.b).Low, NewRoomKey(tt.a, tt.b).High)
		})
	}
}

func TestNewRoomKeyDeterministic(t *testing.T) {
	req := require.New(t)
	first := NewRoomKey(5, 9)
	for i := 0; i < 100; i++ {
		req.Equal(first, NewRoomKey(5, 9))
	}
}

func TestRoomKeyString(t *testing.T) {
	req := require.New(t)
	req.Equal("chat_5_9", NewRoomKey(9, 5).String())
	req.Equal("chat_0_12", NewRoomKey(12, 0).String())
}
