package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterBurst(t *testing.T) {
	req := require.New(t)
	rl := newRateLimiter(3, time.Second)

	for i := 0; i < 3; i++ {
		req.True(rl.allow(), "burst message %d should pass", i)
	}
	req.False(rl.allow(), "message beyond burst should be rejected")
}

func TestRateLimiterRefills(t *testing.T) {
	req := require.New(t)
	rl := newRateLimiter(2, 100*time.Millisecond)

	req.True(rl.allow())
	req.True(rl.allow())
	req.False(rl.allow())

	time.Sleep(120 * time.Millisecond)
	req.True(rl.allow(), "bucket should refill after the interval")
}

func TestRateLimiterZeroConfigFallbacks(t *testing.T) {
	req := require.New(t)
	rl := newRateLimiter(0, 0)
	req.True(rl.allow())
}
