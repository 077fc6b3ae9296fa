package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func requestWithOrigin(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws/friends/chat/9", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestNormalizeOrigin(t *testing.T) {
	tests := []struct {
		name     string
		origin   string
		expected string
		ok       bool
	}{
		{"plain http", "http://example.com", "http://example.com", true},
		{"uppercase host", "HTTP://Example.COM", "http://example.com", true},
		{"with port", "http://example.com:8080", "http://example.com:8080", true},
		{"missing scheme", "example.com", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			normalized, ok := normalizeOrigin(tt.origin)
			require.Equal(t, tt.ok, ok)
			if ok {
				require.Equal(t, tt.expected, normalized)
			}
		})
	}
}

func TestIsOriginAllowed(t *testing.T) {
	cfg := NewConfig()
	cfg.AllowedOrigins = []string{"http://allowed.example"}
	SetConfig(cfg)
	t.Cleanup(func() { SetConfig(nil) })

	req := require.New(t)
	req.True(isOriginAllowed(requestWithOrigin("http://allowed.example")))
	req.True(isOriginAllowed(requestWithOrigin("HTTP://ALLOWED.EXAMPLE")))
	req.False(isOriginAllowed(requestWithOrigin("http://other.example")))
	req.False(isOriginAllowed(requestWithOrigin("")))
}

func TestIsOriginAllowedWildcard(t *testing.T) {
	cfg := NewConfig()
	cfg.AllowedOrigins = []string{"*"}
	SetConfig(cfg)
	t.Cleanup(func() { SetConfig(nil) })

	req := require.New(t)
	req.True(isOriginAllowed(requestWithOrigin("http://anything.example")))
	// A wildcard still requires the header to be present and well formed.
	req.False(isOriginAllowed(requestWithOrigin("")))
	req.False(isOriginAllowed(requestWithOrigin("not-a-url")))
}
