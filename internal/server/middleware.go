// Package server authenticates WebSocket upgrade requests before a session
// is constructed. The gatekeeper resolves a token into an identity but never
// rejects the upgrade: authentication gates room join and message send, not
// connection acceptance.
package server

import (
	"context"
	"log/slog"
	"net/http"
)

type identityContextKey struct{}

func withIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext returns the identity the gatekeeper attached to the
// request, or Anonymous when none was attached.
func IdentityFromContext(ctx context.Context) Identity {
	if identity, ok := ctx.Value(identityContextKey{}).(Identity); ok {
		return identity
	}
	return Anonymous
}

// authenticate extracts the optional token query parameter, verifies it, and
// resolves the claimed user against the directory. Every failure, including
// an absent token, downgrades the request to Anonymous and lets it through.
func (h *Handlers) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := Anonymous

		token := r.URL.Query().Get("token")
		switch {
		case token == "":
			h.log.Debug("no token provided on upgrade request",
				slog.String("path", r.URL.Path))
		default:
			claims, err := h.verifier.Verify(token)
			if err != nil {
				h.log.Warn("token rejected; continuing as anonymous",
					slog.String("path", r.URL.Path),
					slog.Any("error", err))
				break
			}
			u, err := h.users.Lookup(claims.UserID)
			if err != nil {
				h.log.Warn("token user not found; continuing as anonymous",
					slog.Uint64("user_id", claims.UserID),
					slog.Any("error", err))
				break
			}
			identity = Identity{ID: u.ID, Username: u.Username}
		}

		if identity.IsAnonymous() {
			h.log.Debug("upgrade request not authenticated",
				slog.String("path", r.URL.Path))
		} else {
			h.log.Info("upgrade request authenticated",
				slog.Uint64("user_id", identity.ID),
				slog.String("username", identity.Username))
		}

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}
