// Package server exposes the HTTP surface of the chat core: the WebSocket
// upgrade endpoint and the health check.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bookclub/friendchat/internal/auth"
	"github.com/bookclub/friendchat/internal/user"
)

// Handlers holds the injected collaborators of the HTTP layer: the room
// registry, the credential verifier, and the user directory.
type Handlers struct {
	registry *Registry
	verifier *auth.Verifier
	users    user.Directory
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandlers wires the HTTP layer. All dependencies are required.
func NewHandlers(registry *Registry, verifier *auth.Verifier, users user.Directory, log *slog.Logger) *Handlers {
	h := &Handlers{
		registry: registry,
		verifier: verifier,
		users:    users,
		log:      log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handlers) checkOrigin(r *http.Request) bool {
	if isOriginAllowed(r) {
		return true
	}
	h.log.Warn("blocked websocket connection from disallowed origin",
		slog.String("origin", r.Header.Get("Origin")))
	return false
}

// ServeWS upgrades the connection and starts a chat session. The upgrade
// always completes first; only then is the counterpart id validated, so an
// invalid id produces a protocol-level close rather than an HTTP error.
// Anonymous requests are accepted but barred from joining the room.
func (h *Handlers) ServeWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	identity := IdentityFromContext(r.Context())
	friendParam := r.PathValue("friendID")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	friendID, err := strconv.ParseUint(friendParam, 10, 64)
	if err != nil {
		h.log.Warn("invalid friend id in path", slog.String("friend_id", friendParam))
		h.closeWithCode(conn, CloseInvalidFriendID, "invalid friend id")
		return
	}

	client := NewClient(conn, h.registry, identity, r.RemoteAddr, h.log)
	client.room = NewRoomKey(identity.ID, friendID)

	h.registry.Attach(client)

	if identity.IsAnonymous() {
		if frame, err := errorFrame("Authentication required"); err == nil {
			client.reply(frame)
		}
		return
	}

	h.registry.Join(client.room, client)
	if frame, err := systemFrame(fmt.Sprintf("Connected to chat with friend %d", friendID)); err == nil {
		client.reply(frame)
	}
}

// closeWithCode completes the accept-then-reject path: the handshake is
// done, so the refusal travels as a close frame with a dedicated code.
func (h *Handlers) closeWithCode(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		if !isExpectedCloseError(err) {
			h.log.Warn("error writing close frame", slog.Any("error", err))
		}
	}
	if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
		h.log.Warn("error closing rejected connection", slog.Any("error", err))
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "friendchat server is running!")
}
