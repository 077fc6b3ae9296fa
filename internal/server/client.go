// Package server manages individual WebSocket sessions, handling read/write
// pumps, inbound message routing, rate limiting, and lifecycle control for
// each connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds every write to a peer, including pings and closes.
	writeWait = 10 * time.Second
	// pongWait is the read deadline refreshed on every pong.
	pongWait = 60 * time.Second
	// pingInterval must be shorter than pongWait.
	pingInterval = 54 * time.Second
)

// Client is one WebSocket session. It owns the physical connection, carries
// the identity resolved by the upgrade gatekeeper, and is bound to a single
// room for its whole lifetime. Anonymous sessions stay connected but never
// join the registry and never broadcast.
type Client struct {
	conn           *websocket.Conn
	send           chan []byte
	registry       *Registry
	identity       Identity
	room           RoomKey
	joined         bool
	closed         bool
	sessionID      string
	addr           string
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
	log            *slog.Logger
}

// NewClient creates a session for conn with the given resolved identity.
// The send channel is buffered so one slow consumer cannot stall room
// fan-out; the buffer size comes from configuration.
func NewClient(conn *websocket.Conn, registry *Registry, identity Identity, addr string, log *slog.Logger) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	sessionID := uuid.NewString()
	return &Client{
		conn:           conn,
		send:           make(chan []byte, cfg.SendBufferSize),
		registry:       registry,
		identity:       identity,
		sessionID:      sessionID,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
		log: log.With(
			slog.String("session_id", sessionID),
			slog.String("remote_addr", addr),
			slog.Uint64("user_id", identity.ID)),
	}
}

// Identity returns the identity attached to the session by the gatekeeper.
func (c *Client) Identity() Identity {
	return c.identity
}

// Room returns the room key the session computed on join.
func (c *Client) Room() RoomKey {
	return c.room
}

// reply delivers a frame to this session only, through the registry's
// guarded send so a concurrently torn-down session is a safe no-op.
func (c *Client) reply(payload []byte) {
	if !c.registry.safeSend(c, payload) {
		c.log.Debug("dropped reply to closed or backpressured session")
	}
}

// setupReadConnection configures the read deadline and pong handler.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("error setting initial read deadline", slog.Any("error", err))
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("error setting read deadline in pong handler", slog.Any("error", err))
		}
		return nil
	})
}

// logReadError classifies and logs the error that ended the read loop.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("inbound message exceeded maximum size",
			slog.Int64("max_message_size", c.maxMessageSize))
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Debug("session disconnected", slog.Any("error", err))
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		c.log.Debug("session connection closed", slog.Any("error", err))
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn("unexpected websocket error", slog.Any("error", err))
	default:
		c.log.Warn("websocket read error", slog.Any("error", err))
	}
}

// checkRateLimit reports whether the next inbound frame may be processed.
// An over-limit frame is discarded, and the sender is told why; the
// connection stays open.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.log.Warn("rate limit exceeded; discarding message",
			slog.Int("burst", c.rateLimit.Burst),
			slog.Duration("refill_interval", c.rateLimit.RefillInterval))
		if frame, err := errorFrame("Rate limit exceeded"); err == nil {
			c.reply(frame)
		}
		return false
	}
	return true
}

// route parses one inbound frame and dispatches it. A malformed frame earns
// a single error frame back to the sender; an anonymous sender earns an
// authentication notice; neither closes the connection. Valid messages from
// authenticated sessions are broadcast to the room, sender included.
func (c *Client) route(raw []byte) {
	var in InboundMessage
	if err := json.Unmarshal(raw, &in); err != nil {
		c.log.Debug("invalid inbound frame", slog.Any("error", err))
		if frame, err := errorFrame("Invalid message format"); err == nil {
			c.reply(frame)
		}
		return
	}

	if c.identity.IsAnonymous() {
		if frame, err := errorFrame("Authentication required"); err == nil {
			c.reply(frame)
		}
		return
	}

	frame, err := chatFrame(c.identity, in.Message)
	if err != nil {
		c.log.Error("error encoding chat frame", slog.Any("error", err))
		return
	}
	c.registry.Broadcast(c.room, frame, c.identity)
}

// readPump reads inbound frames until the connection dies, preserving FIFO
// order per sender. Cleanup runs exactly once no matter which path detects
// the close first, because Detach is idempotent.
func (c *Client) readPump() {
	defer func() {
		c.registry.Detach(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("error closing connection in readPump", slog.Any("error", err))
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			break
		}

		if !c.checkRateLimit() {
			continue
		}

		c.route(raw)
	}
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with periodic pings. Each frame is written as its own text message
// so recipients always see whole JSON documents.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Warn("error setting write deadline", slog.Any("error", err))
				return
			}
			if !ok {
				c.writeCloseMessage()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				if !isExpectedCloseError(err) {
					c.log.Warn("error writing message", slog.Any("error", err))
				}
				return
			}
		case <-ticker.C:
			if !c.ping() {
				return
			}
		}
	}
}

// closeConnection closes the underlying connection, tolerating the expected
// already-closed errors.
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Warn("error closing connection in writePump", slog.Any("error", err))
	}
}

// writeCloseMessage tells the peer the server is done sending.
func (c *Client) writeCloseMessage() {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error writing close message", slog.Any("error", err))
		}
	}
}

// ping sends a keepalive and reports whether the pump should continue.
func (c *Client) ping() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("error setting write deadline for ping", slog.Any("error", err))
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error writing ping message", slog.Any("error", err))
		}
		return false
	}
	return true
}
