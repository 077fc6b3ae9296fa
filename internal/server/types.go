// Package server defines the JSON frame types exchanged over the chat
// WebSocket and shared helpers reused across session and registry logic.
package server

import (
	"encoding/json"
	"strings"
)

// Outbound frame discriminators.
const (
	TypeChatMessage   = "chat_message"
	TypeSystemMessage = "system_message"
)

// CloseInvalidFriendID is the close code sent when the counterpart path
// segment does not parse as a numeric id. Distinct from normal closure; the
// transport handshake still completes before the close is sent.
const CloseInvalidFriendID = 4002

// InboundMessage is the payload clients send. A missing message field is
// treated as an empty message.
type InboundMessage struct {
	Message string `json:"message"`
}

// ChatMessage is the outbound frame fanned out to every room member,
// sender included.
type ChatMessage struct {
	Message  string `json:"message"`
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
	Type     string `json:"type"`
}

// SystemMessage is an outbound frame delivered to a single session, never
// broadcast.
type SystemMessage struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ErrorMessage is the per-message error frame. Sending one never closes the
// connection.
type ErrorMessage struct {
	Error string `json:"error"`
}

func chatFrame(from Identity, text string) ([]byte, error) {
	return json.Marshal(ChatMessage{
		Message:  text,
		UserID:   from.ID,
		Username: from.Username,
		Type:     TypeChatMessage,
	})
}

func systemFrame(text string) ([]byte, error) {
	return json.Marshal(SystemMessage{Message: text, Type: TypeSystemMessage})
}

func errorFrame(text string) ([]byte, error) {
	return json.Marshal(ErrorMessage{Error: text})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
