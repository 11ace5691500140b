// Package server defines the wire-level frame and event types exchanged
// with chat clients, plus shared helpers reused across client and hub logic.
package server

import "strings"

// Frame types accepted from clients once authenticated.
const (
	FrameJoin    = "join"
	FrameLeave   = "leave"
	FrameTyping  = "typing"
	FrameMessage = "message"
)

// Close codes sent when the handshake token is rejected.
const (
	CloseNoToken      = 4001
	CloseInvalidToken = 4002
)

// Frame is one inbound JSON message from a client.
type Frame struct {
	Type     string `json:"type" validate:"required,oneof=join leave typing message"`
	Room     string `json:"room" validate:"required"`
	Username string `json:"username"`
	Message  string `json:"message"`
	Typing   bool   `json:"typing"`
}

// UserListUpdate carries the full membership snapshot of a room. Snapshots
// rather than deltas let a client recover state after missed events.
type UserListUpdate struct {
	Type  string   `json:"type"`
	Room  string   `json:"room"`
	Users []string `json:"users"`
}

func NewUserListUpdate(room string, users []string) UserListUpdate {
	return UserListUpdate{Type: "userListUpdate", Room: room, Users: users}
}

// TypingEvent is relayed verbatim to the other members of a room.
type TypingEvent struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Room     string `json:"room"`
	Typing   bool   `json:"typing"`
}

// ChatMessageEvent is the broadcast form of a chat message. It carries no
// "type" discriminator; clients recognize it by the message field.
type ChatMessageEvent struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	Room     string `json:"room"`
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
