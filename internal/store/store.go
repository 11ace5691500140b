// Package store persists chat messages. The relay core treats it as an
// external collaborator: messages are appended fire-and-forget, and history
// is only read back through an explicit per-room fetch.
package store

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one persisted chat message. Append-only from the relay's
// perspective.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	Room      string    `json:"room"`
	Username  string    `json:"username"`
	Body      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageStore is the contract the relay depends on. Implementations must
// return ListByRoom results in chronological order.
type MessageStore interface {
	Append(msg ChatMessage) error
	ListByRoom(room string) ([]ChatMessage, error)
	DeleteByUser(username string) (int, error)
}
