// Package server fans events out to room members through the Broadcaster
// type.
package server

import (
	"encoding/json"
	"log/slog"
)

// Broadcaster serializes an event once and writes the identical bytes to
// every matching live connection. Delivery is best-effort: a failed or slow
// recipient is logged and skipped, never allowed to stall the others. The
// recipient's own pumps notice the dead transport and reclaim it.
type Broadcaster struct {
	registry  *Registry
	directory *RoomDirectory
	log       *slog.Logger
}

func NewBroadcaster(registry *Registry, directory *RoomDirectory, log *slog.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, directory: directory, log: log}
}

// BroadcastToRoom delivers an event to every connection joined to the room.
func (b *Broadcaster) BroadcastToRoom(room string, event any) {
	b.fanout(room, event, nil)
}

// BroadcastToOthers delivers an event to every connection joined to the
// room except the sender. Typing indicators use this: the typist already
// knows they are typing.
func (b *Broadcaster) BroadcastToOthers(room string, event any, sender *Client) {
	b.fanout(room, event, sender)
}

// BroadcastUserList sends the room's full membership snapshot to its
// members.
func (b *Broadcaster) BroadcastUserList(room string) {
	b.BroadcastToRoom(room, NewUserListUpdate(room, b.directory.MembersOf(room)))
}

func (b *Broadcaster) fanout(room string, event any, skip *Client) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.log.Error("failed to serialize event", "room", room, "err", err)
		return
	}

	delivered := 0
	b.registry.ForEach(func(c *Client) {
		if c == skip || !c.InRoom(room) {
			return
		}
		if b.registry.Send(c, payload) {
			delivered++
			return
		}
		b.log.Warn("dropping event for unreachable client", "addr", c.addr, "room", room)
	})

	b.log.Debug("broadcast complete", "room", room, "delivered", delivered)
}
