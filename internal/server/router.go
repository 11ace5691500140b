// Package server dispatches inbound frames through the Router, the
// per-connection protocol state machine.
package server

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/chatrelay/chatrelay/internal/store"
)

// Router turns raw inbound frames into directory updates, persistence
// calls, and broadcasts. It is invoked synchronously from each client's
// read pump, so frames from one connection are processed in arrival order.
//
// Display name policy: the name from the verified token is the default,
// but an explicit username on a join frame overrides it for the rest of
// the connection. Each membership records the name it was created under,
// so a later rename cannot strand the old name in a room: rejoining under
// a new name replaces the old entry, and disconnects remove the recorded
// name from every joined room.
type Router struct {
	directory   *RoomDirectory
	broadcaster *Broadcaster
	messages    store.MessageStore
	log         *slog.Logger
}

func NewRouter(directory *RoomDirectory, broadcaster *Broadcaster, messages store.MessageStore, log *slog.Logger) *Router {
	return &Router{
		directory:   directory,
		broadcaster: broadcaster,
		messages:    messages,
		log:         log,
	}
}

// HandleFrame parses and dispatches one inbound frame. Malformed input is
// logged and dropped; it neither closes the connection nor reaches any
// room state.
func (r *Router) HandleFrame(c *Client, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		r.log.Warn("dropping malformed frame", "addr", c.addr, "err", err)
		return
	}
	if err := validate.Struct(frame); err != nil {
		r.log.Warn("dropping invalid frame", "addr", c.addr, "err", err)
		return
	}

	name := frame.Username
	if name == "" {
		name = c.DisplayName()
	}

	switch frame.Type {
	case FrameJoin:
		r.handleJoin(c, frame.Room, name)
	case FrameLeave:
		r.handleLeave(c, frame.Room, name)
	case FrameTyping:
		r.handleTyping(c, frame.Room, name, frame.Typing)
	case FrameMessage:
		r.handleMessage(frame.Room, name, frame.Message)
	}
}

func (r *Router) handleJoin(c *Client, room, name string) {
	c.setDisplayName(name)
	if previous := c.rememberRoom(room, name); previous != "" && previous != name {
		r.directory.Leave(room, previous)
	}
	r.directory.Join(room, name)
	// Broadcast even when membership did not change: a rejoining client
	// relies on receiving a fresh snapshot.
	r.broadcaster.BroadcastUserList(room)
}

func (r *Router) handleLeave(c *Client, room, name string) {
	if recorded := c.forgetRoom(room); recorded != "" {
		name = recorded
	}
	r.directory.Leave(room, name)
	r.broadcaster.BroadcastUserList(room)
}

func (r *Router) handleTyping(c *Client, room, name string, typing bool) {
	event := TypingEvent{Type: FrameTyping, Username: name, Room: room, Typing: typing}
	r.broadcaster.BroadcastToOthers(room, event, c)
}

func (r *Router) handleMessage(room, name, body string) {
	msg := store.ChatMessage{
		Room:      room,
		Username:  name,
		Body:      body,
		Timestamp: time.Now().UTC(),
	}
	// Persistence is fire-and-forget: a store failure must not block live
	// delivery. No room lock is held across this call.
	if err := r.messages.Append(msg); err != nil {
		r.log.Error("message persistence failed, continuing delivery", "room", room, "user", name, "err", err)
	}

	r.broadcaster.BroadcastToRoom(room, ChatMessageEvent{Username: name, Message: body, Room: room})
}

// HandleDisconnect removes the connection from every room it had joined,
// in join order, then announces the updated member lists. Each room is
// left under the name recorded at join time, which may differ from the
// current display name after a rename. The hub calls this exactly once
// per connection lifecycle.
func (r *Router) HandleDisconnect(c *Client) {
	memberships := c.currentMemberships()
	if len(memberships) == 0 {
		return
	}

	r.directory.LeaveAll(memberships)
	for _, m := range memberships {
		r.broadcaster.BroadcastUserList(m.room)
	}
}
