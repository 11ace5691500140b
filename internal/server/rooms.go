// Package server maintains the room membership directory, the source of
// truth for presence.
package server

import (
	"sync"

	"github.com/samber/lo"
)

// RoomDirectory maps room names to their member display names. Members
// keep first-join order and appear at most once per room. A room exists
// exactly as long as it has members; the last leave deletes it.
//
// All mutations are serialized by a single mutex. Room cardinality is
// expected to stay small enough that coarse locking is a non-issue.
type RoomDirectory struct {
	mu    sync.Mutex
	rooms map[string][]string
}

func NewRoomDirectory() *RoomDirectory {
	return &RoomDirectory{rooms: make(map[string][]string)}
}

// Join adds a display name to a room, creating the room on first join.
// Joining a room the name is already in is a no-op for the member set;
// callers still broadcast a fresh snapshot so rejoining clients recover
// state.
func (d *RoomDirectory) Join(room, displayName string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	members := d.rooms[room]
	if lo.Contains(members, displayName) {
		return
	}
	d.rooms[room] = append(members, displayName)
}

// Leave removes a display name from a room if present. When the last
// member leaves, the room entry is deleted entirely.
func (d *RoomDirectory) Leave(room, displayName string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leaveLocked(room, displayName)
}

func (d *RoomDirectory) leaveLocked(room, displayName string) {
	members, ok := d.rooms[room]
	if !ok {
		return
	}

	remaining := lo.Filter(members, func(member string, _ int) bool {
		return member != displayName
	})
	if len(remaining) == 0 {
		delete(d.rooms, room)
		return
	}
	d.rooms[room] = remaining
}

// LeaveAll removes each recorded membership, room by room. Memberships
// are processed in the order given, which callers keep as the client's
// join order so broadcast ordering stays deterministic. Each removal uses
// the name recorded for that room, not the client's latest display name.
func (d *RoomDirectory) LeaveAll(memberships []roomMembership) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range memberships {
		d.leaveLocked(m.room, m.name)
	}
}

// MembersOf returns the current member list of a room in first-join
// order. Unknown rooms yield an empty list, not an error.
func (d *RoomDirectory) MembersOf(room string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	members := make([]string, len(d.rooms[room]))
	copy(members, d.rooms[room])
	return members
}

// RoomCount reports how many rooms currently have members.
func (d *RoomDirectory) RoomCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rooms)
}
