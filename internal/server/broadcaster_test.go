package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBroadcastToRoomOnlyReachesMembers(t *testing.T) {
	hub, _ := newTestHub(t)
	a := newTestClient(t, hub, "u1", "alice")
	b := newTestClient(t, hub, "u2", "bob")
	outsider := newTestClient(t, hub, "u3", "carol")

	a.rememberRoom("lobby", "alice")
	b.rememberRoom("lobby", "bob")
	outsider.rememberRoom("dev", "carol")

	hub.broadcaster.BroadcastToRoom("lobby", ChatMessageEvent{Username: "alice", Message: "hi", Room: "lobby"})

	for _, member := range []*Client{a, b} {
		event := recvEvent(t, member)
		require.Equal(t, "hi", event["message"])
		require.Equal(t, "lobby", event["room"])
	}
	expectNoEvent(t, outsider)
}

func TestBroadcastToOthersSkipsSender(t *testing.T) {
	hub, _ := newTestHub(t)
	a := newTestClient(t, hub, "u1", "alice")
	b := newTestClient(t, hub, "u2", "bob")
	a.rememberRoom("lobby", "alice")
	b.rememberRoom("lobby", "bob")

	hub.broadcaster.BroadcastToOthers("lobby", TypingEvent{Type: FrameTyping, Username: "alice", Room: "lobby", Typing: true}, a)

	event := recvEvent(t, b)
	require.Equal(t, "typing", event["type"])
	require.Equal(t, "alice", event["username"])
	expectNoEvent(t, a)
}

func TestBroadcastFailedRecipientDoesNotBlockOthers(t *testing.T) {
	hub, _ := newTestHub(t)
	stuck := newTestClient(t, hub, "u1", "alice")
	healthy := newTestClient(t, hub, "u2", "bob")
	stuck.rememberRoom("lobby", "alice")
	healthy.rememberRoom("lobby", "bob")

	// Fill the stuck client's buffer so the next send fails.
	for i := 0; i < cap(stuck.send); i++ {
		require.True(t, hub.registry.Send(stuck, []byte("fill")))
	}

	hub.broadcaster.BroadcastToRoom("lobby", ChatMessageEvent{Username: "bob", Message: "still here", Room: "lobby"})

	event := recvEvent(t, healthy)
	require.Equal(t, "still here", event["message"])
}

func TestBroadcastUserListSendsFullSnapshot(t *testing.T) {
	hub, _ := newTestHub(t)
	a := newTestClient(t, hub, "u1", "alice")
	a.rememberRoom("lobby", "alice")

	hub.directory.Join("lobby", "alice")
	hub.directory.Join("lobby", "bob")

	hub.broadcaster.BroadcastUserList("lobby")

	event := recvEvent(t, a)
	require.Equal(t, "userListUpdate", event["type"])
	require.Equal(t, "lobby", event["room"])
	require.Equal(t, []string{"alice", "bob"}, userList(event))
}

func TestBroadcastUserListForUnknownRoomIsEmptyList(t *testing.T) {
	hub, _ := newTestHub(t)
	a := newTestClient(t, hub, "u1", "alice")
	a.rememberRoom("ghost", "alice")

	hub.broadcaster.BroadcastUserList("ghost")

	event := recvEvent(t, a)
	require.Equal(t, []string{}, userList(event))
}
