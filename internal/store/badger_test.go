package store

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := Open("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func at(t *testing.T, offset time.Duration) time.Time {
	t.Helper()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return base.Add(offset)
}

func TestAppendAndListByRoomChronological(t *testing.T) {
	s := newTestStore(t)

	// Append out of order; the key layout must still sort them by time.
	require.NoError(t, s.Append(ChatMessage{Room: "lobby", Username: "bob", Body: "second", Timestamp: at(t, 2*time.Second)}))
	require.NoError(t, s.Append(ChatMessage{Room: "lobby", Username: "alice", Body: "first", Timestamp: at(t, time.Second)}))
	require.NoError(t, s.Append(ChatMessage{Room: "lobby", Username: "alice", Body: "third", Timestamp: at(t, 3*time.Second)}))

	messages, err := s.ListByRoom("lobby")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	require.Equal(t, "first", messages[0].Body)
	require.Equal(t, "second", messages[1].Body)
	require.Equal(t, "third", messages[2].Body)
}

func TestListByRoomUnknownRoomIsEmpty(t *testing.T) {
	s := newTestStore(t)

	messages, err := s.ListByRoom("ghost")
	require.NoError(t, err)
	require.Empty(t, messages)
}

func TestListByRoomIsolatesRooms(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Append(ChatMessage{Room: "lobby", Username: "alice", Body: "in lobby", Timestamp: at(t, time.Second)}))
	require.NoError(t, s.Append(ChatMessage{Room: "lobby2", Username: "bob", Body: "elsewhere", Timestamp: at(t, time.Second)}))

	messages, err := s.ListByRoom("lobby")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "in lobby", messages[0].Body)
}

func TestAppendFillsInIDAndTimestamp(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Append(ChatMessage{Room: "lobby", Username: "alice", Body: "hi"}))

	messages, err := s.ListByRoom("lobby")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.NotZero(t, messages[0].ID)
	require.False(t, messages[0].Timestamp.IsZero())
}

func TestDeleteByUserRemovesAcrossRooms(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Append(ChatMessage{Room: "lobby", Username: "alice", Body: "one", Timestamp: at(t, time.Second)}))
	require.NoError(t, s.Append(ChatMessage{Room: "dev", Username: "alice", Body: "two", Timestamp: at(t, 2*time.Second)}))
	require.NoError(t, s.Append(ChatMessage{Room: "dev", Username: "bob", Body: "keep", Timestamp: at(t, 3*time.Second)}))

	deleted, err := s.DeleteByUser("alice")
	require.NoError(t, err)
	require.Equal(t, 2, deleted)

	lobby, err := s.ListByRoom("lobby")
	require.NoError(t, err)
	require.Empty(t, lobby)

	dev, err := s.ListByRoom("dev")
	require.NoError(t, err)
	require.Len(t, dev, 1)
	require.Equal(t, "bob", dev[0].Username)
}

func TestDeleteByUserUnknownUserDeletesNothing(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Append(ChatMessage{Room: "lobby", Username: "alice", Body: "hi", Timestamp: at(t, time.Second)}))

	deleted, err := s.DeleteByUser("nobody")
	require.NoError(t, err)
	require.Zero(t, deleted)

	messages, err := s.ListByRoom("lobby")
	require.NoError(t, err)
	require.Len(t, messages, 1)
}
