package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chatrelay/chatrelay/internal/auth"
	"github.com/chatrelay/chatrelay/internal/store"
)

const testSecret = "test-secret-0123456789abcdef"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *Config {
	return &Config{
		Host:                    "127.0.0.1",
		Port:                    8080,
		JWTSecret:               testSecret,
		AllowedOrigins:          "*",
		MaxMessageSize:          512,
		SendBufferSize:          16,
		RateLimitBurst:          100,
		RateLimitRefillInterval: time.Second,
		LogLevel:                "INFO",
		ShutdownTimeout:         time.Second,
	}
}

// memStore records appended messages so tests can assert on persistence
// without a database.
type memStore struct {
	mu       sync.Mutex
	appended []store.ChatMessage
	failWith error
}

func (m *memStore) Append(msg store.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.appended = append(m.appended, msg)
	return nil
}

func (m *memStore) ListByRoom(room string) ([]store.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.ChatMessage
	for _, msg := range m.appended {
		if msg.Room == room {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memStore) DeleteByUser(username string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []store.ChatMessage
	deleted := 0
	for _, msg := range m.appended {
		if msg.Username == username {
			deleted++
			continue
		}
		kept = append(kept, msg)
	}
	m.appended = kept
	return deleted, nil
}

func (m *memStore) appendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.appended)
}

func testIdentity(id, username string) auth.Identity {
	return auth.Identity{ID: id, Username: username}
}

func newTestHub(t *testing.T) (*Hub, *memStore) {
	t.Helper()
	messages := &memStore{}
	hub := NewHub(testConfig(), messages, testLogger())
	return hub, messages
}

// newTestClient builds a client that is registered but has no transport;
// tests read its queued events straight off the send channel.
func newTestClient(t *testing.T, hub *Hub, id, username string) *Client {
	t.Helper()
	client := NewClient(nil, hub, "127.0.0.1:0", auth.Identity{ID: id, Username: username})
	hub.registry.Register(client)
	return client
}

func recvEvent(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case payload := <-c.send:
		var event map[string]any
		require.NoError(t, json.Unmarshal(payload, &event))
		return event
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
		return nil
	}
}

func expectNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload := <-c.send:
		t.Fatalf("expected no event, got %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func userList(event map[string]any) []string {
	raw, _ := event["users"].([]any)
	users := make([]string, 0, len(raw))
	for _, u := range raw {
		users = append(users, u.(string))
	}
	return users
}
