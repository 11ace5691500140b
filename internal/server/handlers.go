// Package server exposes HTTP handlers, including WebSocket upgrades,
// health checks, history retrieval, and the built-in test page.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatrelay/chatrelay/internal/auth"
	"github.com/chatrelay/chatrelay/internal/bulletin"
	"github.com/chatrelay/chatrelay/internal/store"
)

// ChatServer bundles the HTTP surface of the relay. Every dependency is
// injected so tests can assemble isolated instances.
type ChatServer struct {
	cfg       *Config
	hub       *Hub
	verifier  *auth.Verifier
	messages  store.MessageStore
	bulletins *bulletin.Client
	upgrader  websocket.Upgrader
	log       *slog.Logger
}

// NewChatServer creates the handler set for one relay instance. The
// bulletins client may be nil when the feed collaborator is not
// configured.
func NewChatServer(cfg *Config, hub *Hub, verifier *auth.Verifier, messages store.MessageStore, bulletins *bulletin.Client, log *slog.Logger) *ChatServer {
	origins := newOriginPolicy(cfg.Origins(), log)
	return &ChatServer{
		cfg:       cfg,
		hub:       hub,
		verifier:  verifier,
		messages:  messages,
		bulletins: bulletins,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		log: log,
	}
}

// WebSocketHandler upgrades the connection, verifies the bearer token from
// the handshake query, and registers the client with the hub. A rejected
// token closes the socket with a distinct close code before any room state
// is touched: 4001 for a missing token, 4002 for an invalid or expired one.
func (s *ChatServer) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "err", err)
		return
	}

	identity, err := s.verifier.Verify(token)
	if err != nil {
		s.rejectHandshake(conn, r.RemoteAddr, err)
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr, identity)

	// Register the client with the hub; the hub will launch the pump goroutines.
	select {
	case s.hub.register <- client:
	case <-s.hub.ctx.Done():
		_ = conn.Close()
	}
}

func (s *ChatServer) rejectHandshake(conn *websocket.Conn, addr string, verifyErr error) {
	code := CloseInvalidToken
	reason := "invalid token"
	if errors.Is(verifyErr, auth.ErrMissingToken) {
		code = CloseNoToken
		reason = "no token"
	}

	s.log.Warn("rejecting handshake", "addr", addr, "code", code, "err", verifyErr)

	deadline := time.Now().Add(5 * time.Second)
	payload := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, payload, deadline); err != nil {
		if !isExpectedCloseError(err) {
			s.log.Warn("error writing rejection close frame", "addr", addr, "err", err)
		}
	}
	_ = conn.Close()
}

// HealthHandler provides a simple health check endpoint that returns server status.
func (s *ChatServer) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "ChatRelay server is running!")
}

// HistoryHandler returns the stored messages of a room, oldest first.
func (s *ChatServer) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	room := r.PathValue("room")

	messages, err := s.messages.ListByRoom(room)
	if err != nil {
		s.log.Error("history fetch failed", "room", room, "err", err)
		http.Error(w, "Failed to fetch history", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []store.ChatMessage{}
	}

	s.writeJSON(w, messages)
}

// PurgeUserHandler deletes every stored message of a user across all rooms
// and reports how many were removed.
func (s *ChatServer) PurgeUserHandler(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")

	deleted, err := s.messages.DeleteByUser(user)
	if err != nil {
		s.log.Error("message purge failed", "user", user, "err", err)
		http.Error(w, "Failed to delete messages", http.StatusInternalServerError)
		return
	}

	s.log.Info("purged user messages", "user", user, "deleted", deleted)
	s.writeJSON(w, map[string]int{"deleted": deleted})
}

// BulletinsHandler proxies the external announcement feed.
func (s *ChatServer) BulletinsHandler(w http.ResponseWriter, r *http.Request) {
	if s.bulletins == nil {
		http.Error(w, "Bulletin feed not configured", http.StatusServiceUnavailable)
		return
	}

	entries, err := s.bulletins.Entries(r.Context(), "bulletin")
	if err != nil {
		s.log.Error("bulletin fetch failed", "err", err)
		http.Error(w, "Failed to fetch bulletins", http.StatusBadGateway)
		return
	}

	s.writeJSON(w, entries)
}

func (s *ChatServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("error writing JSON response", "err", err)
	}
}

// TestPageHandler serves an HTML page for exercising the relay by hand:
// paste a token, join a room, and watch events arrive.
func (s *ChatServer) TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>ChatRelay Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #events {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { width: 220px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; cursor: pointer; }
    </style>
</head>
<body>
    <h1>ChatRelay Test</h1>
    <div>
        <input type="text" id="token" placeholder="Token">
        <button onclick="connect()">Connect</button>
    </div>
    <div>
        <input type="text" id="room" placeholder="Room" value="lobby">
        <input type="text" id="username" placeholder="Username">
        <button onclick="join()">Join</button>
    </div>
    <div>
        <input type="text" id="body" placeholder="Message">
        <button onclick="send()">Send</button>
    </div>
    <div id="events"></div>

    <script>
        let ws = null;
        const events = document.getElementById('events');

        function show(text) {
            const line = document.createElement('div');
            line.textContent = text;
            events.appendChild(line);
            events.scrollTop = events.scrollHeight;
        }

        function connect() {
            const token = document.getElementById('token').value;
            ws = new WebSocket('ws://' + location.host + '/ws?token=' + encodeURIComponent(token));
            ws.onopen = () => show('connected');
            ws.onmessage = (e) => show(e.data);
            ws.onclose = (e) => show('closed: ' + e.code + ' ' + e.reason);
        }

        function join() {
            ws.send(JSON.stringify({
                type: 'join',
                room: document.getElementById('room').value,
                username: document.getElementById('username').value
            }));
        }

        function send() {
            ws.send(JSON.stringify({
                type: 'message',
                room: document.getElementById('room').value,
                username: document.getElementById('username').value,
                message: document.getElementById('body').value
            }));
        }
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		s.log.Warn("error writing HTML response", "err", err)
	}
}
