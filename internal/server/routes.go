// Package server wires HTTP handlers into a ServeMux for the ChatRelay
// application via routing helpers.
package server

import "net/http"

// Routes configures and returns an HTTP ServeMux with all application
// routes: health check, WebSocket endpoint, room history, user message
// purge, the bulletin feed proxy, and the test page.
func (s *ChatServer) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.HealthHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.HandleFunc("GET /rooms/{room}/messages", s.HistoryHandler)
	mux.HandleFunc("DELETE /users/{user}/messages", s.PurgeUserHandler)
	mux.HandleFunc("GET /bulletins", s.BulletinsHandler)
	mux.HandleFunc("GET /test", s.TestPageHandler)
	return mux
}
