// Package server implements the core HTTP and WebSocket relay for ChatRelay.
//
// The implementation is organized into specialized files for configuration,
// the connection registry, the room directory, the message router, the
// broadcaster, clients, routing, and HTTP handlers to keep the codebase
// maintainable and testable as the project grows.
//
// Wire contract: every event is a standalone JSON document, but the write
// pump may coalesce events queued behind a slow write into a single
// WebSocket text message, separated by newlines. Clients must therefore
// split each received message on '\n' before decoding.
package server
