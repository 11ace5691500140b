// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/chatrelay/chatrelay/internal/auth"
)

// roomMembership records one joined room together with the display name
// the connection used when it joined. Cleanup removes exactly the
// recorded name, even if the connection renamed itself afterwards.
type roomMembership struct {
	room string
	name string
}

// Client represents one authenticated WebSocket connection. The registry
// owns its lifecycle; the router mutates its membership records as frames
// arrive. Memberships carry names rather than pointers so a dead client
// never leaves a dangling reference inside the directory.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	hub      *Hub
	addr     string
	identity auth.Identity

	mu          sync.Mutex
	displayName string
	memberships []roomMembership

	// closed is guarded by the registry's lock, not mu.
	closed bool

	teardownOnce sync.Once

	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateBurst      int
	rateInterval   time.Duration
}

// NewClient creates a Client for a verified identity. The send channel is
// buffered so broadcasts to a slow reader drop rather than block the hub.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, identity auth.Identity) *Client {
	cfg := hub.cfg
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		conn:           conn,
		send:           make(chan []byte, cfg.SendBufferSize),
		hub:            hub,
		addr:           addr,
		identity:       identity,
		displayName:    identity.Username,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimitBurst, cfg.RateLimitRefillInterval),
		rateBurst:      cfg.RateLimitBurst,
		rateInterval:   cfg.RateLimitRefillInterval,
	}
}

// Identity returns the identity fixed at token verification time.
func (c *Client) Identity() auth.Identity {
	return c.identity
}

// DisplayName returns the name currently shown to other room members. It
// starts as the verified identity's username and may be overridden once by
// an explicit join-time username.
func (c *Client) DisplayName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayName
}

func (c *Client) setDisplayName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.displayName = name
}

// rememberRoom records a joined room and the name used for it, preserving
// join order without duplicates. It returns the name previously recorded
// for the room, or "" on first join.
func (c *Client) rememberRoom(room, name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range c.memberships {
		if m.room == room {
			previous := m.name
			c.memberships[i].name = name
			return previous
		}
	}
	c.memberships = append(c.memberships, roomMembership{room: room, name: name})
	return ""
}

// forgetRoom drops the membership record for a room and returns the name
// it was recorded under, or "" if the client never joined it.
func (c *Client) forgetRoom(room string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	recorded := ""
	c.memberships = lo.Filter(c.memberships, func(m roomMembership, _ int) bool {
		if m.room == room {
			recorded = m.name
			return false
		}
		return true
	})
	return recorded
}

// InRoom reports whether the client has joined the named room.
func (c *Client) InRoom(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo.ContainsBy(c.memberships, func(m roomMembership) bool {
		return m.room == room
	})
}

// JoinedRooms returns the rooms this client has joined, in join order.
func (c *Client) JoinedRooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo.Map(c.memberships, func(m roomMembership, _ int) string {
		return m.room
	})
}

// currentMemberships returns a copy of the membership records in join
// order. Disconnect cleanup consumes these so each room is left under the
// name actually recorded for it.
func (c *Client) currentMemberships() []roomMembership {
	c.mu.Lock()
	defer c.mu.Unlock()
	memberships := make([]roomMembership, len(c.memberships))
	copy(memberships, c.memberships)
	return memberships
}

// teardown hands the client to the hub for unregistration. Both the read
// pump and transport errors can race to get here; the Once guarantees the
// hub sees the client exactly once.
func (c *Client) teardown() {
	c.teardownOnce.Do(func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
	})
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		c.hub.log.Warn("error setting initial read deadline", "addr", c.addr, "err", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			c.hub.log.Warn("error setting read deadline in pong handler", "addr", c.addr, "err", err)
		}
		return nil
	})
}

// handleReadError logs appropriate error messages based on the error type
// and returns true if the read loop should break
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		c.hub.log.Warn("message exceeded maximum size", "addr", c.addr, "limit", c.maxMessageSize)
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		c.hub.log.Info("client disconnected", "addr", c.addr, "err", err)
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		c.hub.log.Info("client connection closed", "addr", c.addr, "err", err)
		return true
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		c.hub.log.Warn("unexpected WebSocket error", "addr", c.addr, "err", err)
		return true
	}

	c.hub.log.Warn("WebSocket read error", "addr", c.addr, "err", err)
	return true
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the frame should be processed
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.hub.log.Warn("rate limit exceeded; discarding frame",
			"addr", c.addr, "burst", c.rateBurst, "interval", c.rateInterval)
		return false
	}
	return true
}

func (c *Client) readPump() {
	defer func() {
		c.teardown()
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				c.hub.log.Warn("error closing connection in readPump", "addr", c.addr, "err", err)
			}
		}
	}()

	c.setupReadConnection()

	for {
		_, rawFrame, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
		}

		if !c.checkRateLimit() {
			continue
		}

		c.hub.router.HandleFrame(c, rawFrame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case payload, ok := <-c.send:
		return c.handlePayload(payload, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			c.hub.log.Warn("error closing connection in writePump", "addr", c.addr, "err", err)
		}
	}
}

// handlePayload writes outgoing payloads and returns false if the connection
// should be closed
func (c *Client) handlePayload(payload []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		c.hub.log.Warn("error setting write deadline", "addr", c.addr, "err", err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(payload)
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			c.hub.log.Warn("error writing close message", "addr", c.addr, "err", err)
		}
	}
	return false
}

// writeTextMessage writes a payload and any queued payloads
func (c *Client) writeTextMessage(payload []byte) bool {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		c.hub.log.Warn("error creating writer", "addr", c.addr, "err", err)
		return false
	}

	if _, err := w.Write(payload); err != nil {
		c.hub.log.Warn("error writing payload", "addr", c.addr, "err", err)
		return false
	}

	// Drain whatever queued up while this write was in flight. Each event
	// was serialized separately, so keep them newline-delimited.
	n := len(c.send)
	for i := 0; i < n; i++ {
		if _, err := w.Write([]byte{'\n'}); err != nil {
			c.hub.log.Warn("error writing separator", "addr", c.addr, "err", err)
			return false
		}
		if _, err := w.Write(<-c.send); err != nil {
			c.hub.log.Warn("error writing queued payload", "addr", c.addr, "err", err)
			return false
		}
	}

	if err := w.Close(); err != nil {
		c.hub.log.Warn("error closing writer", "addr", c.addr, "err", err)
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		c.hub.log.Warn("error setting write deadline for ping", "addr", c.addr, "err", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.hub.log.Warn("error writing ping message", "addr", c.addr, "err", err)
		return false
	}
	return true
}
