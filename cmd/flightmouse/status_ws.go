package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// Status WebSocket: hub + per-client pumps + broadcaster
// ============================================================================
//
//   - A Hub tracks connected clients; each client has its own write pump so
//     one slow client doesn't block others.
//   - Slow clients are disconnected when their send buffer fills.
//   - Messages are JSON text frames with an envelope: {type, ts, data}.
//   - The first message on connect is "state_init" (toggle + axis values).
//   - The broadcaster turns engine StatusEvents into frames.
//
// ============================================================================

type wsStateInit struct {
	Enabled bool             `json:"enabled"`
	Axes    map[string]int32 `json:"axes"`
}

type wsEnabledChanged struct {
	Enabled bool   `json:"enabled"`
	Origin  string `json:"origin"`
}

type wsThrottleZoneChanged struct {
	Zone  string `json:"zone"`
	Value int32  `json:"value"`
}

type wsRudderDirectionChanged struct {
	Direction string `json:"direction"`
}

// envelope is the wire format envelope for WS messages.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

func marshalEnvelope(typ string, at time.Time, data any) ([]byte, error) {
	if at.IsZero() {
		at = time.Now()
	}
	ts := at.UTC()
	return json.Marshal(envelope{Type: typ, Ts: &ts, Data: data})
}

// ============================================================================
// Hub
// ============================================================================

type Hub struct {
	logger *slog.Logger

	// Buffered broadcast channel for already-serialized JSON frames.
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int

	// done is closed when Run returns.
	done chan struct{}
}

type HubConfig struct {
	// SendBuf is the per-client outbound queue size. Zero means 32.
	SendBuf int

	// BroadcastBuf is the hub inbound broadcast queue size. Zero means 128.
	BroadcastBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 32
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 128
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, bcastBuf),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
		done:       make(chan struct{}),
	}
}

// Done is closed once Run has returned and no more clients are accepted.
func (h *Hub) Done() <-chan struct{} { return h.done }

// add hands c to Run. It reports false if the hub has stopped or ctx ends
// first, in which case the caller owns c.
func (h *Hub) add(ctx context.Context, c *Client) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Run processes hub events until ctx is canceled.
// It disconnects all clients on shutdown.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("status client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			// Collect slow clients first, remove them after unlocking.
			var slow []*Client

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.closeSend()
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	// Closing send signals writePump to exit.
	c.closeSend()
	h.logger.Info("status client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
}

// BroadcastBytes enqueues a pre-serialized frame. It never blocks; if the
// hub queue is full the frame is dropped.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("status hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub *Hub

	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once

	remoteAddr string
	logger     *slog.Logger
}

// NewClient creates a client with a buffered send channel.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *Client {
	sendBuf := 32
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// closeStatus extracts a websocket close code / text when possible.
func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

func (c *Client) logExit(pump string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Debug("status "+pump+" exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
		return
	}
	c.logger.Debug("status "+pump+" exiting", "remote_addr", c.remoteAddr, "error", err)
}

// writePump writes queued frames and pings until send is closed or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub is disconnecting us.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("writePump", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("writePump", err)
				return
			}
		}
	}
}

// readPump discards incoming messages to detect disconnects and handle
// control frames, then unregisters the client.
func (c *Client) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("readPump", err)
			if c.hub != nil {
				select {
				case c.hub.unregister <- c:
				case <-c.hub.done:
				}
			}
			return
		}
	}
}

// ============================================================================
// HTTP handler
// ============================================================================

type StatusServer struct {
	logger *slog.Logger
	hub    *Hub
	state  StateView
}

// NewStatusServer constructs the status endpoint. Start Hub().Run(ctx) and
// RunBroadcaster alongside it.
func NewStatusServer(logger *slog.Logger, state StateView, cfg HubConfig) *StatusServer {
	return &StatusServer{
		logger: logger,
		hub:    NewHub(logger, cfg),
		state:  state,
	}
}

func (s *StatusServer) Hub() *Hub { return s.hub }

// Register registers the WS handler on the provided mux.
func (s *StatusServer) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handleStatusWS)
}

var upgrader = websocket.Upgrader{
	// Status is read-only; any origin may watch.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStatusWS upgrades, sends state_init, then registers the client.
func (s *StatusServer) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("status ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, r.RemoteAddr, s.logger)

	// state_init is queued before registration so it is the first frame.
	initMsg, err := marshalEnvelope("state_init", time.Now(), wsStateInit{
		Enabled: s.state.Enabled(),
		Axes:    snapshotAxes(s.state),
	})
	if err == nil {
		client.send <- initMsg
	}

	if !s.hub.add(r.Context(), client) {
		_ = conn.Close()
		return
	}

	// Pumps outlive the request; the hub and socket errors end them.
	go client.writePump()
	go client.readPump()
}

// ============================================================================
// Broadcaster
// ============================================================================

// RunBroadcaster converts engine status events into frames for the hub.
// Intended to run as a single goroutine.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan StatusEvent, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-src:
			if !ok {
				logger.Info("status broadcaster stopping (source ended)")
				return
			}
			typ, at, data, ok := convertStatus(ev)
			if !ok {
				continue
			}
			msg, err := marshalEnvelope(typ, at, data)
			if err != nil {
				logger.Warn("status broadcaster marshal failed", "error", err, "type", typ)
				continue
			}
			hub.BroadcastBytes(msg)
		}
	}
}

func convertStatus(ev StatusEvent) (typ string, at time.Time, data any, ok bool) {
	switch e := ev.(type) {
	case EnabledChanged:
		return "enabled_changed", e.At, wsEnabledChanged{Enabled: e.Enabled, Origin: e.Origin}, true
	case ThrottleZoneChanged:
		return "throttle_zone_changed", e.At, wsThrottleZoneChanged{Zone: e.Zone.String(), Value: e.Value}, true
	case RudderDirectionChanged:
		return "rudder_direction_changed", e.At, wsRudderDirectionChanged{Direction: e.Direction.String()}, true
	default:
		return "", time.Time{}, nil, false
	}
}
