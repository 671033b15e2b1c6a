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

// State websocket
//
// Clients connect to /ws and receive JSON text frames {type, ts, data}:
//
//	state_init      full StateSnapshot, sent once on connect
//	volume_changed  {step, db}, coalesced to one per wsVolumeCoalesceWindow
//	source_changed  {source}
//	display         the Frame the panel is showing
//
// Each client has its own send queue. A client whose queue fills is dropped
// rather than slowing everyone else down.

type wsVolumeData struct {
	Step int     `json:"step"`
	DB   float64 `json:"db"`
}

type wsSourceData struct {
	Source Source `json:"source"`
}

// wsEnvelope is the frame written to clients.
type wsEnvelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

type wsOutbound struct {
	Type string
	Data any
	At   time.Time
}

func (o wsOutbound) marshal() ([]byte, error) {
	ts := o.At
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()
	return json.Marshal(wsEnvelope{Type: o.Type, Ts: &ts, Data: o.Data})
}

// ============================================================================
// Hub
// ============================================================================

type Hub struct {
	logger *slog.Logger

	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient

	mu      sync.Mutex
	clients map[*wsClient]struct{}

	sendBuf int
}

func NewHub(logger *slog.Logger, sendBuf, broadcastBuf int) *Hub {
	if sendBuf <= 0 {
		sendBuf = 16
	}
	if broadcastBuf <= 0 {
		broadcastBuf = 64
	}
	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, broadcastBuf),
		register:   make(chan *wsClient, 16),
		unregister: make(chan *wsClient, 16),
		clients:    make(map[*wsClient]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run owns client membership until ctx is canceled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.dropLocked(c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client connected", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.remove(c, "gone")

		case msg := <-h.broadcast:
			var slow []*wsClient
			h.mu.Lock()
			for c := range h.clients {
				if !c.offer(msg) {
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()
			for _, c := range slow {
				h.remove(c, "slow client")
			}
		}
	}
}

func (h *Hub) remove(c *wsClient, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		h.dropLocked(c)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

func (h *Hub) dropLocked(c *wsClient) {
	delete(h.clients, c)
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.closeSend()
}

// Broadcast queues a frame for every client. Never blocks.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws broadcast queue full, dropping frame", "bytes", len(msg))
	}
}

func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ============================================================================
// Client
// ============================================================================

type wsClient struct {
	hub        *Hub
	conn       *websocket.Conn
	remoteAddr string
	logger     *slog.Logger

	send      chan []byte
	closeOnce sync.Once
}

func newWSClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *wsClient {
	return &wsClient{
		hub:        hub,
		conn:       conn,
		remoteAddr: remoteAddr,
		logger:     logger,
		send:       make(chan []byte, hub.sendBuf),
	}
}

// offer queues msg without blocking and reports whether it fit.
func (c *wsClient) offer(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *wsClient) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

const wsVolumeCoalesceWindow = 50 * time.Millisecond

func (c *wsClient) logExit(pump string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		c.logger.Debug("ws "+pump+" closed", "remote_addr", c.remoteAddr, "code", ce.Code, "reason", ce.Text)
		return
	}
	c.logger.Debug("ws "+pump+" error", "remote_addr", c.remoteAddr, "error", err)
}

func (c *wsClient) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("write", err)
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("ping", err)
				return
			}
		}
	}
}

// readPump discards client frames; it exists to service pongs and notice
// disconnects.
func (c *wsClient) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("read", err)
			c.hub.unregister <- c
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// stateWSHandler upgrades the request, registers the client and sends the
// current snapshot as state_init.
func stateWSHandler(hub *Hub, events chan<- Event, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("ws upgrade failed", "error", err)
			return
		}
		c := newWSClient(hub, conn, r.RemoteAddr, logger)

		// The pumps outlive the handler; the hub and socket errors end them.
		go c.writePump()
		go c.readPump()

		snap, err := requestSnapshot(r.Context(), events, snapshotTimeout)
		if err != nil {
			logger.Warn("ws snapshot failed", "error", err)
			_ = conn.Close()
			return
		}
		msg, err := wsOutbound{Type: "state_init", Data: snap}.marshal()
		if err != nil {
			logger.Warn("ws marshal state_init failed", "error", err)
			_ = conn.Close()
			return
		}
		// Queue state_init before joining the hub so it is the first frame.
		c.offer(msg)
		hub.register <- c
	}
}

// ============================================================================
// Publisher side
// ============================================================================

// wsFeed is the StatePublisher and Display for websocket clients. It only
// queues; RunBroadcaster does the marshalling.
type wsFeed struct {
	out    chan wsOutbound
	logger *slog.Logger
}

func newWSFeed(buf int, logger *slog.Logger) *wsFeed {
	return &wsFeed{out: make(chan wsOutbound, buf), logger: logger}
}

func (f *wsFeed) push(o wsOutbound) {
	select {
	case f.out <- o:
	default:
		f.logger.Warn("ws feed full, dropping update", "type", o.Type)
	}
}

func (f *wsFeed) PublishVolume(step int, db float64, at time.Time) {
	f.push(wsOutbound{Type: "volume_changed", Data: wsVolumeData{Step: step, DB: db}, At: at})
}

func (f *wsFeed) PublishSource(src Source, at time.Time) {
	f.push(wsOutbound{Type: "source_changed", Data: wsSourceData{Source: src}, At: at})
}

func (f *wsFeed) Render(fr Frame) error {
	f.push(wsOutbound{Type: "display", Data: fr})
	return nil
}

// RunBroadcaster marshals feed updates and hands them to the hub. Volume
// updates during a hold come in fast; only the newest per window is sent.
// Any other update flushes a pending volume first so ordering is kept.
func RunBroadcaster(ctx context.Context, hub *Hub, feed <-chan wsOutbound, logger *slog.Logger) {
	var pending *wsOutbound
	timer := time.NewTimer(wsVolumeCoalesceWindow)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	send := func(o wsOutbound) {
		msg, err := o.marshal()
		if err != nil {
			logger.Warn("ws marshal failed", "type", o.Type, "error", err)
			return
		}
		hub.Broadcast(msg)
	}
	flush := func() {
		if pending != nil {
			send(*pending)
			pending = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case <-timer.C:
			armed = false
			if pending != nil {
				flush()
				// Keep a steady cadence while a hold is still producing updates.
				timer.Reset(wsVolumeCoalesceWindow)
				armed = true
			}

		case o, ok := <-feed:
			if !ok {
				flush()
				return
			}
			if o.Type == "volume_changed" {
				pending = &o
				if !armed {
					timer.Reset(wsVolumeCoalesceWindow)
					armed = true
				}
				continue
			}
			flush()
			send(o)
		}
	}
}
