package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ChannelFills carries one FillsUpdate per allocation
const ChannelFills = "fills"

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
	outboxDepth = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin policy lives in the cors handler wrapping the router
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub tracks fill subscribers and fans allocation updates out to them
type Hub struct {
	subs map[*subscriber]struct{}

	join  chan *subscriber
	leave chan *subscriber
	done  chan struct{}
	once  sync.Once

	mu     sync.RWMutex
	logger *zap.SugaredLogger
}

// NewHub creates a hub; call Run to start it
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[*subscriber]struct{}),
		join:   make(chan *subscriber),
		leave:  make(chan *subscriber),
		done:   make(chan struct{}),
		logger: logger.Sugar(),
	}
}

// Run owns membership changes until Close
func (h *Hub) Run() {
	for {
		select {
		case s := <-h.join:
			h.mu.Lock()
			h.subs[s] = struct{}{}
			n := len(h.subs)
			h.mu.Unlock()
			h.logger.Infow("ws_client_connected", "client", s.addr, "total", n)

		case s := <-h.leave:
			h.mu.Lock()
			h.drop(s)
			n := len(h.subs)
			h.mu.Unlock()
			h.logger.Infow("ws_client_disconnected", "client", s.addr, "total", n)

		case <-h.done:
			h.mu.Lock()
			for s := range h.subs {
				h.drop(s)
			}
			h.mu.Unlock()
			return
		}
	}
}

// drop removes s and closes its outbox. Caller holds h.mu.
func (h *Hub) drop(s *subscriber) {
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.outbox)
	}
}

// Close stops Run and disconnects every client
func (h *Hub) Close() {
	h.once.Do(func() { close(h.done) })
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// BroadcastToChannel queues data for every subscriber of channel.
// Subscribers with a full outbox miss the update.
func (h *Hub) BroadcastToChannel(channel string, data any) {
	msg, err := json.Marshal(data)
	if err != nil {
		h.logger.Warnw("ws_marshal_failed", "channel", channel, "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if s.wants(channel) {
			h.deliver(s, msg)
		}
	}
}

// deliver queues msg without blocking. Caller holds h.mu for reading, which
// keeps the outbox open while the send happens.
func (h *Hub) deliver(s *subscriber, msg []byte) {
	if _, ok := h.subs[s]; !ok {
		return
	}
	select {
	case s.outbox <- msg:
	default:
		h.logger.Debugw("ws_outbox_full", "client", s.addr)
	}
}

// subscriber is one WebSocket connection and the channels it follows
type subscriber struct {
	hub    *Hub
	conn   *websocket.Conn
	outbox chan []byte
	addr   string

	mu       sync.RWMutex
	channels map[string]struct{}
}

func (s *subscriber) wants(channel string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.channels[channel]
	return ok
}

// apply updates the channel set and returns the acknowledgement to send,
// or false for an unknown op
func (s *subscriber) apply(req WSSubscribeRequest) (WSAck, bool) {
	var kind string
	switch req.Op {
	case "subscribe":
		kind = "subscribed"
	case "unsubscribe":
		kind = "unsubscribed"
	default:
		return WSAck{}, false
	}

	s.mu.Lock()
	for _, ch := range req.Channels {
		if kind == "subscribed" {
			s.channels[ch] = struct{}{}
		} else {
			delete(s.channels, ch)
		}
	}
	s.mu.Unlock()
	return WSAck{Type: kind, Channels: req.Channels}, true
}

// readLoop handles subscription requests until the peer goes away
func (s *subscriber) readLoop() {
	defer func() {
		select {
		case s.hub.leave <- s:
		case <-s.hub.done:
		}
		s.conn.Close()
	}()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.hub.logger.Warnw("ws_read_failed", "client", s.addr, "err", err)
			}
			return
		}

		var req WSSubscribeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			s.hub.logger.Debugw("ws_invalid_message", "client", s.addr, "err", err)
			continue
		}
		ack, ok := s.apply(req)
		if !ok {
			s.hub.logger.Debugw("ws_unknown_op", "client", s.addr, "op", req.Op)
			continue
		}
		msg, err := json.Marshal(ack)
		if err != nil {
			continue
		}
		s.hub.mu.RLock()
		s.hub.deliver(s, msg)
		s.hub.mu.RUnlock()
	}
}

// writeLoop drains the outbox, one JSON document per frame, and keeps the
// connection alive with pings
func (s *subscriber) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.outbox:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWebSocket upgrades the request and hands the connection to the hub
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("ws_upgrade_failed", "err", err)
		return
	}

	sub := &subscriber{
		hub:      s.hub,
		conn:     conn,
		outbox:   make(chan []byte, outboxDepth),
		addr:     conn.RemoteAddr().String(),
		channels: make(map[string]struct{}),
	}

	select {
	case s.hub.join <- sub:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go sub.writeLoop()
	go sub.readLoop()
}
