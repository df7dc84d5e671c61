package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dshills/padstorm/internal/input"
	"github.com/dshills/padstorm/internal/input/sample"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// client is one WebSocket connection and its input handler.
type client struct {
	id      uuid.UUID
	conn    *websocket.Conn
	handler *input.Handler
	server  *Server
	send    chan []byte

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade: %v", err)
		return
	}

	id := uuid.New()
	h, err := s.newHandler(id)
	if err != nil {
		s.log.Warn("client %s: %v", id, err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "handler unavailable"))
		_ = conn.Close()
		return
	}

	c := &client{
		id:      id,
		conn:    conn,
		handler: h,
		server:  s,
		send:    make(chan []byte, s.cfg.SendBuffer),
		done:    make(chan struct{}),
	}
	if !s.register(c) {
		h.Close()
		_ = conn.Close()
		return
	}
	s.log.Info("client %s connected from %s", id, r.RemoteAddr)

	c.sendMessage(MsgHello, HelloPayload{ClientID: id, State: h.State()})

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.server.unregister(c)
		c.handler.Close()
		c.close()
		c.server.log.Info("client %s disconnected", c.id)
	}()

	cfg := c.server.cfg
	c.conn.SetReadLimit(cfg.ReadLimit)
	if cfg.PingInterval > 0 {
		wait := 2 * cfg.PingInterval
		_ = c.conn.SetReadDeadline(time.Now().Add(wait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(wait))
		})
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.log.Warn("client %s: %v", c.id, err)
			}
			return
		}
		if cfg.PingInterval > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(2 * cfg.PingInterval))
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError(fmt.Errorf("invalid message: %w", err))
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *client) handleMessage(msg Message) {
	switch msg.Type {
	case MsgSample:
		var raw sample.Raw
		if err := json.Unmarshal(msg.Payload, &raw); err != nil {
			c.sendError(fmt.Errorf("invalid sample: %w", err))
			return
		}
		events := c.handler.Tick(raw)
		if len(events) == 0 {
			return
		}
		c.sendMessage(MsgEvents, EventsPayload{
			Tick:   events[0].Tick,
			State:  c.handler.State(),
			Events: events,
		})

	case MsgReset:
		c.handler.Reset()
		c.sendMessage(MsgState, StatePayload{State: c.handler.State()})

	case MsgContext:
		var p ContextPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Key == "" {
			c.sendError(fmt.Errorf("invalid context: key required"))
			return
		}
		c.handler.SetContext(p.Key, p.Value)

	case MsgNeutral:
		var g sample.Vec3
		if err := json.Unmarshal(msg.Payload, &g); err != nil {
			c.sendError(fmt.Errorf("invalid neutral: %w", err))
			return
		}
		c.handler.SetNeutral(g)

	default:
		c.sendError(fmt.Errorf("unknown message type %q", msg.Type))
	}
}

func (c *client) writePump() {
	cfg := c.server.cfg
	var ping <-chan time.Time
	if cfg.PingInterval > 0 {
		ticker := time.NewTicker(cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer c.conn.Close()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}

		case <-ping:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(cfg.WriteTimeout))
			return
		}
	}
}

func (c *client) sendMessage(t MessageType, payload any) {
	data, err := encode(t, payload)
	if err != nil {
		c.server.log.Warn("client %s: encode %s: %v", c.id, t, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		// Slow reader: drop the connection rather than block the tick loop.
		c.server.log.Warn("client %s: send buffer full", c.id)
		c.closed = true
		close(c.done)
	}
}

func (c *client) sendError(err error) {
	c.sendMessage(MsgError, ErrorPayload{Error: err.Error()})
}

// close signals the write pump to finish. It is safe to call repeatedly.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}
