package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/totegamma/sketchroom"
	"github.com/totegamma/sketchroom/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
	readLimitSlack = 64 << 10
)

// SessionHandler is the part of the session the hub drives.
type SessionHandler interface {
	Connect(ctx context.Context, connID string) domain.User
	Disconnect(ctx context.Context, connID string)
	Handle(ctx context.Context, connID string, in sketchroom.Inbound) error
}

// Hub tracks live websocket connections and fans out encoded events.
// Sends never block: a client whose queue is full is disconnected and will
// re-bootstrap on reconnect.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	limits  sketchroom.Limits
}

func NewHub(limits sketchroom.Limits) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		limits:  limits,
	}
}

type client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id string, conn *websocket.Conn) *client {
	return &client{
		id:   id,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

func (c *client) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.shutdown()
		return false
	}
}

func (c *client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func encode(event sketchroom.Event) ([]byte, bool) {
	msg, err := event.Encode()
	if err != nil {
		slog.Error(
			"Failed to encode event",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return nil, false
	}
	return msg, true
}

func (h *Hub) Broadcast(event sketchroom.Event) {
	h.BroadcastExcept("", event)
}

func (h *Hub) BroadcastExcept(connID string, event sketchroom.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}
	msg, ok := encode(event)
	if !ok {
		return
	}
	for id, c := range h.clients {
		if id == connID {
			continue
		}
		c.enqueue(msg)
	}
}

func (h *Hub) Send(connID string, event sketchroom.Event) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	msg, ok := encode(event)
	if !ok {
		return
	}
	c.enqueue(msg)
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.id] == c {
		delete(h.clients, c.id)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.shutdown()
		delete(h.clients, id)
	}
}

// Serve runs one connection until it closes. It blocks.
func (h *Hub) Serve(ctx context.Context, ws *websocket.Conn, session SessionHandler) {
	c := newClient(uuid.NewString(), ws)
	h.register(c)

	go h.writePump(ctx, c)

	session.Connect(ctx, c.id)
	defer func() {
		session.Disconnect(ctx, c.id)
		h.unregister(c)
		c.shutdown()
	}()

	h.readPump(ctx, c, session)
}

func (h *Hub) readPump(ctx context.Context, c *client, session SessionHandler) {
	if h.limits.MaxSnapshotBytes > 0 {
		c.conn.SetReadLimit(int64(h.limits.MaxSnapshotBytes) + readLimitSlack)
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			var wsErr *websocket.CloseError
			if errors.As(err, &wsErr) {
				if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
					slog.DebugContext(
						ctx, "WebSocket closed",
						slog.String("conn", c.id),
						slog.String("error", wsErr.Error()),
						slog.String("module", "socket"),
					)
				}
			} else {
				select {
				case <-c.done:
				default:
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("conn", c.id),
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		in, err := sketchroom.Decode(raw, h.limits)
		if err != nil {
			slog.WarnContext(
				ctx, "Dropped malformed message",
				slog.String("conn", c.id),
				slog.String("error", err.Error()),
				slog.String("module", "socket"),
			)
			continue
		}

		if err := session.Handle(ctx, c.id, in); err != nil {
			level := slog.LevelDebug
			if errors.Is(err, domain.ErrInvalid) || errors.Is(err, domain.ErrDuplicateStroke) {
				level = slog.LevelWarn
			}
			slog.Log(
				ctx, level, "Dropped event",
				slog.String("conn", c.id),
				slog.String("type", string(in.EventType())),
				slog.String("error", err.Error()),
				slog.String("module", "socket"),
			)
		}
	}
}

func (h *Hub) writePump(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("conn", c.id),
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				c.shutdown()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		}
	}
}
