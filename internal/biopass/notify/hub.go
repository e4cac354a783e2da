package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/service"
	"github.com/BrandonDHaskell/Biopass/server/internal/observability"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards are served from other origins
	},
}

// LiveEvent is the JSON frame pushed to live-feed clients.
type LiveEvent struct {
	Kind       service.NotificationKind `json:"kind"`
	PersonID   string                   `json:"person_id"`
	Name       string                   `json:"name"`
	EventID    int64                    `json:"event_id,omitempty"`
	OccurredAt time.Time                `json:"occurred_at"`
	Message    string                   `json:"message"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	kind string // optional filter
}

type frame struct {
	kind service.NotificationKind
	data []byte
}

// Hub maintains live-feed WebSocket clients and broadcasts notifications to
// them.  It is a service.Sink.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan frame
	register   chan *client
	unregister chan *client
	done       chan struct{}
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan frame, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns the client set until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.remove(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			observability.WSConnections.Inc()
			h.logger.Debug("ws client connected", "filter", c.kind)

		case c := <-h.unregister:
			h.remove(c)

		case f := <-h.broadcast:
			for c := range h.clients {
				if c.kind != "" && c.kind != string(f.kind) {
					continue
				}
				select {
				case c.send <- f.data:
				default:
					// Slow consumer.
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	observability.WSConnections.Dec()
	h.logger.Debug("ws client disconnected")
}

// Send queues n for broadcast.  A saturated hub drops the frame rather than
// stall a dispatcher worker.
func (h *Hub) Send(_ context.Context, n service.Notification) error {
	data, err := json.Marshal(LiveEvent{
		Kind:       n.Kind,
		PersonID:   n.PersonID,
		Name:       n.Name,
		EventID:    n.EventID,
		OccurredAt: n.OccurredAt,
		Message:    n.Message,
	})
	if err != nil {
		return fmt.Errorf("marshal live event: %w", err)
	}
	select {
	case h.broadcast <- frame{kind: n.Kind, data: data}:
		return nil
	default:
		return fmt.Errorf("live feed saturated")
	}
}

// ServeHTTP upgrades the request.  ?kind=checked_in limits the feed to one
// notification kind.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
		kind: r.URL.Query().Get("kind"),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(h)
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only detects disconnects; clients send nothing meaningful.
func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
