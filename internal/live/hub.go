// Package live pushes committed match changes to websocket subscribers.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/codr1/crease/internal/cricket"
)

const (
	EventStatusChanged = "status_changed"
	EventBallEntered   = "ball_entered"
	EventBallUndone    = "ball_undone"
	EventApproval      = "approval"

	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// Update is the message sent to subscribers of a match.
type Update struct {
	Type      string                   `json:"type"`
	MatchID   string                   `json:"matchId"`
	Status    cricket.MatchStatus      `json:"status"`
	Innings1  cricket.InningsScore     `json:"innings1"`
	Innings2  cricket.InningsScore     `json:"innings2"`
	Delivery  *cricket.Delivery        `json:"delivery,omitempty"`
	Approval  *cricket.ApprovalRequest `json:"approval,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
}

// NewUpdate snapshots the match for an event.
func NewUpdate(kind string, match cricket.Match) Update {
	return Update{
		Type:      kind,
		MatchID:   match.ID,
		Status:    match.Status,
		Innings1:  match.Innings1,
		Innings2:  match.Innings2,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher accepts updates without blocking the caller.
type Publisher interface {
	Publish(update Update)
}

type NopPublisher struct{}

func (NopPublisher) Publish(Update) {}

type client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	matchID string
}

// Hub fans updates out to the clients subscribed to each match. Only the Run
// goroutine touches the client set.
type Hub struct {
	clients    map[*client]struct{}
	broadcast  chan Update
	register   chan *client
	unregister chan *client
	done       chan struct{}
	upgrader   websocket.Upgrader
	writeWait  time.Duration

	mu    sync.RWMutex
	count int
}

func NewHub(allowedOrigins []string, writeWait time.Duration) *Hub {
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	h := &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan Update, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		writeWait:  writeWait,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}
			return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

// Run dispatches registrations and updates until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	logger := log.Ctx(ctx).With().Str("component", "live_hub").Logger()
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.setCount(len(h.clients))
			logger.Debug().Str("match_id", c.matchID).Int("clients", len(h.clients)).Msg("Live client registered")

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				logger.Debug().Str("match_id", c.matchID).Int("clients", len(h.clients)).Msg("Live client unregistered")
			}

		case update := <-h.broadcast:
			payload, err := json.Marshal(update)
			if err != nil {
				logger.Error().Err(err).Str("match_id", update.MatchID).Msg("Failed to encode live update")
				continue
			}
			for c := range h.clients {
				if c.matchID != update.MatchID {
					continue
				}
				select {
				case c.send <- payload:
				default:
					logger.Warn().Str("match_id", c.matchID).Msg("Dropping slow live client")
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.setCount(len(h.clients))
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Publish queues an update; it is dropped when the hub is saturated.
func (h *Hub) Publish(update Update) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- update:
	default:
		log.Warn().Str("match_id", update.MatchID).Str("type", update.Type).Msg("Live hub saturated, update dropped")
	}
}

// ServeWS upgrades the request and subscribes the connection to matchID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, matchID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Str("match_id", matchID).Msg("Websocket upgrade failed")
		return
	}
	c := &client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		matchID: matchID,
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump only watches for close and pong frames; clients do not send data.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("match_id", c.matchID).Msg("Live client closed unexpectedly")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
