package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/phishers-marketplace/marketplace-api/pkg/logger"
	"github.com/phishers-marketplace/marketplace-api/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	EventMessage      = "message"
	EventGroupMessage = "group_message"
)

// Event is pushed to websocket clients as JSON.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, userIDs []string, ev Event) {}

var (
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	writeWait    = 10 * time.Second
)

const egressSize = 32

// envelope is what travels over Redis pub/sub between instances.
type envelope struct {
	UserIDs []string        `json:"user_ids"`
	Event   json.RawMessage `json:"event"`
}

// Hub keeps the websocket connections of this instance, keyed by user id.
// With a Redis client, Notify publishes to a channel and every instance
// delivers to its own connections.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}

	rdb     *redis.Client
	channel string

	upgrader websocket.Upgrader
}

// NewHub creates a hub; rdb may be nil for single-instance delivery.
func NewHub(rdb *redis.Client, checkOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		clients: map[string]map[*client]struct{}{},
		rdb:     rdb,
		channel: "chat:events",
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Run relays events published by other instances until ctx is done. It is a
// no-op without Redis.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		return
	}
	sub := h.rdb.Subscribe(ctx, h.channel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Warnf("chat hub: bad pubsub payload: %v", err)
				continue
			}
			h.deliver(env.UserIDs, env.Event)
		}
	}
}

func (h *Hub) Notify(ctx context.Context, userIDs []string, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Errorf("chat hub: marshal event: %v", err)
		return
	}
	if h.rdb != nil {
		b, _ := json.Marshal(envelope{UserIDs: userIDs, Event: payload})
		err := h.rdb.Publish(ctx, h.channel, b).Err()
		if err == nil {
			return
		}
		logger.Warnf("chat hub: publish failed, delivering locally: %v", err)
	}
	h.deliver(userIDs, payload)
}

func (h *Hub) deliver(userIDs []string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := map[string]bool{}
	for _, id := range userIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		for c := range h.clients[id] {
			select {
			case c.egress <- payload:
			default:
				logger.Warnf("chat hub: dropping event for slow client of user %s", id)
			}
		}
	}
}

// Connected returns how many connections userID has on this instance.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = map[*client]struct{}{}
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	metrics.WebsocketClients.Inc()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.userID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.egress)
	_ = c.conn.Close()
	metrics.WebsocketClients.Dec()
}

// ServeWS upgrades the request and attaches the connection to userID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{hub: h, conn: conn, userID: userID, egress: make(chan []byte, egressSize)}
	h.add(c)
	logger.Debugf("chat hub: user %s connected", userID)
	go c.writePump()
	go c.readPump()
	return nil
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	egress chan []byte
}

// readPump only handles control frames; clients send messages over HTTP.
func (c *client) readPump() {
	defer c.hub.remove(c)
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debugf("chat hub: read error for user %s: %v", c.userID, err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.hub.remove(c)
	}()
	for {
		select {
		case msg, ok := <-c.egress:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
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
