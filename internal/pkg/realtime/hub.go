// Package realtime pushes per-user events over websocket connections, fanned
// out across API instances through Redis pub/sub.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	userEventsChannel = "realtime:user_events"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

type userEventMessage struct {
	UserID           uuid.UUID       `json:"user_id"`
	Payload          json.RawMessage `json:"payload"`
	SenderInstanceID string          `json:"sender_instance_id"`
}

// Connection is one websocket client of a user
type Connection struct {
	UserID uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
}

// Hub tracks local connections per user
type Hub struct {
	connections map[uuid.UUID]map[*Connection]bool
	mu          sync.RWMutex

	redis      *redis.Client
	pubsub     *redis.PubSub
	instanceID string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a hub. With a nil client events stay on this instance.
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		connections: make(map[uuid.UUID]map[*Connection]bool),
		redis:       redisClient,
		instanceID:  uuid.NewString(),
		ctx:         ctx,
		cancel:      cancel,
	}
	if redisClient != nil {
		h.pubsub = redisClient.Subscribe(ctx, userEventsChannel)
	}
	return h
}

// Run consumes events published by other instances until Shutdown.
func (h *Hub) Run() {
	if h.pubsub == nil {
		<-h.ctx.Done()
		return
	}

	ch := h.pubsub.Channel()
	for {
		select {
		case <-h.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev userEventMessage
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Msg("Dropping malformed realtime event")
				continue
			}
			if ev.SenderInstanceID == h.instanceID {
				continue
			}
			h.deliverLocal(ev.UserID, ev.Payload)
		}
	}
}

// Shutdown stops the subscriber and closes every local connection.
func (h *Hub) Shutdown() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.connections {
		for c := range conns {
			close(c.send)
		}
		delete(h.connections, userID)
	}
}

// Attach registers an upgraded websocket for userID and starts its pumps.
func (h *Hub) Attach(userID uuid.UUID, ws *websocket.Conn) *Connection {
	c := &Connection{UserID: userID, conn: ws, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.connections[userID] == nil {
		h.connections[userID] = make(map[*Connection]bool)
	}
	h.connections[userID][c] = true
	h.mu.Unlock()

	log.Debug().Str("user_id", userID.String()).Msg("Realtime client connected")

	go h.writePump(c)
	go h.readPump(c)
	return c
}

func (h *Hub) detach(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.connections[c.UserID]
	if !ok || !conns[c] {
		return
	}
	delete(conns, c)
	close(c.send)
	if len(conns) == 0 {
		delete(h.connections, c.UserID)
	}
	log.Debug().Str("user_id", c.UserID.String()).Msg("Realtime client disconnected")
}

// SendToUser delivers payload as JSON to every connection of userID on any instance.
func (h *Hub) SendToUser(ctx context.Context, userID uuid.UUID, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	h.deliverLocal(userID, data)

	if h.redis == nil {
		return nil
	}
	msg, err := json.Marshal(userEventMessage{UserID: userID, Payload: data, SenderInstanceID: h.instanceID})
	if err != nil {
		return err
	}
	return h.redis.Publish(ctx, userEventsChannel, msg).Err()
}

// ConnectionCount returns the number of local connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.connections {
		n += len(conns)
	}
	return n
}

func (h *Hub) deliverLocal(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.connections[userID] {
		select {
		case c.send <- data:
		default:
			log.Warn().Str("user_id", userID.String()).Msg("Realtime send buffer full, dropping event")
		}
	}
}

// readPump only services control frames; clients do not send events.
func (h *Hub) readPump(c *Connection) {
	defer func() {
		h.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("user_id", c.UserID.String()).Msg("Realtime read error")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
