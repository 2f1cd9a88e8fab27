package stream

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	EventSessionCreated   = "session_created"
	EventSessionCompleted = "session_completed"
	EventPickupUpdated    = "pickup_updated"
	EventLocationUpdated  = "location_updated"
	EventIssueCreated     = "issue_created"
)

const redisChannel = "buswatch:events:broadcast"

// sendBuffer bounds the per-client queue; a viewer that cannot drain this many
// events is dropped and must reconnect.
const sendBuffer = 64

// Envelope is the wire frame delivered to every connected viewer.
type Envelope struct {
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
	At     time.Time       `json:"at"`
	Origin string          `json:"origin,omitempty"`
}

// Hub fans session, location and issue events out to connected viewers.
// Clients are keyed by authenticated user id; one user may hold several
// channels (multi-tab). Delivery is best-effort and never blocks on a slow
// viewer.
type Hub struct {
	id      string
	redis   *redis.Client
	clients map[int64]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	ID     string
	UserID int64
	Send   chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		id:      uuid.NewString(),
		redis:   redisClient,
		clients: map[int64]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(userID int64) *Client {
	client := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = map[*Client]struct{}{}
	}
	h.clients[userID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	userClients, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := userClients[client]; !ok {
		return
	}
	delete(userClients, client)
	if len(userClients) == 0 {
		delete(h.clients, client.UserID)
	}
	close(client.Send)
}

// Publish marshals payload into a typed envelope and delivers it to every
// connected client. A client whose buffer is full is dropped so one stalled
// viewer cannot delay the rest.
func (h *Hub) Publish(eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("stream: marshal %s payload: %v", eventType, err)
		return
	}
	env := Envelope{Type: eventType, Data: data, At: time.Now(), Origin: h.id}
	raw, err := json.Marshal(env)
	if err != nil {
		log.Printf("stream: marshal envelope: %v", err)
		return
	}

	h.deliver(raw)

	if h.redis != nil {
		if err := h.redis.Publish(context.Background(), redisChannel, raw).Err(); err != nil {
			log.Printf("stream: redis publish error: %v", err)
		}
	}
}

func (h *Hub) deliver(raw []byte) {
	h.mu.RLock()
	var overflowed []*Client
	for _, userClients := range h.clients {
		for client := range userClients {
			select {
			case client.Send <- raw:
			default:
				overflowed = append(overflowed, client)
			}
		}
	}
	h.mu.RUnlock()

	if len(overflowed) == 0 {
		return
	}
	h.mu.Lock()
	for _, client := range overflowed {
		log.Printf("stream: dropping slow viewer %s (user %d)", client.ID, client.UserID)
		h.removeLocked(client)
	}
	h.mu.Unlock()
}

// ClientCount reports connected channels, for health reporting.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, userClients := range h.clients {
		n += len(userClients)
	}
	return n
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			log.Printf("stream: bad bridge payload: %v", err)
			continue
		}
		// Skip our own publishes; local clients already got them.
		if env.Origin == h.id {
			continue
		}
		h.deliver([]byte(msg.Payload))
	}
}
