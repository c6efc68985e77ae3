package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix  = "workspace:"
	channelSuffix  = ":views"
	channelPattern = channelPrefix + "*" + channelSuffix

	sendBuffer = 64
)

type Hub struct {
	redis   *redis.Client
	pubsub  *redis.PubSub
	origin  string
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	WorkspaceID string
	Send        chan []byte
}

// envelope tags a Redis message with the publishing hub so it is not
// delivered twice to local clients.
type envelope struct {
	Origin  string `json:"origin"`
	Payload []byte `json:"payload"`
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:   redisClient,
		origin:  uuid.NewString(),
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		h.pubsub = redisClient.PSubscribe(context.Background(), channelPattern)
		go h.subscribeRedis(h.pubsub.Channel())
	}
	return h
}

func (h *Hub) Register(workspaceID string) *Client {
	client := &Client{
		WorkspaceID: workspaceID,
		Send:        make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[workspaceID] == nil {
		h.clients[workspaceID] = map[*Client]struct{}{}
	}
	h.clients[workspaceID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	wsClients, ok := h.clients[client.WorkspaceID]
	if !ok {
		return
	}
	if _, ok := wsClients[client]; !ok {
		return
	}
	delete(wsClients, client)
	if len(wsClients) == 0 {
		delete(h.clients, client.WorkspaceID)
	}
	close(client.Send)
}

// Clients reports how many local connections watch a workspace.
func (h *Hub) Clients(workspaceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[workspaceID])
}

// Broadcast delivers payload to every local client of the workspace and
// publishes it for other instances. Slow clients drop messages.
func (h *Hub) Broadcast(workspaceID string, payload []byte) {
	h.deliver(workspaceID, payload)

	if h.redis == nil {
		return
	}
	msg, err := json.Marshal(envelope{Origin: h.origin, Payload: payload})
	if err != nil {
		slog.Error("stream envelope encode failed", "workspace_id", workspaceID, "error", err)
		return
	}
	if err := h.redis.Publish(context.Background(), redisChannel(workspaceID), msg).Err(); err != nil {
		slog.Warn("redis publish failed", "workspace_id", workspaceID, "error", err)
	}
}

// Close stops the Redis subscription.
func (h *Hub) Close() error {
	if h.pubsub == nil {
		return nil
	}
	return h.pubsub.Close()
}

func (h *Hub) deliver(workspaceID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[workspaceID] {
		select {
		case client.Send <- payload:
		default:
			slog.Debug("stream client buffer full", "workspace_id", workspaceID)
		}
	}
}

func (h *Hub) subscribeRedis(ch <-chan *redis.Message) {
	for msg := range ch {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			slog.Warn("dropping malformed stream message", "channel", msg.Channel, "error", err)
			continue
		}
		if env.Origin == h.origin {
			continue
		}
		workspaceID := workspaceIDFromChannel(msg.Channel)
		if workspaceID == "" {
			continue
		}
		h.deliver(workspaceID, env.Payload)
	}
}

func redisChannel(workspaceID string) string {
	return channelPrefix + workspaceID + channelSuffix
}

func workspaceIDFromChannel(ch string) string {
	// workspace:{id}:views
	if len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	if ch[:len(channelPrefix)] != channelPrefix || ch[len(ch)-len(channelSuffix):] != channelSuffix {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
