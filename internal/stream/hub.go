package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"backend-steersafe/internal/drive"
	"backend-steersafe/internal/logger"

	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix  = "drive:"
	channelSuffix  = ":events"
	channelPattern = channelPrefix + "*" + channelSuffix

	outboxSize = 256
)

type outgoing struct {
	userID  string
	payload []byte
}

// Hub fans drive events out to websocket clients. With Redis every event goes
// through pub/sub so clients connected to other instances receive it too;
// without Redis delivery stays in-process.
type Hub struct {
	redis   *redis.Client
	pubsub  *redis.PubSub
	outbox  chan outgoing
	done    chan struct{}
	flushed chan struct{}
	log     *slog.Logger

	closeOnce sync.Once

	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

type Client struct {
	UserID string
	Send   chan []byte
}

func NewHub(redisClient *redis.Client, log *slog.Logger) *Hub {
	if log == nil {
		log = logger.Discard()
	}
	h := &Hub{
		redis:   redisClient,
		log:     log,
		done:    make(chan struct{}),
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		ctx := context.Background()
		pubsub := redisClient.PSubscribe(ctx, channelPattern)
		if _, err := pubsub.Receive(ctx); err != nil {
			log.Warn("redis subscribe failed, using local delivery", "error", err)
			_ = pubsub.Close()
		} else {
			h.pubsub = pubsub
			h.outbox = make(chan outgoing, outboxSize)
			h.flushed = make(chan struct{})
			go h.forwardRedis(pubsub.Channel())
			go h.publishLoop()
		}
	}
	return h
}

func (h *Hub) Register(userID string) *Client {
	client := &Client{
		UserID: userID,
		Send:   make(chan []byte, 64),
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

	if userClients, ok := h.clients[client.UserID]; ok {
		if _, registered := userClients[client]; !registered {
			return
		}
		delete(userClients, client)
		if len(userClients) == 0 {
			delete(h.clients, client.UserID)
		}
		close(client.Send)
	}
}

// Broadcast never blocks: with Redis the message is queued for the publish
// loop and dropped when the queue is full.
func (h *Hub) Broadcast(userID string, payload []byte) {
	if h.pubsub == nil {
		h.deliver(userID, payload)
		return
	}
	select {
	case h.outbox <- outgoing{userID: userID, payload: payload}:
	default:
		h.log.Warn("event outbox full, dropping message", "user_id", userID)
	}
}

// publishLoop empties the outbox once more after Close so the last events of
// a shutdown still go out.
func (h *Hub) publishLoop() {
	defer close(h.flushed)
	for {
		select {
		case <-h.done:
			for {
				select {
				case msg := <-h.outbox:
					h.publish(msg)
				default:
					return
				}
			}
		case msg := <-h.outbox:
			h.publish(msg)
		}
	}
}

func (h *Hub) publish(msg outgoing) {
	err := h.redis.Publish(context.Background(), redisChannel(msg.userID), msg.payload).Err()
	if err != nil {
		h.log.Error("redis publish failed", "user_id", msg.userID, "error", err)
		h.deliver(msg.userID, msg.payload)
	}
}

// Notify publishes a tracker event to the user's subscribers.
func (h *Hub) Notify(event drive.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("encode drive event failed", "type", event.Type, "error", err)
		return
	}
	h.Broadcast(event.UserID, payload)
}

// deliver drops the message for clients whose buffer is full.
func (h *Hub) deliver(userID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) forwardRedis(messages <-chan *redis.Message) {
	for msg := range messages {
		userID := userIDFromChannel(msg.Channel)
		if userID == "" {
			continue
		}
		h.deliver(userID, []byte(msg.Payload))
	}
}

// Close publishes whatever is still queued, then drops the subscription.
func (h *Hub) Close() error {
	var err error
	h.closeOnce.Do(func() {
		close(h.done)
		if h.pubsub == nil {
			return
		}
		<-h.flushed
		err = h.pubsub.Close()
	})
	return err
}

func redisChannel(userID string) string {
	return channelPrefix + userID + channelSuffix
}

func userIDFromChannel(ch string) string {
	if len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
