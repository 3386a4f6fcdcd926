package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/anastasiosv/snake-rivals-arena/internal/domain"
)

// Message types
const (
	MessageTypeLeaderboardUpdate = "leaderboard_update"
	MessageTypeLiveGameUpdate    = "live_game_update"
	MessageTypeLiveGameEnded     = "live_game_ended"
	MessageTypeSubscribe         = "subscribe"
	MessageTypeUnsubscribe       = "unsubscribe"
	MessageTypePing              = "ping"
	MessageTypePong              = "pong"
	MessageTypeError             = "error"
)

// TopicLeaderboard receives a snapshot after every applied score submission.
const TopicLeaderboard = "leaderboard"

// GameTopic is the feed for one live game; its subscriber count is surfaced
// as the game's spectator count.
func GameTopic(gameID string) string {
	return "game:" + gameID
}

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Topic     string      `json:"topic,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// LeaderboardUpdate is the payload broadcast on the leaderboard topic
type LeaderboardUpdate struct {
	Entries      []domain.LeaderboardEntry `json:"entries"`
	TotalPlayers int64                     `json:"totalPlayers"`
}

// Hub maintains the set of active spectator connections and routes
// broadcasts to topic subscribers
type Hub struct {
	// Subscribed clients by topic
	topics map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	mu sync.RWMutex

	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client *Client
	topic  string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		topics:      make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("websocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("websocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				for topic, clients := range h.topics {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.topics, topic)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.topics[req.topic]; !ok {
				h.topics[req.topic] = make(map[*Client]bool)
			}
			h.topics[req.topic][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "topic", req.topic)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.topics[req.topic]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.topics, req.topic)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "topic", req.topic)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to all clients subscribed to its topic,
// or to every client when the message has no topic
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	if message.Topic != "" {
		if clients, ok := h.topics[message.Topic]; ok {
			for client := range clients {
				select {
				case client.send <- data:
				default:
					// Client's buffer is full, skip
					h.logger.Warn("client buffer full, skipping", "client_id", client.id)
				}
			}
		}
	} else {
		for client := range h.allClients {
			select {
			case client.send <- data:
			default:
				h.logger.Warn("client buffer full, skipping", "client_id", client.id)
			}
		}
	}
}

// BroadcastLeaderboard pushes a fresh leaderboard snapshot to subscribers
func (h *Hub) BroadcastLeaderboard(entries []domain.LeaderboardEntry, totalPlayers int64) {
	message := &Message{
		Type:  MessageTypeLeaderboardUpdate,
		Topic: TopicLeaderboard,
		Data: LeaderboardUpdate{
			Entries:      entries,
			TotalPlayers: totalPlayers,
		},
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastLiveGame pushes a live-game state change to its spectators
func (h *Hub) BroadcastLiveGame(game domain.LiveGame) {
	message := &Message{
		Type:      MessageTypeLiveGameUpdate,
		Topic:     GameTopic(game.ID),
		Data:      game,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastLiveGameEnded tells spectators a game left the directory
func (h *Hub) BroadcastLiveGameEnded(gameID string) {
	message := &Message{
		Type:      MessageTypeLiveGameEnded,
		Topic:     GameTopic(gameID),
		Data:      map[string]string{"id": gameID},
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Subscribers returns the number of clients subscribed to a topic
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// GameSpectators returns the number of clients watching a live game
func (h *Hub) GameSpectators(gameID string) int {
	return h.Subscribers(GameTopic(gameID))
}

// TotalConnections returns the number of connected clients
func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a topic
func (h *Hub) Subscribe(client *Client, topic string) {
	h.subscribe <- &subscriptionRequest{client: client, topic: topic}
}

// Unsubscribe removes a client from a topic
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.unsubscribe <- &subscriptionRequest{client: client, topic: topic}
}
