package realtime

import "github.com/rs/zerolog"

// Hub manages WebSocket clients and routes session events to subscribers.
type Hub struct {
	logger zerolog.Logger

	// Registered clients
	clients map[*Client]bool

	// sessionID -> set of subscribed clients
	subscriptions map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	subscribe  chan subscribeMsg
	broadcast  chan broadcastMsg
	done       chan struct{}
}

type subscribeMsg struct {
	client    *Client
	sessionID string
}

type broadcastMsg struct {
	sessionID string
	payload   []byte
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:        logger,
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscribe:     make(chan subscribeMsg),
		broadcast:     make(chan broadcastMsg, 256),
		done:          make(chan struct{}),
	}
}

// Broadcast queues payload for every client subscribed to sessionID.
func (h *Hub) Broadcast(sessionID string, payload []byte) {
	select {
	case h.broadcast <- broadcastMsg{sessionID: sessionID, payload: payload}:
	case <-h.done:
	}
}

// Stop ends Run.
func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug().Int("total", len(h.clients)).Msg("client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Debug().Int("total", len(h.clients)).Msg("client unregistered")
			}

		case msg := <-h.subscribe:
			if _, ok := h.clients[msg.client]; !ok {
				continue
			}
			if _, ok := h.subscriptions[msg.sessionID]; !ok {
				h.subscriptions[msg.sessionID] = make(map[*Client]bool)
			}
			h.subscriptions[msg.sessionID][msg.client] = true
			h.logger.Debug().Str("session", msg.sessionID).Int("subscribers", len(h.subscriptions[msg.sessionID])).Msg("client subscribed")

		case msg := <-h.broadcast:
			for client := range h.subscriptions[msg.sessionID] {
				select {
				case client.send <- msg.payload:
				default:
					// Client buffer full, remove it
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	for sessionID, subs := range h.subscriptions {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscriptions, sessionID)
		}
	}
}
