package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Message is one floor update pushed to connected clients.
type Message struct {
	Type    string          `json:"type"`
	TableID uuid.UUID       `json:"table_id"`
	Payload json.RawMessage `json:"payload"`
}

type outletMessage struct {
	OutletID uuid.UUID
	Message  Message
}

// Hub fans floor messages out to the clients watching each outlet.
type Hub struct {
	// Registered clients by outlet ID
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *outletMessage

	// closed when Run returns; register and unregister stop blocking
	stopped chan struct{}

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *outletMessage, 256),
		stopped:    make(chan struct{}),
	}
}

// Run serves the hub until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.stopped)
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.outletID] == nil {
				h.rooms[client.outletID] = make(map[*Client]bool)
			}
			h.rooms[client.outletID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()

		case m := <-h.broadcast:
			message, err := json.Marshal(m.Message)
			if err != nil {
				log.Printf("ERROR: encode floor message %s: %v", m.Message.Type, err)
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[m.OutletID] {
				if !client.wants(m.Message.TableID) {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Slow reader; it reconnects and refetches the floor.
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// add hands a client to Run. It reports false once the hub has stopped.
func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

// drop removes a client and closes its send channel. Callers hold h.mu.
func (h *Hub) drop(client *Client) {
	clients, ok := h.rooms[client.outletID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.outletID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.rooms {
		for client := range clients {
			h.drop(client)
		}
	}
}

// BroadcastToOutlet queues m for every client of outletID. It never blocks:
// when the queue is full the message is dropped and logged.
func (h *Hub) BroadcastToOutlet(outletID uuid.UUID, m Message) {
	select {
	case h.broadcast <- &outletMessage{OutletID: outletID, Message: m}:
	default:
		log.Printf("WARN: floor hub queue full, dropping %s for outlet %s", m.Type, outletID)
	}
}

// ClientCount returns the number of clients watching an outlet.
func (h *Hub) ClientCount(outletID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[outletID])
}
