// Package realtime fans out membership changes to websocket clients
// subscribed to an event's channel. Delivery is best-effort and in-memory:
// a client that is not subscribed at publish time never sees the message
// and reconciles through the read path instead.
package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gatherly/gatherly/entity"
	"github.com/rs/zerolog/log"
)

// MembershipNotification is the informational payload appended to client
// activity logs. The eventUpdate snapshot stays authoritative.
type MembershipNotification struct {
	Username  string    `json:"username"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type subscription struct {
	client *Client
	room   string
	leave  bool
}

type message struct {
	room    string
	payload []byte
}

type Hub struct {
	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	broadcast   chan message
	rooms       map[string]map[*Client]bool
	clientRooms map[*Client]map[string]bool
}

func NewHub() *Hub {
	return &Hub{
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		broadcast:   make(chan message, 64),
		rooms:       make(map[string]map[*Client]bool),
		clientRooms: make(map[*Client]map[string]bool),
	}
}

// Run owns all room state. It exits when ctx is cancelled, closing every
// connected client.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case client := <-h.register:
			h.clientRooms[client] = make(map[string]bool)

		case client := <-h.unregister:
			h.dropClient(client)

		case sub := <-h.subscribe:
			if _, ok := h.clientRooms[sub.client]; !ok {
				continue
			}
			if sub.leave {
				delete(h.clientRooms[sub.client], sub.room)
				if clients, ok := h.rooms[sub.room]; ok {
					delete(clients, sub.client)
					if len(clients) == 0 {
						delete(h.rooms, sub.room)
					}
				}
				continue
			}
			if h.rooms[sub.room] == nil {
				h.rooms[sub.room] = make(map[*Client]bool)
			}
			h.rooms[sub.room][sub.client] = true
			h.clientRooms[sub.client][sub.room] = true

		case msg := <-h.broadcast:
			for client := range h.rooms[msg.room] {
				select {
				case client.send <- msg.payload:
				default:
					// Slow consumer; drop it rather than stall the hub.
					h.dropClient(client)
				}
			}

		case <-ctx.Done():
			for client := range h.clientRooms {
				h.dropClient(client)
			}
			return ctx.Err()
		}
	}
}

func (h *Hub) dropClient(client *Client) {
	rooms, ok := h.clientRooms[client]
	if !ok {
		return
	}
	for room := range rooms {
		if clients, ok := h.rooms[room]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.clientRooms, client)
	close(client.send)
}

// PublishEventUpdate sends the full event snapshot to every subscriber of
// the event's channel.
func (h *Hub) PublishEventUpdate(eventID string, event *entity.Event) {
	h.publish(eventID, "eventUpdate", event)
}

func (h *Hub) PublishUserJoined(eventID string, n MembershipNotification) {
	h.publish(eventID, "userJoined", n)
}

func (h *Hub) PublishUserLeft(eventID string, n MembershipNotification) {
	h.publish(eventID, "userLeft", n)
}

func (h *Hub) publish(eventID, name string, data any) {
	payload, err := json.Marshal(envelope{Event: name, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", name).Msg("realtime: marshal payload")
		return
	}

	select {
	case h.broadcast <- message{room: roomName(eventID), payload: payload}:
	default:
		// Fire-and-forget: never block the request path on the hub.
		log.Warn().Str("eventId", eventID).Str("event", name).Msg("realtime: broadcast queue full, message dropped")
	}
}

func roomName(eventID string) string {
	return "event:" + eventID
}
