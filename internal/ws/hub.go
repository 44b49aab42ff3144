package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

// Hub fans location events out to the viewers of each incident.
type Hub struct {
	incidents  map[string]map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *slog.Logger
	now        func() time.Time
	mu         sync.RWMutex
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		incidents:  make(map[string]map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
		now:        time.Now,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every subscriber.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.incidents[client.incidentID] == nil {
		h.incidents[client.incidentID] = make(map[*Client]bool)
	}
	h.incidents[client.incidentID][client] = true
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(client)
}

// drop must be called with mu held.
func (h *Hub) drop(client *Client) {
	clients := h.incidents[client.incidentID]
	if !clients[client] {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.incidents, client.incidentID)
	}
	close(client.send)
}

func (h *Hub) deliver(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.incidents[event.IncidentID]
	if len(clients) == 0 {
		return
	}

	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode live event",
			slog.String("incident_id", event.IncidentID),
			slog.String("error", err.Error()),
		)
		return
	}

	for client := range clients {
		select {
		case client.send <- message:
		default:
			h.drop(client)
		}
	}

	// viewers have nothing left to watch
	if event.Type == EventTrackingClosed {
		for client := range h.incidents[event.IncidentID] {
			h.drop(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.incidents {
		for client := range clients {
			h.drop(client)
		}
	}
}

func (h *Hub) publish(incidentID string, eventType EventType, data interface{}) {
	event := Event{
		IncidentID: incidentID,
		Type:       eventType,
		Data:       data,
		Timestamp:  h.now().UTC(),
	}

	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("live event dropped", slog.String("incident_id", incidentID))
	}
}

// LocationUpdated implements tracking.Publisher.
func (h *Hub) LocationUpdated(incidentID string, sample domain.LocationSample) {
	h.publish(incidentID, EventLocationUpdated, sample)
}

// TrackingClosed implements tracking.Publisher.
func (h *Hub) TrackingClosed(incidentID string) {
	h.publish(incidentID, EventTrackingClosed, nil)
}

// leave unsubscribes c unless the hub already stopped.
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) ConnectedClients(incidentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.incidents[incidentID])
}
