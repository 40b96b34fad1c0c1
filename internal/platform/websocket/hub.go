// Package websocket pushes live medicine-list updates to connected clients.
// It implements a hub-and-spoke pattern where each patient's medicine list
// is a topic; websocket clients and in-process subscribers both receive
// snapshots broadcast to the topics they follow.
package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// EventTypeSnapshot marks an event carrying the full current medicine list
// for a patient. Consumers replace their local state with the payload rather
// than applying a delta.
const EventTypeSnapshot = "snapshot"

// PatientMedicinesTopic returns the topic carrying medicine snapshots for
// a single patient.
func PatientMedicinesTopic(patientID uuid.UUID) string {
	return "patients/" + patientID.String() + "/medicines"
}

// Event represents a live update sent to subscribers of a topic.
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	PatientID string          `json:"patientId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// EventPublisher defines the interface for publishing events to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents a single WebSocket connection following one topic.
type Client struct {
	ID    string
	Topic string
	Send  chan []byte
	conn  Conn
}

// Subscription is an in-process feed of events for one topic. Receive from C
// until it is closed; call Close to stop receiving and release hub resources.
// Close is safe to call more than once.
type Subscription struct {
	C chan Event

	hub   *Hub
	topic string
	once  sync.Once
}

// Close detaches the subscription from the hub and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.dropStream(s)
	})
}

// Hub is the central connection manager tracking websocket clients and
// in-process subscriptions per topic. All operations are thread-safe.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}       // topic -> set of ws clients
	all     map[*Client]struct{}                  // all connected ws clients
	streams map[string]map[*Subscription]struct{} // topic -> in-process subscriptions
}

// NewHub creates a new Hub ready to manage subscribers.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		streams: make(map[string]map[*Subscription]struct{}),
	}
}

// Register adds a websocket client to the hub under its topic.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	if h.clients[client.Topic] == nil {
		h.clients[client.Topic] = make(map[*Client]struct{})
	}
	h.clients[client.Topic][client] = struct{}{}
}

// Unregister removes a websocket client from the hub and closes its Send
// channel. Unregistering an unknown client is a no-op.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}

	if subscribers, ok := h.clients[client.Topic]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.clients, client.Topic)
		}
	}

	delete(h.all, client)
	close(client.Send)
}

// SubscribeStream returns an in-process subscription to a topic. Events are
// dropped for subscribers whose channel buffer is full, so pick a buffer
// sized for the expected burst.
func (h *Hub) SubscribeStream(topic string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &Subscription{
		C:     make(chan Event, buffer),
		hub:   h,
		topic: topic,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streams[topic] == nil {
		h.streams[topic] = make(map[*Subscription]struct{})
	}
	h.streams[topic][sub] = struct{}{}
	return sub
}

func (h *Hub) dropStream(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.streams[sub.topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.streams, sub.topic)
		}
	}
	close(sub.C)
}

// Broadcast sends an event to all websocket clients and in-process
// subscriptions on the given topic.
func (h *Hub) Broadcast(topic string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("websocket: failed to marshal event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[topic] {
		select {
		case client.Send <- data:
		default:
			// Client buffer full; skip to avoid blocking.
		}
	}

	for sub := range h.streams[topic] {
		select {
		case sub.C <- event:
		default:
			// Subscriber not draining; skip to avoid blocking.
		}
	}
}

// Publish implements the EventPublisher interface by broadcasting the event
// to subscribers of the event's topic.
func (h *Hub) Publish(_ context.Context, event Event) error {
	h.Broadcast(event.Topic, event)
	return nil
}

// ClientCount returns the total number of connected websocket clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns the number of websocket clients on a specific topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// ---------------------------------------------------------------------------
// Handler — Echo HTTP handler for WebSocket connections
// ---------------------------------------------------------------------------

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// Handler upgrades HTTP requests to WebSocket connections bound to one topic.
type Handler struct {
	hub *Hub
}

// NewHandler creates a handler bound to the given Hub.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// Hub returns the hub this handler registers clients with.
func (h *Handler) Hub() *Hub {
	return h.hub
}

// ServeTopic upgrades the request to a WebSocket, registers the client on
// the topic, optionally writes an initial event, and starts the read/write
// pumps. The caller performs authorization before calling this.
func (h *Handler) ServeTopic(c echo.Context, topic string, initial *Event) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:    uuid.New().String(),
		Topic: topic,
		Send:  make(chan []byte, 256),
		conn:  &gorillaConnAdapter{ws},
	}

	h.hub.Register(client)

	if initial != nil {
		if data, err := json.Marshal(initial); err == nil {
			client.Send <- data
		}
	}

	go h.writePump(client, ws)
	go h.readPump(client, ws)

	return nil
}

// readPump drains the connection so close frames are processed; inbound
// payloads are ignored because subscriptions are fixed at connect time.
func (h *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
	}()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump writes messages from the Send channel to the WebSocket connection.
func (h *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	defer ws.Close()

	for message := range client.Send {
		if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			break
		}
	}
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy the Conn interface.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
