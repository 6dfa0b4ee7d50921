package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	"github.com/scrypster/resonance/internal/engine"
	"github.com/scrypster/resonance/internal/storage"
	"github.com/scrypster/resonance/pkg/types"
)

// Event types streamed to websocket clients.
const (
	EventFeelingStored  = "feeling.stored"
	EventShadowDetected = "shadow.detected"
	EventTraitRefreshed = "trait.refreshed"
	EventDecayCompleted = "decay.completed"
)

// Event is one message on the event stream.
type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data"`
	Time time.Time `json:"time"`
}

// subscriber allows for both websocket clients and in-process listeners.
type subscriber interface {
	sendChannel() chan []byte
	close()
}

// wsClient is one websocket connection.
type wsClient struct {
	hub  *EventHub
	conn *websocket.Conn //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	send chan []byte
}

func (c *wsClient) sendChannel() chan []byte { return c.send }

func (c *wsClient) close() {
	_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
}

// EventHub fans engine events out to websocket clients.
type EventHub struct {
	clients    map[subscriber]bool
	broadcast  chan Event
	register   chan subscriber
	unregister chan subscriber
	origins    []string
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewEventHub creates a hub. originPatterns are host patterns accepted in
// addition to same-origin requests.
func NewEventHub(originPatterns ...string) *EventHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventHub{
		clients:    make(map[subscriber]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan subscriber),
		unregister: make(chan subscriber),
		origins:    originPatterns,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Attach routes the engine's callbacks into the hub.
func (h *EventHub) Attach(e *engine.Engine) {
	e.SetOnFeelingStored(func(f *types.Feeling) { h.Publish(EventFeelingStored, f) })
	e.SetOnShadow(func(ev *types.ShadowEvent) { h.Publish(EventShadowDetected, ev) })
	e.SetOnTraitRefreshed(func(s *types.TraitSnapshot) { h.Publish(EventTraitRefreshed, s) })
	e.SetOnDecay(func(r storage.DecayResult) { h.Publish(EventDecayCompleted, r) })
}

// Run processes registrations and broadcasts until Stop is called.
func (h *EventHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("server: event client connected (total: %d)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.sendChannel())
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("server: event client disconnected (total: %d)", count)

		case ev := <-h.broadcast:
			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("server: failed to marshal %s event: %v", ev.Type, err)
				continue
			}

			h.mu.Lock()
			for client := range h.clients {
				ch := client.sendChannel()
				select {
				case ch <- data:
				default:
					// Slow client; drop it.
					close(ch)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// Stop shuts the hub down and disconnects every client.
func (h *EventHub) Stop() {
	h.cancel()

	h.mu.Lock()
	for client := range h.clients {
		close(client.sendChannel())
		client.close()
	}
	h.clients = make(map[subscriber]bool)
	h.mu.Unlock()
}

// Publish queues an event for every connected client. It never blocks.
func (h *EventHub) Publish(eventType string, data any) {
	select {
	case h.broadcast <- Event{Type: eventType, Data: data, Time: time.Now().UTC()}:
	default:
		log.Printf("server: event channel full, dropping %s", eventType)
	}
}

// ClientCount returns the number of connected clients.
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *EventHub) add(c subscriber) {
	select {
	case h.register <- c:
	case <-h.ctx.Done():
	}
}

func (h *EventHub) remove(c subscriber) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// originAllowed reports whether a cross-origin request matches a configured pattern.
func (h *EventHub) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	if host == strings.ToLower(r.Host) {
		return true
	}
	for _, p := range h.origins {
		if ok, _ := path.Match(strings.ToLower(p), host); ok {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request to a websocket and streams events.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.originAllowed(r) {
		respondError(w, http.StatusForbidden, "Forbidden: invalid origin", nil)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{ //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		OriginPatterns: h.origins,
	})
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{hub: h, conn: conn, send: make(chan []byte, 64)}
	h.add(client)

	go client.writePump()
	go client.readPump()
}

// writePump sends queued events to the connection.
func (c *wsClient) writePump() {
	defer func() {
		c.hub.remove(c)
		c.close()
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		cancel()
		if err != nil {
			log.Printf("server: websocket write failed: %v", err)
			return
		}
	}
}

// readPump drains the connection to detect disconnects.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.remove(c)
		c.close()
	}()

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil { //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
			return
		}
	}
}
