// Package feed republishes a subset of core events over websocket
// connections so external dashboards can watch P&L, settlement, and order
// status updates without polling (spec §9 "push a subset of events to
// subscribers"). It never drives core behavior — it only listens.
package feed

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/epic1st/fxcore/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the envelope sent to every connected client.
type Message struct {
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// client is one connected websocket subscriber.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans published events out to every connected client. It subscribes
// to the fixed subset of event kinds listed in subscribedKinds
// (orderStatusChanged, settlementProcessed, settlementFailed, pnlCalculated,
// dailyReportGenerated, alert) rather than every kind on the bus, so
// internal execution-engine chatter never leaks to external subscribers.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool

	broadcast chan []byte
}

// subscribedKinds is the fixed set of event kinds this feed republishes.
var subscribedKinds = []events.Kind{
	events.KindOrderStatusChanged,
	events.KindSettlementProcessed,
	events.KindSettlementFailed,
	events.KindPnLCalculated,
	events.KindDailyReportGenerated,
	events.KindAlert,
}

// NewHub wires a Hub to bus and starts its broadcast loop. Each subscribed
// kind is drained through an AsyncHandler channel so a slow feed consumer
// can never stall the publishing component (spec §5 concurrency model).
func NewHub(bus *events.Bus) *Hub {
	h := &Hub{
		clients:   make(map[*client]bool),
		broadcast: make(chan []byte, 4096),
	}

	for _, kind := range subscribedKinds {
		ch := events.AsyncHandler(kind, bus, 256)
		go h.drain(kind, ch)
	}

	go h.run()
	return h
}

func (h *Hub) drain(kind events.Kind, ch <-chan events.Event) {
	for ev := range ch {
		data, err := json.Marshal(Message{Kind: string(ev.Kind), Timestamp: ev.Timestamp, Payload: ev.Payload})
		if err != nil {
			continue
		}
		select {
		case h.broadcast <- data:
		default:
			log.Println("[feed] broadcast buffer full, message dropped")
		}
	}
}

func (h *Hub) run() {
	for data := range h.broadcast {
		h.mu.RLock()
		for c := range h.clients {
			select {
			case c.send <- data:
			default:
				// slow client, drop rather than block the feed for everyone else
			}
		}
		h.mu.RUnlock()
	}
}

// ServeWs upgrades an HTTP request into a feed subscriber connection.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[feed] upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 256)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ClientCount reports how many feed subscribers are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
