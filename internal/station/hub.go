package station

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"snapscan/internal"
	"snapscan/internal/logging"
)

// Message is what the hub writes to clients.
type Message struct {
	Type  string              `json:"type"`
	Event *internal.ScanEvent `json:"event,omitempty"`
	Error string              `json:"error,omitempty"`
}

// scanMessage is what camera pages send after decoding a barcode.
type scanMessage struct {
	Token    string `json:"token"`
	Context  string `json:"context"`
	Quantity int    `json:"quantity"`
}

type client struct {
	conn *ws.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ws: write panic: %v", r)
		}
	}()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(ws.TextMessage, data)
}

// Hub keeps the connected camera pages and displays. It broadcasts every
// scan event and forwards decoded barcodes to the station.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	station *Station
	log     *logging.Logger
}

func NewHub(station *Station, log *logging.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		station: station,
		log:     logging.OrDiscard(log).WithComponent("ws"),
	}
}

func (h *Hub) register(c *client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	return len(h.clients)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Notify(ev internal.ScanEvent) {
	h.Broadcast(Message{Type: "scan", Event: &ev})
}

// Broadcast writes msg to every client and drops the ones that fail.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal failed", "error", err)
		return
	}
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.log.Debug("dropping client", "error", err)
			h.unregister(c)
		}
	}
}

var upgrader = ws.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the connection, keeps it alive with pings and submits
// every scan message it reads.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn}
	h.log.Info("client connected", "remote", r.RemoteAddr, "clients", h.register(c))

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.mu.Lock()
				err := conn.WriteControl(ws.PingMessage, nil, time.Now().Add(5*time.Second))
				c.mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		req, err := h.decode(data)
		if err != nil {
			reply, _ := json.Marshal(Message{Type: "error", Error: err.Error()})
			_ = c.write(reply)
			continue
		}
		if !h.station.Submit(r.Context(), req) {
			break
		}
	}
	h.unregister(c)
	h.log.Info("client disconnected", "remote", r.RemoteAddr)
}

func (h *Hub) decode(data []byte) (Request, error) {
	var msg scanMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Request{}, fmt.Errorf("bad scan message: %w", err)
	}
	msg.Token = strings.TrimSpace(msg.Token)
	if msg.Token == "" {
		return Request{}, fmt.Errorf("scan message without token")
	}
	req := Request{Token: msg.Token, Quantity: msg.Quantity, Source: SourceCamera}
	if msg.Context != "" {
		ctx, err := internal.ParseContext(msg.Context)
		if err != nil {
			return Request{}, err
		}
		req.Context = ctx
	}
	return req, nil
}
