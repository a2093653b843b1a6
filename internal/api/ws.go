package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/xtrntr/lutinex/internal/market"
)

const writeWait = 10 * time.Second

// QuoteSource supplies the quotes pushed to websocket clients
type QuoteSource interface {
	Companies(ctx context.Context) ([]market.Quote, error)
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub keeps the connected websocket clients and pushes quote snapshots to
// them.
type Hub struct {
	source   QuoteSource
	upgrader websocket.Upgrader
	log      logrus.FieldLogger

	mu      sync.RWMutex
	clients map[*wsClient]bool
}

// NewHub creates a hub. allowedOrigins restricts the websocket handshake;
// "*" or an empty list accepts any origin.
func NewHub(source QuoteSource, allowedOrigins []string, log logrus.FieldLogger) *Hub {
	h := &Hub{
		source:  source,
		log:     log,
		clients: make(map[*wsClient]bool),
	}
	h.upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowedOrigins) == 0 {
			return true
		}
		for _, o := range allowedOrigins {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
	return h
}

// ServeHTTP upgrades the connection, sends the current quotes and keeps the
// client registered until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("failed to upgrade connection")
		return
	}
	client := &wsClient{conn: conn}

	if data, err := h.snapshot(r.Context()); err != nil {
		h.log.WithError(err).Error("failed to build quote snapshot")
	} else if err := client.send(data); err != nil {
		conn.Close()
		return
	}

	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(client)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends the current quotes to every client.
func (h *Hub) Publish(ctx context.Context) {
	if h.Clients() == 0 {
		return
	}
	data, err := h.snapshot(ctx)
	if err != nil {
		h.log.WithError(err).Error("failed to build quote snapshot")
		return
	}
	h.Broadcast(data)
}

// Broadcast writes data to every client and drops the ones that fail.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.send(data); err != nil {
			h.log.WithError(err).Debug("dropping websocket client")
			h.remove(client)
		}
	}
}

// Run publishes quotes every interval until ctx is done.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Publish(ctx)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.conn.Close()
		delete(h.clients, client)
	}
}

func (h *Hub) remove(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client] {
		delete(h.clients, client)
		client.conn.Close()
	}
}

func (h *Hub) snapshot(ctx context.Context) ([]byte, error) {
	quotes, err := h.source.Companies(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type      string        `json:"type"`
		Companies []listingJSON `json:"companies"`
	}{Type: "quotes", Companies: listingViews(quotes)})
}
