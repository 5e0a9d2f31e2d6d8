// Package ws fans snapshots out to websocket viewers. Each connection joins
// one topic: the staff board or a single customer session.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	TopicBoard         = "board"
	sessionTopicPrefix = "session:"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

func SessionTopic(sessionID string) string {
	return sessionTopicPrefix + sessionID
}

// Message is the envelope every push uses.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type client struct {
	topic string
	conn  *websocket.Conn
	send  chan []byte
}

type broadcast struct {
	topic  string
	data   []byte
	retain bool
}

// Hub tracks clients per topic. Register, unregister and broadcast all go
// through Run, which owns the client sets.
type Hub struct {
	clients    map[string]map[*client]bool
	retained   map[string][]byte
	broadcast  chan broadcast
	register   chan *client
	unregister chan *client
	done       chan struct{}

	mu     sync.RWMutex
	counts map[string]int
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*client]bool),
		retained:   make(map[string][]byte),
		broadcast:  make(chan broadcast, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		counts:     make(map[string]int),
	}
}

func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for topic, set := range h.clients {
				for c := range set {
					close(c.send)
				}
				delete(h.clients, topic)
			}
			return nil

		case c := <-h.register:
			if h.clients[c.topic] == nil {
				h.clients[c.topic] = make(map[*client]bool)
			}
			h.clients[c.topic][c] = true
			h.setCount(c.topic, len(h.clients[c.topic]))
			if data, ok := h.retained[c.topic]; ok {
				select {
				case c.send <- data:
				default:
				}
			}

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			if msg.retain {
				h.retained[msg.topic] = msg.data
			}
			for c := range h.clients[msg.topic] {
				select {
				case c.send <- msg.data:
				default:
					log.Printf("[WS] [WARN] client on %s too slow, dropping", msg.topic)
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	set := h.clients[c.topic]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.topic)
		if strings.HasPrefix(c.topic, sessionTopicPrefix) {
			delete(h.retained, c.topic)
		}
	}
	h.setCount(c.topic, len(set))
}

func (h *Hub) setCount(topic string, n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n == 0 {
		delete(h.counts, topic)
		return
	}
	h.counts[topic] = n
}

// Topics lists the topics that currently have at least one client.
func (h *Hub) Topics() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.counts))
	for topic := range h.counts {
		out = append(out, topic)
	}
	return out
}

// Publish sends msg to every client of topic. Retained messages are also
// replayed to clients that join later.
func (h *Hub) Publish(topic string, msg Message, retain bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WS] [ERROR] encoding %s message: %v", msg.Type, err)
		return
	}
	select {
	case h.broadcast <- broadcast{topic: topic, data: data, retain: retain}:
	case <-h.done:
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Serve upgrades the request and attaches the connection to topic until the
// peer goes away. initial messages are sent before anything else.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, topic string, initial ...Message) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{topic: topic, conn: conn, send: make(chan []byte, sendBuffer+len(initial))}
	for _, msg := range initial {
		if data, err := json.Marshal(msg); err == nil {
			c.send <- data
		}
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return context.Canceled
	}

	go c.writePump()
	go c.readPump(h)
	return nil
}

// readPump discards inbound frames; it only exists to notice disconnects and
// answer pings.
func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] [WARN] read error on %s: %v", c.topic, err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("[WS] [WARN] write error on %s: %v", c.topic, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
