// Package realtime pushes board change events to websocket subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// Event tells subscribers that a board changed and which revision is current.
type Event struct {
	Type     string `json:"type"`
	BoardID  string `json:"boardId"`
	Revision int64  `json:"revision"`
	Actor    string `json:"actor,omitempty"`
}

// Client is one websocket subscribed to a single board.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	boardID  string
	memberID string
}

// Hub tracks subscribers per board and fans events out to them.
type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	upgrader   websocket.Upgrader
}

// NewHub creates a hub. checkOrigin decides which browser origins may connect;
// nil accepts any origin.
func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		clients:    map[string]map[*Client]bool{},
		broadcast:  make(chan Event, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Publish queues ev for delivery. Events are dropped when the queue is full.
func (h *Hub) Publish(ev Event) {
	select {
	case h.broadcast <- ev:
	default:
		zap.L().Warn("realtime queue full, dropping event", zap.String("board", ev.BoardID), zap.String("type", ev.Type))
	}
}

// Run delivers events until ctx is cancelled. A new subscriber first receives
// a "subscribed" event for its board.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, subscribers := range h.clients {
				for client := range subscribers {
					close(client.send)
				}
			}
			h.clients = map[string]map[*Client]bool{}
			return
		case client := <-h.register:
			if h.clients[client.boardID] == nil {
				h.clients[client.boardID] = map[*Client]bool{}
			}
			h.clients[client.boardID][client] = true
			if message, err := json.Marshal(Event{Type: "subscribed", BoardID: client.boardID}); err == nil {
				client.send <- message
			}
			zap.L().Debug("realtime subscriber joined", zap.String("board", client.boardID), zap.String("member", client.memberID))
		case client := <-h.unregister:
			h.remove(client)
		case ev := <-h.broadcast:
			message, err := json.Marshal(ev)
			if err != nil {
				zap.L().Error("encode realtime event", zap.Error(err))
				continue
			}
			for client := range h.clients[ev.BoardID] {
				select {
				case client.send <- message:
				default:
					zap.L().Warn("realtime subscriber too slow, disconnecting", zap.String("member", client.memberID))
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	subscribers, ok := h.clients[client.boardID]
	if !ok || !subscribers[client] {
		return
	}
	delete(subscribers, client)
	close(client.send)
	if len(subscribers) == 0 {
		delete(h.clients, client.boardID)
	}
}

// ServeWS upgrades the request and subscribes the connection to boardID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, boardID, memberID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		boardID:  boardID,
		memberID: memberID,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return errors.New("realtime hub stopped")
	}

	go client.writePump()
	go client.readPump()
	return nil
}

// readPump only watches for close and pong frames; subscribers do not send events.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.L().Debug("realtime read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
