package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"wager-escrow-backend/internal/models"
	"wager-escrow-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler streams ledger events to connected clients. Every event
// goes to every client; balances are already public within the escrow.
type WebSocketHandler struct {
	engine *services.EscrowEngine
	hub    *WebSocketHub
}

type WebSocketHub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *models.Event
}

// Client owns one connection. All frames leave through the send channel and
// a single writer goroutine; the websocket conn permits only one concurrent
// writer, and both the hub and the reader loop produce frames.
type Client struct {
	Account string
	Conn    *websocket.Conn
	send    chan Message
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// enqueue never blocks. A client that cannot drain its buffer loses frames
// rather than stalling the hub or its own reader.
func (c *Client) enqueue(msg Message) {
	select {
	case c.send <- msg:
	default:
	}
}

// writePump is the connection's only writer. It exits when the hub closes
// the send channel on unregister, or on the first write error.
func (c *Client) writePump() {
	defer c.Conn.Close()

	for msg := range c.send {
		if err := c.Conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func NewWebSocketHandler(engine *services.EscrowEngine) *WebSocketHandler {
	hub := &WebSocketHub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *models.Event, 100),
	}

	go hub.run()

	return &WebSocketHandler{
		engine: engine,
		hub:    hub,
	}
}

// BroadcastEvent implements services.Broadcaster. The engine calls it while
// holding its state lock, so a full feed drops the event instead of
// blocking the ledger.
func (h *WebSocketHandler) BroadcastEvent(event *models.Event) {
	select {
	case h.hub.broadcast <- event:
	default:
		log.Printf("Event feed full, dropped %s", event.Type)
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	account := c.GetString("account_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &Client{
		Account: account,
		Conn:    conn,
		send:    make(chan Message, 32),
	}

	h.hub.register <- client
	go client.writePump()

	defer func() {
		h.hub.unregister <- client
	}()

	h.sendBalance(client)

	for {
		var msg Message
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		h.handleMessage(client, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(client *Client, msg *Message) {
	switch msg.Type {
	case "PING":
		h.sendPong(client)
	case "BALANCE":
		h.sendBalance(client)
	}
}

func (h *WebSocketHandler) sendBalance(client *Client) {
	balance := h.engine.BalanceOf(client.Account)
	locked := h.engine.LockedOf(client.Account)

	client.enqueue(Message{
		Type: "BALANCE_UPDATE",
		Data: gin.H{
			"account": client.Account,
			"balance": balance,
			"locked":  locked,
			"total":   balance + locked,
		},
	})
}

func (h *WebSocketHandler) sendPong(client *Client) {
	client.enqueue(Message{
		Type: "PONG",
		Data: gin.H{
			"timestamp": time.Now().Unix(),
		},
	})
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			hub.clients[client] = true
			log.Printf("Client registered: %s", client.Account)

		case client := <-hub.unregister:
			if _, ok := hub.clients[client]; ok {
				delete(hub.clients, client)
				close(client.send)
				log.Printf("Client unregistered: %s", client.Account)
			}

		case event := <-hub.broadcast:
			msg := Message{
				Type: event.Type,
				Data: event,
			}
			for client := range hub.clients {
				client.enqueue(msg)
			}
		}
	}
}
