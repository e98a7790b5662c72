package server

import (
	"encoding/json"
	"net/http"

	"stocks-ngine/src/publisher"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// outbound is a pre-encoded message. Status messages have no ticker and go to
// every client.
type outbound struct {
	ticker  string
	payload []byte
}

// MSubscribeCommand narrows instrument updates to the given tickers.
// An empty list restores the full stream.
type MSubscribeCommand struct {
	Command string   `json:"command"`
	Tickers []string `json:"tickers"`
}

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// runHub owns the client set until Stop.
func (s *APIServer) runHub() {
	for {
		select {
		case <-s.quit:
			for client := range s.clients {
				delete(s.clients, client)
				client.closeSend()
			}
			s.clientCount.Store(0)
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.clientCount.Store(int64(len(s.clients)))

			// Latest status of each type on connect
			s.statusMu.RLock()
			for _, payload := range s.payloads {
				client.trySend(payload)
			}
			s.statusMu.RUnlock()

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				client.closeSend()
				s.clientCount.Store(int64(len(s.clients)))
			}

		case msg := <-s.broadcast:
			for client := range s.clients {
				if !client.follows(msg.ticker) {
					continue
				}
				if !client.trySend(msg.payload) {
					// Slow client, drop it so the hub never blocks
					delete(s.clients, client)
					client.closeSend()
				}
			}
			s.clientCount.Store(int64(len(s.clients)))
		}
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *APIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := newClient(s, conn)

	select {
	case s.register <- client:
	case <-s.quit:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *APIServer) HandleClientMessage(client *Client, message []byte) {
	var cmd MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		return
	}

	client.setFilter(cmd.Tickers)

	ack, err := json.Marshal(publisher.Envelope{Type: "subscribed", Data: gin.H{"tickers": cmd.Tickers}})
	if err != nil {
		return
	}
	// The hub may have dropped this client already
	client.trySend(ack)
}
