package server

import (
	"encoding/json"
	"net/http"

	"parking-viewer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// clientReply is an answer to one client's command, delivered by the hub.
type clientReply struct {
	client  *Client
	message interface{}
}

// handleWebsockets is the main Hub loop
func (s *ViewServer) handleWebsockets() {
	for {
		select {
		case <-s.quit:
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			s.countClients()
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.countClients()
			// Send the current view on connect
			client.send <- s.initialView()

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
				s.countClients()
			}

		case r := <-s.replies:
			// The client may have been evicted while its command ran
			if _, ok := s.clients[r.client]; ok {
				select {
				case r.client.send <- r.message:
				default:
				}
			}

		case message := <-s.broadcast:
			s.stateMutex.Lock()
			s.latestState = message
			s.stateMutex.Unlock()

			for client := range s.clients {
				select {
				case client.send <- message:
				default:
					// Client too slow, disconnect to prevent Hub blocking
					delete(s.clients, client)
					close(client.send)
				}
			}
			s.countClients()
		}
	}
}

// -----------------------------------------------------------------------------

// countClients publishes the hub-owned client count to the health handler
func (s *ViewServer) countClients() {
	s.stateMutex.Lock()
	s.connections = len(s.clients)
	s.stateMutex.Unlock()
}

// -----------------------------------------------------------------------------

func (s *ViewServer) initialView() *models.MViewState {
	if s.Control != nil {
		return s.Control.View()
	}
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	v := *s.latestState
	v.Type = "INITIAL"
	return &v
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

func (s *ViewServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan interface{}, 256),
	}

	select {
	case s.register <- client:
	case <-s.quit:
		conn.Close()
		return
	}

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage runs a session command sent over the websocket and
// answers with the resulting view or an ERROR message.
func (s *ViewServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSessionCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	var response interface{}
	if err := s.runCommand(cmd); err != nil {
		response = &models.MErrorMessage{
			Type:    "ERROR",
			Command: cmd.Command,
			Error:   err.Error(),
			State:   s.Control.State(),
		}
	} else {
		response = s.Control.View()
	}

	// Only the hub sends on client.send, it alone knows whether it is closed
	select {
	case s.replies <- clientReply{client: client, message: response}:
	case <-s.quit:
	}
}
