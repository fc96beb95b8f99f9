package room

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/YF-George/lobbysync/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades room connections and pumps frames between the
// websocket and the room's actor.
type WSHandler struct {
	registry *Registry
}

func NewWSHandler(registry *Registry) *WSHandler {
	return &WSHandler{registry: registry}
}

func (h *WSHandler) Serve(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(errors.BadRequest("Invalid Room ID", err))
		return
	}

	// advisory identity hints, not authenticated
	userID := c.DefaultQuery("userId", "anonymous")
	userName := c.DefaultQuery("userName", "mystery player")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the failure response
		log.Printf("room %s: upgrade failed: %v", roomID, err)
		return
	}

	conn := newWSConn(ws)
	actor := h.registry.Connect(c.Request.Context(), roomID, conn, userID, userName)
	defer func() {
		actor.Disconnect(conn.ID())
		conn.Close()
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("room %s: dropping unreadable frame from %s: %v", roomID, conn.ID(), err)
			continue
		}
		switch msg.Type {
		case MessageSync:
			if len(msg.Update) > 0 {
				actor.HandleUpdate(conn.ID(), msg.Update)
			}
		case MessageAwareness:
			actor.HandleAwareness(conn.ID(), msg.ActiveTab)
		default:
			// unknown frame types are ignored
		}
	}
}

// wsConn adapts a websocket to the Conn interface with a buffered,
// non-blocking writer so one slow client cannot stall the room actor.
type wsConn struct {
	id        string
	ws        *websocket.Conn
	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newWSConn(ws *websocket.Conn) *wsConn {
	c := &wsConn{
		id:     uuid.NewString(),
		ws:     ws,
		send:   make(chan []byte, 64),
		closed: make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *wsConn) ID() string {
	return c.id
}

func (c *wsConn) Send(msg []byte) {
	select {
	case c.send <- msg:
	case <-c.closed:
	default:
		// a client this far behind has lost frames it can only recover
		// through a fresh full-state sync, so force a reconnect
		log.Printf("conn %s: send buffer full, closing", c.id)
		c.Close()
	}
}

func (c *wsConn) writeLoop() {
	for {
		select {
		case msg := <-c.send:
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *wsConn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.ws != nil {
			c.ws.Close()
		}
	})
}
