package socket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"codraft/internal/bus"
	"codraft/internal/document/service"
	"codraft/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CheckOrigin allows connections from the dev frontend origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one live WebSocket connection. It owns the set of bus
// subscriptions opened over this connection; disconnect tears them all down.
type Client struct {
	Service *service.DocumentService
	Conn    *websocket.Conn
	UserID  string

	Send chan []byte
	done chan struct{}

	// Bus subscriptions held by this connection, keyed by topic. Touched
	// only from the read pump goroutine.
	subs map[string]*bus.Subscription
}

// ServeWs upgrades the request and starts the connection's pumps.
func ServeWs(svc *service.DocumentService, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		Service: svc,
		Conn:    conn,
		UserID:  userID,
		Send:    make(chan []byte, 256),
		done:    make(chan struct{}),
		subs:    make(map[string]*bus.Subscription),
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		// Disconnect severs every feed this connection holds, synchronously,
		// before the write pump is told to stop.
		c.closeSubscriptions()
		close(c.done)
		c.Conn.Close()
	}()

	for {
		_, rawMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		c.handleMessage(rawMessage)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second) // Send ping every 30s
	defer ticker.Stop()

	for {
		select {
		case message := <-c.Send:
			c.Conn.WriteMessage(websocket.TextMessage, message)
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return // Connection is dead
			}
		case <-c.done:
			return
		}
	}
}

// enqueue hands a frame to the write pump without ever blocking a publisher.
// A client that cannot drain its buffer loses frames; undelivered events are
// not queued anywhere else.
func (c *Client) enqueue(frame []byte) {
	select {
	case c.Send <- frame:
	case <-c.done:
	default:
		logger.Sugar.Warnf("Client %s's send buffer is full, dropping frame", c.UserID)
	}
}
