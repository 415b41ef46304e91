package broadcast

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Clients only ever send small control messages
	maxMessageSize = 4 * 1024

	defaultSendBuffer = 256
)

// Client is a WebSocket subscriber.
type Client struct {
	id     string
	userID string
	hub    *Hub
	conn   *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool

	logger *zap.Logger
}

var _ Subscriber = (*Client)(nil)

func newClient(userID string, hub *Hub, conn *websocket.Conn, buffer int, logger *zap.Logger) *Client {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	id := uuid.New().String()
	return &Client{
		id:     id,
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, buffer),
		logger: logger.With(
			zap.String("userID", userID),
			zap.String("connectionID", id),
		),
	}
}

func (c *Client) ID() string        { return c.id }
func (c *Client) OwnerID() string   { return c.userID }
func (c *Client) Transport() string { return "ws" }

func (c *Client) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which then closes the socket.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump only watches for the peer going away; clients never send data
// the server acts on.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		c.logger.Debug("ignoring client message", zap.ByteString("message", bytes.TrimSpace(message)))
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
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("websocket write failed", zap.Error(err))
				c.hub.Unregister(c)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.Unregister(c)
				return
			}
		}
	}
}

// WSServer upgrades stream requests to WebSocket subscribers.
type WSServer struct {
	hub        *Hub
	upgrader   websocket.Upgrader
	sendBuffer int
	logger     *zap.Logger
}

// NewWSServer creates a server. checkOrigin may be nil to allow any origin.
func NewWSServer(hub *Hub, sendBuffer int, checkOrigin func(*http.Request) bool, logger *zap.Logger) *WSServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WSServer{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		sendBuffer: sendBuffer,
		logger:     logger,
	}
}

// Serve upgrades the request and registers the connection for userID. The
// caller has already authenticated the request.
func (s *WSServer) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	limit := s.hub.cfg.MaxConnectionsPerUser
	if limit > 0 && s.hub.ConnectionCount(userID) >= limit {
		s.logger.Warn("connection limit exceeded", zap.String("userID", userID))
		http.Error(w, "Connection limit exceeded", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		return
	}

	client := newClient(userID, s.hub, conn, s.sendBuffer, s.logger)
	if err := s.hub.Register(client); err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	client.Send(connectedPayload(client.id, s.hub.now()))

	go client.writePump()
	go client.readPump()
}
