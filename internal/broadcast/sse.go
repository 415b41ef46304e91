package broadcast

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sseSubscriber is a Server-Sent Events stream for clients that cannot
// open a WebSocket.
type sseSubscriber struct {
	id     string
	userID string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

var _ Subscriber = (*sseSubscriber)(nil)

func newSSESubscriber(userID string, buffer int) *sseSubscriber {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &sseSubscriber{id: uuid.New().String(), userID: userID, send: make(chan []byte, buffer)}
}

func (s *sseSubscriber) ID() string        { return s.id }
func (s *sseSubscriber) OwnerID() string   { return s.userID }
func (s *sseSubscriber) Transport() string { return "sse" }

func (s *sseSubscriber) Send(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

func (s *sseSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// SSEServer streams events as text/event-stream.
type SSEServer struct {
	hub        *Hub
	sendBuffer int
	logger     *zap.Logger
}

func NewSSEServer(hub *Hub, sendBuffer int, logger *zap.Logger) *SSEServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SSEServer{hub: hub, sendBuffer: sendBuffer, logger: logger}
}

// Serve holds the request open until the client leaves or the hub drops it.
func (s *SSEServer) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := newSSESubscriber(userID, s.sendBuffer)
	if err := s.hub.Register(sub); err != nil {
		http.Error(w, "Connection limit exceeded", http.StatusTooManyRequests)
		return
	}
	defer s.hub.Unregister(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, connectedPayload(sub.id, s.hub.now()))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-sub.send:
			if !ok {
				return
			}
			if err := writeEvent(w, msg); err != nil {
				s.logger.Debug("sse write failed", zap.String("connectionID", sub.id), zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, data []byte) error {
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
