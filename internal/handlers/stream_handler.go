package handlers

import (
	"net/http"

	"brain2-canvas/internal/broadcast"
	"brain2-canvas/pkg/api"
	apperrors "brain2-canvas/pkg/errors"
)

// StreamHandler opens push connections and reports on them.
type StreamHandler struct {
	hub  *broadcast.Hub
	ws   *broadcast.WSServer
	sse  *broadcast.SSEServer
	errs *apperrors.ErrorHandler
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(hub *broadcast.Hub, ws *broadcast.WSServer, sse *broadcast.SSEServer, errs *apperrors.ErrorHandler) *StreamHandler {
	return &StreamHandler{hub: hub, ws: ws, sse: sse, errs: errs}
}

// WebSocket handles GET /stream/ws
func (h *StreamHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(h.errs, w, r)
	if !ok {
		return
	}
	h.ws.Serve(w, r, userID)
}

// SSE handles GET /stream/sse
func (h *StreamHandler) SSE(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(h.errs, w, r)
	if !ok {
		return
	}
	h.sse.Serve(w, r, userID)
}

// Connections handles GET /stream/connections
func (h *StreamHandler) Connections(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(h.errs, w, r)
	if !ok {
		return
	}
	conns := h.hub.Connections(userID)
	resp := api.ConnectionsResponse{Connections: len(conns), Transports: make(map[string]int)}
	for _, c := range conns {
		resp.Transports[c.Transport]++
	}
	api.Success(w, http.StatusOK, resp)
}
