// Package broadcast fans change events out to every open view of an owner's
// canvas. The Hub is an ordinary value created at startup and handed to the
// service and the stream handlers; nothing here is global.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"brain2-canvas/internal/domain"
	"brain2-canvas/internal/observability"

	"go.uber.org/zap"
)

// ErrConnectionLimit is returned by Register when the owner already has the
// maximum number of open views.
var ErrConnectionLimit = errors.New("connection limit exceeded")

// Subscriber is one open push connection.
type Subscriber interface {
	ID() string
	OwnerID() string
	Transport() string
	// Send queues a message without blocking. It reports false when the
	// connection can no longer take messages.
	Send(msg []byte) bool
	Close()
}

// Broadcaster publishes a committed change to the owner's open views.
type Broadcaster interface {
	Publish(ctx context.Context, ev domain.ChangeEvent) error
}

// HubConfig tunes a Hub.
type HubConfig struct {
	KeepAlive             time.Duration
	MaxConnectionsPerUser int
}

// Hub keeps the open connections of every owner.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[string]Subscriber

	cfg     HubConfig
	now     func() time.Time
	metrics *observability.Collector
	logger  *zap.Logger
}

var _ Broadcaster = (*Hub)(nil)

// NewHub creates an empty hub. metrics may be nil.
func NewHub(cfg HubConfig, metrics *observability.Collector, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 30 * time.Second
	}
	return &Hub{
		connections: make(map[string]map[string]Subscriber),
		cfg:         cfg,
		now:         time.Now,
		metrics:     metrics,
		logger:      logger,
	}
}

// Register adds a connection under its owner.
func (h *Hub) Register(sub Subscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	owner := sub.OwnerID()
	if owner == "" {
		return domain.ErrMissingOwner
	}
	subs := h.connections[owner]
	if h.cfg.MaxConnectionsPerUser > 0 && len(subs) >= h.cfg.MaxConnectionsPerUser {
		return fmt.Errorf("%w: %d open for %s", ErrConnectionLimit, len(subs), owner)
	}
	if subs == nil {
		subs = make(map[string]Subscriber)
		h.connections[owner] = subs
	}
	subs[sub.ID()] = sub
	h.metrics.ConnectionOpened(sub.Transport())

	h.logger.Info("subscriber registered",
		zap.String("userID", owner),
		zap.String("connectionID", sub.ID()),
		zap.String("transport", sub.Transport()),
		zap.Int("userConnections", len(subs)),
	)
	return nil
}

// Unregister removes and closes a connection. Unknown connections are ignored.
func (h *Hub) Unregister(sub Subscriber) {
	if h.remove(sub) {
		sub.Close()
	}
}

func (h *Hub) remove(sub Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.connections[sub.OwnerID()]
	if !ok {
		return false
	}
	if _, ok := subs[sub.ID()]; !ok {
		return false
	}
	delete(subs, sub.ID())
	if len(subs) == 0 {
		delete(h.connections, sub.OwnerID())
	}
	h.metrics.ConnectionClosed(sub.Transport())

	h.logger.Info("subscriber unregistered",
		zap.String("userID", sub.OwnerID()),
		zap.String("connectionID", sub.ID()),
		zap.Int("remainingConnections", len(subs)),
	)
	return true
}

// Publish delivers ev to every connection of its owner. Connections that
// cannot take the message are dropped.
func (h *Hub) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	if ev.OwnerID == "" {
		return domain.ErrMissingOwner
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = h.now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}

	sent, dropped := h.deliver(ev.OwnerID, data)
	h.metrics.ObserveEvent(string(ev.Type))

	h.logger.Debug("event published",
		zap.String("userID", ev.OwnerID),
		zap.String("type", string(ev.Type)),
		zap.Int("elements", len(ev.Elements)),
		zap.Int("sent", sent),
		zap.Int("dropped", dropped),
	)
	return nil
}

func (h *Hub) deliver(ownerID string, data []byte) (sent, dropped int) {
	h.mu.RLock()
	subs := make([]Subscriber, 0, len(h.connections[ownerID]))
	for _, s := range h.connections[ownerID] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		if s.Send(data) {
			sent++
			continue
		}
		dropped++
		h.logger.Warn("dropping dead subscriber",
			zap.String("userID", ownerID),
			zap.String("connectionID", s.ID()),
		)
		h.Unregister(s)
	}
	h.metrics.ObservePruned(dropped)
	return sent, dropped
}

// KeepAlive sends a keepalive event on every open connection and prunes the
// ones that fail. It returns the number pruned.
func (h *Hub) KeepAlive() int {
	data, err := json.Marshal(domain.NewKeepAlive(h.now().UTC()))
	if err != nil {
		return 0
	}

	h.mu.RLock()
	owners := make([]string, 0, len(h.connections))
	for owner := range h.connections {
		owners = append(owners, owner)
	}
	h.mu.RUnlock()

	pruned := 0
	for _, owner := range owners {
		_, dropped := h.deliver(owner, data)
		pruned += dropped
	}
	return pruned
}

// Run sends keepalives until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub shutting down")
			h.closeAll()
			return
		case <-ticker.C:
			if n := h.KeepAlive(); n > 0 {
				h.logger.Info("keepalive pruned connections", zap.Int("count", n))
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	all := h.connections
	h.connections = make(map[string]map[string]Subscriber)
	h.mu.Unlock()

	for _, subs := range all {
		for _, s := range subs {
			h.metrics.ConnectionClosed(s.Transport())
			s.Close()
		}
	}
}

// ConnectionCount returns the number of open connections for an owner.
func (h *Hub) ConnectionCount(ownerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[ownerID])
}

// ConnectionInfo describes one open connection.
type ConnectionInfo struct {
	ID        string `json:"id"`
	Transport string `json:"transport"`
}

// Connections lists an owner's open connections.
func (h *Hub) Connections(ownerID string) []ConnectionInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]ConnectionInfo, 0, len(h.connections[ownerID]))
	for _, s := range h.connections[ownerID] {
		out = append(out, ConnectionInfo{ID: s.ID(), Transport: s.Transport()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// connectedMessage is the first message every new connection receives.
type connectedMessage struct {
	Type         domain.EventType `json:"type"`
	Timestamp    time.Time        `json:"timestamp"`
	ConnectionID string           `json:"connectionId"`
}

func connectedPayload(id string, at time.Time) []byte {
	data, _ := json.Marshal(connectedMessage{Type: domain.EventConnected, Timestamp: at.UTC(), ConnectionID: id})
	return data
}
