package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"brain2-canvas/internal/domain"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSRelay lets several API instances share one push channel. Publish
// sends the event to NATS; every instance, this one included, receives it
// on its subscription and hands it to its local Hub.
type NATSRelay struct {
	conn    *nats.Conn
	subject string
	hub     *Hub
	logger  *zap.Logger

	mu  sync.Mutex
	sub *nats.Subscription
}

var _ Broadcaster = (*NATSRelay)(nil)

// envelope carries the owner, which the event itself keeps off the wire.
type envelope struct {
	OwnerID string             `json:"ownerId"`
	Event   domain.ChangeEvent `json:"event"`
}

// NewNATSRelay connects with automatic reconnection.
func NewNATSRelay(url, subject string, hub *Hub, logger *zap.Logger, opts ...nats.Option) (*NATSRelay, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := []nats.Option{
		nats.Name("canvas-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	if subject == "" {
		subject = "canvas.events"
	}
	return &NATSRelay{conn: nc, subject: subject, hub: hub, logger: logger}, nil
}

// subjectFor maps an owner onto a single subject token.
func (r *NATSRelay) subjectFor(ownerID string) string {
	token := strings.Map(func(c rune) rune {
		switch c {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return c
	}, ownerID)
	return r.subject + "." + token
}

// Publish sends ev to every instance.
func (r *NATSRelay) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	if ev.OwnerID == "" {
		return domain.ErrMissingOwner
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(envelope{OwnerID: ev.OwnerID, Event: ev})
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if err := r.conn.Publish(r.subjectFor(ev.OwnerID), data); err != nil {
		return fmt.Errorf("publishing %s: %w", ev.Type, err)
	}
	return nil
}

// Start subscribes to every owner's subject and feeds the local hub.
func (r *NATSRelay) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub != nil {
		return nil
	}

	sub, err := r.conn.Subscribe(r.subject+".>", func(msg *nats.Msg) {
		var env envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			r.logger.Warn("dropping malformed relay message", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		env.Event.OwnerID = env.OwnerID
		if err := r.hub.Publish(context.Background(), env.Event); err != nil {
			r.logger.Warn("relay delivery failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s.>: %w", r.subject, err)
	}
	if err := r.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("flushing subscription: %w", err)
	}
	r.sub = sub
	return nil
}

// Ping reports whether the connection is up.
func (r *NATSRelay) Ping(ctx context.Context) error {
	if !r.conn.IsConnected() {
		return fmt.Errorf("nats status %s", r.conn.Status())
	}
	return nil
}

func (r *NATSRelay) Close() error {
	r.mu.Lock()
	if r.sub != nil {
		_ = r.sub.Unsubscribe()
		r.sub = nil
	}
	r.mu.Unlock()
	r.conn.Close()
	return nil
}
