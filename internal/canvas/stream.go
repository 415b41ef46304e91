package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"brain2-canvas/internal/domain"
	"brain2-canvas/internal/middleware"
	apperrors "brain2-canvas/pkg/errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// StreamURL returns the WebSocket push channel URL for the client's server.
// The token travels as a query parameter since browsers cannot set headers
// on a WebSocket handshake.
func (c *Client) StreamURL() (string, error) {
	u, err := url.Parse(c.baseURL + "/api/v1/stream/ws")
	if err != nil {
		return "", fmt.Errorf("parsing stream url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if c.token != "" {
		q := u.Query()
		q.Set("token", c.token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Stream reads change events from the push channel.
type Stream struct {
	conn *websocket.Conn
}

// OpenStream connects to the push channel. The first event read is the
// server greeting, which carries no data.
func (c *Client) OpenStream(ctx context.Context) (*Stream, error) {
	target, err := c.StreamURL()
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if c.devUser != "" {
		header.Set(middleware.DevUserHeader, c.devUser)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, target, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing push channel: %w", statusError(resp.StatusCode, err.Error()))
		}
		return nil, fmt.Errorf("dialing push channel: %w", err)
	}
	return &Stream{conn: conn}, nil
}

// Next blocks until the next event arrives or the connection fails.
func (s *Stream) Next() (domain.ChangeEvent, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return domain.ChangeEvent{}, err
	}
	var ev domain.ChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("decoding event: %w", err)
	}
	return ev, nil
}

// Close sends a normal close frame and closes the connection.
func (s *Stream) Close() error {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}

// Follower keeps a Store in step with the server: it seeds the store from a
// snapshot, applies pushed events, and after a dropped connection reconnects
// and re-seeds, since the push channel is best-effort.
type Follower struct {
	client   *Client
	store    *Store
	logger   *zap.Logger
	minDelay time.Duration
	maxDelay time.Duration

	// OnEvent, when set, is called after each event is applied with the
	// number of elements it changed.
	OnEvent func(ev domain.ChangeEvent, applied int)
}

// NewFollower creates a follower for store.
func NewFollower(client *Client, store *Store, logger *zap.Logger) *Follower {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Follower{
		client:   client,
		store:    store,
		logger:   logger,
		minDelay: 500 * time.Millisecond,
		maxDelay: 30 * time.Second,
	}
}

// Run follows until ctx is cancelled. Authentication failures stop it, as
// retrying cannot fix them.
func (f *Follower) Run(ctx context.Context) error {
	retry := backoff{min: f.minDelay, max: f.maxDelay}
	for {
		seeded, err := f.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if isFatal(err) {
			return err
		}
		if seeded {
			retry.reset()
		}
		delay := retry.next()
		f.logger.Warn("push channel lost, reconnecting",
			zap.Error(err),
			zap.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// backoff doubles the reconnect delay up to max. A session that got as far
// as seeding resets it.
type backoff struct {
	min, max time.Duration
	cur      time.Duration
}

func (b *backoff) next() time.Duration {
	if b.cur < b.min {
		b.cur = b.min
	}
	d := b.cur
	b.cur *= 2
	if b.cur > b.max {
		b.cur = b.max
	}
	return d
}

func (b *backoff) reset() { b.cur = b.min }

// session opens the channel first and then seeds, so no change made between
// the snapshot and the subscription is missed.
func (f *Follower) session(ctx context.Context) (seeded bool, err error) {
	stream, err := f.client.OpenStream(ctx)
	if err != nil {
		return false, err
	}
	defer stream.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			stream.conn.Close()
		case <-done:
		}
	}()

	snap, err := f.client.Snapshot(ctx)
	if err != nil {
		return false, fmt.Errorf("seeding store: %w", err)
	}
	f.store.Seed(snap)
	f.logger.Info("store seeded",
		zap.Int("dots", len(snap.Dots)),
		zap.Int("wheels", len(snap.Wheels)),
		zap.Int("chakras", len(snap.Chakras)),
	)

	for {
		ev, err := stream.Next()
		if err != nil {
			return true, err
		}
		applied := f.store.ApplyRemoteEvent(ev)
		if f.OnEvent != nil {
			f.OnEvent(ev, applied)
		}
	}
}

func isFatal(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == websocket.ClosePolicyViolation {
		return true
	}
	return apperrors.IsUnauthorized(err)
}
