// Package canvas implements the mutation and read operations behind the
// canvas HTTP API: ownership-checked re-parenting, position saves, the
// de-duplicated read model and aggregate stats. Every successful write is
// announced on the owner's change broadcast after it commits.
package canvas

import (
	"context"
	"errors"
	"time"

	"brain2-canvas/internal/broadcast"
	"brain2-canvas/internal/cache"
	"brain2-canvas/internal/domain"
	"brain2-canvas/internal/geometry"
	"brain2-canvas/internal/observability"
	"brain2-canvas/internal/repository"
	apperrors "brain2-canvas/pkg/errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Settings are the geometry and caching tunables the service needs.
type Settings struct {
	Footprints   geometry.Footprints
	Layout       geometry.Layout
	CollisionGap float64
	StatsTTL     time.Duration
}

// DefaultSettings mirrors the stock canvas configuration.
func DefaultSettings() Settings {
	return Settings{
		Footprints:   geometry.DefaultFootprints,
		Layout:       geometry.DefaultLayout,
		CollisionGap: 10,
		StatsTTL:     5 * time.Minute,
	}
}

// Service is the canvas mapping engine.
type Service struct {
	repo     repository.Repository
	events   broadcast.Broadcaster
	cache    cache.Cache
	metrics  *observability.Collector
	tracer   trace.Tracer
	logger   *zap.Logger
	settings Settings
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCache sets the stats cache. Without it stats are computed every time.
func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithMetrics attaches a Prometheus collector.
func WithMetrics(c *observability.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithTracer attaches an OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// NewService creates a canvas service.
func NewService(
	repo repository.Repository,
	events broadcast.Broadcaster,
	settings Settings,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:     repo,
		events:   events,
		cache:    cache.Noop{},
		tracer:   observability.NoopTracer(),
		logger:   logger,
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// span starts an operation span and returns a finisher that records the
// outcome. Not-found results are expected and are not marked as errors.
func (s *Service) span(ctx context.Context, op, ownerID string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	attrs = append(attrs, attribute.String("owner.id", ownerID))
	ctx, span := s.tracer.Start(ctx, "canvas."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil && !apperrors.IsNotFound(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// publish announces a committed change. Delivery is best effort, so a
// failure is logged and never reported to the caller.
func (s *Service) publish(ctx context.Context, ev domain.ChangeEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish change event",
			zap.String("userID", ev.OwnerID),
			zap.String("eventType", string(ev.Type)),
			zap.Error(err),
		)
	}
}

func (s *Service) invalidateStats(ctx context.Context, ownerID string) {
	if err := s.cache.Delete(ctx, cache.StatsKey(ownerID)); err != nil {
		s.logger.Warn("failed to invalidate stats cache",
			zap.String("userID", ownerID),
			zap.Error(err),
		)
	}
}

func requireOwner(ownerID string) error {
	if ownerID == "" {
		return apperrors.NewUnauthorizedError("authentication required")
	}
	return nil
}

// translate turns repository and domain errors into application errors.
// Missing and foreign elements both come back as a plain not-found.
func translate(op, resource string, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.GetAppError(err) != nil {
		return err
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return apperrors.NewNotFoundError(resource).WithCause(err)
	case errors.Is(err, domain.ErrInvalidMapping),
		errors.Is(err, domain.ErrInvalidKind),
		errors.Is(err, domain.ErrInvalidPosition):
		return apperrors.NewValidationError(err.Error()).WithCause(err)
	case errors.Is(err, domain.ErrMissingOwner):
		return apperrors.NewUnauthorizedError("authentication required")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewUnavailableError("canvas store").WithCause(err)
	}
	return apperrors.NewDatabaseError(op, err)
}
