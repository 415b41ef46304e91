package observability

import (
	"context"
	"errors"
	"time"

	"brain2-canvas/internal/domain"
	"brain2-canvas/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentRepository wraps a store so every call gets a span and is
// counted in the store metrics.
func InstrumentRepository(inner repository.Repository, tracer trace.Tracer, c *Collector) repository.Repository {
	if tracer == nil {
		tracer = NoopTracer()
	}
	return &tracedRepository{inner: inner, tracer: tracer, metrics: c}
}

type tracedRepository struct {
	inner   repository.Repository
	tracer  trace.Tracer
	metrics *Collector
}

func (r *tracedRepository) start(ctx context.Context, op, ownerID string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	attrs = append(attrs, attribute.String("owner.id", ownerID))
	ctx, span := r.tracer.Start(ctx, "repository."+op, trace.WithAttributes(attrs...))
	begin := time.Now()
	return ctx, func(err error) {
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		r.metrics.ObserveDB(op, err, time.Since(begin))
	}
}

func elementAttrs(kind domain.Kind, id string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("element.kind", string(kind)),
		attribute.String("element.id", id),
	}
}

// Ping forwards to the inner store when it can report health.
func (r *tracedRepository) Ping(ctx context.Context) error {
	if p, ok := r.inner.(repository.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (r *tracedRepository) GetDot(ctx context.Context, ownerID, id string) (d *domain.Dot, err error) {
	ctx, end := r.start(ctx, "GetDot", ownerID, elementAttrs(domain.KindDot, id)...)
	defer func() { end(err) }()
	return r.inner.GetDot(ctx, ownerID, id)
}

func (r *tracedRepository) GetWheel(ctx context.Context, ownerID, id string) (w *domain.Wheel, err error) {
	ctx, end := r.start(ctx, "GetWheel", ownerID, elementAttrs(domain.KindWheel, id)...)
	defer func() { end(err) }()
	return r.inner.GetWheel(ctx, ownerID, id)
}

func (r *tracedRepository) GetChakra(ctx context.Context, ownerID, id string) (c *domain.Chakra, err error) {
	ctx, end := r.start(ctx, "GetChakra", ownerID, elementAttrs(domain.KindChakra, id)...)
	defer func() { end(err) }()
	return r.inner.GetChakra(ctx, ownerID, id)
}

func (r *tracedRepository) ListDots(ctx context.Context, ownerID string) (out []*domain.Dot, err error) {
	ctx, end := r.start(ctx, "ListDots", ownerID)
	defer func() { end(err) }()
	return r.inner.ListDots(ctx, ownerID)
}

func (r *tracedRepository) ListWheels(ctx context.Context, ownerID string) (out []*domain.Wheel, err error) {
	ctx, end := r.start(ctx, "ListWheels", ownerID)
	defer func() { end(err) }()
	return r.inner.ListWheels(ctx, ownerID)
}

func (r *tracedRepository) ListChakras(ctx context.Context, ownerID string) (out []*domain.Chakra, err error) {
	ctx, end := r.start(ctx, "ListChakras", ownerID)
	defer func() { end(err) }()
	return r.inner.ListChakras(ctx, ownerID)
}

func (r *tracedRepository) SaveDotParent(ctx context.Context, dot *domain.Dot) (err error) {
	attrs := append(elementAttrs(domain.KindDot, dot.ID), attribute.String("parent", dot.Parent.String()))
	ctx, end := r.start(ctx, "SaveDotParent", dot.OwnerID, attrs...)
	defer func() { end(err) }()
	return r.inner.SaveDotParent(ctx, dot)
}

func (r *tracedRepository) SaveWheelParent(ctx context.Context, wheel *domain.Wheel) (err error) {
	attrs := append(elementAttrs(domain.KindWheel, wheel.ID), attribute.String("chakra.id", wheel.ChakraID))
	ctx, end := r.start(ctx, "SaveWheelParent", wheel.OwnerID, attrs...)
	defer func() { end(err) }()
	return r.inner.SaveWheelParent(ctx, wheel)
}

func (r *tracedRepository) SavePosition(ctx context.Context, ownerID string, kind domain.Kind, id string, pos domain.Position, at time.Time) (err error) {
	ctx, end := r.start(ctx, "SavePosition", ownerID, elementAttrs(kind, id)...)
	defer func() { end(err) }()
	return r.inner.SavePosition(ctx, ownerID, kind, id, pos, at)
}

func (r *tracedRepository) CreateDot(ctx context.Context, dot *domain.Dot) (err error) {
	ctx, end := r.start(ctx, "CreateDot", dot.OwnerID)
	defer func() { end(err) }()
	return r.inner.CreateDot(ctx, dot)
}

func (r *tracedRepository) CreateWheel(ctx context.Context, wheel *domain.Wheel) (err error) {
	ctx, end := r.start(ctx, "CreateWheel", wheel.OwnerID)
	defer func() { end(err) }()
	return r.inner.CreateWheel(ctx, wheel)
}

func (r *tracedRepository) CreateChakra(ctx context.Context, chakra *domain.Chakra) (err error) {
	ctx, end := r.start(ctx, "CreateChakra", chakra.OwnerID)
	defer func() { end(err) }()
	return r.inner.CreateChakra(ctx, chakra)
}

func (r *tracedRepository) Delete(ctx context.Context, ownerID string, kind domain.Kind, id string) (err error) {
	ctx, end := r.start(ctx, "Delete", ownerID, elementAttrs(kind, id)...)
	defer func() { end(err) }()
	return r.inner.Delete(ctx, ownerID, kind, id)
}
