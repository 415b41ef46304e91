package canvas

import (
	"context"

	"brain2-canvas/internal/domain"
	"brain2-canvas/internal/repository"
)

// Lifecycle wraps the creation and deletion contract so that every created or
// deleted element drops its owner's cached stats. Deletes re-parent children,
// which changes mapped counts as well as totals.
func (s *Service) Lifecycle(lc repository.Lifecycle) repository.Lifecycle {
	return &statsLifecycle{inner: lc, svc: s}
}

type statsLifecycle struct {
	inner repository.Lifecycle
	svc   *Service
}

func (l *statsLifecycle) CreateDot(ctx context.Context, dot *domain.Dot) error {
	if err := l.inner.CreateDot(ctx, dot); err != nil {
		return err
	}
	l.svc.invalidateStats(ctx, dot.OwnerID)
	return nil
}

func (l *statsLifecycle) CreateWheel(ctx context.Context, wheel *domain.Wheel) error {
	if err := l.inner.CreateWheel(ctx, wheel); err != nil {
		return err
	}
	l.svc.invalidateStats(ctx, wheel.OwnerID)
	return nil
}

func (l *statsLifecycle) CreateChakra(ctx context.Context, chakra *domain.Chakra) error {
	if err := l.inner.CreateChakra(ctx, chakra); err != nil {
		return err
	}
	l.svc.invalidateStats(ctx, chakra.OwnerID)
	return nil
}

func (l *statsLifecycle) Delete(ctx context.Context, ownerID string, kind domain.Kind, id string) error {
	if err := l.inner.Delete(ctx, ownerID, kind, id); err != nil {
		return err
	}
	l.svc.invalidateStats(ctx, ownerID)
	return nil
}
