package canvas

import (
	"context"
	"fmt"

	"brain2-canvas/internal/domain"
	"brain2-canvas/pkg/api"
	apperrors "brain2-canvas/pkg/errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	resultMapped   = "mapped"
	resultUnmapped = "unmapped"
	resultNoOp     = "noop"
	resultFailed   = "failed"
)

// MapDotToWheel attaches a dot to a wheel, or detaches it from its wheel when
// wheelID is nil. Any chakra the dot was attached to is cleared.
func (s *Service) MapDotToWheel(ctx context.Context, ownerID, dotID string, wheelID *string) (*api.MappingResponse, error) {
	return s.mapDot(ctx, ownerID, dotID, domain.KindWheel, wheelID)
}

// MapDotToChakra attaches a dot directly to a chakra, or detaches it from its
// chakra when chakraID is nil. Any wheel the dot was in is cleared.
func (s *Service) MapDotToChakra(ctx context.Context, ownerID, dotID string, chakraID *string) (*api.MappingResponse, error) {
	return s.mapDot(ctx, ownerID, dotID, domain.KindChakra, chakraID)
}

func (s *Service) mapDot(ctx context.Context, ownerID, dotID string, tier domain.Kind, targetID *string) (resp *api.MappingResponse, err error) {
	transition := "dot-" + string(tier)
	ctx, finish := s.span(ctx, "MapDotTo"+tierName(tier), ownerID,
		attribute.String("element.id", dotID),
		attribute.String("target.id", deref(targetID)),
	)
	defer func() { finish(err) }()
	defer func() { s.observeMapping(transition, resp, err) }()

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	ref, err := s.resolveTarget(ctx, ownerID, tier, targetID)
	if err != nil {
		return nil, err
	}
	dot, err := s.repo.GetDot(ctx, ownerID, dotID)
	if err != nil {
		return nil, translate("get_dot", "dot", err)
	}

	if sameParent(dot.Parent, tier, ref) {
		v := s.viewFor(ctx, ownerID)
		out := v.dotResponse(dot)
		return &api.MappingResponse{
			Success: true,
			NoOp:    true,
			Message: noOpMessage("dot", dotID, tier, ref),
			Dot:     &out,
		}, nil
	}

	if err := dot.SetParent(ref); err != nil {
		return nil, translate("map_dot", "dot", err)
	}
	now := s.clock()
	dot.Touch(now)
	if err := s.repo.SaveDotParent(ctx, dot); err != nil {
		return nil, translate("save_dot_parent", "dot", err)
	}
	s.invalidateStats(ctx, ownerID)

	evType := domain.EventMapped
	if ref == nil {
		evType = domain.EventUnmapped
	}
	s.publish(ctx, domain.ChangeEvent{
		Type:    evType,
		OwnerID: ownerID,
		Elements: []domain.ElementChange{{
			Kind:      domain.KindDot,
			ID:        dot.ID,
			Parent:    domain.DotParentChange(dot),
			UpdatedAt: dot.UpdatedAt,
		}},
		Timestamp: now,
	})

	s.logger.Info("dot mapping changed",
		zap.String("userID", ownerID),
		zap.String("dotID", dotID),
		zap.String("parent", dot.Parent.String()),
	)

	v := s.viewFor(ctx, ownerID)
	out := v.dotResponse(dot)
	return &api.MappingResponse{
		Success: true,
		Message: changedMessage("dot", dotID, ref),
		Dot:     &out,
	}, nil
}

// MapWheelToChakra attaches a wheel to a chakra, or detaches it when
// chakraID is nil.
func (s *Service) MapWheelToChakra(ctx context.Context, ownerID, wheelID string, chakraID *string) (resp *api.MappingResponse, err error) {
	const transition = "wheel-chakra"
	ctx, finish := s.span(ctx, "MapWheelToChakra", ownerID,
		attribute.String("element.id", wheelID),
		attribute.String("target.id", deref(chakraID)),
	)
	defer func() { finish(err) }()
	defer func() { s.observeMapping(transition, resp, err) }()

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	ref, err := s.resolveTarget(ctx, ownerID, domain.KindChakra, chakraID)
	if err != nil {
		return nil, err
	}
	wheel, err := s.repo.GetWheel(ctx, ownerID, wheelID)
	if err != nil {
		return nil, translate("get_wheel", "wheel", err)
	}

	if sameParent(domain.ParentOf(wheel), domain.KindChakra, ref) {
		v := s.viewFor(ctx, ownerID)
		out := v.wheelResponse(wheel)
		return &api.MappingResponse{
			Success: true,
			NoOp:    true,
			Message: noOpMessage("wheel", wheelID, domain.KindChakra, ref),
			Wheel:   &out,
		}, nil
	}

	wheel.ChakraID = ""
	if ref != nil {
		wheel.ChakraID = ref.ID
	}
	now := s.clock()
	wheel.Touch(now)
	if err := s.repo.SaveWheelParent(ctx, wheel); err != nil {
		return nil, translate("save_wheel_parent", "wheel", err)
	}
	s.invalidateStats(ctx, ownerID)

	evType := domain.EventMapped
	if ref == nil {
		evType = domain.EventUnmapped
	}
	s.publish(ctx, domain.ChangeEvent{
		Type:    evType,
		OwnerID: ownerID,
		Elements: []domain.ElementChange{{
			Kind:      domain.KindWheel,
			ID:        wheel.ID,
			Parent:    domain.WheelParentChange(wheel),
			UpdatedAt: wheel.UpdatedAt,
		}},
		Timestamp: now,
	})

	s.logger.Info("wheel mapping changed",
		zap.String("userID", ownerID),
		zap.String("wheelID", wheelID),
		zap.String("chakraID", wheel.ChakraID),
	)

	v := s.viewFor(ctx, ownerID)
	out := v.wheelResponse(wheel)
	return &api.MappingResponse{
		Success: true,
		Message: changedMessage("wheel", wheelID, ref),
		Wheel:   &out,
	}, nil
}

// resolveTarget checks that the requested parent exists for the owner. A nil
// id means "no parent".
func (s *Service) resolveTarget(ctx context.Context, ownerID string, kind domain.Kind, id *string) (*domain.ParentRef, error) {
	if id == nil {
		return nil, nil
	}
	if *id == "" {
		return nil, apperrors.NewValidationError(fmt.Sprintf("%s id must not be empty; send null to unmap", kind))
	}
	var err error
	switch kind {
	case domain.KindWheel:
		_, err = s.repo.GetWheel(ctx, ownerID, *id)
	case domain.KindChakra:
		_, err = s.repo.GetChakra(ctx, ownerID, *id)
	default:
		err = domain.ErrInvalidMapping
	}
	if err != nil {
		return nil, translate("get_"+string(kind), string(kind), err)
	}
	return &domain.ParentRef{Kind: kind, ID: *id}, nil
}

// sameParent reports whether applying ref on tier would change nothing. An
// unmap on a tier the element is not attached to is a no-op too.
func sameParent(current *domain.ParentRef, tier domain.Kind, ref *domain.ParentRef) bool {
	if ref == nil {
		return current == nil || current.Kind != tier
	}
	return current != nil && *current == *ref
}

// viewFor loads the owner's canvas for building responses. The write has
// already committed, so a failed read only degrades the derived fields.
func (s *Service) viewFor(ctx context.Context, ownerID string) *view {
	v, err := s.load(ctx, ownerID)
	if err != nil {
		s.logger.Warn("failed to load canvas for response",
			zap.String("userID", ownerID),
			zap.Error(err),
		)
		return newView(nil, nil, nil, s.settings)
	}
	return v
}

func (s *Service) observeMapping(transition string, resp *api.MappingResponse, err error) {
	switch {
	case err != nil:
		s.metrics.ObserveMapping(transition, resultFailed)
	case resp.NoOp:
		s.metrics.ObserveMapping(transition, resultNoOp)
	case resp.Dot != nil && resp.Dot.WheelID == nil && resp.Dot.ChakraID == nil,
		resp.Wheel != nil && resp.Wheel.ChakraID == nil:
		s.metrics.ObserveMapping(transition, resultUnmapped)
	default:
		s.metrics.ObserveMapping(transition, resultMapped)
	}
}

func noOpMessage(what, id string, tier domain.Kind, ref *domain.ParentRef) string {
	if ref == nil {
		return fmt.Sprintf("%s %s is not mapped to a %s; nothing to do", what, id, tier)
	}
	return fmt.Sprintf("%s %s is already mapped to %s %s", what, id, ref.Kind, ref.ID)
}

func changedMessage(what, id string, ref *domain.ParentRef) string {
	if ref == nil {
		return fmt.Sprintf("%s %s unmapped", what, id)
	}
	return fmt.Sprintf("%s %s mapped to %s %s", what, id, ref.Kind, ref.ID)
}

func tierName(k domain.Kind) string {
	if k == domain.KindWheel {
		return "Wheel"
	}
	return "Chakra"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
