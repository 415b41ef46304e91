package canvas

import (
	"context"
	"errors"

	"brain2-canvas/internal/domain"
	"brain2-canvas/pkg/api"
	apperrors "brain2-canvas/pkg/errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Skip reasons reported per entry by BatchSavePosition.
const (
	ReasonInvalidKind     = "invalid kind"
	ReasonInvalidPosition = "invalid position"
	ReasonNotFound        = "not found"
	ReasonSaveFailed      = "save failed"
)

// SavePosition stores the rounded position of an owned element. With
// validate set the response lists same-layer elements the new footprint
// overlaps; the save happens either way.
func (s *Service) SavePosition(ctx context.Context, ownerID string, kind domain.Kind, id string, pos domain.Position, validate bool) (resp *api.PositionResponse, err error) {
	ctx, finish := s.span(ctx, "SavePosition", ownerID,
		attribute.String("element.kind", string(kind)),
		attribute.String("element.id", id),
	)
	defer func() { finish(err) }()

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, translate("save_position", "element", domain.ErrInvalidKind)
	}
	if !pos.Valid() {
		return nil, translate("save_position", "element", domain.ErrInvalidPosition)
	}

	rounded := pos.Rounded()
	now := s.clock()
	if err := s.repo.SavePosition(ctx, ownerID, kind, id, rounded, now); err != nil {
		return nil, translate("save_position", string(kind), err)
	}
	s.metrics.ObservePosition("single", string(kind))

	resp = &api.PositionResponse{
		Success:   true,
		Kind:      kind,
		ID:        id,
		Position:  rounded,
		UpdatedAt: now,
	}
	if validate {
		v := s.viewFor(ctx, ownerID)
		resp.Collisions = v.collisions(kind, id, rounded, s.settings.CollisionGap)
	}

	s.publish(ctx, domain.ChangeEvent{
		Type:    domain.EventPositionUpdated,
		OwnerID: ownerID,
		Elements: []domain.ElementChange{{
			Kind:      kind,
			ID:        id,
			Position:  &rounded,
			UpdatedAt: now,
		}},
		Timestamp: now,
	})
	return resp, nil
}

// BatchSavePosition saves every entry it can. Entries with an unknown kind,
// a bad position or an element the owner does not have are skipped and
// reported; the call as a whole still succeeds. One batch event announces
// all applied entries.
func (s *Service) BatchSavePosition(ctx context.Context, ownerID string, req api.BatchSavePositionRequest) (resp *api.BatchPositionResponse, err error) {
	ctx, finish := s.span(ctx, "BatchSavePosition", ownerID,
		attribute.Int("batch.size", len(req.Positions)),
	)
	defer func() { finish(err) }()

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if len(req.Positions) == 0 {
		return nil, apperrors.NewValidationError("positions must not be empty")
	}

	now := s.clock()
	resp = &api.BatchPositionResponse{
		Success: true,
		Results: make([]api.BatchEntryResult, 0, len(req.Positions)),
	}
	var (
		changes   []domain.ElementChange
		lastFault error
	)

	for _, entry := range req.Positions {
		result := api.BatchEntryResult{Kind: entry.Kind, ID: entry.ID}

		kind, perr := domain.ParseKind(entry.Kind)
		pos := domain.Position{X: entry.X, Y: entry.Y}
		switch {
		case perr != nil:
			result.Status, result.Reason = api.EntrySkipped, ReasonInvalidKind
		case !pos.Valid():
			result.Status, result.Reason = api.EntrySkipped, ReasonInvalidPosition
		default:
			rounded := pos.Rounded()
			serr := s.repo.SavePosition(ctx, ownerID, kind, entry.ID, rounded, now)
			switch {
			case serr == nil:
				result.Kind = string(kind)
				result.Status = api.EntryApplied
				result.Position = &rounded
				changes = append(changes, domain.ElementChange{
					Kind:      kind,
					ID:        entry.ID,
					Position:  &rounded,
					UpdatedAt: now,
				})
				s.metrics.ObservePosition("batch", string(kind))
			case errors.Is(serr, domain.ErrNotFound):
				result.Status, result.Reason = api.EntrySkipped, ReasonNotFound
			default:
				lastFault = serr
				result.Status, result.Reason = api.EntrySkipped, ReasonSaveFailed
				s.logger.Error("batch position save failed",
					zap.String("userID", ownerID),
					zap.String("kind", string(kind)),
					zap.String("id", entry.ID),
					zap.Error(serr),
				)
			}
		}

		if result.Status == api.EntryApplied {
			resp.Applied++
		} else {
			resp.Skipped++
		}
		resp.Results = append(resp.Results, result)
	}
	s.metrics.ObserveBatchSkipped(resp.Skipped)

	// Nothing was written and the store is failing: report the outage
	// instead of a batch of skips.
	if resp.Applied == 0 && lastFault != nil {
		return nil, translate("batch_save_position", "positions", lastFault)
	}

	if req.ValidateCollisions && resp.Applied > 0 {
		v := s.viewFor(ctx, ownerID)
		for i := range resp.Results {
			r := &resp.Results[i]
			if r.Status != api.EntryApplied {
				continue
			}
			r.Collisions = v.collisions(domain.Kind(r.Kind), r.ID, *r.Position, s.settings.CollisionGap)
		}
	}

	if len(changes) > 0 {
		s.publish(ctx, domain.ChangeEvent{
			Type:      domain.EventPositionsBatchUpdated,
			OwnerID:   ownerID,
			Elements:  changes,
			Timestamp: now,
		})
	}

	s.logger.Debug("batch positions saved",
		zap.String("userID", ownerID),
		zap.Int("applied", resp.Applied),
		zap.Int("skipped", resp.Skipped),
	)
	return resp, nil
}
