// Package repository defines the store-of-record contract the canvas service
// works against. Every method is scoped to an owner; an element that belongs
// to someone else is reported exactly like a missing one, with
// domain.ErrNotFound.
package repository

import (
	"context"
	"time"

	"brain2-canvas/internal/domain"
	"brain2-canvas/internal/idgen"
)

// Reader loads elements.
type Reader interface {
	GetDot(ctx context.Context, ownerID, id string) (*domain.Dot, error)
	GetWheel(ctx context.Context, ownerID, id string) (*domain.Wheel, error)
	GetChakra(ctx context.Context, ownerID, id string) (*domain.Chakra, error)

	// List methods may return the same id more than once; callers
	// de-duplicate.
	ListDots(ctx context.Context, ownerID string) ([]*domain.Dot, error)
	ListWheels(ctx context.Context, ownerID string) ([]*domain.Wheel, error)
	ListChakras(ctx context.Context, ownerID string) ([]*domain.Chakra, error)
}

// Writer persists the two kinds of change the mapping engine makes.
type Writer interface {
	// SaveDotParent writes Parent and UpdatedAt of an existing dot.
	SaveDotParent(ctx context.Context, dot *domain.Dot) error
	// SaveWheelParent writes ChakraID and UpdatedAt of an existing wheel.
	SaveWheelParent(ctx context.Context, wheel *domain.Wheel) error
	// SavePosition writes an already rounded position.
	SavePosition(ctx context.Context, ownerID string, kind domain.Kind, id string, pos domain.Position, at time.Time) error
}

// Lifecycle is the contract the creation and deletion collaborators use.
// Create assigns an id when the element has none. Delete re-parents children
// to none instead of deleting them.
type Lifecycle interface {
	CreateDot(ctx context.Context, dot *domain.Dot) error
	CreateWheel(ctx context.Context, wheel *domain.Wheel) error
	CreateChakra(ctx context.Context, chakra *domain.Chakra) error
	Delete(ctx context.Context, ownerID string, kind domain.Kind, id string) error
}

// Repository is everything a store of record provides.
type Repository interface {
	Reader
	Writer
	Lifecycle
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GetNode loads an element of any kind.
func GetNode(ctx context.Context, r Reader, ownerID string, kind domain.Kind, id string) (domain.Node, error) {
	switch kind {
	case domain.KindDot:
		return r.GetDot(ctx, ownerID, id)
	case domain.KindWheel:
		return r.GetWheel(ctx, ownerID, id)
	case domain.KindChakra:
		return r.GetChakra(ctx, ownerID, id)
	}
	return nil, domain.ErrInvalidKind
}

// PrepareNew readies an element for insertion: it requires an owner, rounds
// any position and fills the id and timestamps when they are missing.
func PrepareNew(kind domain.Kind, e *domain.Element) error {
	if e.OwnerID == "" {
		return domain.ErrMissingOwner
	}
	if e.Position != nil {
		if !e.Position.Valid() {
			return domain.ErrInvalidPosition
		}
		p := e.Position.Rounded()
		e.Position = &p
	}
	if err := idgen.Ensure(kind, &e.ID); err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}
	return nil
}
