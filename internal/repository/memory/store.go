// Package memory provides an in-memory store of record. It backs local runs
// and the service tests, and can be told to fail specific methods.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"brain2-canvas/internal/domain"
	"brain2-canvas/internal/repository"
)

var _ repository.Repository = (*Store)(nil)

// Store keeps every element in maps keyed by id.
type Store struct {
	mu sync.RWMutex

	dots    map[string]*domain.Dot
	wheels  map[string]*domain.Wheel
	chakras map[string]*domain.Chakra

	shouldFailOn map[string]error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		dots:         make(map[string]*domain.Dot),
		wheels:       make(map[string]*domain.Wheel),
		chakras:      make(map[string]*domain.Chakra),
		shouldFailOn: make(map[string]error),
	}
}

// SetError makes the named method return err until ClearErrors is called.
func (s *Store) SetError(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shouldFailOn[method] = err
}

// ClearErrors removes all configured errors.
func (s *Store) ClearErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shouldFailOn = make(map[string]error)
}

func (s *Store) checkError(method string) error {
	if err, ok := s.shouldFailOn[method]; ok {
		return err
	}
	return nil
}

// Ping succeeds unless an error was configured for it.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkError("Ping"); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Store) GetDot(ctx context.Context, ownerID, id string) (*domain.Dot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkError("GetDot"); err != nil {
		return nil, err
	}
	d, ok := s.dots[id]
	if !ok || d.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return cloneDot(d), nil
}

func (s *Store) GetWheel(ctx context.Context, ownerID, id string) (*domain.Wheel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkError("GetWheel"); err != nil {
		return nil, err
	}
	w, ok := s.wheels[id]
	if !ok || w.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return cloneWheel(w), nil
}

func (s *Store) GetChakra(ctx context.Context, ownerID, id string) (*domain.Chakra, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkError("GetChakra"); err != nil {
		return nil, err
	}
	c, ok := s.chakras[id]
	if !ok || c.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return cloneChakra(c), nil
}

func (s *Store) ListDots(ctx context.Context, ownerID string) ([]*domain.Dot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkError("ListDots"); err != nil {
		return nil, err
	}
	out := make([]*domain.Dot, 0)
	for _, d := range s.dots {
		if d.OwnerID == ownerID {
			out = append(out, cloneDot(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListWheels(ctx context.Context, ownerID string) ([]*domain.Wheel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkError("ListWheels"); err != nil {
		return nil, err
	}
	out := make([]*domain.Wheel, 0)
	for _, w := range s.wheels {
		if w.OwnerID == ownerID {
			out = append(out, cloneWheel(w))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListChakras(ctx context.Context, ownerID string) ([]*domain.Chakra, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkError("ListChakras"); err != nil {
		return nil, err
	}
	out := make([]*domain.Chakra, 0)
	for _, c := range s.chakras {
		if c.OwnerID == ownerID {
			out = append(out, cloneChakra(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveDotParent(ctx context.Context, dot *domain.Dot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkError("SaveDotParent"); err != nil {
		return err
	}
	cur, ok := s.dots[dot.ID]
	if !ok || cur.OwnerID != dot.OwnerID {
		return domain.ErrNotFound
	}
	if err := s.checkParentLocked(dot.OwnerID, dot.Parent); err != nil {
		return err
	}
	cur.Parent = cloneRef(dot.Parent)
	cur.UpdatedAt = dot.UpdatedAt
	return nil
}

func (s *Store) SaveWheelParent(ctx context.Context, wheel *domain.Wheel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkError("SaveWheelParent"); err != nil {
		return err
	}
	cur, ok := s.wheels[wheel.ID]
	if !ok || cur.OwnerID != wheel.OwnerID {
		return domain.ErrNotFound
	}
	if wheel.ChakraID != "" {
		if err := s.checkParentLocked(wheel.OwnerID, &domain.ParentRef{Kind: domain.KindChakra, ID: wheel.ChakraID}); err != nil {
			return err
		}
	}
	cur.ChakraID = wheel.ChakraID
	cur.UpdatedAt = wheel.UpdatedAt
	return nil
}

func (s *Store) SavePosition(ctx context.Context, ownerID string, kind domain.Kind, id string, pos domain.Position, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkError("SavePosition"); err != nil {
		return err
	}
	base, err := s.elementLocked(ownerID, kind, id)
	if err != nil {
		return err
	}
	p := pos
	base.Position = &p
	base.UpdatedAt = at
	return nil
}

func (s *Store) CreateDot(ctx context.Context, dot *domain.Dot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkError("CreateDot"); err != nil {
		return err
	}
	if err := s.prepareLocked(domain.KindDot, &dot.Element); err != nil {
		return err
	}
	if err := s.checkParentLocked(dot.OwnerID, dot.Parent); err != nil {
		return err
	}
	s.dots[dot.ID] = cloneDot(dot)
	return nil
}

func (s *Store) CreateWheel(ctx context.Context, wheel *domain.Wheel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkError("CreateWheel"); err != nil {
		return err
	}
	if err := s.prepareLocked(domain.KindWheel, &wheel.Element); err != nil {
		return err
	}
	if wheel.ChakraID != "" {
		if err := s.checkParentLocked(wheel.OwnerID, &domain.ParentRef{Kind: domain.KindChakra, ID: wheel.ChakraID}); err != nil {
			return err
		}
	}
	s.wheels[wheel.ID] = cloneWheel(wheel)
	return nil
}

func (s *Store) CreateChakra(ctx context.Context, chakra *domain.Chakra) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkError("CreateChakra"); err != nil {
		return err
	}
	if err := s.prepareLocked(domain.KindChakra, &chakra.Element); err != nil {
		return err
	}
	s.chakras[chakra.ID] = cloneChakra(chakra)
	return nil
}

func (s *Store) Delete(ctx context.Context, ownerID string, kind domain.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkError("Delete"); err != nil {
		return err
	}
	if _, err := s.elementLocked(ownerID, kind, id); err != nil {
		return err
	}
	now := time.Now().UTC()

	switch kind {
	case domain.KindDot:
		delete(s.dots, id)
	case domain.KindWheel:
		for _, d := range s.dots {
			if d.OwnerID == ownerID && d.WheelID() == id {
				d.Parent = nil
				d.Touch(now)
			}
		}
		delete(s.wheels, id)
	case domain.KindChakra:
		for _, w := range s.wheels {
			if w.OwnerID == ownerID && w.ChakraID == id {
				w.ChakraID = ""
				w.Touch(now)
			}
		}
		for _, d := range s.dots {
			if d.OwnerID == ownerID && d.ChakraID() == id {
				d.Parent = nil
				d.Touch(now)
			}
		}
		delete(s.chakras, id)
	}
	return nil
}

// prepareLocked assigns an id and timestamps and rejects duplicates.
func (s *Store) prepareLocked(kind domain.Kind, e *domain.Element) error {
	if err := repository.PrepareNew(kind, e); err != nil {
		return err
	}
	if s.existsLocked(e.ID) {
		return fmt.Errorf("%s %q already exists", kind, e.ID)
	}
	return nil
}

func (s *Store) existsLocked(id string) bool {
	_, d := s.dots[id]
	_, w := s.wheels[id]
	_, c := s.chakras[id]
	return d || w || c
}

func (s *Store) checkParentLocked(ownerID string, ref *domain.ParentRef) error {
	if ref == nil {
		return nil
	}
	if _, err := s.elementLocked(ownerID, ref.Kind, ref.ID); err != nil {
		return err
	}
	return nil
}

func (s *Store) elementLocked(ownerID string, kind domain.Kind, id string) (*domain.Element, error) {
	var base *domain.Element
	switch kind {
	case domain.KindDot:
		if d, ok := s.dots[id]; ok {
			base = &d.Element
		}
	case domain.KindWheel:
		if w, ok := s.wheels[id]; ok {
			base = &w.Element
		}
	case domain.KindChakra:
		if c, ok := s.chakras[id]; ok {
			base = &c.Element
		}
	default:
		return nil, domain.ErrInvalidKind
	}
	if base == nil || base.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return base, nil
}

func cloneElement(e domain.Element) domain.Element {
	if e.Position != nil {
		p := *e.Position
		e.Position = &p
	}
	return e
}

func cloneRef(r *domain.ParentRef) *domain.ParentRef {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

func cloneDot(d *domain.Dot) *domain.Dot {
	cp := *d
	cp.Element = cloneElement(d.Element)
	cp.Parent = cloneRef(d.Parent)
	return &cp
}

func cloneWheel(w *domain.Wheel) *domain.Wheel {
	cp := *w
	cp.Element = cloneElement(w.Element)
	return &cp
}

func cloneChakra(c *domain.Chakra) *domain.Chakra {
	cp := *c
	cp.Element = cloneElement(c.Element)
	return &cp
}
