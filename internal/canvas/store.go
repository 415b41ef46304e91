// Package canvas is the client side of the spatial canvas: an entity store
// seeded from the read API and kept current by the push channel, the
// pointer-driven drag and viewport state machine, and the negotiation that
// turns a finished drag into a mapping or position save.
package canvas

import (
	"sort"
	"sync"
	"time"

	"brain2-canvas/internal/domain"
	"brain2-canvas/internal/geometry"
	"brain2-canvas/pkg/api"

	"go.uber.org/zap"
)

// Item is the kind-independent view of one element in the store.
type Item struct {
	Kind      domain.Kind
	ID        string
	Label     string
	Position  domain.Position
	Parent    *domain.ParentRef
	Radius    float64
	UpdatedAt time.Time
}

// Store holds the three element collections of one owner's canvas. Every
// collection is keyed by id, so inserting an id that is already present
// replaces the record.
type Store struct {
	mu sync.RWMutex

	dots    map[string]*api.DotResponse
	wheels  map[string]*api.WheelResponse
	chakras map[string]*api.ChakraResponse
	fetched map[domain.Kind]time.Time

	footprints geometry.Footprints
	logger     *zap.Logger
}

// NewStore creates an empty store. Radii are derived with footprints.
func NewStore(footprints geometry.Footprints, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dots:       make(map[string]*api.DotResponse),
		wheels:     make(map[string]*api.WheelResponse),
		chakras:    make(map[string]*api.ChakraResponse),
		fetched:    make(map[domain.Kind]time.Time),
		footprints: footprints,
		logger:     logger,
	}
}

// Seed replaces the whole store with a snapshot.
func (s *Store) Seed(snap *api.CanvasResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dots = make(map[string]*api.DotResponse, len(snap.Dots))
	s.wheels = make(map[string]*api.WheelResponse, len(snap.Wheels))
	s.chakras = make(map[string]*api.ChakraResponse, len(snap.Chakras))
	s.putDots(snap.Dots)
	s.putWheels(snap.Wheels)
	s.putChakras(snap.Chakras)

	at := snap.ServerTime
	if at.IsZero() {
		at = time.Now()
	}
	for _, k := range domain.AllKinds {
		s.fetched[k] = at
	}
	s.recount()
}

// PutDots inserts or replaces dots.
func (s *Store) PutDots(dots []api.DotResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putDots(dots)
	s.fetched[domain.KindDot] = time.Now()
	s.recount()
}

// PutWheels inserts or replaces wheels.
func (s *Store) PutWheels(wheels []api.WheelResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putWheels(wheels)
	s.fetched[domain.KindWheel] = time.Now()
	s.recount()
}

// PutChakras inserts or replaces chakras.
func (s *Store) PutChakras(chakras []api.ChakraResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putChakras(chakras)
	s.fetched[domain.KindChakra] = time.Now()
	s.recount()
}

func (s *Store) putDots(dots []api.DotResponse) {
	for i := range dots {
		d := dots[i]
		d.Kind = domain.KindDot
		s.dots[d.ID] = &d
	}
}

func (s *Store) putWheels(wheels []api.WheelResponse) {
	for i := range wheels {
		w := wheels[i]
		w.Kind = domain.KindWheel
		s.wheels[w.ID] = &w
	}
}

func (s *Store) putChakras(chakras []api.ChakraResponse) {
	for i := range chakras {
		c := chakras[i]
		c.Kind = domain.KindChakra
		s.chakras[c.ID] = &c
	}
}

// LastFetched returns when a collection was last loaded from the server.
func (s *Store) LastFetched(kind domain.Kind) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetched[kind]
}

// Dot returns a copy of one dot.
func (s *Store) Dot(id string) (api.DotResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dots[id]
	if !ok {
		return api.DotResponse{}, false
	}
	return *d, true
}

// Wheel returns a copy of one wheel.
func (s *Store) Wheel(id string) (api.WheelResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wheels[id]
	if !ok {
		return api.WheelResponse{}, false
	}
	return *w, true
}

// Chakra returns a copy of one chakra.
func (s *Store) Chakra(id string) (api.ChakraResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chakras[id]
	if !ok {
		return api.ChakraResponse{}, false
	}
	return *c, true
}

// Item returns the kind-independent view of one element.
func (s *Store) Item(kind domain.Kind, id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.item(kind, id)
}

func (s *Store) item(kind domain.Kind, id string) (Item, bool) {
	switch kind {
	case domain.KindDot:
		if d, ok := s.dots[id]; ok {
			return s.dotItem(d), true
		}
	case domain.KindWheel:
		if w, ok := s.wheels[id]; ok {
			return wheelItem(w), true
		}
	case domain.KindChakra:
		if c, ok := s.chakras[id]; ok {
			return chakraItem(c), true
		}
	}
	return Item{}, false
}

// Len returns the number of elements of a kind.
func (s *Store) Len(kind domain.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch kind {
	case domain.KindDot:
		return len(s.dots)
	case domain.KindWheel:
		return len(s.wheels)
	case domain.KindChakra:
		return len(s.chakras)
	}
	return 0
}

// Items lists every element of a kind sorted by id.
func (s *Store) Items(kind domain.Kind) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items(kind, func(Item) bool { return true })
}

// ListUnmapped lists elements of a kind that have no parent. A chakra never
// has a parent, so it counts as unmapped while nothing is attached to it.
func (s *Store) ListUnmapped(kind domain.Kind) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if kind == domain.KindChakra {
		used := make(map[string]bool)
		for _, w := range s.wheels {
			if w.ChakraID != nil {
				used[*w.ChakraID] = true
			}
		}
		for _, d := range s.dots {
			if d.ChakraID != nil {
				used[*d.ChakraID] = true
			}
		}
		return s.items(kind, func(it Item) bool { return !used[it.ID] })
	}
	return s.items(kind, func(it Item) bool { return it.Parent == nil })
}

// ChildrenOf lists the dots of a wheel or the wheels of a chakra.
func (s *Store) ChildrenOf(parentKind domain.Kind, parentID string) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	child := domain.KindDot
	if parentKind == domain.KindChakra {
		child = domain.KindWheel
	} else if parentKind != domain.KindWheel {
		return nil
	}
	return s.items(child, func(it Item) bool {
		return it.Parent != nil && it.Parent.Kind == parentKind && it.Parent.ID == parentID
	})
}

func (s *Store) items(kind domain.Kind, keep func(Item) bool) []Item {
	var out []Item
	add := func(it Item) {
		if keep(it) {
			out = append(out, it)
		}
	}
	switch kind {
	case domain.KindDot:
		for _, d := range s.dots {
			add(s.dotItem(d))
		}
	case domain.KindWheel:
		for _, w := range s.wheels {
			add(wheelItem(w))
		}
	case domain.KindChakra:
		for _, c := range s.chakras {
			add(chakraItem(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Candidates returns every element as a drop candidate in render order,
// chakras first and dots last.
func (s *Store) Candidates() []geometry.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []geometry.Candidate
	for _, kind := range []domain.Kind{domain.KindChakra, domain.KindWheel, domain.KindDot} {
		for _, it := range s.items(kind, func(Item) bool { return true }) {
			out = append(out, geometry.Candidate{
				Kind:   it.Kind,
				ID:     it.ID,
				Label:  it.Label,
				Circle: geometry.Circle{Center: it.Position, Radius: it.Radius},
			})
		}
	}
	return out
}

// HitTest returns the topmost element under a canvas point, or nil.
func (s *Store) HitTest(p domain.Position) *Item {
	c := geometry.ResolveDropTarget(p, s.Candidates(), "")
	if c == nil {
		return nil
	}
	it, ok := s.Item(c.Kind, c.ID)
	if !ok {
		return nil
	}
	return &it
}

// SetPosition moves an element locally. It reports false for unknown ids.
func (s *Store) SetPosition(kind domain.Kind, id string, pos domain.Position) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case domain.KindDot:
		if d, ok := s.dots[id]; ok {
			d.Position, d.AutoPlaced = pos, false
			return true
		}
	case domain.KindWheel:
		if w, ok := s.wheels[id]; ok {
			w.Position, w.AutoPlaced = pos, false
			return true
		}
	case domain.KindChakra:
		if c, ok := s.chakras[id]; ok {
			c.Position, c.AutoPlaced = pos, false
			return true
		}
	}
	return false
}

// ApplyMapping stores the element returned by a mapping call.
func (s *Store) ApplyMapping(resp *api.MappingResponse) {
	if resp == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if resp.Dot != nil {
		d := *resp.Dot
		d.Kind = domain.KindDot
		s.dots[d.ID] = &d
	}
	if resp.Wheel != nil {
		w := *resp.Wheel
		w.Kind = domain.KindWheel
		s.wheels[w.ID] = &w
	}
	s.recount()
}

// ApplyRemoteEvent merges a pushed change and returns how many elements it
// changed. Keep-alive and other data-free events are ignored. An element is
// only replaced when the change is not older than what the store holds, so a
// late delivery cannot roll a newer state back. Unknown ids are inserted.
func (s *Store) ApplyRemoteEvent(ev domain.ChangeEvent) int {
	if !ev.CarriesData() {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := 0
	for _, ch := range ev.Elements {
		at := ch.UpdatedAt
		if at.IsZero() {
			at = ev.Timestamp
		}
		if s.applyChange(ch, at) {
			applied++
		} else {
			s.logger.Debug("stale change ignored",
				zap.String("eventType", string(ev.Type)),
				zap.String("kind", string(ch.Kind)),
				zap.String("id", ch.ID),
			)
		}
	}
	if applied > 0 {
		s.recount()
	}
	return applied
}

func (s *Store) applyChange(ch domain.ElementChange, at time.Time) bool {
	switch ch.Kind {
	case domain.KindDot:
		d, ok := s.dots[ch.ID]
		if !ok {
			d = &api.DotResponse{ID: ch.ID, Kind: domain.KindDot, CreatedAt: at}
			s.dots[ch.ID] = d
		} else if at.Before(d.UpdatedAt) {
			return false
		}
		if ch.Parent != nil {
			d.WheelID = optional(ch.Parent.WheelID)
			d.ChakraID = optional(ch.Parent.ChakraID)
			if d.WheelID != nil {
				d.ChakraID = nil
			}
		}
		if ch.Position != nil {
			d.Position, d.AutoPlaced = *ch.Position, false
		}
		d.UpdatedAt = at

	case domain.KindWheel:
		w, ok := s.wheels[ch.ID]
		if !ok {
			w = &api.WheelResponse{ID: ch.ID, Kind: domain.KindWheel, CreatedAt: at}
			s.wheels[ch.ID] = w
		} else if at.Before(w.UpdatedAt) {
			return false
		}
		if ch.Parent != nil {
			w.ChakraID = optional(ch.Parent.ChakraID)
		}
		if ch.Position != nil {
			w.Position, w.AutoPlaced = *ch.Position, false
		}
		w.UpdatedAt = at

	case domain.KindChakra:
		c, ok := s.chakras[ch.ID]
		if !ok {
			c = &api.ChakraResponse{ID: ch.ID, Kind: domain.KindChakra, CreatedAt: at}
			s.chakras[ch.ID] = c
		} else if at.Before(c.UpdatedAt) {
			return false
		}
		if ch.Position != nil {
			c.Position, c.AutoPlaced = *ch.Position, false
		}
		c.UpdatedAt = at

	default:
		return false
	}
	return true
}

// recount refreshes the derived child counts and radii.
func (s *Store) recount() {
	dotsPerWheel := make(map[string]int)
	dotsPerChakra := make(map[string]int)
	wheelsPerChakra := make(map[string]int)
	for _, d := range s.dots {
		switch {
		case d.WheelID != nil:
			dotsPerWheel[*d.WheelID]++
		case d.ChakraID != nil:
			dotsPerChakra[*d.ChakraID]++
		}
	}
	for _, w := range s.wheels {
		if w.ChakraID != nil {
			wheelsPerChakra[*w.ChakraID]++
		}
		w.DotCount = dotsPerWheel[w.ID]
		w.Radius = s.footprints.Radius(domain.KindWheel, w.DotCount)
	}
	for _, c := range s.chakras {
		c.WheelCount = wheelsPerChakra[c.ID]
		c.DotCount = dotsPerChakra[c.ID]
		c.Radius = s.footprints.Radius(domain.KindChakra, c.WheelCount)
	}
}

func (s *Store) dotItem(d *api.DotResponse) Item {
	it := Item{
		Kind:      domain.KindDot,
		ID:        d.ID,
		Label:     d.Summary,
		Position:  d.Position,
		UpdatedAt: d.UpdatedAt,
	}
	switch {
	case d.WheelID != nil:
		it.Parent = &domain.ParentRef{Kind: domain.KindWheel, ID: *d.WheelID}
	case d.ChakraID != nil:
		it.Parent = &domain.ParentRef{Kind: domain.KindChakra, ID: *d.ChakraID}
	}
	it.Radius = s.footprints.Radius(domain.KindDot, 0)
	return it
}

func wheelItem(w *api.WheelResponse) Item {
	it := Item{
		Kind:      domain.KindWheel,
		ID:        w.ID,
		Label:     w.Heading,
		Position:  w.Position,
		Radius:    w.Radius,
		UpdatedAt: w.UpdatedAt,
	}
	if w.ChakraID != nil {
		it.Parent = &domain.ParentRef{Kind: domain.KindChakra, ID: *w.ChakraID}
	}
	return it
}

func chakraItem(c *api.ChakraResponse) Item {
	return Item{
		Kind:      domain.KindChakra,
		ID:        c.ID,
		Label:     c.Heading,
		Position:  c.Position,
		Radius:    c.Radius,
		UpdatedAt: c.UpdatedAt,
	}
}

func optional(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
