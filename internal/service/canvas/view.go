package canvas

import (
	"context"
	"sort"

	"brain2-canvas/internal/domain"
	"brain2-canvas/internal/geometry"
	"brain2-canvas/pkg/api"
)

// view is one consistent read of an owner's canvas: de-duplicated elements,
// child counts and fallback slots for anything never placed.
type view struct {
	dots    []*domain.Dot
	wheels  []*domain.Wheel
	chakras []*domain.Chakra

	dotsPerWheel    map[string]int
	dotsPerChakra   map[string]int
	wheelsPerChakra map[string]int

	slots map[domain.Kind]map[string]domain.Position

	footprints geometry.Footprints
	layout     geometry.Layout
}

func (s *Service) load(ctx context.Context, ownerID string) (*view, error) {
	dots, err := s.repo.ListDots(ctx, ownerID)
	if err != nil {
		return nil, translate("list_dots", "dots", err)
	}
	wheels, err := s.repo.ListWheels(ctx, ownerID)
	if err != nil {
		return nil, translate("list_wheels", "wheels", err)
	}
	chakras, err := s.repo.ListChakras(ctx, ownerID)
	if err != nil {
		return nil, translate("list_chakras", "chakras", err)
	}
	return newView(dots, wheels, chakras, s.settings), nil
}

func newView(dots []*domain.Dot, wheels []*domain.Wheel, chakras []*domain.Chakra, settings Settings) *view {
	v := &view{
		dots:            dedup(dots),
		wheels:          dedup(wheels),
		chakras:         dedup(chakras),
		dotsPerWheel:    make(map[string]int),
		dotsPerChakra:   make(map[string]int),
		wheelsPerChakra: make(map[string]int),
		slots:           make(map[domain.Kind]map[string]domain.Position, 3),
		footprints:      settings.Footprints,
		layout:          settings.Layout,
	}

	var unplacedDots, unplacedWheels, unplacedChakras []string
	for _, d := range v.dots {
		if id := d.WheelID(); id != "" {
			v.dotsPerWheel[id]++
		}
		if id := d.ChakraID(); id != "" {
			v.dotsPerChakra[id]++
		}
		if !d.Placed() {
			unplacedDots = append(unplacedDots, d.ID)
		}
	}
	for _, w := range v.wheels {
		if w.ChakraID != "" {
			v.wheelsPerChakra[w.ChakraID]++
		}
		if !w.Placed() {
			unplacedWheels = append(unplacedWheels, w.ID)
		}
	}
	for _, c := range v.chakras {
		if !c.Placed() {
			unplacedChakras = append(unplacedChakras, c.ID)
		}
	}

	v.slots[domain.KindDot] = settings.Layout.Assign(domain.KindDot, unplacedDots)
	v.slots[domain.KindWheel] = settings.Layout.Assign(domain.KindWheel, unplacedWheels)
	v.slots[domain.KindChakra] = settings.Layout.Assign(domain.KindChakra, unplacedChakras)
	return v
}

// dedup keeps one record per id. When an id repeats, the record with the
// newest UpdatedAt wins and later records win ties. The result is sorted by
// id.
func dedup[T domain.Node](items []T) []T {
	byID := make(map[string]T, len(items))
	for _, it := range items {
		id := it.Base().ID
		if prev, ok := byID[id]; ok && prev.Base().UpdatedAt.After(it.Base().UpdatedAt) {
			continue
		}
		byID[id] = it
	}
	out := make([]T, 0, len(byID))
	for _, it := range byID {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Base().ID < out[j].Base().ID })
	return out
}

// position returns the stored position or the fallback slot.
func (v *view) position(n domain.Node) (domain.Position, bool) {
	if p := n.Base().Position; p != nil {
		return *p, false
	}
	if slot, ok := v.slots[n.Kind()][n.Base().ID]; ok {
		return slot, true
	}
	// Not part of this read; place it alone.
	return v.layout.Assign(n.Kind(), []string{n.Base().ID})[n.Base().ID], true
}

func (v *view) childCount(kind domain.Kind, id string) int {
	switch kind {
	case domain.KindWheel:
		return v.dotsPerWheel[id]
	case domain.KindChakra:
		return v.wheelsPerChakra[id]
	}
	return 0
}

func (v *view) radius(kind domain.Kind, id string) float64 {
	return v.footprints.Radius(kind, v.childCount(kind, id))
}

// candidates lists every element of kind as a footprint circle.
func (v *view) candidates(kind domain.Kind) []geometry.Candidate {
	var nodes []domain.Node
	switch kind {
	case domain.KindDot:
		for _, d := range v.dots {
			nodes = append(nodes, d)
		}
	case domain.KindWheel:
		for _, w := range v.wheels {
			nodes = append(nodes, w)
		}
	case domain.KindChakra:
		for _, c := range v.chakras {
			nodes = append(nodes, c)
		}
	}
	out := make([]geometry.Candidate, 0, len(nodes))
	for _, n := range nodes {
		pos, _ := v.position(n)
		out = append(out, geometry.Candidate{
			Kind:   kind,
			ID:     n.Base().ID,
			Label:  n.Label(),
			Circle: geometry.Circle{Center: pos, Radius: v.radius(kind, n.Base().ID)},
		})
	}
	return out
}

// collisions checks a new position against the other elements of the same
// layer. Elements of other kinds overlap by nesting and are not reported.
func (v *view) collisions(kind domain.Kind, id string, pos domain.Position, gap float64) []string {
	subject := geometry.Candidate{
		Kind:   kind,
		ID:     id,
		Circle: geometry.Circle{Center: pos, Radius: v.radius(kind, id)},
	}
	return geometry.Collisions(subject, v.candidates(kind), gap)
}

func optional(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func (v *view) dotResponse(d *domain.Dot) api.DotResponse {
	pos, auto := v.position(d)
	return api.DotResponse{
		ID:         d.ID,
		Kind:       domain.KindDot,
		Summary:    d.Summary,
		Note:       d.Note,
		Mood:       d.Mood,
		WheelID:    optional(d.WheelID()),
		ChakraID:   optional(d.ChakraID()),
		Position:   pos,
		AutoPlaced: auto,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func (v *view) wheelResponse(w *domain.Wheel) api.WheelResponse {
	pos, auto := v.position(w)
	return api.WheelResponse{
		ID:          w.ID,
		Kind:        domain.KindWheel,
		Heading:     w.Heading,
		Description: w.Description,
		ChakraID:    optional(w.ChakraID),
		Position:    pos,
		AutoPlaced:  auto,
		DotCount:    v.dotsPerWheel[w.ID],
		Radius:      v.radius(domain.KindWheel, w.ID),
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

func (v *view) chakraResponse(c *domain.Chakra) api.ChakraResponse {
	pos, auto := v.position(c)
	return api.ChakraResponse{
		ID:         c.ID,
		Kind:       domain.KindChakra,
		Heading:    c.Heading,
		Purpose:    c.Purpose,
		Position:   pos,
		AutoPlaced: auto,
		WheelCount: v.wheelsPerChakra[c.ID],
		DotCount:   v.dotsPerChakra[c.ID],
		Radius:     v.radius(domain.KindChakra, c.ID),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

// ratio is mapped/total, or 0 for an empty kind.
func ratio(mapped, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(mapped) / float64(total)
}

func kindStats(total, mapped int) api.KindStats {
	return api.KindStats{
		Total:       total,
		Mapped:      mapped,
		Unmapped:    total - mapped,
		MappedRatio: ratio(mapped, total),
	}
}

func (v *view) stats() api.StatsResponse {
	var dotsMapped, wheelsMapped, chakrasMapped int
	for _, d := range v.dots {
		if d.Parent != nil {
			dotsMapped++
		}
	}
	for _, w := range v.wheels {
		if w.ChakraID != "" {
			wheelsMapped++
		}
	}
	for _, c := range v.chakras {
		if v.wheelsPerChakra[c.ID] > 0 || v.dotsPerChakra[c.ID] > 0 {
			chakrasMapped++
		}
	}
	return api.StatsResponse{
		Dots:    kindStats(len(v.dots), dotsMapped),
		Wheels:  kindStats(len(v.wheels), wheelsMapped),
		Chakras: kindStats(len(v.chakras), chakrasMapped),
	}
}
