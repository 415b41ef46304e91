package geometry

import (
	"sort"

	"brain2-canvas/internal/domain"
)

// Circle is an element footprint in canvas space.
type Circle struct {
	Center domain.Position
	Radius float64
}

// Contains reports whether p lies inside the circle, boundary included.
func (c Circle) Contains(p domain.Position) bool {
	dx := p.X - c.Center.X
	dy := p.Y - c.Center.Y
	return dx*dx+dy*dy <= c.Radius*c.Radius
}

// Overlaps is true iff the centers are closer than the summed radii plus
// minGap. Overlap is advisory only; callers never refuse a placement on it.
func Overlaps(a, b Circle, minGap float64) bool {
	return a.Center.DistanceTo(b.Center) < a.Radius+b.Radius+minGap
}

// Candidate is something a dragged element can be dropped on.
type Candidate struct {
	Kind   domain.Kind
	ID     string
	Label  string
	Circle Circle
}

// ResolveDropTarget returns the topmost candidate whose circle contains the
// pointer, skipping excludeID. Candidates must be in render order (bottom
// first); the slice is walked from the end so later-rendered elements win.
func ResolveDropTarget(pointer domain.Position, candidates []Candidate, excludeID string) *Candidate {
	for i := len(candidates) - 1; i >= 0; i-- {
		c := candidates[i]
		if c.ID == excludeID {
			continue
		}
		if c.Circle.Contains(pointer) {
			return &candidates[i]
		}
	}
	return nil
}

// SortByStack orders candidates bottom layer first (chakras, wheels, dots),
// keeping the incoming order inside a layer.
func SortByStack(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Kind.StackOrder() < candidates[j].Kind.StackOrder()
	})
}

// Collisions returns the ids of candidates that overlap subject, skipping
// the subject itself.
func Collisions(subject Candidate, others []Candidate, minGap float64) []string {
	var hits []string
	for _, o := range others {
		if o.ID == subject.ID && o.Kind == subject.Kind {
			continue
		}
		if Overlaps(subject.Circle, o.Circle, minGap) {
			hits = append(hits, o.ID)
		}
	}
	return hits
}
