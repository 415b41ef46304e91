package geometry

import (
	"math"
	"sort"

	"brain2-canvas/internal/domain"
)

// goldenAngle spreads consecutive spiral slots evenly around the origin.
var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// Spiral hands out fallback positions for elements that were never placed.
// Slot n sits at distance Spacing*sqrt(n) from Origin.
type Spiral struct {
	Origin  domain.Position `yaml:"origin"`
	Spacing float64         `yaml:"spacing"`
}

// Slot returns the canvas position of slot n (n >= 0).
func (s Spiral) Slot(n int) domain.Position {
	if n <= 0 {
		return s.Origin
	}
	r := s.Spacing * math.Sqrt(float64(n))
	theta := float64(n) * goldenAngle
	return domain.Position{
		X: s.Origin.X + r*math.Cos(theta),
		Y: s.Origin.Y + r*math.Sin(theta),
	}.Rounded()
}

// Layout keeps one spiral per kind so unplaced chakras, wheels and dots land
// in separate regions.
type Layout struct {
	Dot    Spiral `yaml:"dot"`
	Wheel  Spiral `yaml:"wheel"`
	Chakra Spiral `yaml:"chakra"`
}

// DefaultLayout puts chakras around the origin, wheels to the right and dots
// below.
var DefaultLayout = Layout{
	Chakra: Spiral{Origin: domain.Position{X: 0, Y: 0}, Spacing: 420},
	Wheel:  Spiral{Origin: domain.Position{X: 1600, Y: 0}, Spacing: 220},
	Dot:    Spiral{Origin: domain.Position{X: 0, Y: 1600}, Spacing: 70},
}

func (l Layout) spiral(kind domain.Kind) Spiral {
	switch kind {
	case domain.KindWheel:
		return l.Wheel
	case domain.KindChakra:
		return l.Chakra
	default:
		return l.Dot
	}
}

// Assign gives every id a slot keyed by its rank in sorted order, so the
// result depends only on the set of ids and never on iteration order.
func (l Layout) Assign(kind domain.Kind, ids []string) map[string]domain.Position {
	sorted := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	sp := l.spiral(kind)
	out := make(map[string]domain.Position, len(sorted))
	for i, id := range sorted {
		out[id] = sp.Slot(i)
	}
	return out
}
