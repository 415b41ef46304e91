// Package geometry contains the pure canvas math shared by the server and the
// client: footprint sizing, overlap tests, drop-target hit testing, the
// pan/zoom transform and fallback placement. Nothing in here allocates state
// or does I/O, so the same inputs always give the same answer on both sides.
package geometry

import (
	"brain2-canvas/internal/domain"
)

// Band maps child counts up to and including MaxChildren onto a radius.
type Band struct {
	MaxChildren int     `yaml:"maxChildren"`
	Radius      float64 `yaml:"radius"`
}

// KindFootprint describes how one kind grows with its child count. Children
// beyond the last band get Overflow.
type KindFootprint struct {
	Fixed    float64 `yaml:"fixed"`
	Bands    []Band  `yaml:"bands"`
	Overflow float64 `yaml:"overflow"`
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
}

// Footprints holds the sizing rules for every kind.
type Footprints struct {
	Dot    KindFootprint `yaml:"dot"`
	Wheel  KindFootprint `yaml:"wheel"`
	Chakra KindFootprint `yaml:"chakra"`
}

// DefaultFootprints are the stock sizes. Bands must be ordered by
// MaxChildren and have non-decreasing radii.
var DefaultFootprints = Footprints{
	Dot: KindFootprint{Fixed: 30, Min: 30, Max: 30},
	Wheel: KindFootprint{
		Bands: []Band{
			{MaxChildren: 0, Radius: 60},
			{MaxChildren: 3, Radius: 75},
			{MaxChildren: 6, Radius: 90},
			{MaxChildren: 9, Radius: 110},
		},
		Overflow: 130,
		Min:      60,
		Max:      150,
	},
	Chakra: KindFootprint{
		Bands: []Band{
			{MaxChildren: 0, Radius: 140},
			{MaxChildren: 3, Radius: 170},
			{MaxChildren: 6, Radius: 200},
			{MaxChildren: 9, Radius: 230},
		},
		Overflow: 260,
		Min:      140,
		Max:      300,
	},
}

// FootprintRadius sizes an element with the default rules.
func FootprintRadius(kind domain.Kind, childCount int) float64 {
	return DefaultFootprints.Radius(kind, childCount)
}

// Radius sizes an element of the given kind holding childCount children.
func (f Footprints) Radius(kind domain.Kind, childCount int) float64 {
	switch kind {
	case domain.KindDot:
		return f.Dot.radius(childCount)
	case domain.KindWheel:
		return f.Wheel.radius(childCount)
	case domain.KindChakra:
		return f.Chakra.radius(childCount)
	}
	return 0
}

func (k KindFootprint) radius(childCount int) float64 {
	r := k.Fixed
	if len(k.Bands) > 0 {
		r = k.Overflow
		for _, b := range k.Bands {
			if childCount <= b.MaxChildren {
				r = b.Radius
				break
			}
		}
	}
	return clamp(r, k.Min, k.Max)
}

// Validate checks that every kind's bands grow monotonically.
func (f Footprints) Validate() error {
	for kind, k := range map[domain.Kind]KindFootprint{
		domain.KindDot:    f.Dot,
		domain.KindWheel:  f.Wheel,
		domain.KindChakra: f.Chakra,
	} {
		if k.Max > 0 && k.Min > k.Max {
			return &FootprintError{Kind: kind, Reason: "min exceeds max"}
		}
		prev := Band{MaxChildren: -1}
		for _, b := range k.Bands {
			if b.MaxChildren <= prev.MaxChildren {
				return &FootprintError{Kind: kind, Reason: "band thresholds must increase"}
			}
			if b.Radius < prev.Radius {
				return &FootprintError{Kind: kind, Reason: "band radii must not shrink"}
			}
			prev = b
		}
		if len(k.Bands) > 0 && k.Overflow < prev.Radius {
			return &FootprintError{Kind: kind, Reason: "overflow radius smaller than last band"}
		}
	}
	return nil
}

// FootprintError reports an inconsistent footprint configuration.
type FootprintError struct {
	Kind   domain.Kind
	Reason string
}

func (e *FootprintError) Error() string {
	return "footprint " + string(e.Kind) + ": " + e.Reason
}

func clamp(v, lo, hi float64) float64 {
	if hi > 0 && v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}
