package domain

import "math"

// Position is a point in canvas space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPosition validates that both coordinates are finite.
func NewPosition(x, y float64) (Position, error) {
	p := Position{X: x, Y: y}
	if !p.Valid() {
		return Position{}, ErrInvalidPosition
	}
	return p, nil
}

func (p Position) Valid() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

func (p Position) Add(o Position) Position {
	return Position{X: p.X + o.X, Y: p.Y + o.Y}
}

func (p Position) Sub(o Position) Position {
	return Position{X: p.X - o.X, Y: p.Y - o.Y}
}

func (p Position) Scale(f float64) Position {
	return Position{X: p.X * f, Y: p.Y * f}
}

// DistanceTo returns the Euclidean distance between the two points.
func (p Position) DistanceTo(o Position) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// Rounded snaps both coordinates to the nearest integer. Stored positions are
// always rounded.
func (p Position) Rounded() Position {
	return Position{X: math.Round(p.X), Y: math.Round(p.Y)}
}

// Equals compares with a small tolerance.
func (p Position) Equals(o Position) bool {
	const epsilon = 1e-9
	return math.Abs(p.X-o.X) < epsilon && math.Abs(p.Y-o.Y) < epsilon
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
