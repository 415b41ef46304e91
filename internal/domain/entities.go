package domain

import (
	"fmt"
	"time"
)

// Element carries the fields every canvas entity has. Position is nil until
// the element is placed explicitly; readers fill the gap with a deterministic
// slot, they never persist one.
type Element struct {
	ID        string
	OwnerID   string
	Position  *Position
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Placed reports whether the element has a stored position.
func (e *Element) Placed() bool {
	return e.Position != nil
}

// Touch stamps the update time. Timestamps never move backwards.
func (e *Element) Touch(at time.Time) {
	if at.After(e.UpdatedAt) {
		e.UpdatedAt = at
	}
}

// Node is implemented by Dot, Wheel and Chakra.
type Node interface {
	Kind() Kind
	Base() *Element
	Label() string
}

// ParentRef points at the single parent of a dot or wheel.
type ParentRef struct {
	Kind Kind
	ID   string
}

func (p *ParentRef) String() string {
	if p == nil {
		return "none"
	}
	return fmt.Sprintf("%s:%s", p.Kind, p.ID)
}

// Dot is a single captured thought. Parent holds at most one of a wheel or a
// chakra, so the two can never be set at the same time.
type Dot struct {
	Element
	Summary string // one-line label
	Note    string
	Mood    string // single-word affect tag
	Parent  *ParentRef
}

func (d *Dot) Kind() Kind     { return KindDot }
func (d *Dot) Base() *Element { return &d.Element }
func (d *Dot) Label() string  { return d.Summary }

// WheelID returns the parent wheel id or "".
func (d *Dot) WheelID() string {
	if d.Parent != nil && d.Parent.Kind == KindWheel {
		return d.Parent.ID
	}
	return ""
}

// ChakraID returns the directly attached chakra id or "".
func (d *Dot) ChakraID() string {
	if d.Parent != nil && d.Parent.Kind == KindChakra {
		return d.Parent.ID
	}
	return ""
}

// SetParent replaces the parent. A nil ref unmaps the dot.
func (d *Dot) SetParent(ref *ParentRef) error {
	if ref != nil && !CanParent(KindDot, ref.Kind) {
		return fmt.Errorf("%w: dot cannot be attached to %s", ErrInvalidMapping, ref.Kind)
	}
	d.Parent = ref
	return nil
}

// Wheel groups dots around a goal or theme and may itself sit in a chakra.
type Wheel struct {
	Element
	Heading     string
	Description string
	ChakraID    string
}

func (w *Wheel) Kind() Kind     { return KindWheel }
func (w *Wheel) Base() *Element { return &w.Element }
func (w *Wheel) Label() string  { return w.Heading }

// Chakra is the root of a sub-tree and never has a parent.
type Chakra struct {
	Element
	Heading string
	Purpose string
}

func (c *Chakra) Kind() Kind     { return KindChakra }
func (c *Chakra) Base() *Element { return &c.Element }
func (c *Chakra) Label() string  { return c.Heading }

// ParentOf returns the current parent of a node, or nil for chakras and
// unmapped elements.
func ParentOf(n Node) *ParentRef {
	switch v := n.(type) {
	case *Dot:
		return v.Parent
	case *Wheel:
		if v.ChakraID != "" {
			return &ParentRef{Kind: KindChakra, ID: v.ChakraID}
		}
	}
	return nil
}
