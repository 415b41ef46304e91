// Package domain holds the canvas entities and the rules that every store and
// service shares: explicit entity kinds, the three-level hierarchy and the
// change events emitted when that hierarchy or a position changes.
package domain

import (
	"fmt"
	"strings"
)

// Kind tags every canvas element explicitly. A record is never classified by
// which optional fields happen to be present.
type Kind string

const (
	KindDot    Kind = "dot"
	KindWheel  Kind = "wheel"
	KindChakra Kind = "chakra"
)

// AllKinds lists the kinds in render order, bottom layer first.
var AllKinds = []Kind{KindChakra, KindWheel, KindDot}

// ParseKind accepts singular or plural names in any case.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dot", "dots":
		return KindDot, nil
	case "wheel", "wheels":
		return KindWheel, nil
	case "chakra", "chakras":
		return KindChakra, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func (k Kind) Valid() bool {
	return k == KindDot || k == KindWheel || k == KindChakra
}

func (k Kind) String() string {
	return string(k)
}

// StackOrder is the z-order used for rendering and hit testing. Higher values
// are drawn on top: dots over wheels over chakras.
func (k Kind) StackOrder() int {
	switch k {
	case KindDot:
		return 2
	case KindWheel:
		return 1
	default:
		return 0
	}
}

// CanParent reports whether an element of kind child may be attached to an
// element of kind parent. Only dot→wheel, dot→chakra and wheel→chakra exist.
func CanParent(child, parent Kind) bool {
	switch child {
	case KindDot:
		return parent == KindWheel || parent == KindChakra
	case KindWheel:
		return parent == KindChakra
	}
	return false
}
