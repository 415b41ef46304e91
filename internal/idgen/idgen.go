// Package idgen generates short, URL-safe element ids with a per-kind prefix.
package idgen

import (
	"fmt"

	"brain2-canvas/internal/domain"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	length   = 12
)

// Prefix returns the id prefix for a kind, e.g. "dot-".
func Prefix(kind domain.Kind) string {
	switch kind {
	case domain.KindWheel:
		return "whl-"
	case domain.KindChakra:
		return "chk-"
	default:
		return "dot-"
	}
}

// New returns a fresh id for an element of the given kind.
func New(kind domain.Kind) (string, error) {
	id, err := nanoid.Generate(alphabet, length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return Prefix(kind) + id, nil
}

// Ensure fills *id when it is empty.
func Ensure(kind domain.Kind, id *string) error {
	if *id != "" {
		return nil
	}
	v, err := New(kind)
	if err != nil {
		return err
	}
	*id = v
	return nil
}
