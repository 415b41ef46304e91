package domain

import "errors"

var (
	// ErrNotFound covers both a missing element and one owned by somebody
	// else. Callers must not be able to tell the two apart.
	ErrNotFound = errors.New("element not found")

	// ErrInvalidMapping is returned for kind pairings outside dot→wheel,
	// dot→chakra and wheel→chakra.
	ErrInvalidMapping = errors.New("invalid mapping")

	ErrInvalidKind     = errors.New("invalid element kind")
	ErrInvalidPosition = errors.New("invalid position: coordinates must be finite numbers")
	ErrMissingOwner    = errors.New("owner id is required")
)
