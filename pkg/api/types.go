package api

import (
	"time"

	"brain2-canvas/internal/domain"
)

// DotResponse is the API representation of a dot. At most one of WheelID and
// ChakraID is non-null.
type DotResponse struct {
	ID         string          `json:"id"`
	Kind       domain.Kind     `json:"kind"`
	Summary    string          `json:"summary"`
	Note       string          `json:"note,omitempty"`
	Mood       string          `json:"mood,omitempty"`
	WheelID    *string         `json:"wheelId"`
	ChakraID   *string         `json:"chakraId"`
	Position   domain.Position `json:"position"`
	AutoPlaced bool            `json:"autoPlaced,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// WheelResponse is the API representation of a wheel.
type WheelResponse struct {
	ID          string          `json:"id"`
	Kind        domain.Kind     `json:"kind"`
	Heading     string          `json:"heading"`
	Description string          `json:"description,omitempty"`
	ChakraID    *string         `json:"chakraId"`
	Position    domain.Position `json:"position"`
	AutoPlaced  bool            `json:"autoPlaced,omitempty"`
	DotCount    int             `json:"dotCount"`
	Radius      float64         `json:"radius"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ChakraResponse is the API representation of a chakra.
type ChakraResponse struct {
	ID         string          `json:"id"`
	Kind       domain.Kind     `json:"kind"`
	Heading    string          `json:"heading"`
	Purpose    string          `json:"purpose,omitempty"`
	Position   domain.Position `json:"position"`
	AutoPlaced bool            `json:"autoPlaced,omitempty"`
	WheelCount int             `json:"wheelCount"`
	DotCount   int             `json:"dotCount"`
	Radius     float64         `json:"radius"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type DotsResponse struct {
	Dots  []DotResponse `json:"dots"`
	Count int           `json:"count"`
}

type WheelsResponse struct {
	Wheels []WheelResponse `json:"wheels"`
	Count  int             `json:"count"`
}

type ChakrasResponse struct {
	Chakras []ChakraResponse `json:"chakras"`
	Count   int              `json:"count"`
}

// CanvasResponse is a full snapshot used to (re)seed a canvas view.
type CanvasResponse struct {
	Dots       []DotResponse    `json:"dots"`
	Wheels     []WheelResponse  `json:"wheels"`
	Chakras    []ChakraResponse `json:"chakras"`
	ServerTime time.Time        `json:"serverTime"`
}

// KindStats counts one kind. For chakras "mapped" means at least one child.
type KindStats struct {
	Total       int     `json:"total"`
	Mapped      int     `json:"mapped"`
	Unmapped    int     `json:"unmapped"`
	MappedRatio float64 `json:"mappedRatio"`
}

type StatsResponse struct {
	Dots    KindStats `json:"dots"`
	Wheels  KindStats `json:"wheels"`
	Chakras KindStats `json:"chakras"`
}

// MapDotToWheelRequest sets or clears (null) a dot's wheel.
type MapDotToWheelRequest struct {
	WheelID *string `json:"wheelId" validate:"omitnil,min=1,max=128"`
}

// MapToChakraRequest sets or clears (null) the chakra of a dot or wheel.
type MapToChakraRequest struct {
	ChakraID *string `json:"chakraId" validate:"omitnil,min=1,max=128"`
}

// MappingResponse reports the outcome of a mapping call. NoOp is true when the
// requested parent was already in place.
type MappingResponse struct {
	Success bool           `json:"success"`
	NoOp    bool           `json:"noOp"`
	Message string         `json:"message"`
	Dot     *DotResponse   `json:"dot,omitempty"`
	Wheel   *WheelResponse `json:"wheel,omitempty"`
}

// SavePositionRequest is the body of PUT /positions/{kind}/{id}.
type SavePositionRequest struct {
	X                 *float64 `json:"x" validate:"required"`
	Y                 *float64 `json:"y" validate:"required"`
	ValidateCollision bool     `json:"validateCollision"`
}

type PositionResponse struct {
	Success    bool            `json:"success"`
	Kind       domain.Kind     `json:"kind"`
	ID         string          `json:"id"`
	Position   domain.Position `json:"position"`
	Collisions []string        `json:"collisions,omitempty"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// BatchPositionEntry is one element of a batch save. Kind is checked by the
// service so a bad entry is skipped rather than failing the whole batch.
type BatchPositionEntry struct {
	Kind string  `json:"kind" validate:"required"`
	ID   string  `json:"id" validate:"required,max=128"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type BatchSavePositionRequest struct {
	Positions          []BatchPositionEntry `json:"positions" validate:"required,min=1,max=500,dive"`
	ValidateCollisions bool                 `json:"validateCollisions"`
}

const (
	EntryApplied = "applied"
	EntrySkipped = "skipped"
)

type BatchEntryResult struct {
	Kind       string           `json:"kind"`
	ID         string           `json:"id"`
	Status     string           `json:"status"`
	Reason     string           `json:"reason,omitempty"`
	Position   *domain.Position `json:"position,omitempty"`
	Collisions []string         `json:"collisions,omitempty"`
}

type BatchPositionResponse struct {
	Success bool               `json:"success"`
	Applied int                `json:"applied"`
	Skipped int                `json:"skipped"`
	Results []BatchEntryResult `json:"results"`
}

// ConnectionsResponse reports the caller's open push connections, with a
// count per transport.
type ConnectionsResponse struct {
	Connections int            `json:"connections"`
	Transports  map[string]int `json:"transports"`
}

// HealthResponse is returned by the health and readiness probes.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
