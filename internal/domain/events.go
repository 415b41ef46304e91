package domain

import "time"

// EventType names a push-channel event.
type EventType string

const (
	EventMapped                EventType = "mapped"
	EventUnmapped              EventType = "unmapped"
	EventPositionUpdated       EventType = "position-updated"
	EventPositionsBatchUpdated EventType = "positions-batch-updated"

	// EventKeepAlive carries no entity data and exists only to detect dead
	// connections.
	EventKeepAlive EventType = "keepalive"
	EventConnected EventType = "connected"
)

// ParentChange is the parent state after a mapping. Empty strings mean none.
type ParentChange struct {
	WheelID  string `json:"wheelId"`
	ChakraID string `json:"chakraId"`
}

// ElementChange describes one element touched by a mutation. Only the fields
// the mutation changed are set.
type ElementChange struct {
	Kind      Kind          `json:"kind"`
	ID        string        `json:"id"`
	Parent    *ParentChange `json:"parent,omitempty"`
	Position  *Position     `json:"position,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ChangeEvent is what the broadcast layer fans out to every open view of the
// owner's canvas.
type ChangeEvent struct {
	Type      EventType       `json:"type"`
	OwnerID   string          `json:"-"`
	Elements  []ElementChange `json:"elements,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewKeepAlive builds the idle-channel probe.
func NewKeepAlive(at time.Time) ChangeEvent {
	return ChangeEvent{Type: EventKeepAlive, Timestamp: at}
}

// CarriesData reports whether an entity store should look at the event.
func (e ChangeEvent) CarriesData() bool {
	switch e.Type {
	case EventMapped, EventUnmapped, EventPositionUpdated, EventPositionsBatchUpdated:
		return true
	}
	return false
}

// DotParentChange renders a dot's parent as a ParentChange.
func DotParentChange(d *Dot) *ParentChange {
	return &ParentChange{WheelID: d.WheelID(), ChakraID: d.ChakraID()}
}

// WheelParentChange renders a wheel's parent as a ParentChange.
func WheelParentChange(w *Wheel) *ParentChange {
	return &ParentChange{ChakraID: w.ChakraID}
}
