package canvas

import (
	"errors"

	"brain2-canvas/internal/domain"
	"brain2-canvas/internal/geometry"
)

// DefaultClickThreshold is how far, in screen pixels, the pointer may travel
// before a press counts as a drag instead of a click.
const DefaultClickThreshold = 5.0

// ErrZoomWhileDragging is returned when a zoom is requested mid-drag.
var ErrZoomWhileDragging = errors.New("zoom is not allowed while dragging an element")

// ErrNoViewSize is returned by zoom calls until the view has a size to zoom
// around.
var ErrNoViewSize = errors.New("view size is not set")

// State is the interaction state of one canvas view.
type State int

const (
	StateIdle State = iota
	StatePanning
	StateDragging
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePanning:
		return "panning"
	case StateDragging:
		return "dragging"
	}
	return "unknown"
}

// Grab identifies the element under the pointer when a press starts.
type Grab struct {
	Kind     domain.Kind
	ID       string
	Position domain.Position
}

// Drag is the in-flight drag record.
type Drag struct {
	Kind domain.Kind
	ID   string
	// Offset is pointer minus element center in canvas space, so the element
	// does not jump to the pointer.
	Offset domain.Position
	Origin domain.Position
	Live   domain.Position

	pressedAt domain.Position
}

// DragEnded is emitted when a drag is released.
type DragEnded struct {
	Kind   domain.Kind
	ID     string
	Origin domain.Position
	Final  domain.Position
	// Pointer is the release point in canvas space, used for drop targeting.
	Pointer domain.Position
	// Moved is the pointer travel in screen pixels.
	Moved float64
	Click bool
}

// MachineConfig configures a Machine.
type MachineConfig struct {
	ClickThreshold float64
	Zoom           geometry.ZoomLimits
	// ViewSize is the on-screen size of the canvas, used to zoom around its
	// center.
	ViewSize domain.Position
}

// Machine tracks pan, zoom and element drags for one view. It is driven by
// pointer events from a single goroutine and never blocks.
type Machine struct {
	state     State
	viewport  geometry.Viewport
	drag      *Drag
	last      domain.Position
	threshold float64
	viewSize  domain.Position
}

// NewMachine starts idle at zoom 1 with no pan.
func NewMachine(cfg MachineConfig) *Machine {
	if cfg.ClickThreshold <= 0 {
		cfg.ClickThreshold = DefaultClickThreshold
	}
	if cfg.Zoom.Min <= 0 || cfg.Zoom.Max < cfg.Zoom.Min {
		cfg.Zoom = geometry.DefaultZoomLimits
	}
	return &Machine{
		viewport:  geometry.NewViewport(cfg.Zoom),
		threshold: cfg.ClickThreshold,
		viewSize:  cfg.ViewSize,
	}
}

func (m *Machine) State() State                { return m.state }
func (m *Machine) Viewport() geometry.Viewport { return m.viewport }

// Drag returns a copy of the in-flight drag, or nil.
func (m *Machine) Drag() *Drag {
	if m.drag == nil {
		return nil
	}
	d := *m.drag
	return &d
}

// PointerDown starts a pan when grab is nil and an element drag otherwise.
// Presses outside the idle state are ignored.
func (m *Machine) PointerDown(screen domain.Position, grab *Grab) {
	if m.state != StateIdle {
		return
	}
	m.last = screen
	if grab == nil {
		m.state = StatePanning
		return
	}
	pointer := m.viewport.ToCanvas(screen)
	m.drag = &Drag{
		Kind:      grab.Kind,
		ID:        grab.ID,
		Offset:    pointer.Sub(grab.Position),
		Origin:    grab.Position,
		Live:      grab.Position,
		pressedAt: screen,
	}
	m.state = StateDragging
}

// PointerMove pans by the raw screen delta or moves the dragged element. The
// live drag position is for rendering only.
func (m *Machine) PointerMove(screen domain.Position) {
	switch m.state {
	case StatePanning:
		m.viewport.PanBy(screen.Sub(m.last))
	case StateDragging:
		m.drag.Live = m.viewport.ToCanvas(screen).Sub(m.drag.Offset)
	}
	m.last = screen
}

// PointerUp ends the current gesture. It returns a DragEnded only when an
// element drag was in progress.
func (m *Machine) PointerUp(screen domain.Position) *DragEnded {
	switch m.state {
	case StatePanning:
		m.viewport.PanBy(screen.Sub(m.last))
		m.state = StateIdle
		return nil
	case StateDragging:
		d := m.drag
		pointer := m.viewport.ToCanvas(screen)
		moved := screen.DistanceTo(d.pressedAt)
		ended := &DragEnded{
			Kind:    d.Kind,
			ID:      d.ID,
			Origin:  d.Origin,
			Final:   pointer.Sub(d.Offset),
			Pointer: pointer,
			Moved:   moved,
			Click:   moved < m.threshold,
		}
		if ended.Click {
			ended.Final = d.Origin
		}
		m.drag = nil
		m.state = StateIdle
		return ended
	}
	return nil
}

// ZoomTo sets the zoom factor, clamped to the limits, keeping the center of
// the view fixed.
func (m *Machine) ZoomTo(zoom float64) error {
	if m.state == StateDragging {
		return ErrZoomWhileDragging
	}
	if m.viewSize.X <= 0 || m.viewSize.Y <= 0 {
		return ErrNoViewSize
	}
	m.viewport.ZoomTo(zoom, m.viewSize)
	return nil
}

// ZoomBy multiplies the zoom factor, as the zoom buttons do.
func (m *Machine) ZoomBy(factor float64) error {
	return m.ZoomTo(m.viewport.Zoom * factor)
}

// Resize records a new on-screen canvas size. Zooming needs a positive one.
func (m *Machine) Resize(viewSize domain.Position) {
	m.viewSize = viewSize
}
