package canvas

import (
	"testing"

	"brain2-canvas/internal/domain"
	"brain2-canvas/internal/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pos(x, y float64) domain.Position { return domain.Position{X: x, Y: y} }

func newMachine() *Machine {
	return NewMachine(MachineConfig{
		ClickThreshold: 5,
		Zoom:           geometry.DefaultZoomLimits,
		ViewSize:       pos(800, 600),
	})
}

func TestMachine_Panning(t *testing.T) {
	t.Run("Should pan by the raw screen delta at any zoom", func(t *testing.T) {
		m := newMachine()
		require.NoError(t, m.ZoomTo(2))
		before := m.Viewport().Pan

		m.PointerDown(pos(100, 100), nil)
		assert.Equal(t, StatePanning, m.State())
		m.PointerMove(pos(130, 110))
		m.PointerMove(pos(150, 120))
		assert.Nil(t, m.PointerUp(pos(150, 120)))

		assert.Equal(t, StateIdle, m.State())
		assert.True(t, before.Add(pos(50, 20)).Equals(m.Viewport().Pan))
	})
}

func TestMachine_Dragging(t *testing.T) {
	t.Run("Should keep the grab offset so the element does not jump", func(t *testing.T) {
		m := newMachine()
		m.PointerDown(pos(110, 70), &Grab{Kind: domain.KindDot, ID: "D1", Position: pos(120, 80)})
		require.Equal(t, StateDragging, m.State())

		m.PointerMove(pos(150, 100))
		d := m.Drag()
		require.NotNil(t, d)
		assert.True(t, pos(160, 110).Equals(d.Live))
		assert.Equal(t, pos(120, 80), d.Origin)
	})

	t.Run("Should report the release in canvas space", func(t *testing.T) {
		m := newMachine()
		m.PointerDown(pos(120, 80), &Grab{Kind: domain.KindDot, ID: "D1", Position: pos(120, 80)})
		m.PointerMove(pos(140, 95))
		ended := m.PointerUp(pos(152, 104))

		require.NotNil(t, ended)
		assert.False(t, ended.Click)
		assert.InDelta(t, 40, ended.Moved, 1e-9)
		assert.True(t, pos(152, 104).Equals(ended.Final))
		assert.True(t, pos(152, 104).Equals(ended.Pointer))
		assert.Equal(t, StateIdle, m.State())
		assert.Nil(t, m.Drag())
	})

	t.Run("Should convert through pan and zoom", func(t *testing.T) {
		m := newMachine()
		m.PointerDown(pos(0, 0), nil)
		m.PointerUp(pos(100, 50))
		require.NoError(t, m.ZoomTo(2))
		vp := m.Viewport()

		start := vp.ToScreen(pos(120, 80))
		m.PointerDown(start, &Grab{Kind: domain.KindWheel, ID: "W1", Position: pos(120, 80)})
		ended := m.PointerUp(start.Add(pos(40, 0)))

		require.NotNil(t, ended)
		assert.True(t, pos(140, 80).Equals(ended.Final), "40 screen px at zoom 2 is 20 canvas units")
	})

	t.Run("Should treat a short press as a click", func(t *testing.T) {
		m := newMachine()
		m.PointerDown(pos(100, 100), &Grab{Kind: domain.KindDot, ID: "D1", Position: pos(100, 100)})
		m.PointerMove(pos(103, 102))
		ended := m.PointerUp(pos(103, 102))

		require.NotNil(t, ended)
		assert.True(t, ended.Click)
		assert.Equal(t, pos(100, 100), ended.Final)
	})

	t.Run("Should ignore a second press mid-gesture", func(t *testing.T) {
		m := newMachine()
		m.PointerDown(pos(0, 0), &Grab{Kind: domain.KindDot, ID: "D1"})
		m.PointerDown(pos(5, 5), nil)
		assert.Equal(t, StateDragging, m.State())
	})
}

func TestMachine_Zoom(t *testing.T) {
	t.Run("Should refuse to zoom while dragging", func(t *testing.T) {
		m := newMachine()
		m.PointerDown(pos(0, 0), &Grab{Kind: domain.KindDot, ID: "D1"})
		assert.ErrorIs(t, m.ZoomTo(1.5), ErrZoomWhileDragging)
		assert.Equal(t, 1.0, m.Viewport().Zoom)
	})

	t.Run("Should keep the view center fixed", func(t *testing.T) {
		m := newMachine()
		center := pos(400, 300)
		anchor := m.Viewport().ToCanvas(center)

		require.NoError(t, m.ZoomBy(1.5))
		assert.True(t, anchor.Equals(m.Viewport().ToCanvas(center)))
	})

	t.Run("Should clamp to the limits", func(t *testing.T) {
		m := newMachine()
		require.NoError(t, m.ZoomTo(10))
		assert.Equal(t, geometry.DefaultZoomLimits.Max, m.Viewport().Zoom)
		require.NoError(t, m.ZoomTo(0.01))
		assert.Equal(t, geometry.DefaultZoomLimits.Min, m.Viewport().Zoom)
	})

	t.Run("Should refuse to zoom before the view has a size", func(t *testing.T) {
		m := NewMachine(MachineConfig{Zoom: geometry.DefaultZoomLimits})
		assert.ErrorIs(t, m.ZoomTo(2), ErrNoViewSize)
		assert.Equal(t, 1.0, m.Viewport().Zoom)

		m.Resize(pos(800, 600))
		center := pos(400, 300)
		anchor := m.Viewport().ToCanvas(center)
		require.NoError(t, m.ZoomTo(2))
		assert.Equal(t, 2.0, m.Viewport().Zoom)
		assert.True(t, anchor.Equals(m.Viewport().ToCanvas(center)))
	})

	t.Run("Should allow zooming while panning", func(t *testing.T) {
		m := newMachine()
		m.PointerDown(pos(0, 0), nil)
		assert.NoError(t, m.ZoomTo(1.2))
	})
}
