package geometry

import (
	"math/rand"
	"testing"

	"brain2-canvas/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFootprintRadius(t *testing.T) {
	t.Run("Should never shrink as children are added", func(t *testing.T) {
		for _, kind := range domain.AllKinds {
			for n := 0; n < 50; n++ {
				assert.GreaterOrEqual(t, FootprintRadius(kind, n+1), FootprintRadius(kind, n),
					"kind=%s n=%d", kind, n)
			}
		}
	})

	t.Run("Should keep dots at a fixed size", func(t *testing.T) {
		assert.Equal(t, FootprintRadius(domain.KindDot, 0), FootprintRadius(domain.KindDot, 40))
	})

	t.Run("Should place a seven dot wheel in the nine band", func(t *testing.T) {
		r7 := FootprintRadius(domain.KindWheel, 7)
		assert.Equal(t, FootprintRadius(domain.KindWheel, 9), r7)
		assert.Greater(t, r7, FootprintRadius(domain.KindWheel, 3))
		assert.LessOrEqual(t, r7, FootprintRadius(domain.KindWheel, 10))
	})

	t.Run("Should clamp to the configured range", func(t *testing.T) {
		f := DefaultFootprints
		f.Wheel.Max = 100
		assert.Equal(t, 100.0, f.Radius(domain.KindWheel, 50))
		assert.Equal(t, 60.0, f.Radius(domain.KindWheel, 0))
	})

	t.Run("Should return zero for an unknown kind", func(t *testing.T) {
		assert.Zero(t, FootprintRadius(domain.Kind("star"), 3))
	})
}

func TestFootprintsValidate(t *testing.T) {
	require.NoError(t, DefaultFootprints.Validate())

	broken := DefaultFootprints
	broken.Chakra.Bands = []Band{{MaxChildren: 3, Radius: 200}, {MaxChildren: 6, Radius: 150}}
	err := broken.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chakra")
}

func TestOverlaps(t *testing.T) {
	a := Circle{Center: domain.Position{X: 0, Y: 0}, Radius: 10}
	b := Circle{Center: domain.Position{X: 25, Y: 0}, Radius: 10}

	assert.False(t, Overlaps(a, b, 0))
	assert.True(t, Overlaps(a, b, 6))
	assert.True(t, Overlaps(a, Circle{Center: domain.Position{X: 10, Y: 0}, Radius: 1}, 0))
	assert.False(t, Overlaps(a, Circle{Center: domain.Position{X: 19, Y: 0}, Radius: 1}, 0))
}

func TestResolveDropTarget(t *testing.T) {
	chakra := Candidate{Kind: domain.KindChakra, ID: "c1",
		Circle: Circle{Center: domain.Position{X: 100, Y: 100}, Radius: 200}}
	wheel := Candidate{Kind: domain.KindWheel, ID: "w1",
		Circle: Circle{Center: domain.Position{X: 140, Y: 90}, Radius: 90}}
	dot := Candidate{Kind: domain.KindDot, ID: "d1",
		Circle: Circle{Center: domain.Position{X: 160, Y: 80}, Radius: 30}}

	t.Run("Should prefer the wheel over its parent chakra", func(t *testing.T) {
		candidates := []Candidate{chakra, wheel, dot}
		got := ResolveDropTarget(domain.Position{X: 160, Y: 80}, candidates, "d1")
		require.NotNil(t, got)
		assert.Equal(t, "w1", got.ID)
	})

	t.Run("Should honour render order after sorting", func(t *testing.T) {
		candidates := []Candidate{dot, wheel, chakra}
		SortByStack(candidates)
		assert.Equal(t, []string{"c1", "w1", "d1"}, []string{candidates[0].ID, candidates[1].ID, candidates[2].ID})
		got := ResolveDropTarget(domain.Position{X: 150, Y: 90}, candidates, "d1")
		require.NotNil(t, got)
		assert.Equal(t, "w1", got.ID)
	})

	t.Run("Should fall through to the chakra outside the wheel", func(t *testing.T) {
		got := ResolveDropTarget(domain.Position{X: -50, Y: 100}, []Candidate{chakra, wheel}, "")
		require.NotNil(t, got)
		assert.Equal(t, "c1", got.ID)
	})

	t.Run("Should return nil over empty canvas", func(t *testing.T) {
		assert.Nil(t, ResolveDropTarget(domain.Position{X: 5000, Y: 5000}, []Candidate{chakra, wheel, dot}, ""))
	})

	t.Run("Should never return the dragged element", func(t *testing.T) {
		got := ResolveDropTarget(domain.Position{X: 140, Y: 90}, []Candidate{wheel}, "w1")
		assert.Nil(t, got)
	})
}

func TestCollisions(t *testing.T) {
	subject := Candidate{Kind: domain.KindDot, ID: "d1", Circle: Circle{Radius: 30}}
	others := []Candidate{
		subject,
		{Kind: domain.KindDot, ID: "d2", Circle: Circle{Center: domain.Position{X: 40}, Radius: 30}},
		{Kind: domain.KindDot, ID: "d3", Circle: Circle{Center: domain.Position{X: 400}, Radius: 30}},
	}
	assert.Equal(t, []string{"d2"}, Collisions(subject, others, 0))
}

func TestCoordinateRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		pan := domain.Position{X: rng.Float64()*4000 - 2000, Y: rng.Float64()*4000 - 2000}
		zoom := DefaultZoomLimits.Min + rng.Float64()*(DefaultZoomLimits.Max-DefaultZoomLimits.Min)
		p := domain.Position{X: rng.Float64()*10000 - 5000, Y: rng.Float64()*10000 - 5000}

		back := ToCanvasSpace(ToScreenSpace(p, pan, zoom), pan, zoom)
		assert.InDelta(t, p.X, back.X, 1e-6)
		assert.InDelta(t, p.Y, back.Y, 1e-6)
	}
}

func TestViewport(t *testing.T) {
	t.Run("Should clamp zoom", func(t *testing.T) {
		v := NewViewport(DefaultZoomLimits)
		v.ZoomTo(5, domain.Position{X: 800, Y: 600})
		assert.Equal(t, 2.0, v.Zoom)
		v.ZoomTo(0.01, domain.Position{X: 800, Y: 600})
		assert.Equal(t, 0.3, v.Zoom)
	})

	t.Run("Should keep the canvas center fixed when zooming", func(t *testing.T) {
		v := NewViewport(DefaultZoomLimits)
		v.PanBy(domain.Position{X: 120, Y: -40})
		size := domain.Position{X: 800, Y: 600}
		before := v.ToCanvas(size.Scale(0.5))

		v.ZoomTo(1.5, size)
		after := v.ToCanvas(size.Scale(0.5))
		assert.InDelta(t, before.X, after.X, 1e-9)
		assert.InDelta(t, before.Y, after.Y, 1e-9)
	})

	t.Run("Should pan by raw screen delta", func(t *testing.T) {
		v := NewViewport(DefaultZoomLimits)
		v.ZoomTo(2, domain.Position{})
		v.Pan = domain.Position{}
		v.PanBy(domain.Position{X: 10, Y: 5})
		assert.Equal(t, domain.Position{X: 10, Y: 5}, v.Pan)
	})
}

func TestLayoutAssign(t *testing.T) {
	t.Run("Should not depend on input order", func(t *testing.T) {
		a := DefaultLayout.Assign(domain.KindDot, []string{"d3", "d1", "d2"})
		b := DefaultLayout.Assign(domain.KindDot, []string{"d2", "d3", "d1"})
		assert.Equal(t, a, b)
	})

	t.Run("Should give distinct slots", func(t *testing.T) {
		ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
		slots := DefaultLayout.Assign(domain.KindWheel, ids)
		seen := map[domain.Position]bool{}
		for _, p := range slots {
			assert.False(t, seen[p], "duplicate slot %v", p)
			seen[p] = true
		}
	})

	t.Run("Should collapse duplicate ids", func(t *testing.T) {
		slots := DefaultLayout.Assign(domain.KindChakra, []string{"c1", "c1", "c2"})
		assert.Len(t, slots, 2)
		assert.Equal(t, DefaultLayout.Chakra.Origin, slots["c1"])
	})
}
