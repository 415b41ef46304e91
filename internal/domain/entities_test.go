package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		err  bool
	}{
		{"dot", KindDot, false},
		{"Dots", KindDot, false},
		{" wheel ", KindWheel, false},
		{"chakras", KindChakra, false},
		{"thought", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.err {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidKind))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanParent(t *testing.T) {
	assert.True(t, CanParent(KindDot, KindWheel))
	assert.True(t, CanParent(KindDot, KindChakra))
	assert.True(t, CanParent(KindWheel, KindChakra))

	assert.False(t, CanParent(KindDot, KindDot))
	assert.False(t, CanParent(KindWheel, KindWheel))
	assert.False(t, CanParent(KindWheel, KindDot))
	assert.False(t, CanParent(KindChakra, KindWheel))
	assert.False(t, CanParent(KindChakra, KindChakra))
}

func TestStackOrder(t *testing.T) {
	assert.Greater(t, KindDot.StackOrder(), KindWheel.StackOrder())
	assert.Greater(t, KindWheel.StackOrder(), KindChakra.StackOrder())
}

func TestDotSetParent(t *testing.T) {
	t.Run("Should keep at most one parent", func(t *testing.T) {
		d := &Dot{}
		require.NoError(t, d.SetParent(&ParentRef{Kind: KindWheel, ID: "w1"}))
		assert.Equal(t, "w1", d.WheelID())
		assert.Empty(t, d.ChakraID())

		require.NoError(t, d.SetParent(&ParentRef{Kind: KindChakra, ID: "c1"}))
		assert.Empty(t, d.WheelID())
		assert.Equal(t, "c1", d.ChakraID())

		require.NoError(t, d.SetParent(nil))
		assert.Empty(t, d.WheelID())
		assert.Empty(t, d.ChakraID())
	})

	t.Run("Should reject a dot parent", func(t *testing.T) {
		d := &Dot{}
		err := d.SetParent(&ParentRef{Kind: KindDot, ID: "d2"})
		assert.ErrorIs(t, err, ErrInvalidMapping)
		assert.Nil(t, d.Parent)
	})
}

func TestElementTouch(t *testing.T) {
	now := time.Now()
	e := Element{UpdatedAt: now}

	e.Touch(now.Add(-time.Minute))
	assert.Equal(t, now, e.UpdatedAt)

	later := now.Add(time.Minute)
	e.Touch(later)
	assert.Equal(t, later, e.UpdatedAt)
}

func TestPosition(t *testing.T) {
	p, err := NewPosition(10.4, -3.6)
	require.NoError(t, err)
	assert.Equal(t, Position{X: 10, Y: -4}, p.Rounded())
	assert.InDelta(t, 5.0, Position{}.DistanceTo(Position{X: 3, Y: 4}), 1e-9)

	_, err = NewPosition(1, posInf())
	assert.ErrorIs(t, err, ErrInvalidPosition)
}

func TestParentOf(t *testing.T) {
	w := &Wheel{ChakraID: "c1"}
	assert.Equal(t, &ParentRef{Kind: KindChakra, ID: "c1"}, ParentOf(w))
	assert.Nil(t, ParentOf(&Wheel{}))
	assert.Nil(t, ParentOf(&Chakra{}))
}

func posInf() float64 {
	var zero float64
	return 1 / zero
}
