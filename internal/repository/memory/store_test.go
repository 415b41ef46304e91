package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"brain2-canvas/internal/domain"
	"brain2-canvas/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	el := func(id, owner string) domain.Element {
		return domain.Element{ID: id, OwnerID: owner, CreatedAt: at, UpdatedAt: at}
	}
	require.NoError(t, s.CreateChakra(ctx, &domain.Chakra{Element: el("C1", "u1"), Heading: "Health"}))
	require.NoError(t, s.CreateWheel(ctx, &domain.Wheel{Element: el("W1", "u1"), Heading: "Run", ChakraID: "C1"}))
	require.NoError(t, s.CreateDot(ctx, &domain.Dot{Element: el("D1", "u1"), Summary: "5k", Parent: &domain.ParentRef{Kind: domain.KindWheel, ID: "W1"}}))
	require.NoError(t, s.CreateDot(ctx, &domain.Dot{Element: el("D2", "u1"), Parent: &domain.ParentRef{Kind: domain.KindChakra, ID: "C1"}}))
	require.NoError(t, s.CreateDot(ctx, &domain.Dot{Element: el("X1", "u2")}))
	return s
}

func TestStore_OwnershipLooksLikeMissing(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	_, err := s.GetDot(ctx, "u1", "X1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.GetDot(ctx, "u1", "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = s.SavePosition(ctx, "u1", domain.KindDot, "X1", domain.Position{X: 1, Y: 1}, time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	d, err := s.GetDot(ctx, "u1", "D1")
	require.NoError(t, err)
	d.Parent = nil
	d.Summary = "changed"

	again, err := s.GetDot(ctx, "u1", "D1")
	require.NoError(t, err)
	assert.Equal(t, "W1", again.WheelID())
	assert.Equal(t, "5k", again.Summary)
}

func TestStore_SaveDotParent(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	d, err := s.GetDot(ctx, "u1", "D1")
	require.NoError(t, err)
	require.NoError(t, d.SetParent(&domain.ParentRef{Kind: domain.KindChakra, ID: "C1"}))
	require.NoError(t, s.SaveDotParent(ctx, d))

	got, err := s.GetDot(ctx, "u1", "D1")
	require.NoError(t, err)
	assert.Empty(t, got.WheelID())
	assert.Equal(t, "C1", got.ChakraID())

	d.Parent = &domain.ParentRef{Kind: domain.KindWheel, ID: "missing"}
	assert.ErrorIs(t, s.SaveDotParent(ctx, d), domain.ErrNotFound)
}

func TestStore_CreateAssignsID(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	d := &domain.Dot{Element: domain.Element{OwnerID: "u1", Position: &domain.Position{X: 1.6, Y: -2.4}}}
	require.NoError(t, s.CreateDot(ctx, d))
	assert.Regexp(t, `^dot-[A-Za-z0-9]{12}$`, d.ID)
	assert.False(t, d.CreatedAt.IsZero())

	got, err := s.GetDot(ctx, "u1", d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Position{X: 2, Y: -2}, *got.Position)

	assert.ErrorIs(t, s.CreateDot(ctx, &domain.Dot{}), domain.ErrMissingOwner)
	assert.Error(t, s.CreateDot(ctx, &domain.Dot{Element: domain.Element{ID: d.ID, OwnerID: "u1"}}))
}

func TestStore_DeleteReparentsChildren(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, "u1", domain.KindChakra, "C1"))

	w, err := s.GetWheel(ctx, "u1", "W1")
	require.NoError(t, err)
	assert.Empty(t, w.ChakraID)

	d2, err := s.GetDot(ctx, "u1", "D2")
	require.NoError(t, err)
	assert.Nil(t, d2.Parent)

	d1, err := s.GetDot(ctx, "u1", "D1")
	require.NoError(t, err)
	assert.Equal(t, "W1", d1.WheelID())

	require.NoError(t, s.Delete(ctx, "u1", domain.KindWheel, "W1"))
	d1, err = s.GetDot(ctx, "u1", "D1")
	require.NoError(t, err)
	assert.Nil(t, d1.Parent)

	assert.ErrorIs(t, s.Delete(ctx, "u1", domain.KindDot, "X1"), domain.ErrNotFound)
}

func TestStore_ListsAreOwnerScoped(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	dots, err := s.ListDots(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, dots, 2)
	assert.Equal(t, "D1", dots[0].ID)

	other, err := s.ListDots(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestStore_SetError(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	boom := errors.New("boom")

	s.SetError("ListWheels", boom)
	_, err := s.ListWheels(ctx, "u1")
	assert.ErrorIs(t, err, boom)

	s.ClearErrors()
	_, err = s.ListWheels(ctx, "u1")
	assert.NoError(t, err)
}

func TestLoadFixtures(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	f := repository.Fixtures{Owners: []repository.OwnerFixtures{{
		ID:      "u1",
		Chakras: []repository.ChakraFixture{{ID: "C1", Heading: "Mind"}},
		Wheels:  []repository.WheelFixture{{ID: "W1", Heading: "Read", Chakra: "C1"}},
		Dots: []repository.DotFixture{
			{ID: "D1", Summary: "book", Wheel: "W1"},
			{ID: "D2", Summary: "poem", Chakra: "C1", Position: &domain.Position{X: 10, Y: 20}},
		},
	}}}

	n, err := repository.LoadFixtures(ctx, s, f, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	d2, err := s.GetDot(ctx, "u1", "D2")
	require.NoError(t, err)
	assert.Equal(t, "C1", d2.ChakraID())

	bad := repository.Fixtures{Owners: []repository.OwnerFixtures{{
		ID:   "u1",
		Dots: []repository.DotFixture{{ID: "D3", Wheel: "W1", Chakra: "C1"}},
	}}}
	_, err = repository.LoadFixtures(ctx, s, bad, time.Now().UTC())
	assert.ErrorIs(t, err, domain.ErrInvalidMapping)
}
