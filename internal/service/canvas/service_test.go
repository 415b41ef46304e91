package canvas

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"brain2-canvas/internal/cache"
	"brain2-canvas/internal/domain"
	"brain2-canvas/internal/observability"
	"brain2-canvas/internal/repository"
	"brain2-canvas/internal/repository/memory"
	"brain2-canvas/pkg/api"
	apperrors "brain2-canvas/pkg/errors"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
	err    error
}

func (b *recordingBroadcaster) Publish(_ context.Context, ev domain.ChangeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return b.err
}

func (b *recordingBroadcaster) Events() []domain.ChangeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.ChangeEvent(nil), b.events...)
}

var seededAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	events  *recordingBroadcaster
	metrics *observability.Collector
	svc     *Service
	now     time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewStore(),
		events:  &recordingBroadcaster{},
		metrics: observability.NewCollector("test"),
		now:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time {
		f.now = f.now.Add(time.Second)
		return f.now
	}
	opts = append([]Option{WithClock(clock), WithMetrics(f.metrics)}, opts...)
	f.svc = NewService(f.store, f.events, DefaultSettings(), zap.NewNop(), opts...)

	ctx := context.Background()
	el := func(id, owner string, pos *domain.Position) domain.Element {
		return domain.Element{ID: id, OwnerID: owner, Position: pos, CreatedAt: seededAt, UpdatedAt: seededAt}
	}
	at := func(x, y float64) *domain.Position { return &domain.Position{X: x, Y: y} }

	require.NoError(t, f.store.CreateChakra(ctx, &domain.Chakra{Element: el("C1", "u1", at(0, 0)), Heading: "Health"}))
	require.NoError(t, f.store.CreateChakra(ctx, &domain.Chakra{Element: el("C9", "u2", at(0, 0)), Heading: "Other"}))
	require.NoError(t, f.store.CreateWheel(ctx, &domain.Wheel{Element: el("W1", "u1", at(140, 90)), Heading: "Running"}))
	require.NoError(t, f.store.CreateWheel(ctx, &domain.Wheel{Element: el("W2", "u1", at(600, 90)), Heading: "Reading"}))
	require.NoError(t, f.store.CreateWheel(ctx, &domain.Wheel{Element: el("W9", "u2", nil), Heading: "Foreign"}))
	require.NoError(t, f.store.CreateDot(ctx, &domain.Dot{Element: el("D1", "u1", at(120, 80)), Summary: "Ran 5k"}))
	require.NoError(t, f.store.CreateDot(ctx, &domain.Dot{Element: el("D2", "u1", at(300, 300)), Summary: "Slept well"}))
	require.NoError(t, f.store.CreateDot(ctx, &domain.Dot{Element: el("D3", "u1", nil), Summary: "Unplaced"}))
	require.NoError(t, f.store.CreateDot(ctx, &domain.Dot{Element: el("X1", "u2", at(10, 10)), Summary: "Not yours"}))
	return f
}

func strp(s string) *string { return &s }

func TestMapDotToWheel(t *testing.T) {
	t.Run("Should map a dot and broadcast a mapped event", func(t *testing.T) {
		f := newFixture(t)
		resp, err := f.svc.MapDotToWheel(context.Background(), "u1", "D1", strp("W1"))
		require.NoError(t, err)

		assert.True(t, resp.Success)
		assert.False(t, resp.NoOp)
		require.NotNil(t, resp.Dot)
		require.NotNil(t, resp.Dot.WheelID)
		assert.Equal(t, "W1", *resp.Dot.WheelID)
		assert.Nil(t, resp.Dot.ChakraID)

		stored, err := f.store.GetDot(context.Background(), "u1", "D1")
		require.NoError(t, err)
		assert.Equal(t, "W1", stored.WheelID())
		assert.True(t, stored.UpdatedAt.After(seededAt))

		events := f.events.Events()
		require.Len(t, events, 1)
		ev := events[0]
		assert.Equal(t, domain.EventMapped, ev.Type)
		assert.Equal(t, "u1", ev.OwnerID)
		require.Len(t, ev.Elements, 1)
		assert.Equal(t, "D1", ev.Elements[0].ID)
		assert.Equal(t, &domain.ParentChange{WheelID: "W1"}, ev.Elements[0].Parent)
		assert.False(t, ev.Timestamp.IsZero())

		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Mappings.WithLabelValues("dot-wheel", "mapped")))
	})

	t.Run("Should report a repeated mapping as a no-op without broadcasting", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		first, err := f.svc.MapDotToWheel(ctx, "u1", "D1", strp("W1"))
		require.NoError(t, err)
		afterFirst, err := f.store.GetDot(ctx, "u1", "D1")
		require.NoError(t, err)

		second, err := f.svc.MapDotToWheel(ctx, "u1", "D1", strp("W1"))
		require.NoError(t, err)
		afterSecond, err := f.store.GetDot(ctx, "u1", "D1")
		require.NoError(t, err)

		assert.False(t, first.NoOp)
		assert.True(t, second.NoOp)
		assert.True(t, second.Success)
		assert.Contains(t, second.Message, "already mapped")
		assert.Equal(t, afterFirst, afterSecond)
		assert.Len(t, f.events.Events(), 1)
	})

	t.Run("Should transfer a dot from a wheel to a chakra", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		_, err := f.svc.MapDotToWheel(ctx, "u1", "D1", strp("W1"))
		require.NoError(t, err)

		resp, err := f.svc.MapDotToChakra(ctx, "u1", "D1", strp("C1"))
		require.NoError(t, err)
		assert.Nil(t, resp.Dot.WheelID)
		require.NotNil(t, resp.Dot.ChakraID)
		assert.Equal(t, "C1", *resp.Dot.ChakraID)

		stored, err := f.store.GetDot(ctx, "u1", "D1")
		require.NoError(t, err)
		assert.Equal(t, "", stored.WheelID())
		assert.Equal(t, "C1", stored.ChakraID())

		events := f.events.Events()
		require.Len(t, events, 2)
		assert.Equal(t, &domain.ParentChange{ChakraID: "C1"}, events[1].Elements[0].Parent)
	})

	t.Run("Should unmap with a nil target", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		_, err := f.svc.MapDotToWheel(ctx, "u1", "D1", strp("W1"))
		require.NoError(t, err)

		resp, err := f.svc.MapDotToWheel(ctx, "u1", "D1", nil)
		require.NoError(t, err)
		assert.False(t, resp.NoOp)
		assert.Nil(t, resp.Dot.WheelID)

		events := f.events.Events()
		require.Len(t, events, 2)
		assert.Equal(t, domain.EventUnmapped, events[1].Type)
		assert.Equal(t, &domain.ParentChange{}, events[1].Elements[0].Parent)
	})

	t.Run("Should treat unmapping an unmapped dot as a no-op", func(t *testing.T) {
		f := newFixture(t)
		resp, err := f.svc.MapDotToWheel(context.Background(), "u1", "D2", nil)
		require.NoError(t, err)
		assert.True(t, resp.NoOp)
		assert.Empty(t, f.events.Events())
	})

	t.Run("Should leave a chakra parent alone when clearing the wheel tier", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		_, err := f.svc.MapDotToChakra(ctx, "u1", "D1", strp("C1"))
		require.NoError(t, err)

		resp, err := f.svc.MapDotToWheel(ctx, "u1", "D1", nil)
		require.NoError(t, err)
		assert.True(t, resp.NoOp)
		require.NotNil(t, resp.Dot.ChakraID)
		assert.Equal(t, "C1", *resp.Dot.ChakraID)
	})
}

func TestMapping_OwnershipIsIndistinguishableFromAbsence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, foreignTarget := f.svc.MapDotToWheel(ctx, "u1", "D1", strp("W9"))
	_, missingTarget := f.svc.MapDotToWheel(ctx, "u1", "D1", strp("W404"))
	_, foreignSource := f.svc.MapDotToWheel(ctx, "u1", "X1", strp("W1"))
	_, missingSource := f.svc.MapDotToWheel(ctx, "u1", "D404", strp("W1"))

	for _, err := range []error{foreignTarget, missingTarget, foreignSource, missingSource} {
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	}
	assert.Equal(t, apperrors.GetAppError(foreignTarget).Message, apperrors.GetAppError(missingTarget).Message)
	assert.Equal(t, apperrors.GetAppError(foreignSource).Message, apperrors.GetAppError(missingSource).Message)

	stored, err := f.store.GetDot(ctx, "u1", "D1")
	require.NoError(t, err)
	assert.Nil(t, stored.Parent)
	assert.Empty(t, f.events.Events())
	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.Mappings.WithLabelValues("dot-wheel", "failed")))
}

func TestMapping_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.MapDotToWheel(ctx, "", "D1", strp("W1"))
	assert.True(t, apperrors.IsUnauthorized(err))

	_, err = f.svc.MapDotToWheel(ctx, "u1", "D1", strp(""))
	assert.True(t, apperrors.IsValidation(err))

	// A chakra id is not a wheel id.
	_, err = f.svc.MapDotToWheel(ctx, "u1", "D1", strp("C1"))
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMapping_SingleParentHoldsAcrossSequences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	steps := []func() (*api.MappingResponse, error){
		func() (*api.MappingResponse, error) { return f.svc.MapDotToWheel(ctx, "u1", "D1", strp("W1")) },
		func() (*api.MappingResponse, error) { return f.svc.MapDotToChakra(ctx, "u1", "D1", strp("C1")) },
		func() (*api.MappingResponse, error) { return f.svc.MapDotToWheel(ctx, "u1", "D1", strp("W2")) },
		func() (*api.MappingResponse, error) { return f.svc.MapDotToChakra(ctx, "u1", "D1", nil) },
		func() (*api.MappingResponse, error) { return f.svc.MapDotToChakra(ctx, "u1", "D1", strp("C1")) },
		func() (*api.MappingResponse, error) { return f.svc.MapDotToWheel(ctx, "u1", "D1", nil) },
	}
	for i, step := range steps {
		resp, err := step()
		require.NoError(t, err, "step %d", i)
		assert.False(t, resp.Dot.WheelID != nil && resp.Dot.ChakraID != nil, "step %d left two parents", i)

		stored, err := f.store.GetDot(ctx, "u1", "D1")
		require.NoError(t, err)
		assert.False(t, stored.WheelID() != "" && stored.ChakraID() != "", "step %d stored two parents", i)
	}
}

func TestMapWheelToChakra(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.MapWheelToChakra(ctx, "u1", "W1", strp("C1"))
	require.NoError(t, err)
	require.NotNil(t, resp.Wheel)
	require.NotNil(t, resp.Wheel.ChakraID)
	assert.Equal(t, "C1", *resp.Wheel.ChakraID)

	again, err := f.svc.MapWheelToChakra(ctx, "u1", "W1", strp("C1"))
	require.NoError(t, err)
	assert.True(t, again.NoOp)

	_, err = f.svc.MapWheelToChakra(ctx, "u1", "W1", strp("C9"))
	assert.True(t, apperrors.IsNotFound(err))

	off, err := f.svc.MapWheelToChakra(ctx, "u1", "W1", nil)
	require.NoError(t, err)
	assert.Nil(t, off.Wheel.ChakraID)

	events := f.events.Events()
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventMapped, events[0].Type)
	assert.Equal(t, domain.KindWheel, events[0].Elements[0].Kind)
	assert.Equal(t, domain.EventUnmapped, events[1].Type)
}

func TestMapping_BroadcastFailureDoesNotFailTheWrite(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("hub gone")

	resp, err := f.svc.MapDotToWheel(context.Background(), "u1", "D1", strp("W1"))
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestSavePosition(t *testing.T) {
	t.Run("Should round, persist and broadcast", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()

		resp, err := f.svc.SavePosition(ctx, "u1", domain.KindDot, "D2", domain.Position{X: 10.4, Y: 20.6}, false)
		require.NoError(t, err)
		assert.Equal(t, domain.Position{X: 10, Y: 21}, resp.Position)
		assert.Empty(t, resp.Collisions)

		stored, err := f.store.GetDot(ctx, "u1", "D2")
		require.NoError(t, err)
		require.NotNil(t, stored.Position)
		assert.Equal(t, domain.Position{X: 10, Y: 21}, *stored.Position)

		events := f.events.Events()
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventPositionUpdated, events[0].Type)
		assert.Equal(t, &domain.Position{X: 10, Y: 21}, events[0].Elements[0].Position)
		assert.Nil(t, events[0].Elements[0].Parent)
	})

	t.Run("Should report overlaps without refusing the save", func(t *testing.T) {
		f := newFixture(t)
		resp, err := f.svc.SavePosition(context.Background(), "u1", domain.KindDot, "D2", domain.Position{X: 125, Y: 85}, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"D1"}, resp.Collisions)
		assert.Len(t, f.events.Events(), 1)
	})

	t.Run("Should hide foreign elements", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.SavePosition(context.Background(), "u1", domain.KindDot, "X1", domain.Position{X: 1, Y: 1}, false)
		assert.True(t, apperrors.IsNotFound(err))
		assert.Empty(t, f.events.Events())
	})

	t.Run("Should reject unusable input", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		_, err := f.svc.SavePosition(ctx, "u1", domain.Kind("edge"), "D1", domain.Position{}, false)
		assert.True(t, apperrors.IsValidation(err))

		_, err = f.svc.SavePosition(ctx, "u1", domain.KindDot, "D1", domain.Position{X: 1, Y: math.NaN()}, false)
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestBatchSavePosition(t *testing.T) {
	t.Run("Should skip the foreign entry and apply the rest", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		req := api.BatchSavePositionRequest{Positions: []api.BatchPositionEntry{
			{Kind: "dot", ID: "D1", X: 1, Y: 1},
			{Kind: "dot", ID: "D2", X: 2, Y: 2},
			{Kind: "dot", ID: "X1", X: 3, Y: 3},
			{Kind: "wheel", ID: "W1", X: 4, Y: 4},
			{Kind: "chakra", ID: "C1", X: 5.5, Y: 5},
		}}

		resp, err := f.svc.BatchSavePosition(ctx, "u1", req)
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, 4, resp.Applied)
		assert.Equal(t, 1, resp.Skipped)
		require.Len(t, resp.Results, 5)
		assert.Equal(t, api.EntrySkipped, resp.Results[2].Status)
		assert.Equal(t, ReasonNotFound, resp.Results[2].Reason)
		assert.Equal(t, &domain.Position{X: 6, Y: 5}, resp.Results[4].Position)

		foreign, err := f.store.GetDot(ctx, "u2", "X1")
		require.NoError(t, err)
		assert.Equal(t, domain.Position{X: 10, Y: 10}, *foreign.Position)

		events := f.events.Events()
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventPositionsBatchUpdated, events[0].Type)
		assert.Len(t, events[0].Elements, 4)
	})

	t.Run("Should skip unknown kinds and bad coordinates", func(t *testing.T) {
		f := newFixture(t)
		resp, err := f.svc.BatchSavePosition(context.Background(), "u1", api.BatchSavePositionRequest{
			Positions: []api.BatchPositionEntry{
				{Kind: "edge", ID: "D1"},
				{Kind: "dot", ID: "D1", X: math.Inf(1)},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, resp.Applied)
		assert.Equal(t, ReasonInvalidKind, resp.Results[0].Reason)
		assert.Equal(t, ReasonInvalidPosition, resp.Results[1].Reason)
		assert.Empty(t, f.events.Events())
	})

	t.Run("Should surface a store outage when nothing applied", func(t *testing.T) {
		f := newFixture(t)
		f.store.SetError("SavePosition", errors.New("connection refused"))
		_, err := f.svc.BatchSavePosition(context.Background(), "u1", api.BatchSavePositionRequest{
			Positions: []api.BatchPositionEntry{{Kind: "dot", ID: "D1", X: 1, Y: 1}},
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDatabase))
	})

	t.Run("Should report collisions per applied entry", func(t *testing.T) {
		f := newFixture(t)
		resp, err := f.svc.BatchSavePosition(context.Background(), "u1", api.BatchSavePositionRequest{
			Positions:          []api.BatchPositionEntry{{Kind: "dot", ID: "D2", X: 120, Y: 90}},
			ValidateCollisions: true,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"D1"}, resp.Results[0].Collisions)
	})

	t.Run("Should reject an empty batch", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.BatchSavePosition(context.Background(), "u1", api.BatchSavePositionRequest{})
		assert.True(t, apperrors.IsValidation(err))
	})
}

// duplicatingRepo returns every listed element twice, the second copy older,
// the way an eventually consistent index sometimes does.
type duplicatingRepo struct {
	repository.Repository
}

func (r duplicatingRepo) ListDots(ctx context.Context, ownerID string) ([]*domain.Dot, error) {
	dots, err := r.Repository.ListDots(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := append([]*domain.Dot(nil), dots...)
	for _, d := range dots {
		stale := *d
		stale.Summary = "stale"
		stale.UpdatedAt = d.UpdatedAt.Add(-time.Hour)
		out = append(out, &stale)
	}
	return out, nil
}

func TestListDots_DeduplicatesKeepingNewest(t *testing.T) {
	f := newFixture(t)
	svc := NewService(duplicatingRepo{f.store}, f.events, DefaultSettings(), zap.NewNop())

	resp, err := svc.ListDots(context.Background(), "u1", ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 3, resp.Count)

	seen := map[string]int{}
	for _, d := range resp.Dots {
		seen[d.ID]++
		assert.NotEqual(t, "stale", d.Summary)
	}
	assert.Equal(t, map[string]int{"D1": 1, "D2": 1, "D3": 1}, seen)
}

func TestListDots_FiltersAndPlacement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.MapDotToWheel(ctx, "u1", "D1", strp("W1"))
	require.NoError(t, err)

	unmapped, err := f.svc.ListDots(ctx, "u1", ListFilter{Unmapped: true})
	require.NoError(t, err)
	assert.Equal(t, 2, unmapped.Count)

	inWheel, err := f.svc.ListDots(ctx, "u1", ListFilter{Parent: "W1"})
	require.NoError(t, err)
	require.Equal(t, 1, inWheel.Count)
	assert.Equal(t, "D1", inWheel.Dots[0].ID)

	all, err := f.svc.ListDots(ctx, "u1", ListFilter{})
	require.NoError(t, err)
	var d3 api.DotResponse
	for _, d := range all.Dots {
		if d.ID == "D3" {
			d3 = d
		}
	}
	assert.True(t, d3.AutoPlaced)
	assert.Equal(t, DefaultSettings().Layout.Dot.Slot(0), d3.Position)

	again, err := f.svc.ListDots(ctx, "u1", ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, all.Dots, again.Dots)
}

func TestListWheelsAndChakras(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"D1", "D2", "D3"} {
		_, err := f.svc.MapDotToWheel(ctx, "u1", id, strp("W1"))
		require.NoError(t, err)
	}
	_, err := f.svc.MapWheelToChakra(ctx, "u1", "W1", strp("C1"))
	require.NoError(t, err)

	wheels, err := f.svc.ListWheels(ctx, "u1", ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, wheels.Count)
	assert.Equal(t, "W1", wheels.Wheels[0].ID)
	assert.Equal(t, 3, wheels.Wheels[0].DotCount)
	assert.Equal(t, 75.0, wheels.Wheels[0].Radius)
	assert.Equal(t, 60.0, wheels.Wheels[1].Radius)

	free, err := f.svc.ListWheels(ctx, "u1", ListFilter{Unmapped: true})
	require.NoError(t, err)
	require.Equal(t, 1, free.Count)
	assert.Equal(t, "W2", free.Wheels[0].ID)

	chakras, err := f.svc.ListChakras(ctx, "u1", ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, chakras.Count)
	assert.Equal(t, 1, chakras.Chakras[0].WheelCount)
	assert.Equal(t, 170.0, chakras.Chakras[0].Radius)

	none, err := f.svc.ListChakras(ctx, "u1", ListFilter{Parent: "C1"})
	require.NoError(t, err)
	assert.Empty(t, none.Chakras)
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	snap, err := f.svc.Snapshot(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, snap.Dots, 3)
	assert.Len(t, snap.Wheels, 2)
	assert.Len(t, snap.Chakras, 1)
	assert.False(t, snap.ServerTime.IsZero())

	_, err = f.svc.Snapshot(context.Background(), "")
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestStats(t *testing.T) {
	c := cache.NewMemoryCache(100, zap.NewNop())
	f := newFixture(t, WithCache(c))
	ctx := context.Background()

	stats, err := f.svc.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, api.KindStats{Total: 3, Mapped: 0, Unmapped: 3, MappedRatio: 0}, stats.Dots)
	assert.Equal(t, 0, stats.Chakras.Mapped)

	_, ok, err := c.Get(ctx, cache.StatsKey("u1"))
	require.NoError(t, err)
	assert.True(t, ok)

	cached, err := f.svc.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, stats, cached)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheHits))

	_, err = f.svc.MapDotToChakra(ctx, "u1", "D1", strp("C1"))
	require.NoError(t, err)

	_, ok, err = c.Get(ctx, cache.StatsKey("u1"))
	require.NoError(t, err)
	assert.False(t, ok)

	fresh, err := f.svc.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.Dots.Mapped)
	assert.Equal(t, 2, fresh.Dots.Unmapped)
	assert.InDelta(t, 1.0/3.0, fresh.Dots.MappedRatio, 1e-9)
	assert.Equal(t, api.KindStats{Total: 1, Mapped: 1, Unmapped: 0, MappedRatio: 1}, fresh.Chakras)
}

func TestLifecycleInvalidatesStats(t *testing.T) {
	c := cache.NewMemoryCache(100, zap.NewNop())
	f := newFixture(t, WithCache(c))
	ctx := context.Background()
	lc := f.svc.Lifecycle(f.store)

	_, err := f.svc.MapDotToWheel(ctx, "u1", "D1", strp("W1"))
	require.NoError(t, err)
	before, err := f.svc.Stats(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, before.Dots.Mapped)
	require.Equal(t, 2, before.Wheels.Total)

	t.Run("Should drop cached stats when a parent is deleted", func(t *testing.T) {
		require.NoError(t, lc.Delete(ctx, "u1", domain.KindWheel, "W1"))

		_, ok, err := c.Get(ctx, cache.StatsKey("u1"))
		require.NoError(t, err)
		assert.False(t, ok)

		after, err := f.svc.Stats(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 0, after.Dots.Mapped)
		assert.Equal(t, 1, after.Wheels.Total)
	})

	t.Run("Should drop cached stats when an element is created", func(t *testing.T) {
		_, err := f.svc.Stats(ctx, "u1")
		require.NoError(t, err)

		dot := &domain.Dot{Element: domain.Element{ID: "D4", OwnerID: "u1", CreatedAt: seededAt, UpdatedAt: seededAt}, Summary: "New"}
		require.NoError(t, lc.CreateDot(ctx, dot))

		after, err := f.svc.Stats(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 4, after.Dots.Total)
	})

	t.Run("Should keep the cache when the store refuses", func(t *testing.T) {
		_, err := f.svc.Stats(ctx, "u1")
		require.NoError(t, err)

		assert.Error(t, lc.Delete(ctx, "u1", domain.KindWheel, "W404"))
		_, ok, err := c.Get(ctx, cache.StatsKey("u1"))
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestTranslate(t *testing.T) {
	assert.Nil(t, translate("op", "dot", nil))
	assert.True(t, apperrors.IsNotFound(translate("op", "dot", domain.ErrNotFound)))
	assert.True(t, apperrors.IsValidation(translate("op", "dot", domain.ErrInvalidMapping)))
	assert.True(t, apperrors.IsUnauthorized(translate("op", "dot", domain.ErrMissingOwner)))
	assert.True(t, apperrors.IsType(translate("op", "dot", context.DeadlineExceeded), apperrors.ErrorTypeUnavailable))
	assert.True(t, apperrors.IsType(translate("op", "dot", errors.New("boom")), apperrors.ErrorTypeDatabase))

	already := apperrors.NewConflictError("x")
	assert.Same(t, already, translate("op", "dot", already))
}
