package canvas

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"brain2-canvas/internal/domain"
	"brain2-canvas/internal/geometry"
	"brain2-canvas/pkg/api"
	apperrors "brain2-canvas/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	calls     []string
	positions map[string]domain.Position
	mapErr    error
	posErr    error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{positions: make(map[string]domain.Position)}
}

func (f *fakeAPI) MapDotToWheel(_ context.Context, dotID string, wheelID *string) (*api.MappingResponse, error) {
	f.calls = append(f.calls, fmt.Sprintf("dot-wheel %s %s", dotID, deref(wheelID)))
	if f.mapErr != nil {
		return nil, f.mapErr
	}
	return &api.MappingResponse{Success: true, Dot: &api.DotResponse{ID: dotID, Summary: "Ran 5k", WheelID: wheelID, UpdatedAt: time.Now()}}, nil
}

func (f *fakeAPI) MapDotToChakra(_ context.Context, dotID string, chakraID *string) (*api.MappingResponse, error) {
	f.calls = append(f.calls, fmt.Sprintf("dot-chakra %s %s", dotID, deref(chakraID)))
	if f.mapErr != nil {
		return nil, f.mapErr
	}
	return &api.MappingResponse{Success: true, Dot: &api.DotResponse{ID: dotID, Summary: "Ran 5k", ChakraID: chakraID, UpdatedAt: time.Now()}}, nil
}

func (f *fakeAPI) MapWheelToChakra(_ context.Context, wheelID string, chakraID *string) (*api.MappingResponse, error) {
	f.calls = append(f.calls, fmt.Sprintf("wheel-chakra %s %s", wheelID, deref(chakraID)))
	if f.mapErr != nil {
		return nil, f.mapErr
	}
	return &api.MappingResponse{Success: true, Wheel: &api.WheelResponse{ID: wheelID, Heading: "Reading", ChakraID: chakraID, UpdatedAt: time.Now()}}, nil
}

func (f *fakeAPI) SavePosition(_ context.Context, kind domain.Kind, id string, p domain.Position, _ bool) (*api.PositionResponse, error) {
	f.calls = append(f.calls, fmt.Sprintf("position %s %s", kind, id))
	if f.posErr != nil {
		return nil, f.posErr
	}
	f.positions[id] = p
	return &api.PositionResponse{Success: true, Kind: kind, ID: id, Position: p}, nil
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

// scenarioStore has wheel W1 at (140, 90) holding four dots, which gives it a
// radius of 90, and chakra C1 at the origin.
func scenarioStore() *Store {
	s := NewStore(geometry.DefaultFootprints, nil)
	far := func(i int) domain.Position { return domain.Position{X: 2000 + float64(i)*100, Y: 2000} }
	s.Seed(&api.CanvasResponse{
		Chakras: []api.ChakraResponse{{ID: "C1", Heading: "Health", Position: domain.Position{}}},
		Wheels: []api.WheelResponse{
			{ID: "W1", Heading: "Running", Position: domain.Position{X: 140, Y: 90}},
			{ID: "W2", Heading: "Reading", Position: domain.Position{X: 1000, Y: 0}},
		},
		Dots: []api.DotResponse{
			{ID: "D1", Summary: "Ran 5k", Position: domain.Position{X: 120, Y: 80}},
			{ID: "D2", Summary: "Other", Position: domain.Position{X: 1000, Y: -500}},
			{ID: "D10", WheelID: ptr("W1"), Position: far(0)},
			{ID: "D11", WheelID: ptr("W1"), Position: far(1)},
			{ID: "D12", WheelID: ptr("W1"), Position: far(2)},
			{ID: "D13", WheelID: ptr("W1"), Position: far(3)},
		},
	})
	return s
}

// drag runs a full press, move, release through the machine.
func drag(m *Machine, s *Store, kind domain.Kind, id string, from, to domain.Position) *DragEnded {
	it, _ := s.Item(kind, id)
	m.PointerDown(from, &Grab{Kind: kind, ID: id, Position: it.Position})
	m.PointerMove(to)
	return m.PointerUp(to)
}

func TestNegotiation_Scenarios(t *testing.T) {
	ctx := context.Background()
	store := scenarioStore()
	fake := newFakeAPI()
	n := NewNegotiator(store, fake, nil)
	m := newMachine()

	w1, _ := store.Wheel("W1")
	require.Equal(t, 90.0, w1.Radius)

	t.Run("Should propose dot to wheel after a 40px drag", func(t *testing.T) {
		ended := drag(m, store, domain.KindDot, "D1", pos(120, 80), pos(152, 104))
		require.NotNil(t, ended)
		assert.InDelta(t, 40, ended.Moved, 1e-9)

		res, err := n.DragEnded(ctx, *ended)
		require.NoError(t, err)
		require.Equal(t, OutcomeProposal, res.Outcome)

		p := res.Proposal
		assert.Equal(t, DotToWheel, p.Transition)
		assert.Equal(t, "W1", p.Target.ID)
		assert.False(t, p.Transfer())
		assert.Contains(t, p.Message, `"Ran 5k"`)
		assert.Contains(t, p.Message, `"Running"`)
		assert.Empty(t, fake.calls, "nothing is sent before confirmation")
	})

	t.Run("Should map the dot on confirm", func(t *testing.T) {
		resp, err := n.Confirm(ctx)
		require.NoError(t, err)
		require.NotNil(t, resp.Dot)
		assert.Equal(t, []string{"dot-wheel D1 W1", "position dot D1"}, fake.calls)

		d, _ := store.Dot("D1")
		require.NotNil(t, d.WheelID)
		assert.Equal(t, "W1", *d.WheelID)
		assert.Equal(t, pos(152, 104), d.Position)
		assert.Nil(t, n.Pending())
	})

	t.Run("Should word a move to the chakra as a transfer", func(t *testing.T) {
		fake.calls = nil
		ended := drag(m, store, domain.KindDot, "D1", pos(152, 104), pos(-60, -60))

		res, err := n.DragEnded(ctx, *ended)
		require.NoError(t, err)
		require.Equal(t, OutcomeProposal, res.Outcome)

		p := res.Proposal
		assert.Equal(t, DotToChakra, p.Transition)
		assert.Equal(t, "C1", p.Target.ID)
		require.True(t, p.Transfer())
		assert.Equal(t, "W1", p.Replaces.ID)
		assert.Contains(t, p.Message, "will be replaced")
		assert.Contains(t, p.Message, `wheel "Running"`)
	})

	t.Run("Should swap the wheel for the chakra on confirm", func(t *testing.T) {
		_, err := n.Confirm(ctx)
		require.NoError(t, err)

		d, _ := store.Dot("D1")
		assert.Nil(t, d.WheelID)
		require.NotNil(t, d.ChakraID)
		assert.Equal(t, "C1", *d.ChakraID)
	})
}

func TestNegotiation_Refusals(t *testing.T) {
	ctx := context.Background()

	t.Run("Should ignore a click", func(t *testing.T) {
		fake := newFakeAPI()
		n := NewNegotiator(scenarioStore(), fake, nil)
		res, err := n.DragEnded(ctx, DragEnded{Kind: domain.KindDot, ID: "D1", Click: true})
		require.NoError(t, err)
		assert.Equal(t, OutcomeClick, res.Outcome)
		assert.Empty(t, fake.calls)
	})

	t.Run("Should refuse a dot dropped on a dot and snap back", func(t *testing.T) {
		store := scenarioStore()
		fake := newFakeAPI()
		n := NewNegotiator(store, fake, nil)

		res, err := n.DragEnded(ctx, DragEnded{
			Kind: domain.KindDot, ID: "D1",
			Origin: pos(120, 80), Final: pos(1000, -500), Pointer: pos(1000, -500), Moved: 900,
		})
		require.NoError(t, err)
		assert.Equal(t, OutcomeInvalid, res.Outcome)
		assert.Contains(t, res.Notice, "cannot be mapped")
		assert.Empty(t, fake.calls)

		d, _ := store.Dot("D1")
		assert.Equal(t, pos(120, 80), d.Position)
	})

	t.Run("Should refuse a wheel dropped on a wheel", func(t *testing.T) {
		n := NewNegotiator(scenarioStore(), newFakeAPI(), nil)
		res, _ := n.DragEnded(ctx, DragEnded{
			Kind: domain.KindWheel, ID: "W2",
			Origin: pos(1000, 0), Final: pos(200, 130), Pointer: pos(200, 130), Moved: 800,
		})
		assert.Equal(t, OutcomeInvalid, res.Outcome)
	})

	t.Run("Should refuse a drop onto the current parent", func(t *testing.T) {
		store := scenarioStore()
		fake := newFakeAPI()
		n := NewNegotiator(store, fake, nil)

		res, _ := n.DragEnded(ctx, DragEnded{
			Kind: domain.KindDot, ID: "D10",
			Origin: pos(2000, 2000), Final: pos(150, 100), Pointer: pos(150, 100), Moved: 1500,
		})
		assert.Equal(t, OutcomeInvalid, res.Outcome)
		assert.Contains(t, res.Notice, "already mapped")
		assert.Empty(t, fake.calls)
	})

	t.Run("Should save a plain reposition", func(t *testing.T) {
		store := scenarioStore()
		fake := newFakeAPI()
		n := NewNegotiator(store, fake, nil)

		res, err := n.DragEnded(ctx, DragEnded{
			Kind: domain.KindDot, ID: "D1",
			Origin: pos(120, 80), Final: pos(500.4, 500.6), Pointer: pos(500.4, 500.6), Moved: 500,
		})
		require.NoError(t, err)
		assert.Equal(t, OutcomeReposition, res.Outcome)
		assert.Equal(t, pos(500, 501), fake.positions["D1"])

		d, _ := store.Dot("D1")
		assert.Equal(t, pos(500, 501), d.Position)
	})

	t.Run("Should snap back when the position save fails", func(t *testing.T) {
		store := scenarioStore()
		fake := newFakeAPI()
		fake.posErr = errors.New("offline")
		n := NewNegotiator(store, fake, nil)

		res, err := n.DragEnded(ctx, DragEnded{
			Kind: domain.KindDot, ID: "D1",
			Origin: pos(120, 80), Final: pos(500, 500), Pointer: pos(500, 500), Moved: 500,
		})
		require.Error(t, err)
		assert.Equal(t, OutcomeFailed, res.Outcome)
		assert.NotEmpty(t, res.Notice)

		d, _ := store.Dot("D1")
		assert.Equal(t, pos(120, 80), d.Position)
	})
}

func TestNegotiation_ConfirmAndCancel(t *testing.T) {
	ctx := context.Background()
	propose := func(t *testing.T, store *Store, fake *fakeAPI) *Negotiator {
		t.Helper()
		n := NewNegotiator(store, fake, nil)
		res, err := n.DragEnded(ctx, DragEnded{
			Kind: domain.KindWheel, ID: "W2",
			Origin: pos(1000, 0), Final: pos(-50, -50), Pointer: pos(-50, -50), Moved: 1000,
		})
		require.NoError(t, err)
		require.Equal(t, OutcomeProposal, res.Outcome)
		assert.Equal(t, WheelToChakra, res.Proposal.Transition)
		return n
	}

	t.Run("Should keep the dragged position on cancel without mapping", func(t *testing.T) {
		store := scenarioStore()
		fake := newFakeAPI()
		n := propose(t, store, fake)

		_, err := n.Cancel(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"position wheel W2"}, fake.calls)

		w, _ := store.Wheel("W2")
		assert.Nil(t, w.ChakraID)
		assert.Equal(t, pos(-50, -50), w.Position)
	})

	t.Run("Should snap back and explain a not-found failure", func(t *testing.T) {
		store := scenarioStore()
		fake := newFakeAPI()
		fake.mapErr = apperrors.NewNotFoundError("chakra")
		n := propose(t, store, fake)

		_, err := n.Confirm(ctx)
		var notice *NoticeError
		require.ErrorAs(t, err, &notice)
		assert.Equal(t, "Could not complete this mapping", notice.Notice)
		assert.True(t, apperrors.IsNotFound(err))

		w, _ := store.Wheel("W2")
		assert.Nil(t, w.ChakraID)
		assert.Equal(t, pos(1000, 0), w.Position)
	})

	t.Run("Should map the wheel on confirm", func(t *testing.T) {
		store := scenarioStore()
		n := propose(t, store, newFakeAPI())

		_, err := n.Confirm(ctx)
		require.NoError(t, err)

		w, _ := store.Wheel("W2")
		require.NotNil(t, w.ChakraID)
		assert.Equal(t, "C1", *w.ChakraID)
		assert.Equal(t, []string{"W2"}, ids(store.ChildrenOf(domain.KindChakra, "C1")))
	})

	t.Run("Should fail without a pending proposal", func(t *testing.T) {
		n := NewNegotiator(scenarioStore(), newFakeAPI(), nil)
		_, err := n.Confirm(ctx)
		assert.ErrorIs(t, err, ErrNoProposal)
		_, err = n.Cancel(ctx)
		assert.ErrorIs(t, err, ErrNoProposal)
	})
}
