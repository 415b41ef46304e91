package canvas

import (
	"context"
	"errors"
	"fmt"

	"brain2-canvas/internal/domain"
	"brain2-canvas/internal/geometry"
	"brain2-canvas/pkg/api"
	apperrors "brain2-canvas/pkg/errors"

	"go.uber.org/zap"
)

// MappingAPI is the part of the server API a negotiation calls.
type MappingAPI interface {
	MapDotToWheel(ctx context.Context, dotID string, wheelID *string) (*api.MappingResponse, error)
	MapDotToChakra(ctx context.Context, dotID string, chakraID *string) (*api.MappingResponse, error)
	MapWheelToChakra(ctx context.Context, wheelID string, chakraID *string) (*api.MappingResponse, error)
	SavePosition(ctx context.Context, kind domain.Kind, id string, pos domain.Position, validate bool) (*api.PositionResponse, error)
}

// Transition is an allowed source to target kind pairing.
type Transition string

const (
	DotToWheel    Transition = "dot-wheel"
	DotToChakra   Transition = "dot-chakra"
	WheelToChakra Transition = "wheel-chakra"
)

// Classify returns the transition for dropping source on target, or false
// when the pairing is not allowed.
func Classify(source, target domain.Kind) (Transition, bool) {
	switch {
	case source == domain.KindDot && target == domain.KindWheel:
		return DotToWheel, true
	case source == domain.KindDot && target == domain.KindChakra:
		return DotToChakra, true
	case source == domain.KindWheel && target == domain.KindChakra:
		return WheelToChakra, true
	}
	return "", false
}

// Outcome is what a finished drag turned into.
type Outcome int

const (
	// OutcomeClick means the pointer barely moved; nothing is saved.
	OutcomeClick Outcome = iota
	// OutcomeReposition means no drop target; the position was saved.
	OutcomeReposition
	// OutcomeProposal means a mapping awaits Confirm or Cancel.
	OutcomeProposal
	// OutcomeInvalid means the drop was refused and the element snapped back.
	OutcomeInvalid
	// OutcomeFailed means a server call failed and the element snapped back.
	OutcomeFailed
)

// Result describes how a drag was handled. Notice is the user-facing text
// for refused or failed drops.
type Result struct {
	Outcome  Outcome
	Proposal *Proposal
	Position *api.PositionResponse
	Notice   string
}

// Proposal is a mapping waiting for the user's answer.
type Proposal struct {
	Transition Transition
	Source     Item
	Target     geometry.Candidate
	// Replaces is the parent the source currently has, when it differs from
	// the target.
	Replaces *Item
	Message  string
	Origin   domain.Position
	Final    domain.Position
}

// Transfer reports whether confirming replaces an existing relationship.
func (p *Proposal) Transfer() bool { return p.Replaces != nil }

// Negotiator turns finished drags into position saves and mapping calls.
// Like Machine it is driven from one goroutine.
type Negotiator struct {
	store   *Store
	api     MappingAPI
	logger  *zap.Logger
	pending *Proposal
}

// NewNegotiator creates a negotiator working on store.
func NewNegotiator(store *Store, mappingAPI MappingAPI, logger *zap.Logger) *Negotiator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Negotiator{store: store, api: mappingAPI, logger: logger}
}

// Pending returns the proposal awaiting an answer, or nil.
func (n *Negotiator) Pending() *Proposal { return n.pending }

// ErrNoProposal is returned by Confirm and Cancel when nothing is pending.
var ErrNoProposal = errors.New("no mapping is awaiting confirmation")

// DragEnded handles a released drag.
func (n *Negotiator) DragEnded(ctx context.Context, ev DragEnded) (Result, error) {
	if ev.Click {
		return Result{Outcome: OutcomeClick}, nil
	}

	source, ok := n.store.Item(ev.Kind, ev.ID)
	if !ok {
		return Result{Outcome: OutcomeInvalid, Notice: fmt.Sprintf("%s is no longer on the canvas", ev.Kind)}, nil
	}

	target := geometry.ResolveDropTarget(ev.Pointer, n.store.Candidates(), ev.ID)
	if target == nil {
		return n.reposition(ctx, source, ev)
	}

	transition, allowed := Classify(source.Kind, target.Kind)
	if !allowed {
		n.store.SetPosition(source.Kind, source.ID, ev.Origin)
		return Result{
			Outcome: OutcomeInvalid,
			Notice:  fmt.Sprintf("A %s cannot be mapped to a %s", source.Kind, target.Kind),
		}, nil
	}
	if source.Parent != nil && source.Parent.Kind == target.Kind && source.Parent.ID == target.ID {
		n.store.SetPosition(source.Kind, source.ID, ev.Origin)
		return Result{
			Outcome: OutcomeInvalid,
			Notice:  fmt.Sprintf("%s %q is already mapped to %s %q", source.Kind, source.Label, target.Kind, target.Label),
		}, nil
	}

	p := &Proposal{
		Transition: transition,
		Source:     source,
		Target:     *target,
		Origin:     ev.Origin,
		Final:      ev.Final,
	}
	if source.Parent != nil {
		if cur, ok := n.store.Item(source.Parent.Kind, source.Parent.ID); ok {
			p.Replaces = &cur
		} else {
			p.Replaces = &Item{Kind: source.Parent.Kind, ID: source.Parent.ID, Label: source.Parent.ID}
		}
	}
	p.Message = proposalMessage(p)

	n.store.SetPosition(source.Kind, source.ID, ev.Final)
	n.pending = p
	return Result{Outcome: OutcomeProposal, Proposal: p}, nil
}

func proposalMessage(p *Proposal) string {
	if p.Transfer() {
		return fmt.Sprintf("Move %s %q from %s %q to %s %q? Its link to %s %q will be replaced.",
			p.Source.Kind, p.Source.Label,
			p.Replaces.Kind, p.Replaces.Label,
			p.Target.Kind, p.Target.Label,
			p.Replaces.Kind, p.Replaces.Label)
	}
	return fmt.Sprintf("Map %s %q to %s %q?", p.Source.Kind, p.Source.Label, p.Target.Kind, p.Target.Label)
}

// Confirm performs the pending mapping, then saves the dragged position. On
// failure the element snaps back to where the drag started.
func (n *Negotiator) Confirm(ctx context.Context) (*api.MappingResponse, error) {
	p := n.pending
	if p == nil {
		return nil, ErrNoProposal
	}
	n.pending = nil

	target := p.Target.ID
	var (
		resp *api.MappingResponse
		err  error
	)
	switch p.Transition {
	case DotToWheel:
		resp, err = n.api.MapDotToWheel(ctx, p.Source.ID, &target)
	case DotToChakra:
		resp, err = n.api.MapDotToChakra(ctx, p.Source.ID, &target)
	case WheelToChakra:
		resp, err = n.api.MapWheelToChakra(ctx, p.Source.ID, &target)
	}
	if err != nil {
		n.store.SetPosition(p.Source.Kind, p.Source.ID, p.Origin)
		n.logger.Warn("mapping failed",
			zap.String("transition", string(p.Transition)),
			zap.String("id", p.Source.ID),
			zap.String("target", target),
			zap.Error(err),
		)
		return nil, &NoticeError{Notice: failureNotice(err), Err: err}
	}
	n.store.ApplyMapping(resp)

	if _, err := n.savePosition(ctx, p.Source, p.Final); err != nil {
		// The mapping stands; only the position is rolled back.
		n.store.SetPosition(p.Source.Kind, p.Source.ID, p.Origin)
		n.logger.Warn("position save after mapping failed", zap.String("id", p.Source.ID), zap.Error(err))
	}
	return resp, nil
}

// Cancel drops the pending mapping. The element keeps its dragged position,
// which is saved on its own.
func (n *Negotiator) Cancel(ctx context.Context) (*api.PositionResponse, error) {
	p := n.pending
	if p == nil {
		return nil, ErrNoProposal
	}
	n.pending = nil

	resp, err := n.savePosition(ctx, p.Source, p.Final)
	if err != nil {
		n.store.SetPosition(p.Source.Kind, p.Source.ID, p.Origin)
		return nil, &NoticeError{Notice: "Could not save the new position", Err: err}
	}
	return resp, nil
}

func (n *Negotiator) reposition(ctx context.Context, source Item, ev DragEnded) (Result, error) {
	n.store.SetPosition(source.Kind, source.ID, ev.Final)
	resp, err := n.savePosition(ctx, source, ev.Final)
	if err != nil {
		n.store.SetPosition(source.Kind, source.ID, ev.Origin)
		return Result{Outcome: OutcomeFailed, Notice: "Could not save the new position"}, err
	}
	return Result{Outcome: OutcomeReposition, Position: resp}, nil
}

func (n *Negotiator) savePosition(ctx context.Context, it Item, pos domain.Position) (*api.PositionResponse, error) {
	resp, err := n.api.SavePosition(ctx, it.Kind, it.ID, pos.Rounded(), false)
	if err != nil {
		return nil, err
	}
	n.store.SetPosition(it.Kind, it.ID, resp.Position)
	return resp, nil
}

// NoticeError carries the text to show the user alongside the cause.
type NoticeError struct {
	Notice string
	Err    error
}

func (e *NoticeError) Error() string { return e.Notice + ": " + e.Err.Error() }
func (e *NoticeError) Unwrap() error { return e.Err }

func failureNotice(err error) string {
	switch {
	case apperrors.IsNotFound(err):
		return "Could not complete this mapping"
	case apperrors.IsUnauthorized(err):
		return "Your session has expired, sign in again"
	}
	return "Mapping failed, try again"
}
