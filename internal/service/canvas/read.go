package canvas

import (
	"context"
	"encoding/json"

	"brain2-canvas/internal/cache"
	"brain2-canvas/pkg/api"

	"go.uber.org/zap"
)

// ListFilter narrows a list read. Parent matches the wheel or chakra an
// element is attached to; chakras never have a parent, so a Parent filter on
// chakras matches nothing. For chakras Unmapped means "nothing attached".
type ListFilter struct {
	Unmapped bool
	Parent   string
}

// ListDots returns the owner's dots, one entry per id.
func (s *Service) ListDots(ctx context.Context, ownerID string, f ListFilter) (resp *api.DotsResponse, err error) {
	ctx, finish := s.span(ctx, "ListDots", ownerID)
	defer func() { finish(err) }()

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	v, err := s.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]api.DotResponse, 0, len(v.dots))
	for _, d := range v.dots {
		if f.Unmapped && d.Parent != nil {
			continue
		}
		if f.Parent != "" && (d.Parent == nil || d.Parent.ID != f.Parent) {
			continue
		}
		out = append(out, v.dotResponse(d))
	}
	return &api.DotsResponse{Dots: out, Count: len(out)}, nil
}

// ListWheels returns the owner's wheels with their dot counts and radii.
func (s *Service) ListWheels(ctx context.Context, ownerID string, f ListFilter) (resp *api.WheelsResponse, err error) {
	ctx, finish := s.span(ctx, "ListWheels", ownerID)
	defer func() { finish(err) }()

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	v, err := s.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]api.WheelResponse, 0, len(v.wheels))
	for _, w := range v.wheels {
		if f.Unmapped && w.ChakraID != "" {
			continue
		}
		if f.Parent != "" && w.ChakraID != f.Parent {
			continue
		}
		out = append(out, v.wheelResponse(w))
	}
	return &api.WheelsResponse{Wheels: out, Count: len(out)}, nil
}

// ListChakras returns the owner's chakras with their child counts and radii.
func (s *Service) ListChakras(ctx context.Context, ownerID string, f ListFilter) (resp *api.ChakrasResponse, err error) {
	ctx, finish := s.span(ctx, "ListChakras", ownerID)
	defer func() { finish(err) }()

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	v, err := s.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]api.ChakraResponse, 0, len(v.chakras))
	if f.Parent != "" {
		return &api.ChakrasResponse{Chakras: out}, nil
	}
	for _, c := range v.chakras {
		if f.Unmapped && (v.wheelsPerChakra[c.ID] > 0 || v.dotsPerChakra[c.ID] > 0) {
			continue
		}
		out = append(out, v.chakraResponse(c))
	}
	return &api.ChakrasResponse{Chakras: out, Count: len(out)}, nil
}

// Snapshot returns the whole canvas in one read, for seeding or resyncing a
// view.
func (s *Service) Snapshot(ctx context.Context, ownerID string) (resp *api.CanvasResponse, err error) {
	ctx, finish := s.span(ctx, "Snapshot", ownerID)
	defer func() { finish(err) }()

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	v, err := s.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	resp = &api.CanvasResponse{
		Dots:       make([]api.DotResponse, 0, len(v.dots)),
		Wheels:     make([]api.WheelResponse, 0, len(v.wheels)),
		Chakras:    make([]api.ChakraResponse, 0, len(v.chakras)),
		ServerTime: s.clock(),
	}
	for _, c := range v.chakras {
		resp.Chakras = append(resp.Chakras, v.chakraResponse(c))
	}
	for _, w := range v.wheels {
		resp.Wheels = append(resp.Wheels, v.wheelResponse(w))
	}
	for _, d := range v.dots {
		resp.Dots = append(resp.Dots, v.dotResponse(d))
	}
	return resp, nil
}

// Stats returns total, mapped and unmapped counts per kind. Results are
// cached per owner until the next mapping change or the TTL.
func (s *Service) Stats(ctx context.Context, ownerID string) (resp *api.StatsResponse, err error) {
	ctx, finish := s.span(ctx, "Stats", ownerID)
	defer func() { finish(err) }()

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}

	key := cache.StatsKey(ownerID)
	if raw, ok, cerr := s.cache.Get(ctx, key); cerr != nil {
		s.logger.Warn("stats cache read failed", zap.String("userID", ownerID), zap.Error(cerr))
	} else if ok {
		var cached api.StatsResponse
		if jerr := json.Unmarshal(raw, &cached); jerr == nil {
			s.metrics.ObserveCache(true)
			return &cached, nil
		}
	}
	s.metrics.ObserveCache(false)

	v, err := s.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	stats := v.stats()

	if raw, jerr := json.Marshal(stats); jerr == nil {
		if cerr := s.cache.Set(ctx, key, raw, s.settings.StatsTTL); cerr != nil {
			s.logger.Warn("stats cache write failed", zap.String("userID", ownerID), zap.Error(cerr))
		}
	}
	return &stats, nil
}
