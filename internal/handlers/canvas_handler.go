// Package handlers exposes the canvas service and push channel over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"brain2-canvas/internal/domain"
	svc "brain2-canvas/internal/service/canvas"
	"brain2-canvas/pkg/api"
	"brain2-canvas/pkg/auth"
	apperrors "brain2-canvas/pkg/errors"
	"brain2-canvas/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies. A full 500-entry batch fits comfortably.
const maxBodyBytes = 1 << 20

// CanvasService is what the handlers need from the canvas service.
type CanvasService interface {
	MapDotToWheel(ctx context.Context, ownerID, dotID string, wheelID *string) (*api.MappingResponse, error)
	MapDotToChakra(ctx context.Context, ownerID, dotID string, chakraID *string) (*api.MappingResponse, error)
	MapWheelToChakra(ctx context.Context, ownerID, wheelID string, chakraID *string) (*api.MappingResponse, error)
	SavePosition(ctx context.Context, ownerID string, kind domain.Kind, id string, pos domain.Position, validate bool) (*api.PositionResponse, error)
	BatchSavePosition(ctx context.Context, ownerID string, req api.BatchSavePositionRequest) (*api.BatchPositionResponse, error)
	ListDots(ctx context.Context, ownerID string, f svc.ListFilter) (*api.DotsResponse, error)
	ListWheels(ctx context.Context, ownerID string, f svc.ListFilter) (*api.WheelsResponse, error)
	ListChakras(ctx context.Context, ownerID string, f svc.ListFilter) (*api.ChakrasResponse, error)
	Snapshot(ctx context.Context, ownerID string) (*api.CanvasResponse, error)
	Stats(ctx context.Context, ownerID string) (*api.StatsResponse, error)
}

var _ CanvasService = (*svc.Service)(nil)

// CanvasHandler serves the read and mutation endpoints.
type CanvasHandler struct {
	service CanvasService
	errs    *apperrors.ErrorHandler
	logger  *zap.Logger
}

// NewCanvasHandler creates a new canvas handler
func NewCanvasHandler(service CanvasService, errs *apperrors.ErrorHandler, logger *zap.Logger) *CanvasHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CanvasHandler{service: service, errs: errs, logger: logger}
}

// Snapshot handles GET /canvas
func (h *CanvasHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	resp, err := h.service.Snapshot(r.Context(), userID)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, resp)
}

// ListDots handles GET /dots
func (h *CanvasHandler) ListDots(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	resp, err := h.service.ListDots(r.Context(), userID, f)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, resp)
}

// ListWheels handles GET /wheels
func (h *CanvasHandler) ListWheels(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	resp, err := h.service.ListWheels(r.Context(), userID, f)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, resp)
}

// ListChakras handles GET /chakras
func (h *CanvasHandler) ListChakras(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	resp, err := h.service.ListChakras(r.Context(), userID, f)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, resp)
}

// Stats handles GET /stats
func (h *CanvasHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	resp, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, resp)
}

// MapDotToWheel handles PUT /dots/{dotID}/wheel
func (h *CanvasHandler) MapDotToWheel(w http.ResponseWriter, r *http.Request) {
	h.mapping(w, r, "dotID", "wheelId", h.service.MapDotToWheel)
}

// MapDotToChakra handles PUT /dots/{dotID}/chakra
func (h *CanvasHandler) MapDotToChakra(w http.ResponseWriter, r *http.Request) {
	h.mapping(w, r, "dotID", "chakraId", h.service.MapDotToChakra)
}

// MapWheelToChakra handles PUT /wheels/{wheelID}/chakra
func (h *CanvasHandler) MapWheelToChakra(w http.ResponseWriter, r *http.Request) {
	h.mapping(w, r, "wheelID", "chakraId", h.service.MapWheelToChakra)
}

type mapFunc func(ctx context.Context, ownerID, id string, target *string) (*api.MappingResponse, error)

func (h *CanvasHandler) mapping(w http.ResponseWriter, r *http.Request, param, field string, fn mapFunc) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, param)

	target, err := decodeTarget(w, r, field)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	resp, err := fn(r.Context(), userID, id, target)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, resp)
}

// decodeTarget reads the parent id from the body. The field has to be
// present; an explicit null means unmap.
func decodeTarget(w http.ResponseWriter, r *http.Request, field string) (*string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, apperrors.NewValidationError("Invalid request body: " + err.Error())
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apperrors.NewValidationError("Invalid request body: " + err.Error())
	}
	if _, present := raw[field]; !present {
		return nil, apperrors.NewValidationError(fmt.Sprintf("%s is required; send null to unmap", field))
	}

	switch field {
	case "wheelId":
		var req api.MapDotToWheelRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, apperrors.NewValidationError("Invalid request body: " + err.Error())
		}
		if err := utils.ValidateStruct(req); err != nil {
			return nil, apperrors.NewValidationError("Validation error: " + err.Error())
		}
		return req.WheelID, nil
	default:
		var req api.MapToChakraRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, apperrors.NewValidationError("Invalid request body: " + err.Error())
		}
		if err := utils.ValidateStruct(req); err != nil {
			return nil, apperrors.NewValidationError("Validation error: " + err.Error())
		}
		return req.ChakraID, nil
	}
}

// SavePosition handles PUT /positions/{kind}/{id}
func (h *CanvasHandler) SavePosition(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.errs.Handle(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	var req api.SavePositionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.errs.Handle(w, r, apperrors.NewValidationError("Invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errs.Handle(w, r, apperrors.NewValidationError("Validation error: "+err.Error()))
		return
	}

	pos := domain.Position{X: *req.X, Y: *req.Y}
	resp, err := h.service.SavePosition(r.Context(), userID, kind, chi.URLParam(r, "id"), pos, req.ValidateCollision)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, resp)
}

// BatchSavePosition handles POST /positions/batch
func (h *CanvasHandler) BatchSavePosition(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}

	var req api.BatchSavePositionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.errs.Handle(w, r, apperrors.NewValidationError("Invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errs.Handle(w, r, apperrors.NewValidationError("Validation error: "+err.Error()))
		return
	}

	resp, err := h.service.BatchSavePosition(r.Context(), userID, req)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *CanvasHandler) user(w http.ResponseWriter, r *http.Request) (string, bool) {
	return requireUser(h.errs, w, r)
}

func requireUser(errs *apperrors.ErrorHandler, w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		errs.Handle(w, r, apperrors.NewUnauthorizedError("authentication required"))
		return "", false
	}
	return userID, true
}

func parseFilter(r *http.Request) (svc.ListFilter, error) {
	q := r.URL.Query()
	f := svc.ListFilter{Parent: q.Get("parent")}
	if v := q.Get("unmapped"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, apperrors.NewValidationError("unmapped must be true or false")
		}
		f.Unmapped = b
	}
	return f, nil
}
