package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"shiftgate/internal/devicechange/models"
	id "shiftgate/pkg/domain"
	dErrors "shiftgate/pkg/domain-errors"
	"shiftgate/pkg/platform/httputil"
	"shiftgate/pkg/requestcontext"
)

// Service defines the interface for device change operations.
type Service interface {
	RequestChange(ctx context.Context, deviceID, label string) (*models.ChangeRequest, error)
	ListMine(ctx context.Context) ([]*models.ChangeRequest, error)
	ListFor(ctx context.Context, identityID id.IdentityID) ([]*models.ChangeRequest, error)
	ListPending(ctx context.Context) ([]*models.ChangeRequest, error)
	Approve(ctx context.Context, requestID id.ChangeRequestID) (*models.ChangeRequest, error)
	Reject(ctx context.Context, requestID id.ChangeRequestID, note string) (*models.ChangeRequest, error)
	Delete(ctx context.Context, requestID id.ChangeRequestID) error
}

// Handler exposes the device change workflow over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the employee-facing routes. The caller has already applied
// authentication middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/devices/request-change", h.handleRequestChange)
	r.Get("/devices/my-requests", h.handleListMine)
	r.Delete("/devices/requests/{id}", h.handleDelete)
}

// RegisterAdmin mounts the review routes. The caller has already applied
// authentication and admin role middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/devices/requests", h.handleListPending)
	r.Post("/devices/requests/{id}/approve", h.handleApprove)
	r.Post("/devices/requests/{id}/reject", h.handleReject)
	r.Get("/admin/employees/{id}/requests", h.handleListFor)
}

type changeRequestBody struct {
	DeviceID string `json:"device_id"`
	Label    string `json:"label"`
}

func (h *Handler) handleRequestChange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body changeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	request, err := h.service.RequestChange(ctx, body.DeviceID, body.Label)
	if err != nil {
		h.logError(ctx, "request change failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, request)
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requests, err := h.service.ListMine(ctx)
	if err != nil {
		h.logError(ctx, "list my requests failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, requestList(requests))
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requests, err := h.service.ListPending(ctx)
	if err != nil {
		h.logError(ctx, "list pending requests failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, requestList(requests))
}

func (h *Handler) handleListFor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identityID, err := id.ParseIdentityID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid identity id"))
		return
	}

	requests, err := h.service.ListFor(ctx, identityID)
	if err != nil {
		h.logError(ctx, "list requests for identity failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, requestList(requests))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID, err := id.ParseChangeRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request id"))
		return
	}

	approved, err := h.service.Approve(ctx, requestID)
	if err != nil {
		h.logError(ctx, "approve failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, approved)
}

type rejectBody struct {
	Note string `json:"note"`
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID, err := id.ParseChangeRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request id"))
		return
	}

	var body rejectBody
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	rejected, err := h.service.Reject(ctx, requestID, body.Note)
	if err != nil {
		h.logError(ctx, "reject failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rejected)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID, err := id.ParseChangeRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request id"))
		return
	}

	if err := h.service.Delete(ctx, requestID); err != nil {
		h.logError(ctx, "delete request failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, msg,
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return
	}
	h.logger.WarnContext(ctx, msg,
		"error", err.Error(),
		"request_id", requestcontext.RequestID(ctx),
	)
}

// requestList keeps empty results as [] instead of null.
func requestList(requests []*models.ChangeRequest) []*models.ChangeRequest {
	if requests == nil {
		return []*models.ChangeRequest{}
	}
	return requests
}
