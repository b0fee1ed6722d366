package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"shiftgate/internal/audit"
	"shiftgate/internal/directory/models"
	"shiftgate/internal/directory/service"
	id "shiftgate/pkg/domain"
	dErrors "shiftgate/pkg/domain-errors"
	"shiftgate/pkg/platform/httputil"
	"shiftgate/pkg/requestcontext"
)

// Service defines the interface for identity administration.
type Service interface {
	CreateEmployee(ctx context.Context, in service.CreateEmployeeInput) (*models.Identity, string, error)
	GetIdentity(ctx context.Context, identityID id.IdentityID) (*models.Identity, error)
	ListIdentities(ctx context.Context) ([]*models.Identity, error)
	SetAllowedNetworks(ctx context.Context, identityID id.IdentityID, networks []string) error
	GetBinding(ctx context.Context, identityID id.IdentityID) (*models.DeviceBinding, error)
	AdminImmediateBind(ctx context.Context, targetID id.IdentityID, deviceID, label string) (*models.DeviceBinding, error)
}

// Handler exposes identity administration over HTTP. All routes are
// admin-only; the caller applies the role middleware.
type Handler struct {
	service Service
	audit   *audit.Reader
	logger  *slog.Logger
}

func New(service Service, auditReader *audit.Reader, logger *slog.Logger) *Handler {
	return &Handler{service: service, audit: auditReader, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/employees", h.handleCreate)
	r.Get("/admin/employees", h.handleList)
	r.Get("/admin/employees/{id}", h.handleGet)
	r.Patch("/admin/employees/{id}/allowed-networks", h.handleSetNetworks)
	r.Get("/admin/employees/{id}/device", h.handleGetBinding)
	r.Post("/admin/employees/{id}/device", h.handleBind)
	r.Get("/admin/employees/{id}/audit", h.handleAudit)
}

type createEmployeeBody struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Secret string `json:"secret,omitempty"`
}

type createEmployeeResponse struct {
	Identity *models.Identity `json:"identity"`
	// Secret is returned exactly once, only when it was generated here.
	Secret string `json:"secret,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body createEmployeeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	role := models.Role(body.Role)
	if body.Role == "" {
		role = models.RoleEmployee
	}

	identity, secret, err := h.service.CreateEmployee(ctx, service.CreateEmployeeInput{
		Email:  body.Email,
		Name:   body.Name,
		Role:   role,
		Secret: body.Secret,
	})
	if err != nil {
		h.logError(ctx, "create employee failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, createEmployeeResponse{Identity: identity, Secret: secret})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identities, err := h.service.ListIdentities(ctx)
	if err != nil {
		h.logError(ctx, "list employees failed", err)
		httputil.WriteError(w, err)
		return
	}
	if identities == nil {
		identities = []*models.Identity{}
	}
	httputil.WriteJSON(w, http.StatusOK, identities)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identityID, err := id.ParseIdentityID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid identity id"))
		return
	}
	identity, err := h.service.GetIdentity(ctx, identityID)
	if err != nil {
		h.logError(ctx, "get employee failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identity)
}

type setNetworksBody struct {
	Networks []string `json:"networks"`
}

func (h *Handler) handleSetNetworks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identityID, err := id.ParseIdentityID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid identity id"))
		return
	}
	var body setNetworksBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.service.SetAllowedNetworks(ctx, identityID, body.Networks); err != nil {
		h.logError(ctx, "set allowed networks failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetBinding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identityID, err := id.ParseIdentityID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid identity id"))
		return
	}
	binding, err := h.service.GetBinding(ctx, identityID)
	if err != nil {
		h.logError(ctx, "get binding failed", err)
		httputil.WriteError(w, err)
		return
	}
	if binding == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no device bound"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, binding)
}

type bindBody struct {
	DeviceID string `json:"device_id"`
	Label    string `json:"label"`
}

func (h *Handler) handleBind(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identityID, err := id.ParseIdentityID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid identity id"))
		return
	}
	var body bindBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	binding, err := h.service.AdminImmediateBind(ctx, identityID, body.DeviceID, body.Label)
	if err != nil {
		h.logError(ctx, "immediate bind failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, binding)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identityID, err := id.ParseIdentityID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid identity id"))
		return
	}
	events, err := h.audit.ListBySubject(ctx, identityID)
	if err != nil {
		h.logError(ctx, "list audit events failed", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events"))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, events)
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
