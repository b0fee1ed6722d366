package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"shiftgate/internal/attendance/models"
	"shiftgate/internal/attendance/service"
	dErrors "shiftgate/pkg/domain-errors"
	"shiftgate/pkg/platform/httputil"
	"shiftgate/pkg/requestcontext"
)

// Service defines the interface for attendance operations.
type Service interface {
	Punch(ctx context.Context, kind models.Kind) (*service.PunchResult, error)
	History(ctx context.Context, from, to time.Time, limit int) ([]*models.Punch, error)
}

// Handler exposes punch recording and history over HTTP.
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
	r.Post("/attendance/punch", h.handlePunch)
	r.Get("/attendance/history", h.handleHistory)
}

type punchBody struct {
	Kind string `json:"kind"`
}

type punchResponse struct {
	Allowed bool          `json:"allowed"`
	Reason  string        `json:"reason,omitempty"`
	Punch   *models.Punch `json:"punch,omitempty"`
}

func (h *Handler) handlePunch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body punchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.service.Punch(ctx, models.Kind(body.Kind))
	if err != nil {
		h.logger.WarnContext(ctx, "punch failed",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	// A denial is an expected outcome: 403 with the specific reason so the
	// employee can self-diagnose.
	if !result.Decision.Allowed {
		httputil.WriteJSON(w, http.StatusForbidden, punchResponse{
			Allowed: false,
			Reason:  string(result.Decision.Reason),
		})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, punchResponse{
		Allowed: true,
		Punch:   result.Punch,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	from, err := parseTimeParam(r, "from")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be an integer"))
			return
		}
	}

	punches, err := h.service.History(ctx, from, to, limit)
	if err != nil {
		h.logger.WarnContext(ctx, "history failed",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	if punches == nil {
		punches = []*models.Punch{}
	}
	httputil.WriteJSON(w, http.StatusOK, punches)
}

func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, name+" must be RFC 3339")
	}
	return t, nil
}
