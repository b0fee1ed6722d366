package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"shiftgate/internal/allowlist"
	"shiftgate/internal/audit"
	"shiftgate/internal/platform/metrics"
	dErrors "shiftgate/pkg/domain-errors"
	"shiftgate/pkg/platform/httputil"
	"shiftgate/pkg/requestcontext"
)

// Handler exposes the company allowlist over HTTP. Admin-only; the caller
// applies the role middleware.
type Handler struct {
	company allowlist.CompanyStore
	audit   *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(company allowlist.CompanyStore, auditPublisher *audit.Publisher, m *metrics.Metrics, logger *slog.Logger) *Handler {
	return &Handler{company: company, audit: auditPublisher, metrics: m, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/company-networks", h.handleGet)
	r.Put("/admin/company-networks", h.handlePut)
}

type networksBody struct {
	Networks []string `json:"networks"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	networks, err := h.company.Networks(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "get company networks failed",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load company allowlist"))
		return
	}
	if networks == nil {
		networks = []string{}
	}
	httputil.WriteJSON(w, http.StatusOK, networksBody{Networks: networks})
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body networksBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	cleaned := make([]string, 0, len(body.Networks))
	for _, rule := range body.Networks {
		rule = strings.TrimSpace(rule)
		if rule != "" {
			cleaned = append(cleaned, rule)
		}
	}

	if err := h.company.Replace(ctx, cleaned); err != nil {
		h.logger.ErrorContext(ctx, "replace company networks failed",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to replace company allowlist"))
		return
	}

	h.metrics.IncrementAllowlistUpdates()
	actor := requestcontext.IdentityID(ctx)
	h.audit.Emit(ctx, audit.Event{
		Actor:   actor,
		Subject: actor,
		Action:  audit.ActionAllowlistUpdated,
		Detail:  "company:" + strings.Join(cleaned, ","),
	})
	httputil.WriteJSON(w, http.StatusOK, networksBody{Networks: cleaned})
}
