// Package gate is the decision point consulted before any punch is accepted.
// It combines the allowlist and the device binding into a single
// allow-or-deny answer and persists nothing itself.
package gate

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"shiftgate/internal/allowlist"
	"shiftgate/internal/audit"
	dirstore "shiftgate/internal/directory/store"
	"shiftgate/internal/platform/metrics"
	id "shiftgate/pkg/domain"
	dErrors "shiftgate/pkg/domain-errors"
	"shiftgate/pkg/requestcontext"
)

// DenyReason explains a denial so the employee can self-diagnose.
type DenyReason string

const (
	DenyNetworkNotAllowed  DenyReason = "network_not_allowed"
	DenyNoDeviceRegistered DenyReason = "no_device_registered"
	DenyDeviceMismatch     DenyReason = "device_mismatch"
)

// Decision is the gate's tagged result. A denial always carries a reason; an
// allowance never does.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
}

func allow() Decision            { return Decision{Allowed: true} }
func deny(r DenyReason) Decision { return Decision{Allowed: false, Reason: r} }

// Gate evaluates punch authorization. Storage failures propagate as errors,
// never as an allowance: when allowlist or binding state cannot be
// determined the caller must treat the punch as denied.
type Gate struct {
	identities dirstore.Store
	resolver   *allowlist.Resolver
	audit      *audit.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
}

func New(identities dirstore.Store, resolver *allowlist.Resolver, auditPublisher *audit.Publisher, m *metrics.Metrics, logger *slog.Logger) *Gate {
	return &Gate{
		identities: identities,
		resolver:   resolver,
		audit:      auditPublisher,
		metrics:    m,
		logger:     logger,
		tracer:     otel.Tracer("shiftgate/gate"),
	}
}

// Authorize decides whether a punch from the given device and network
// address is acceptable for the identity.
//
// Admins bypass both checks entirely and self-authorize. This mirrors the
// admin immediate-bind path: a deliberate trust boundary for the admin role,
// not an oversight.
func (g *Gate) Authorize(ctx context.Context, identityID id.IdentityID, presentedDeviceID, clientAddr string) (Decision, error) {
	ctx, span := g.tracer.Start(ctx, "gate.authorize")
	defer span.End()
	started := time.Now()

	identity, err := g.identities.FindByID(ctx, identityID)
	if err != nil {
		return g.fail(ctx, span, started, err, "identity lookup failed")
	}

	if identity.IsAdmin() {
		return g.finish(ctx, span, started, identityID, presentedDeviceID, clientAddr, allow()), nil
	}

	rules, err := g.resolver.Resolve(ctx, identity.AllowedNetworks)
	if err != nil {
		return g.fail(ctx, span, started, err, "allowlist resolution failed")
	}
	if !g.resolver.Matches(ctx, clientAddr, rules) {
		return g.finish(ctx, span, started, identityID, presentedDeviceID, clientAddr, deny(DenyNetworkNotAllowed)), nil
	}

	// Binding is read fresh rather than taken from the identity row loaded
	// above, so a just-committed approval is always observed.
	binding, err := g.identities.Binding(ctx, identityID)
	if err != nil {
		return g.fail(ctx, span, started, err, "binding lookup failed")
	}
	if binding == nil {
		return g.finish(ctx, span, started, identityID, presentedDeviceID, clientAddr, deny(DenyNoDeviceRegistered)), nil
	}
	if presentedDeviceID != binding.DeviceID {
		return g.finish(ctx, span, started, identityID, presentedDeviceID, clientAddr, deny(DenyDeviceMismatch)), nil
	}
	return g.finish(ctx, span, started, identityID, presentedDeviceID, clientAddr, allow()), nil
}

func (g *Gate) finish(ctx context.Context, span trace.Span, started time.Time, identityID id.IdentityID, deviceID, clientAddr string, decision Decision) Decision {
	outcome := "allow"
	if !decision.Allowed {
		outcome = "deny"
	}
	span.SetAttributes(
		attribute.String("gate.outcome", outcome),
		attribute.String("gate.reason", string(decision.Reason)),
	)
	g.metrics.ObservePunchDecision(outcome, string(decision.Reason), time.Since(started))

	if !decision.Allowed {
		g.audit.Emit(ctx, audit.Event{
			Actor:   identityID,
			Subject: identityID,
			Action:  audit.ActionPunchDenied,
			Detail:  string(decision.Reason),
		})
		g.logger.WarnContext(ctx, "punch denied",
			"identity_id", identityID.String(),
			"reason", string(decision.Reason),
			"device_id", deviceID,
			"client_addr", clientAddr,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return decision
}

// fail records an infrastructure failure. The zero Decision it returns is a
// denial, so even a caller that ignores the error fails closed.
func (g *Gate) fail(ctx context.Context, span trace.Span, started time.Time, err error, msg string) (Decision, error) {
	span.SetAttributes(attribute.String("gate.outcome", "error"))
	g.metrics.ObservePunchDecision("error", "", time.Since(started))
	g.logger.ErrorContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	return Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
