package audit

import (
	"context"
	"log/slog"
	"time"

	id "shiftgate/pkg/domain"
)

// Publisher captures structured audit events. Emission is fire-and-forget:
// a full inbox drops the event with a warning rather than blocking the
// request path.
type Publisher struct {
	inbox  chan<- Event
	logger *slog.Logger
}

func NewPublisher(inbox chan<- Event, logger *slog.Logger) *Publisher {
	return &Publisher{inbox: inbox, logger: logger}
}

func (p *Publisher) Emit(ctx context.Context, base Event) {
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
	select {
	case p.inbox <- base:
	default:
		p.logger.WarnContext(ctx, "audit inbox full, event dropped",
			"action", base.Action,
			"subject", base.Subject.String(),
		)
	}
}

// Reader exposes stored events to the admin surface.
type Reader struct {
	store Store
}

func NewReader(store Store) *Reader {
	return &Reader{store: store}
}

func (r *Reader) ListBySubject(ctx context.Context, subject id.IdentityID) ([]Event, error) {
	return r.store.ListBySubject(ctx, subject)
}
