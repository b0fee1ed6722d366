package allowlist

import (
	"context"
	"log/slog"
	"net/netip"
	"strings"

	"shiftgate/internal/platform/metrics"
	dErrors "shiftgate/pkg/domain-errors"
)

// Resolver computes the effective allowlist for an identity and matches
// client addresses against it.
//
// Policy: a non-empty per-identity override replaces the company list
// entirely, never merges with it. When both are empty the effective list is
// empty, which denies every address.
type Resolver struct {
	company CompanyStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewResolver(company CompanyStore, m *metrics.Metrics, logger *slog.Logger) *Resolver {
	return &Resolver{company: company, metrics: m, logger: logger}
}

// Resolve returns the effective rule list for an identity given its override.
func (r *Resolver) Resolve(ctx context.Context, override []string) ([]string, error) {
	if len(override) > 0 {
		return override, nil
	}
	networks, err := r.company.Networks(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load company allowlist")
	}
	return networks, nil
}

// Matches reports whether the client address is permitted by the rule set.
//
// A rule is either an exact IP literal or a CIDR block. Matching never
// crosses address families: an IPv4 literal only matches IPv4 clients, and
// 4-in-6 mapped addresses are unmapped before comparison. An unparseable
// client address matches nothing, and a malformed stored rule is skipped
// with a warning so one bad entry cannot block everyone else's rules.
func (r *Resolver) Matches(ctx context.Context, clientAddr string, rules []string) bool {
	addr, err := netip.ParseAddr(clientAddr)
	if err != nil {
		r.logger.WarnContext(ctx, "unparseable client address", "addr", clientAddr)
		return false
	}
	addr = addr.Unmap()

	for _, rule := range rules {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		if strings.Contains(rule, "/") {
			prefix, err := netip.ParsePrefix(rule)
			if err != nil {
				r.skipMalformed(ctx, rule, err)
				continue
			}
			if prefix.Addr().Is4() != addr.Is4() {
				continue
			}
			if prefix.Contains(addr) {
				return true
			}
			continue
		}
		literal, err := netip.ParseAddr(rule)
		if err != nil {
			r.skipMalformed(ctx, rule, err)
			continue
		}
		if literal.Unmap() == addr {
			return true
		}
	}
	return false
}

func (r *Resolver) skipMalformed(ctx context.Context, rule string, err error) {
	r.metrics.IncrementMalformedRules()
	r.logger.WarnContext(ctx, "skipping malformed allowlist rule",
		"rule", rule,
		"error", err,
	)
}
