// Package allowlist resolves and matches the network ranges an identity may
// punch from.
package allowlist

import "context"

// CompanyStore persists the company-wide default allowlist. It is a single
// ordered list of CIDR blocks and IP literals shared by every identity that
// has no per-identity override.
type CompanyStore interface {
	// Networks returns the current company allowlist. An empty list is a
	// valid state and means deny-all for identities without an override.
	Networks(ctx context.Context) ([]string, error)

	// Replace swaps the whole company allowlist in one step.
	Replace(ctx context.Context, networks []string) error
}
