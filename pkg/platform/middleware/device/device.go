// Package device extracts the client-presented device identifier.
//
// The identifier is opaque: generated and persisted client-side, sent on every
// request via the X-Device-Id header. This layer never validates its format,
// only carries it; the gate compares it for equality against the stored
// binding.
package device

import (
	"net/http"
	"strings"

	"shiftgate/pkg/requestcontext"
)

// HeaderName is the request header carrying the device identifier.
const HeaderName = "X-Device-Id"

// Extract places the device identifier, if any, into the request context.
func Extract(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID := strings.TrimSpace(r.Header.Get(HeaderName))
		if deviceID == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := requestcontext.WithDeviceID(r.Context(), deviceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
