package testutil

import (
	"net/http"
	"time"

	id "shiftgate/pkg/domain"
	"shiftgate/pkg/requestcontext"
)

// WithIdentity adds an authenticated identity and role to the request context.
// This simulates what the auth middleware would do for authenticated requests.
// If the identity id is not a valid UUID, it will not be added.
func WithIdentity(req *http.Request, identityID, role string) *http.Request {
	parsed, err := id.ParseIdentityID(identityID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithIdentity(req.Context(), parsed, role))
}

// WithDevice adds a client-presented device id to the request context.
func WithDevice(req *http.Request, deviceID string) *http.Request {
	return req.WithContext(requestcontext.WithDeviceID(req.Context(), deviceID))
}

// WithClientMetadata adds the client network address and user agent to the
// request context, as the metadata middleware would.
func WithClientMetadata(req *http.Request, clientIP, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), clientIP, userAgent))
}

// WithTime pins the request-scoped clock.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
