package testutil

import (
	"net/http"

	id "mediashare/pkg/domain"
	"mediashare/pkg/requestcontext"
)

// WithOwner adds an authenticated owner to the request context.
// This simulates what the auth middleware would do for authenticated requests.
// If owner is not a valid identifier, it will not be added to the context.
func WithOwner(req *http.Request, owner string) *http.Request {
	if parsed, err := id.ParseOwnerID(owner); err == nil {
		return req.WithContext(requestcontext.WithOwnerID(req.Context(), parsed))
	}
	return req
}

// WithRequestID adds a request ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
