package testutil

import (
	"net/http"

	id "clocklayer/pkg/domain"
	"clocklayer/pkg/requestcontext"
)

// WithIdentity adds an authenticated identity to the request context, the way
// the auth middleware does after validating a bearer token. Invalid ids are
// silently ignored so tests can exercise the unauthenticated path.
func WithIdentity(req *http.Request, identityID string) *http.Request {
	parsed, err := id.ParseIdentityID(identityID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithIdentityID(req.Context(), parsed))
}

// WithAuth adds both identity and wizard session to the request context.
func WithAuth(req *http.Request, identityID string, sessionID id.SessionID) *http.Request {
	req = WithIdentity(req, identityID)
	return req.WithContext(requestcontext.WithSessionID(req.Context(), sessionID))
}
