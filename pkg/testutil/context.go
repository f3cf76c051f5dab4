package testutil

import (
	"net/http"

	id "cardforge/pkg/domain"
	"cardforge/pkg/requestcontext"
)

// WithIdentity attaches a caller the way the auth middleware does for a live
// session.
func WithIdentity(req *http.Request, userID id.UserID, sessionID id.SessionID) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	ctx = requestcontext.WithSessionID(ctx, sessionID)
	return req.WithContext(ctx)
}
