// Package metadata attaches per-request caller metadata to the context.
package metadata

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"cardforge/pkg/requestcontext"
)

// ClientMetadata stores the request ID and client IP in the context. It must
// run after chi's RequestID middleware, and after RealIP when the server sits
// behind a trusted proxy.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = requestcontext.WithRequestID(ctx, middleware.GetReqID(ctx))
		ctx = requestcontext.WithClientIP(ctx, ClientIPFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest returns the host part of RemoteAddr.
func ClientIPFromRequest(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RealIP rewrites RemoteAddr to a bare address.
		return r.RemoteAddr
	}
	return host
}
