package httpserver

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/helixir/paper-parsing-service/internal/observability"
)

// authEmailHeader carries the authenticated uploader identity, set by the
// authenticating proxy in front of the service.
const authEmailHeader = "X-Auth-Email"

// correlationIDMiddleware ensures every request has a correlation ID.
func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = middleware.GetReqID(r.Context())
		}
		if correlationID == "" {
			buf := make([]byte, 8)
			if _, err := rand.Read(buf); err != nil {
				// Fallback to timestamp-based ID if crypto/rand fails.
				correlationID = fmt.Sprintf("%x", time.Now().UnixNano())
			} else {
				correlationID = fmt.Sprintf("%x", buf)
			}
		}

		w.Header().Set("X-Correlation-ID", correlationID)
		ctx := observability.WithRequestID(r.Context(), correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// NewAllowListMiddleware authorizes requests by the proxy-supplied identity
// header against a whitelist of uploader emails. A missing identity is
// unauthorized; an identity outside the whitelist is forbidden. Comparison
// is case-insensitive.
func NewAllowListMiddleware(allowedEmails []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedEmails))
	for _, email := range allowedEmails {
		allowed[strings.ToLower(strings.TrimSpace(email))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := strings.TrimSpace(r.Header.Get(authEmailHeader))
			if email == "" {
				writeError(w, http.StatusUnauthorized, "missing identity header")
				return
			}

			if _, ok := allowed[strings.ToLower(email)]; !ok {
				writeError(w, http.StatusForbidden, "identity not authorized to upload")
				return
			}

			ctx := observability.WithOwner(r.Context(), email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
