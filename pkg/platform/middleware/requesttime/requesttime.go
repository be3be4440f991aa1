// Package requesttime provides middleware for request-scoped time.
// Every operation within one request sees the same "now", so a record's
// createdAt matches the time logged for the request that created it.
package requesttime

import (
	"net/http"
	"time"

	"formintake/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request
// and stores it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
