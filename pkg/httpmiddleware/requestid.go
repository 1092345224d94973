package httpmiddleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	requestIDHeader   = "X-Request-ID"
	traceparentHeader = "Traceparent"
	maxRequestIDLen   = 128
)

// requestIDKey is the context key for the request ID value.
type requestIDKey struct{}

// RequestIDFromContext returns the id stored by RequestID, or an empty
// string when the request did not pass through it. InjectLogger adds it to
// the request logger as request_id.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// RequestID returns a middleware that gives every storefront request an id,
// picked in this order:
//   - a valid incoming X-Request-ID header, as set by the platform router;
//   - the trace id of a W3C traceparent header, so log lines of a checkout
//     match the spans of the same trace;
//   - a fresh UUID v4.
//
// Incoming X-Request-ID values must be 1 to 128 bytes of printable ASCII
// (0x20 to 0x7E); anything else is replaced. The id is set on the response
// X-Request-ID header and stored in the request context, see
// RequestIDFromContext.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if !isValidRequestID(id) {
				id = traceIDFrom(r.Header.Get(traceparentHeader))
			}
			if id == "" {
				id = uuid.New().String()
			}

			w.Header().Set(requestIDHeader, id)

			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// isValidRequestID reports whether id is non-empty, at most 128 bytes and
// printable ASCII only.
func isValidRequestID(id string) bool {
	if len(id) == 0 || len(id) > maxRequestIDLen {
		return false
	}
	for i := range len(id) {
		if id[i] < 0x20 || id[i] > 0x7E {
			return false
		}
	}
	return true
}

// traceIDFrom extracts the trace id from a version-00 traceparent value
// ("00-<32 hex trace id>-<16 hex parent id>-<2 hex flags>"). Malformed
// values and the all-zero trace id yield "".
func traceIDFrom(traceparent string) string {
	parts := strings.Split(strings.TrimSpace(traceparent), "-")
	if len(parts) != 4 || parts[0] != "00" || len(parts[1]) != 32 || len(parts[2]) != 16 {
		return ""
	}
	traceID := parts[1]
	if strings.Trim(traceID, "0") == "" {
		return ""
	}
	for i := range len(traceID) {
		c := traceID[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return ""
		}
	}
	return traceID
}
