package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/warden/pkg/contextkeys"
)

// HeaderRequestID carries the request id in both directions
const HeaderRequestID = "X-Request-Id"

// RequestID assigns every request an id, echoing a caller-supplied one,
// and stores it with a request-scoped logger and the start time
func RequestID(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)

			ctx := contextkeys.WithRequestID(r.Context(), id)
			ctx = contextkeys.WithLogger(ctx, logger.WithField("request_id", id))
			ctx = contextkeys.WithRequestStartTime(ctx, time.Now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
