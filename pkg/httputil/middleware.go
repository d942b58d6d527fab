package httputil

import (
	"context"
	"net/http"
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/google/uuid"

	"github.com/agb-digital/onboarding/pkg/errors"
	"github.com/agb-digital/onboarding/pkg/logger"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	SessionIDKey contextKey = "session_id"
	FlowKey      contextKey = "flow"

	sessionHolderKey contextKey = "session_holder"
)

// RequestID middleware adds a request ID to each request
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger middleware logs HTTP requests
func Logger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			// Session handlers fill the holder once the token is checked
			holder := &sessionHolder{}
			ctx := context.WithValue(r.Context(), sessionHolderKey, holder)

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			log.Info().
				Str("request_id", GetRequestID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration", time.Since(start)).
				Str("session_id", holder.id).
				Str("remote_addr", r.RemoteAddr).
				Msg("HTTP request")
		})
	}
}

// Recoverer middleware recovers from panics
func Recoverer(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error().
						Interface("panic", err).
						Str("path", r.URL.Path).
						Msg("panic recovered")

					Error(w, r, errors.Internal("internal error"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit allows rps requests per second per client address
func RateLimit(rps float64, burst int, ttl time.Duration) func(http.Handler) http.Handler {
	lmt := tollbooth.NewLimiter(rps, &limiter.ExpirableOptions{
		DefaultExpirationTTL: ttl,
	})
	lmt.SetBurst(burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if httpError := tollbooth.LimitByRequest(lmt, w, r); httpError != nil {
				Error(w, r, errors.RateLimited())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

type sessionHolder struct {
	id string
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithSession adds the wizard session to the context and reports it to the
// request logger
func WithSession(ctx context.Context, sessionID, flow string) context.Context {
	if h, ok := ctx.Value(sessionHolderKey).(*sessionHolder); ok {
		h.id = sessionID
	}
	ctx = context.WithValue(ctx, SessionIDKey, sessionID)
	return context.WithValue(ctx, FlowKey, flow)
}

// GetSessionID retrieves the wizard session ID from context
func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(SessionIDKey).(string); ok {
		return id
	}
	return ""
}

// GetFlow retrieves the wizard flow name from context
func GetFlow(ctx context.Context) string {
	if flow, ok := ctx.Value(FlowKey).(string); ok {
		return flow
	}
	return ""
}
