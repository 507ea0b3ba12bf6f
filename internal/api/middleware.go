// internal/api/middleware.go
package api

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/crease/internal/api/apiutil"
	"github.com/codr1/crease/internal/api/authz"
	"github.com/codr1/crease/internal/cricket"
	"github.com/codr1/crease/internal/directory"
	"github.com/codr1/crease/internal/ratelimit"
)

const (
	RequestIDHeader = "X-Request-ID"
	UserIDHeader    = "X-User-ID"

	callerLookupTimeout = 5 * time.Second
)

type Middleware func(http.Handler) http.Handler

type requestIDContextKey struct{}

// RequestIDFromContext returns the id assigned by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create response wrapper to capture status code
		wrapped := wrapResponseWriter(w)

		next.ServeHTTP(wrapped, r)
		log.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	})
}

func WithRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logger := log.Ctx(r.Context())
				// Log the full stack trace
				stack := debug.Stack()
				logger.Error().
					Interface("error", err).
					Str("stack", string(stack)).
					Msg("Panic recovered")

				_ = apiutil.WriteJSON(w, http.StatusInternalServerError, apiutil.ErrorResponse{Error: "Internal Server Error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// WithRequestID reuses an incoming X-Request-ID when it is a UUID and
// generates one otherwise.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}

		// Create a logger with the request ID
		logger := log.With().Str("request_id", requestID).Logger()

		// Add both the request ID and logger to context
		ctx := context.WithValue(r.Context(), requestIDContextKey{}, requestID)
		ctx = logger.WithContext(ctx)

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithCaller resolves X-User-ID through the directory. Requests without the
// header continue anonymously; an unknown user is rejected with 401.
func WithCaller(dir directory.Directory) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}
			if err := cricket.ValidateID(UserIDHeader, userID); err != nil {
				apiutil.WriteError(w, r, err)
				return
			}

			// The timeout only applies to the directory lookup.
			lookupCtx, cancel := context.WithTimeout(r.Context(), callerLookupTimeout)
			defer cancel()

			user, err := dir.GetUser(lookupCtx, userID)
			if err != nil {
				if errors.Is(err, cricket.ErrNotFound) {
					apiutil.WriteError(w, r, authz.ErrUnauthenticated)
					return
				}
				apiutil.WriteError(w, r, err)
				return
			}

			logger := log.Ctx(r.Context()).With().Str("user_id", user.ID).Logger()
			ctx := authz.ContextWithCaller(logger.WithContext(r.Context()), authz.CallerFromUser(user))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithWriteLimit throttles state-changing requests per caller and client IP.
// Reads pass through.
func WithWriteLimit(limiter *ratelimit.Limiter, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			var callerID string
			if caller := authz.CallerFromContext(r.Context()); caller != nil {
				callerID = caller.ID
			}
			ip := ratelimit.GetClientIP(r, trustProxy)
			result := limiter.Allow(callerID, ip)
			if !result.Allowed {
				ratelimit.LogRateLimitExceeded(r.Context(), callerID, ip, result)
				retryAfter := int(result.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				_ = apiutil.WriteJSON(w, http.StatusTooManyRequests, apiutil.ErrorResponse{Error: "Too Many Requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wrapper to capture status code
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the logging wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
