package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gatereg/registry/internal/ctxkey"
	"github.com/gatereg/registry/internal/domain/access"
	"github.com/gatereg/registry/internal/domain/identity"
	"github.com/google/uuid"
)

type requestIDKey struct{}

type userContextKey struct{}

// requestIDMiddleware assigns every request a correlation ID (reusing
// an inbound X-Request-ID if present) and stores a request-scoped
// logger via ctxkey.LoggerKey so downstream handlers never import
// this package just to log.
func requestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", reqID)

			ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
			ctx = context.WithValue(ctx, ctxkey.LoggerKey{}, logger.With("request_id", reqID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func loggerFromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return l
	}
	return fallback
}

// requireAuth decodes the bearer token on every /api request into an
// access.UserContext via the injected identity.Decoder and stores it
// in context; unauthenticated requests are rejected before any handler
// runs. /health, /.well-known/*, and /v0.1/* never pass through this
// middleware.
func requireAuth(decoder identity.Decoder, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			user, err := decoder.Decode(r.Context(), token)
			if err != nil {
				writeError(w, r, logger, err)
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func userFromContext(ctx context.Context) *access.UserContext {
	u, _ := ctx.Value(userContextKey{}).(*access.UserContext)
	if u == nil {
		return &access.UserContext{}
	}
	return u
}

// requestLogMiddleware logs method/path/status/duration for every
// request. Must sit at the outermost layer to capture full duration.
func requestLogMiddleware(logger *slog.Logger, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			dur := time.Since(start)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", dur.Milliseconds(),
			)
			if metrics != nil {
				metrics.Observe(r.Method, r.URL.Path, sw.status, dur)
			}
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// chain applies middleware in the order given, outermost first.
func chain(h http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
