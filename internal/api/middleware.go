package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/cardspace/cardspace/internal/auth"
)

const requestIDHeader = "X-Request-ID"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	subjectKey
)

// RequestLogger tags each request with an id (taken from X-Request-ID or
// freshly generated) and logs it once it has been served.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(ww, r.WithContext(ctx))

		slog.Info("request served",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

// logger returns the default logger bound to the request id and the token
// subject, when present.
func logger(r *http.Request) *slog.Logger {
	l := slog.Default()
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		l = l.With("request_id", id)
	}
	if sub, ok := r.Context().Value(subjectKey).(string); ok {
		l = l.With("subject", sub)
	}
	return l
}

// JWTAuthMiddleware requires a valid bearer token signed by issuer.
func JWTAuthMiddleware(issuer *auth.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Authorization header is required")
				return
			}

			tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			subject, err := issuer.Validate(tokenString)
			if err != nil {
				logger(r).Debug("rejected token", "error", err)
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
