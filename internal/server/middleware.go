package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/its-mr-monday/WebDB/internal/errors"
	"github.com/its-mr-monday/WebDB/internal/identity"
	"github.com/its-mr-monday/WebDB/internal/server/ratelimit"
	"github.com/its-mr-monday/WebDB/internal/server/reqctx"
	"github.com/maruel/ksid"
)

// RequestLogger tags every request with an ID and the client IP, and logs
// its outcome. Forwarding headers are used for the IP only with trustProxy.
func RequestLogger(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := ksid.NewID()
			ip := reqctx.GetClientIP(r, trustProxy)
			ctx := reqctx.WithClientIP(reqctx.WithRequestID(r.Context(), id), ip)
			w.Header().Set("X-Request-ID", id.String())
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))
			slog.InfoContext(ctx, "http",
				"rid", id.String(),
				"m", r.Method,
				"p", r.URL.Path,
				"s", rec.status,
				"ip", ip,
				"user", rec.user,
				"d", time.Since(start).Round(time.Millisecond),
			)
		})
	}
}

// AuthMiddleware requires a valid Bearer token and stores its username in the
// context. The signature is checked before the username is trusted.
func AuthMiddleware(ids *identity.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeErrorResponseWithCode(w, http.StatusUnauthorized, apierrors.ErrUnauthorized, "No Authorization token presented!", nil)
				return
			}
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || !ids.VerifyToken(token) {
				writeErrorResponseWithCode(w, http.StatusUnauthorized, apierrors.ErrUnauthorized, "Invalid Authorization token!", nil)
				return
			}
			user, ok := ids.UserFromToken(token)
			if !ok {
				writeErrorResponseWithCode(w, http.StatusUnauthorized, apierrors.ErrUnauthorized, "Invalid Authorization token!", nil)
				return
			}
			if u, ok := w.(*statusRecorder); ok {
				u.user = user
			}
			next.ServeHTTP(w, r.WithContext(reqctx.WithUser(r.Context(), user)))
		})
	}
}

// RateLimit limits requests per client IP.
func RateLimit(l *ratelimit.Limiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := reqctx.ClientIP(r.Context())
			if ip == "" {
				ip = reqctx.GetClientIP(r, false)
			}
			res := l.Allow(scope + ":" + ip)
			ratelimit.WriteHeaders(w, res)
			if !res.Allowed {
				slog.WarnContext(r.Context(), "rate limited", "scope", scope, "ip", ip)
				writeErrorResponseWithCode(w, http.StatusTooManyRequests, apierrors.ErrRateLimited, "Too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
	user   string
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
