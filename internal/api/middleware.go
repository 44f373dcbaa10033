package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/aquasens/internal/account"
	"github.com/dgallion1/aquasens/internal/metrics"
)

type principalKey struct{}

// Principal is who an authenticated request acts for. The service key acts
// for any user named in the request; a user token only for its own user.
type Principal struct {
	UserID  string
	Service bool
}

func principalFrom(r *http.Request) Principal {
	p, _ := r.Context().Value(principalKey{}).(Principal)
	return p
}

// AuthMiddleware accepts either the aquasens service key or a user token.
func AuthMiddleware(apiKey string, tokens *account.Tokens, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				jsonError(w, "missing authorization", http.StatusUnauthorized)
				return
			}
			token := strings.TrimPrefix(auth, "Bearer ")

			var p Principal
			if apiKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) == 1 {
				p.Service = true
			} else {
				userID, err := tokens.Verify(token)
				if err != nil {
					log.Warn("rejected credentials", "path", r.URL.Path, "remote", r.RemoteAddr, "error", err)
					jsonError(w, "invalid or expired token", http.StatusUnauthorized)
					return
				}
				p.UserID = userID
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
		})
	}
}

// RequestLogger logs incoming requests and records them as metrics under
// their route pattern.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: 200}
			next.ServeHTTP(sw, r)
			elapsed := time.Since(start)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					route = p
				}
			}
			metrics.RecordAPIRequest(r.Method, route, sw.status, elapsed)

			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", elapsed.Milliseconds(),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
