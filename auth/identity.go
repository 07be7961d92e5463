// Package auth carries the signed-in user's identity through the request context.
// The identity is established by the OAuth proxy in front of the service, which forwards
// the authenticated email address in a request header.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"

	"github.com/farmavigil/farmavigil-api/logging"
)

// DefaultEmailHeader is the header set by oauth2-proxy style gateways.
const DefaultEmailHeader = "X-Forwarded-Email"

type contextKey struct{}

// WithEmail returns a context carrying the caller's email
func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, contextKey{}, email)
}

// EmailFromContext returns the caller's email, if the request was authenticated
func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(contextKey{}).(string)
	return email, ok && email != ""
}

// Identity requires the email header on every request it wraps. The address is
// normalised to lower case and stored in the request context; requests without a valid
// address get 401.
func Identity(header string) func(http.Handler) http.Handler {
	if strings.TrimSpace(header) == "" {
		header = DefaultEmailHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, ok := parseEmail(r.Header.Get(header))
			if !ok {
				logging.Warn("Unauthenticated request", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithEmail(r.Context(), email)))
		})
	}
}

func parseEmail(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Name != "" {
		return "", false
	}
	return strings.ToLower(addr.Address), true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   http.StatusText(http.StatusUnauthorized),
		"message": "Authentication required",
		"code":    http.StatusUnauthorized,
	})
}
