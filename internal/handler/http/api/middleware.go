package api

import (
	"net/http"
	"strings"

	"storefront/internal/policy"
)

// Identity headers set by the upstream identity provider.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
	HeaderUserRole  = "X-User-Role"
)

// WithActor puts the caller described by the identity headers in the request
// context. Requests without headers carry an anonymous actor.
func WithActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := policy.Actor{
			UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)),
			Email:  strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
			Name:   strings.TrimSpace(r.Header.Get(HeaderUserName)),
			Role:   policy.RoleBuyer,
		}
		if strings.EqualFold(strings.TrimSpace(r.Header.Get(HeaderUserRole)), string(policy.RoleAdmin)) {
			actor.Role = policy.RoleAdmin
		}
		next.ServeHTTP(w, r.WithContext(policy.WithActor(r.Context(), actor)))
	})
}

// RequireUser rejects anonymous callers with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if policy.ActorFrom(r.Context()).Anonymous() {
			WriteJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
