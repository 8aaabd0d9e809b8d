package api

import (
	"net/http"

	"github.com/sportstyle/store/internal/domain/auth"
)

// Identity headers set by the authenticating proxy in front of the API.
// Credential verification happens there; the API trusts these values.
const (
	headerUserID    = "X-User-Id"
	headerUserEmail = "X-User-Email"
	headerUserRole  = "X-User-Role"

	roleAdmin = "admin"
)

// RequireIdentity extracts the caller identity from the proxy headers and
// stores it in the request context. Requests without a user ID get 401.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(headerUserID)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		id := auth.Identity{
			UserID: userID,
			Email:  r.Header.Get(headerUserEmail),
			Admin:  r.Header.Get(headerUserRole) == roleAdmin,
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// identity returns the caller identity stored by RequireIdentity. Routes
// behind the middleware always have one.
func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}
