package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/orderdesk/orderdesk/internal/auth"
)

type identityKey struct{}

// identityFrom returns the authenticated caller stored by authenticate.
func identityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(auth.Identity)
	return id, ok
}

// authenticate requires a valid bearer token and stores the caller's
// identity on the request context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.bearerIdentity(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errBody("missing or invalid token"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

// bearerIdentity parses the Authorization header if present and valid.
func (h *Handler) bearerIdentity(r *http.Request) (auth.Identity, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return auth.Identity{}, false
	}
	id, err := h.Auth.ParseToken(token)
	if err != nil {
		return auth.Identity{}, false
	}
	return id, true
}
