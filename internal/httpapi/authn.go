package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"kidboost.app/internal/auth"
	"kidboost.app/internal/family"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/signup",
	"/v1/auth/confirm",
	"/v1/auth/login",
	"/v1/auth/refresh",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}
var publicPrefixes = []string{
	"/assets/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			respondError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidToken):
				respondError(w, r, http.StatusUnauthorized, "invalid token")
			default:
				respondError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		ctx := auth.ContextWithUser(r.Context(), claims.Subject, auth.Role(claims.Role), claims.ParentID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// scopeFromContext builds the family scope for the authenticated identity.
func scopeFromContext(ctx context.Context) (family.Scope, bool) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return family.Scope{}, false
	}
	role, ok := auth.RoleFromContext(ctx)
	if !ok {
		return family.Scope{}, false
	}
	parentID, _ := auth.ParentIDFromContext(ctx)
	return family.Scope{UserID: userID, Role: role, ParentID: parentID}, true
}

func requireScope(w http.ResponseWriter, r *http.Request) (family.Scope, bool) {
	scope, ok := scopeFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
	}
	return scope, ok
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
