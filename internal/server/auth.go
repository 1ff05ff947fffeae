package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Principal is the authenticated caller derived from the bearer token.
type Principal struct {
	ActorID string
	Admin   bool
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func requireAdmin(ctx context.Context) huma.StatusError {
	p, ok := principalFromContext(ctx)
	if !ok {
		return newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	}
	if !p.Admin {
		return newAPIError(http.StatusForbidden, "forbidden", "admin privileges required", nil)
	}
	return nil
}

type authClaims struct {
	jwt.RegisteredClaims
	Admin bool `json:"admin,omitempty"`
}

// public paths are reachable without a token. The OpenAPI document, docs
// UI and schema refs live at the router root, outside the API group.
func publicPath(basePath, path string) bool {
	switch {
	case path == basePath+"/health":
		return true
	case path == "/openapi.json", path == "/openapi.yaml", path == "/docs":
		return true
	case strings.HasPrefix(path, "/schemas"):
		return true
	}
	return false
}

// newAuthMiddleware validates the bearer token and stores the caller in the
// request context. An empty secret disables authentication entirely, which
// is only acceptable for local development.
func newAuthMiddleware(basePath, secret string) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" || publicPath(basePath, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := authenticate(parser, secret, r.Header.Get("Authorization"))
			if err != nil {
				writeAuthError(w, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
		})
	}
}

func authenticate(parser *jwt.Parser, secret, header string) (Principal, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return Principal{}, fmt.Errorf("missing bearer token")
	}

	var claims authClaims
	token, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("invalid token")
	}
	if !token.Valid || claims.Subject == "" {
		return Principal{}, fmt.Errorf("invalid token")
	}
	return Principal{ActorID: claims.Subject, Admin: claims.Admin}, nil
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"error": apiErrorBody{Code: "unauthorized", Message: message},
	})
}
