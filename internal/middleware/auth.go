package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/floor/internal/auth"
)

type ctxKey struct{}

var (
	errNoAuthHeader  = errors.New("missing authorization header")
	errNotBearer     = errors.New("invalid authorization format")
	errUnauthed      = errors.New("not authenticated")
	errOutletDenied  = errors.New("access denied for this outlet")
	errRoleForbidden = errors.New("insufficient permissions")
)

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errNoAuthHeader
	}
	scheme, tok, found := strings.Cut(header, " ")
	tok = strings.TrimSpace(tok)
	if !found || !strings.EqualFold(scheme, "bearer") || tok == "" {
		return "", errNotBearer
	}
	return tok, nil
}

// Authenticate puts the claims of a valid bearer token on the request
// context. Any other request gets a 401.
func Authenticate(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, err := bearerToken(r)
			if err != nil {
				deny(w, http.StatusUnauthorized, err)
				return
			}
			claims, err := auth.ValidateToken(jwtSecret, tok)
			if err != nil {
				deny(w, http.StatusUnauthorized, errors.New("invalid token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireOutlet guards routes under /outlets/{oid}: staff reach only the
// floor of their own outlet, owners reach every outlet.
func RequireOutlet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			deny(w, http.StatusUnauthorized, errUnauthed)
			return
		}

		outletID, err := uuid.Parse(chi.URLParam(r, "oid"))
		if err != nil {
			deny(w, http.StatusBadRequest, errors.New("invalid outlet ID"))
			return
		}
		if !claims.CanAccessOutlet(outletID) {
			deny(w, http.StatusForbidden, errOutletDenied)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole lets through only callers holding one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				deny(w, http.StatusUnauthorized, errUnauthed)
				return
			}
			if _, ok := allowed[claims.Role]; !ok {
				deny(w, http.StatusForbidden, errRoleForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, claims)
}

// ClaimsFromContext returns nil outside Authenticate.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(ctxKey{}).(*auth.Claims)
	return claims
}

func deny(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
