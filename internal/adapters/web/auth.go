package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"pharmatrack/internal/core"

	"github.com/golang-jwt/jwt/v5"
)

type authClaimsKey struct{}

// AuthClaims holds the authenticated user's identity extracted from the JWT.
type AuthClaims struct {
	UserID int
	Role   core.Role
}

// Actor returns the core actor for the claims.
func (c *AuthClaims) Actor() core.Actor {
	return core.Actor{UserID: c.UserID, Role: c.Role}
}

// authFromContext returns the auth claims stored in ctx, or nil.
func authFromContext(ctx context.Context) *AuthClaims {
	v, _ := ctx.Value(authClaimsKey{}).(*AuthClaims)
	return v
}

// jwtClaims is the JWT payload struct used for signing and parsing.
// Tokens are issued by the account service sharing JWT_SECRET.
type jwtClaims struct {
	UserID int    `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

var errNoToken = errors.New("no token")

// tokenFromRequest reads a bearer token, falling back to the auth_token cookie.
func tokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", fmt.Errorf("malformed Authorization header")
		}
		return strings.TrimSpace(token), nil
	}
	cookie, err := r.Cookie("auth_token")
	if err != nil {
		return "", errNoToken
	}
	return cookie.Value, nil
}

// RequireAuth is chi middleware that validates the request's JWT and injects
// AuthClaims into the request context. Returns 401 if the token is absent or invalid.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := tokenFromRequest(r)
		if err != nil {
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		claims := &jwtClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(h.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(w, r, "invalid or expired token", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		role := core.Role(claims.Role)
		if claims.UserID <= 0 || (role != core.RolePatient && role != core.RolePharmacy) {
			writeError(w, r, "token carries no usable identity", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), authClaimsKey{}, &AuthClaims{
			UserID: claims.UserID,
			Role:   role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actor returns the authenticated actor. RequireAuth guarantees it is present.
func actor(r *http.Request) core.Actor {
	if c := authFromContext(r.Context()); c != nil {
		return c.Actor()
	}
	return core.Actor{}
}

// me handles GET /api/auth/me and returns the current user's profile.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	if claims == nil {
		writeError(w, r, "not authenticated", "UNAUTHORIZED", http.StatusUnauthorized)
		return
	}

	user, err := h.svc.GetUser(r.Context(), claims.UserID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	type meResponse struct {
		ID          int    `json:"id"`
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
	}
	writeJSON(w, meResponse{
		ID:          user.User.ID,
		Username:    user.User.Username,
		DisplayName: user.DisplayName,
		Role:        string(user.User.Role),
	})
}
