package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"crm-workflow/internal/app"
	"crm-workflow/internal/core"

	"github.com/golang-jwt/jwt/v5"
)

const authCookie = "auth_token"

type authClaimsKey struct{}

// AuthClaims holds the authenticated user's identity extracted from the JWT.
type AuthClaims struct {
	UserID   int64
	TenantID int64
	Role     string
}

// Actor converts the claims into the identity passed to every operation.
func (c *AuthClaims) Actor() core.Actor {
	return core.Actor{UserID: c.UserID, TenantID: c.TenantID, Role: c.Role}
}

// authFromContext returns the auth claims stored in ctx, or nil.
func authFromContext(ctx context.Context) *AuthClaims {
	v, _ := ctx.Value(authClaimsKey{}).(*AuthClaims)
	return v
}

// actorFrom returns the actor of an authenticated request. Only valid behind RequireAuth.
func actorFrom(r *http.Request) core.Actor {
	if c := authFromContext(r.Context()); c != nil {
		return c.Actor()
	}
	return core.Actor{}
}

// jwtClaims is the JWT payload struct used for signing and parsing.
type jwtClaims struct {
	UserID   int64  `json:"user_id"`
	TenantID int64  `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) parseToken(raw string) (*jwtClaims, error) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(h.opts.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.TenantID <= 0 {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// RequireAuth is chi middleware that validates the auth_token cookie and injects
// AuthClaims into the request context. Returns 401 if the token is absent or invalid.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookie)
		if err != nil {
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		claims, err := h.parseToken(cookie.Value)
		if err != nil {
			writeError(w, r, "invalid or expired token", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), authClaimsKey{}, &AuthClaims{
			UserID:   claims.UserID,
			TenantID: claims.TenantID,
			Role:     claims.Role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// login handles POST /api/auth/login.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req app.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.svc.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, app.ErrInvalidCredentials) {
		writeError(w, r, "invalid username or password", "UNAUTHORIZED", http.StatusUnauthorized)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	now := h.now()
	claims := &jwtClaims{
		UserID:   session.UserID,
		TenantID: session.TenantID,
		Role:     session.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(h.opts.JWTExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.opts.JWTSecret))
	if err != nil {
		writeError(w, r, "token generation failed", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(h.opts.JWTExpiry.Seconds()),
	})
	writeJSON(w, session)
}

// logout handles POST /api/auth/logout. Clears the auth cookie.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

// me handles GET /api/auth/me.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	if claims == nil {
		writeError(w, r, "not authenticated", "UNAUTHORIZED", http.StatusUnauthorized)
		return
	}

	user, err := h.svc.GetUser(r.Context(), claims.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, user)
}
