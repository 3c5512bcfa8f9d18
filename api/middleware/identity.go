package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jaujye/ocean-shopping-center/api/responses"
	"github.com/jaujye/ocean-shopping-center/internal/cart"
	"github.com/jaujye/ocean-shopping-center/pkg/config"
	pkgerrors "github.com/jaujye/ocean-shopping-center/pkg/errors"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
)

const (
	sessionIDHeader = "X-Session-ID"
	adminRole       = "admin"
)

type identityKey struct{}

// Identity captures who is making the request: an authenticated user (via
// bearer token) or a guest session (via header). Either is enough to own a
// cart.
type Identity struct {
	UserID    *uuid.UUID
	SessionID *string
	Email     string
	Role      string
}

// Owner converts the identity into a cart owner. Authenticated users always
// own by user id, even when a session header is also present.
func (i Identity) Owner() (cart.Owner, error) {
	if i.UserID != nil {
		return cart.UserOwner(*i.UserID), nil
	}
	if i.SessionID != nil {
		return cart.GuestOwner(*i.SessionID), nil
	}
	return cart.Owner{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "a bearer token or session header is required")
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == adminRole
}

type tokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// IdentityFromContext returns the identity attached by the middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}

// Identify resolves the caller's identity. A malformed bearer token is a hard
// 401; an absent one falls through to the guest session header. Requests with
// neither proceed anonymously and are rejected by handlers that need an owner.
func Identify(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := Identity{}
			ctx := r.Context()

			if token := bearerToken(r); token != "" {
				claims, err := parseToken(token, cfg)
				if err != nil {
					responses.WriteError(ctx, w, logg, err)
					return
				}
				userID, err := uuid.Parse(claims.Subject)
				if err != nil {
					responses.WriteError(ctx, w, logg,
						pkgerrors.New(pkgerrors.CodeUnauthorized, "token subject is not a user id"))
					return
				}
				identity.UserID = &userID
				identity.Email = claims.Email
				identity.Role = claims.Role
				ctx = logg.WithUserID(ctx, userID.String())
			} else if sessionID := strings.TrimSpace(r.Header.Get(sessionIDHeader)); sessionID != "" {
				identity.SessionID = &sessionID
				ctx = logg.WithSessionID(ctx, sessionID)
			}

			ctx = context.WithValue(ctx, identityKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects requests without an authenticated user.
func RequireUser(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok || identity.UserID == nil {
				responses.WriteError(r.Context(), w, logg,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects requests without the admin role.
func RequireAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok || identity.UserID == nil {
				responses.WriteError(r.Context(), w, logg,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			if !identity.IsAdmin() {
				responses.WriteError(r.Context(), w, logg,
					pkgerrors.New(pkgerrors.CodeForbidden, "admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func parseToken(raw string, cfg config.JWTConfig) (*tokenClaims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "unexpected token signing method")
		}
		return []byte(cfg.Secret), nil
	}, jwt.WithIssuer(cfg.Issuer), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if !token.Valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
	}
	return claims, nil
}
