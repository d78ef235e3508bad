package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/errors"
)

type contextKey string

const actorKey contextKey = "actor"

// Actor is the authenticated caller, extracted from the bearer token. The
// account store remains authoritative for roles; the token's role claim is
// informational only.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// Claims is the JWT payload issued for marketplace users.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken issues an HMAC-signed token. Used by tests and the dev
// tooling; production tokens come from the identity provider.
func GenerateToken(secret string, userID uuid.UUID, role string, expiry time.Duration) (string, error) {
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// authMiddleware requires a valid bearer token and stores the actor in the
// request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, r, s.logger, errors.NewAuthorizationError("missing bearer token"))
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(
			strings.TrimPrefix(header, "Bearer "),
			claims,
			func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.NewAuthorizationError("unexpected signing method")
				}
				return []byte(s.jwtSecret), nil
			},
		)
		if err != nil || !token.Valid || claims.UserID == uuid.Nil {
			writeError(w, r, s.logger, errors.NewAuthorizationError("invalid token"))
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, &Actor{
			UserID: claims.UserID,
			Role:   claims.Role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorFrom returns the authenticated actor.
func actorFrom(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorKey).(*Actor)
	return actor
}
