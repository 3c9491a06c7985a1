// Package auth issues and checks bearer tokens for the API and carries the
// signed-in user through the request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/inventoryhub/internal/app/system/httpjson"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTokenTTL is the lifetime of issued tokens.
const DefaultTokenTTL = 7 * 24 * time.Hour

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the token payload. Subject is the user's id in hex.
type Claims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenUser is what the middleware injects into the request context.
type TokenUser struct {
	ID   string
	Name string
	Role string
}

// IsAdmin reports whether the user carries the admin role.
func (u *TokenUser) IsAdmin() bool { return u != nil && u.Role == models.RoleAdmin }

// TokenManager signs and verifies tokens with one HMAC secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time
}

// NewTokenManager returns a TokenManager. The secret must not be empty.
func NewTokenManager(secret string, ttl time.Duration, logger *zap.Logger) (*TokenManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is empty; provide ≥32 random chars")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(secret) < 32 {
		logger.Warn("jwt secret is short; 32+ chars recommended", zap.Int("length", len(secret)))
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, log: logger, now: time.Now}, nil
}

// Issue returns a signed token for u.
func (m *TokenManager) Issue(u models.User) (string, error) {
	now := m.now()
	claims := Claims{
		Role: u.Role(),
		Name: u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies tok and returns its claims.
func (m *TokenManager) Parse(tok string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tok, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	claims.Subject = unwrapSubject(claims.Subject)
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims, nil
}

// unwrapSubject accepts subjects written as ObjectId("...") by older
// issuers.
func unwrapSubject(sub string) string {
	sub = strings.TrimSpace(sub)
	if strings.HasPrefix(sub, "ObjectId(") && strings.HasSuffix(sub, ")") {
		sub = strings.TrimSuffix(strings.TrimPrefix(sub, "ObjectId("), ")")
		sub = strings.Trim(sub, `"'`)
	}
	return sub
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user and a found flag.
func CurrentUser(r *http.Request) (*TokenUser, bool) {
	return FromContext(r.Context())
}

// FromContext is CurrentUser for code that only holds a context.
func FromContext(ctx context.Context) (*TokenUser, bool) {
	u, ok := ctx.Value(currentUserKey).(*TokenUser)
	return u, ok
}

// WithUser returns ctx carrying u.
func WithUser(ctx context.Context, u *TokenUser) context.Context {
	return context.WithValue(ctx, currentUserKey, u)
}

// LoadTokenUser injects the user into the context when the request carries a
// valid bearer token. Requests without one pass through unchanged; a
// malformed or expired token is rejected with 401.
func (m *TokenManager) LoadTokenUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		tok, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(tok) == "" {
			httpjson.Error(w, http.StatusUnauthorized, "missing or invalid authorization header")
			return
		}
		claims, err := m.Parse(strings.TrimSpace(tok))
		if err != nil {
			m.log.Debug("rejected token", zap.Error(err))
			httpjson.Error(w, http.StatusUnauthorized, "invalid token")
			return
		}
		u := &TokenUser{ID: claims.Subject, Name: claims.Name, Role: claims.Role}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// RequireSignedIn rejects requests without a user in context.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			httpjson.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole ensures there is a user with one of the allowed roles.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				httpjson.Error(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if _, has := set[strings.ToLower(u.Role)]; !has {
				httpjson.Error(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
