package auth_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/inventoryhub/internal/app/system/auth"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const testSecret = "test-jwt-secret-must-be-32-chars-long"

func newTestManager(t *testing.T) *auth.TokenManager {
	t.Helper()
	m, err := auth.NewTokenManager(testSecret, time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	return m
}

func testUser(admin bool) models.User {
	id, _ := primitive.ObjectIDFromHex("507f1f77bcf86cd799439011")
	return models.User{ID: id, Name: "Alice", Mail: "alice@example.com", Admin: admin}
}

func TestNewTokenManager_EmptySecret(t *testing.T) {
	if _, err := auth.NewTokenManager("", time.Hour, nil); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestIssueAndParse(t *testing.T) {
	m := newTestManager(t)
	tok, err := m.Issue(testUser(true))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "507f1f77bcf86cd799439011" {
		t.Errorf("subject = %q", claims.Subject)
	}
	if claims.Role != models.RoleAdmin || claims.Name != "Alice" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.ID == "" {
		t.Error("expected a token id")
	}
}

func TestParse_Rejects(t *testing.T) {
	m := newTestManager(t)
	other, _ := auth.NewTokenManager("another-secret-that-is-32-chars-long!", time.Hour, nil)
	foreign, _ := other.Issue(testUser(false))

	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Role: models.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "507f1f77bcf86cd799439011",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte(testSecret))

	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Role: models.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte(testSecret))

	for name, tok := range map[string]string{
		"garbage":    "not-a-token",
		"foreign":    foreign,
		"expired":    expired,
		"no subject": noSubject,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := m.Parse(tok); !errors.Is(err, auth.ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestParse_UnwrapsObjectIDSubject(t *testing.T) {
	m := newTestManager(t)
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Role: models.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   `ObjectId("507f1f77bcf86cd799439011")`,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte(testSecret))

	claims, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "507f1f77bcf86cd799439011" {
		t.Errorf("subject = %q", claims.Subject)
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware(t *testing.T) {
	m := newTestManager(t)
	userTok, _ := m.Issue(testUser(false))
	adminTok, _ := m.Issue(testUser(true))

	signedIn := m.LoadTokenUser(auth.RequireSignedIn(okHandler()))
	adminOnly := m.LoadTokenUser(auth.RequireRole(models.RoleAdmin)(okHandler()))

	tests := []struct {
		name    string
		handler http.Handler
		header  string
		want    int
	}{
		{"no header", signedIn, "", http.StatusUnauthorized},
		{"not bearer", signedIn, "Basic abc", http.StatusUnauthorized},
		{"bad token", signedIn, "Bearer nope", http.StatusUnauthorized},
		{"valid", signedIn, "Bearer " + userTok, http.StatusOK},
		{"admin route as user", adminOnly, "Bearer " + userTok, http.StatusForbidden},
		{"admin route as admin", adminOnly, "Bearer " + adminTok, http.StatusOK},
		{"admin route anonymous", adminOnly, "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private/groups", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestLoadTokenUser_InjectsUser(t *testing.T) {
	m := newTestManager(t)
	tok, _ := m.Issue(testUser(false))

	var got *auth.TokenUser
	h := m.LoadTokenUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.CurrentUser(r)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got.ID != "507f1f77bcf86cd799439011" || got.IsAdmin() {
		t.Errorf("user = %+v", got)
	}
}
