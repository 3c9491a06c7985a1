package login_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/dalemusser/inventoryhub/internal/app/features/login"
	"github.com/dalemusser/inventoryhub/internal/app/system/auth"
	"github.com/dalemusser/inventoryhub/internal/app/system/authutil"
	"github.com/dalemusser/inventoryhub/internal/app/system/indexes"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"github.com/dalemusser/inventoryhub/internal/testutil"
	"go.uber.org/zap"
)

const testSecret = "test-secret-for-login-handler-0123456789"

type session struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func newTestHandler(t *testing.T) (*login.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}

	tokens, err := auth.NewTokenManager(testSecret, 0, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	return login.NewHandler(db, tokens, nil, zap.NewNop()), testutil.NewFixtures(t, db)
}

func TestHandleLogin(t *testing.T) {
	h, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	hash, err := authutil.HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	alice := fixtures.CreateUser(ctx, "Alice", "alice@example.com", hash, true)

	tests := []struct {
		name     string
		body     map[string]string
		wantCode int
	}{
		{"success", map[string]string{"mail": "alice@example.com", "password": "correct horse"}, http.StatusOK},
		{"mail is case-insensitive", map[string]string{"mail": "  Alice@Example.COM ", "password": "correct horse"}, http.StatusOK},
		{"wrong password", map[string]string{"mail": "alice@example.com", "password": "wrong"}, http.StatusUnauthorized},
		{"unknown user", map[string]string{"mail": "nobody@example.com", "password": "correct horse"}, http.StatusUnauthorized},
		{"malformed mail", map[string]string{"mail": "not-a-mail", "password": "x"}, http.StatusUnauthorized},
		{"missing password", map[string]string{"mail": "alice@example.com"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			h.HandleLogin(rec, testutil.NewRequest(http.MethodPost, "/public/auth/login", tt.body))
			rec.AssertStatus(t, tt.wantCode)
			if tt.wantCode != http.StatusOK {
				return
			}

			var s session
			rec.DecodeJSON(t, &s)
			if s.User.ID != alice.ID || s.User.Name != "Alice" {
				t.Errorf("user = %+v", s.User)
			}
			claims, err := h.Tokens.Parse(s.Token)
			if err != nil {
				t.Fatalf("token does not parse: %v", err)
			}
			if claims.Subject != alice.ID.Hex() || claims.Role != models.RoleAdmin {
				t.Errorf("claims = %+v", claims)
			}
		})
	}
}

func TestHandleLogin_NoHashLeak(t *testing.T) {
	h, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	hash, _ := authutil.HashPassword("correct horse")
	fixtures.CreateUser(ctx, "Alice", "alice@example.com", hash, false)

	rec := testutil.NewRecorder()
	h.HandleLogin(rec, testutil.NewRequest(http.MethodPost, "/", map[string]string{"mail": "alice@example.com", "password": "correct horse"}))
	rec.AssertStatus(t, http.StatusOK)
	if got := rec.Body.String(); strings.Contains(got, hash) || strings.Contains(got, "passwordHash") {
		t.Errorf("response leaks the password hash: %s", got)
	}
}

func TestHandleRegister(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := testutil.NewRecorder()
	h.HandleRegister(rec, testutil.NewRequest(http.MethodPost, "/public/auth/register", map[string]string{
		"name": " Bob ", "mail": "Bob@Example.com", "password": "hunter22",
	}))
	rec.AssertStatus(t, http.StatusCreated)

	var s session
	rec.DecodeJSON(t, &s)
	if s.User.Mail != "bob@example.com" || s.User.Name != "Bob" || s.User.ID.IsZero() {
		t.Errorf("user = %+v", s.User)
	}
	if claims, err := h.Tokens.Parse(s.Token); err != nil || claims.Role != models.RoleUser {
		t.Errorf("claims = %+v, err = %v", claims, err)
	}

	// Same mail, different case.
	rec = testutil.NewRecorder()
	h.HandleRegister(rec, testutil.NewRequest(http.MethodPost, "/public/auth/register", map[string]string{
		"name": "Bobby", "mail": "BOB@example.com", "password": "another-pass",
	}))
	rec.AssertStatus(t, http.StatusConflict)

	// The new account can log in.
	rec = testutil.NewRecorder()
	h.HandleLogin(rec, testutil.NewRequest(http.MethodPost, "/public/auth/login", map[string]string{
		"mail": "bob@example.com", "password": "hunter22",
	}))
	rec.AssertStatus(t, http.StatusOK)
}

func TestHandleRegister_Rejects(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name     string
		body     any
		wantCode int
	}{
		{"empty body", nil, http.StatusBadRequest},
		{"bad mail", map[string]string{"name": "A", "mail": "nope", "password": "hunter22"}, http.StatusUnprocessableEntity},
		{"short password", map[string]string{"name": "A", "mail": "a@example.com", "password": "abc"}, http.StatusUnprocessableEntity},
		{"common password", map[string]string{"name": "A", "mail": "a@example.com", "password": "password"}, http.StatusUnprocessableEntity},
		{"blank name", map[string]string{"name": "   ", "mail": "a@example.com", "password": "hunter22"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			h.HandleRegister(rec, testutil.NewRequest(http.MethodPost, "/public/auth/register", tt.body))
			rec.AssertStatus(t, tt.wantCode)
			rec.AssertContains(t, `"message"`)
		})
	}
}
