package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/inventoryhub/internal/app/features/health"
	"github.com/dalemusser/inventoryhub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context, *readpref.ReadPref) error { return f.err }

type healthBody struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
	Message  string `json:"message"`
	Error    string `json:"error"`
}

func serve(t *testing.T, p health.Pinger) (*httptest.ResponseRecorder, healthBody) {
	t.Helper()
	handler := health.NewHandler(p, zap.NewNop())
	rec := httptest.NewRecorder()
	handler.Serve(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body healthBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return rec, body
}

func TestServe(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantBody   string
		wantDB     string
	}{
		{"connected", nil, http.StatusOK, "ok", "connected"},
		{"disconnected", errors.New("server selection timeout"), http.StatusServiceUnavailable, "error", "disconnected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := serve(t, fakePinger{err: tt.pingErr})
			if rec.Code != tt.wantStatus {
				t.Errorf("status code: got %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type: got %q", ct)
			}
			if body.Status != tt.wantBody || body.Database != tt.wantDB {
				t.Errorf("body = %+v", body)
			}
			if tt.pingErr != nil && body.Error != tt.pingErr.Error() {
				t.Errorf("error: got %q, want %q", body.Error, tt.pingErr.Error())
			}
			if body.Uptime == "" {
				t.Error("uptime missing")
			}
		})
	}
}

func TestServe_RealDatabase(t *testing.T) {
	db := testutil.SetupTestDB(t)

	rec, body := serve(t, db.Client())
	if rec.Code != http.StatusOK || body.Database != "connected" {
		t.Errorf("got %d %+v", rec.Code, body)
	}
}
