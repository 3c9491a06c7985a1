package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestByIP(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := ByIP(2, time.Minute, "slow down")(ok)

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/public/auth/login", nil)
		req.RemoteAddr = ip + ":4242"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send("203.0.113.7"); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: status = %d", i+1, rec.Code)
		}
	}

	rec := send("203.0.113.7")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status = %d, want 429", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"message":"slow down"`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	if rec := send("198.51.100.1"); rec.Code != http.StatusNoContent {
		t.Errorf("other client: status = %d", rec.Code)
	}
}
