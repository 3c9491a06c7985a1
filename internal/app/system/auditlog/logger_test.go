package auditlog_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/inventoryhub/internal/app/store/logs"
	"github.com/dalemusser/inventoryhub/internal/app/system/auditlog"
	"github.com/dalemusser/inventoryhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recorded struct {
	event   string
	groupID primitive.ObjectID
	userID  primitive.ObjectID
	detail  string
}

type fakeRecorder struct {
	got []recorded
	err error
}

func (f *fakeRecorder) Record(_ context.Context, event string, groupID, userID primitive.ObjectID, detail string) error {
	f.got = append(f.got, recorded{event, groupID, userID, detail})
	return f.err
}

func TestLogger_NilLogger(t *testing.T) {
	var logger *auditlog.Logger
	req := httptest.NewRequest("POST", "/public/auth/login", nil)

	logger.LoginSuccess(req, primitive.NewObjectID(), "a@example.com")
	logger.LoginFailed(req, "a@example.com", "wrong password")
	logger.MemberJoined(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
}

func TestLogger_GroupDestinations(t *testing.T) {
	tests := []struct {
		setting  string
		wantDB   bool
		wantLogs int
	}{
		{"", true, 1},
		{auditlog.All, true, 1},
		{auditlog.DB, true, 0},
		{auditlog.Log, false, 1},
		{auditlog.Off, false, 0},
	}
	for _, tt := range tests {
		t.Run("setting="+tt.setting, func(t *testing.T) {
			core, observed := observer.New(zapcore.InfoLevel)
			rec := &fakeRecorder{}
			logger := auditlog.New(rec, zap.New(core), auditlog.Config{Groups: tt.setting})

			gid, uid := primitive.NewObjectID(), primitive.NewObjectID()
			logger.MemberJoined(context.Background(), gid, uid)

			if got := len(rec.got) == 1; got != tt.wantDB {
				t.Errorf("stored = %v, want %v", got, tt.wantDB)
			}
			if tt.wantDB && (rec.got[0].event != logs.EventJoined || rec.got[0].groupID != gid || rec.got[0].userID != uid) {
				t.Errorf("recorded %+v", rec.got[0])
			}
			if observed.Len() != tt.wantLogs {
				t.Errorf("zap entries = %d, want %d", observed.Len(), tt.wantLogs)
			}
		})
	}
}

func TestLogger_StoreFailureIsLogged(t *testing.T) {
	core, observed := observer.New(zapcore.ErrorLevel)
	logger := auditlog.New(&fakeRecorder{err: errors.New("disk full")}, zap.New(core), auditlog.Config{Groups: auditlog.DB})

	logger.GroupCreated(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), "Family")

	if observed.FilterMessage("failed to store audit event").Len() != 1 {
		t.Errorf("expected one store failure entry, got %d", observed.Len())
	}
}

func TestLogger_AuthEvents(t *testing.T) {
	tests := []struct {
		name      string
		setting   string
		call      func(l *auditlog.Logger)
		wantEvent string
		wantLevel zapcore.Level
	}{
		{"success", "", func(l *auditlog.Logger) {
			l.LoginSuccess(httptest.NewRequest("POST", "/", nil), primitive.NewObjectID(), "a@example.com")
		}, "login_success", zapcore.InfoLevel},
		{"failure", auditlog.Log, func(l *auditlog.Logger) {
			l.LoginFailed(httptest.NewRequest("POST", "/", nil), "a@example.com", "wrong password")
		}, "login_failed", zapcore.WarnLevel},
		{"registered", auditlog.All, func(l *auditlog.Logger) {
			l.Registered(httptest.NewRequest("POST", "/", nil), primitive.NewObjectID(), "b@example.com")
		}, "user_registered", zapcore.InfoLevel},
		{"account updated", "", func(l *auditlog.Logger) {
			id := primitive.NewObjectID()
			l.AccountUpdated(httptest.NewRequest("PUT", "/", nil), id, id, []string{"name"})
		}, "user_updated", zapcore.InfoLevel},
		{"account deleted", auditlog.Log, func(l *auditlog.Logger) {
			l.AccountDeleted(httptest.NewRequest("DELETE", "/", nil), primitive.NewObjectID(), primitive.NewObjectID())
		}, "user_deleted", zapcore.InfoLevel},
		{"off", auditlog.Off, func(l *auditlog.Logger) {
			l.LoginFailed(httptest.NewRequest("POST", "/", nil), "a@example.com", "wrong password")
		}, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, observed := observer.New(zapcore.DebugLevel)
			rec := &fakeRecorder{}
			tt.call(auditlog.New(rec, zap.New(core), auditlog.Config{Auth: tt.setting}))

			if len(rec.got) != 0 {
				t.Error("auth events must not be stored in the logs collection")
			}
			if tt.wantEvent == "" {
				if observed.Len() != 0 {
					t.Errorf("expected no entries, got %d", observed.Len())
				}
				return
			}
			if observed.Len() != 1 {
				t.Fatalf("expected 1 entry, got %d", observed.Len())
			}
			entry := observed.All()[0]
			if entry.Level != tt.wantLevel {
				t.Errorf("level = %v, want %v", entry.Level, tt.wantLevel)
			}
			if entry.ContextMap()["event_type"] != tt.wantEvent {
				t.Errorf("event_type = %v", entry.ContextMap()["event_type"])
			}
		})
	}
}

func TestLogger_ClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "198.51.100.2"},
		{"remote addr", nil, "192.0.2.1:1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, observed := observer.New(zapcore.InfoLevel)
			req := httptest.NewRequest("POST", "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			auditlog.New(nil, zap.New(core), auditlog.Config{}).LoginSuccess(req, primitive.NewObjectID(), "a@example.com")

			if got := observed.All()[0].ContextMap()["ip"]; got != tt.want {
				t.Errorf("ip = %v, want %q", got, tt.want)
			}
		})
	}
}

func TestLogger_WritesLogsCollection(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := logs.New(db)
	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{})
	gid, uid := primitive.NewObjectID(), primitive.NewObjectID()

	logger.GroupCreated(ctx, gid, uid, "Family")
	logger.MemberLeft(ctx, gid, uid)

	got, err := store.Query(ctx, logs.QueryFilter{GroupID: &gid})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
}
