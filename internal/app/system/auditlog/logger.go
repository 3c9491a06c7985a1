// Package auditlog reports authentication and group events. Group events go
// to the logs collection and to zap; auth events only to zap, since the logs
// collection is scoped to groups.
package auditlog

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/inventoryhub/internal/app/store/logs"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destination settings for Config fields.
const (
	All = "all" // database and zap
	DB  = "db"
	Log = "log"
	Off = "off"
)

// Config selects where each event category goes. Empty means All.
type Config struct {
	Auth   string
	Groups string
}

// Recorder stores group events; *logs.Store implements it.
type Recorder interface {
	Record(ctx context.Context, event string, groupID, userID primitive.ObjectID, detail string) error
}

// Logger writes audit events. A nil *Logger is a no-op.
type Logger struct {
	store  Recorder
	zapLog *zap.Logger
	config Config
}

// New creates an audit Logger.
func New(store Recorder, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{store: store, zapLog: zapLog, config: config}
}

func setting(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return All
	}
	return s
}

// clientIP returns the first X-Forwarded-For hop, then X-Real-IP, then
// RemoteAddr.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}

/*─────────────────────────────── auth ───────────────────────────────*/

func (l *Logger) auth(r *http.Request, event string, success bool, fields ...zap.Field) {
	if l == nil {
		return
	}
	s := setting(l.config.Auth)
	if s != All && s != Log {
		return
	}
	fields = append([]zap.Field{
		zap.Bool("audit", true),
		zap.String("category", "auth"),
		zap.String("event_type", event),
		zap.Bool("success", success),
		zap.String("ip", clientIP(r)),
	}, fields...)
	if success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(r *http.Request, userID primitive.ObjectID, mail string) {
	l.auth(r, "login_success", true, zap.String("user_id", userID.Hex()), zap.String("mail", mail))
}

// LoginFailed logs a rejected login attempt.
func (l *Logger) LoginFailed(r *http.Request, mail, reason string) {
	l.auth(r, "login_failed", false, zap.String("mail", mail), zap.String("failure_reason", reason))
}

// Registered logs a new account.
func (l *Logger) Registered(r *http.Request, userID primitive.ObjectID, mail string) {
	l.auth(r, "user_registered", true, zap.String("user_id", userID.Hex()), zap.String("mail", mail))
}

// AccountUpdated logs a change to an account. actorID differs from
// userID when an admin edits someone else's account.
func (l *Logger) AccountUpdated(r *http.Request, userID, actorID primitive.ObjectID, fields []string) {
	l.auth(r, "user_updated", true, zap.String("user_id", userID.Hex()),
		zap.String("actor_id", actorID.Hex()), zap.Strings("fields", fields))
}

// AccountDeleted logs a removed account.
func (l *Logger) AccountDeleted(r *http.Request, userID, actorID primitive.ObjectID) {
	l.auth(r, "user_deleted", true, zap.String("user_id", userID.Hex()), zap.String("actor_id", actorID.Hex()))
}

/*─────────────────────────────── groups ───────────────────────────────*/

func (l *Logger) group(ctx context.Context, event string, groupID, userID primitive.ObjectID, detail string) {
	if l == nil {
		return
	}
	s := setting(l.config.Groups)
	if s == Off {
		return
	}
	if s == All || s == Log {
		l.zapLog.Info("audit event",
			zap.Bool("audit", true),
			zap.String("category", "groups"),
			zap.String("event_type", event),
			zap.String("group_id", groupID.Hex()),
			zap.String("user_id", userID.Hex()),
			zap.String("detail", detail))
	}
	if (s == All || s == DB) && l.store != nil {
		if err := l.store.Record(ctx, event, groupID, userID, detail); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event))
		}
	}
}

// GroupCreated records that userID created the group named name.
func (l *Logger) GroupCreated(ctx context.Context, groupID, userID primitive.ObjectID, name string) {
	l.group(ctx, logs.EventGroupCreated, groupID, userID, name)
}

// GroupDeleted records that the group was removed, by userID or because its
// last member left.
func (l *Logger) GroupDeleted(ctx context.Context, groupID, userID primitive.ObjectID, reason string) {
	l.group(ctx, logs.EventGroupDeleted, groupID, userID, reason)
}

// MemberJoined records a join.
func (l *Logger) MemberJoined(ctx context.Context, groupID, userID primitive.ObjectID) {
	l.group(ctx, logs.EventJoined, groupID, userID, "")
}

// MemberLeft records a leave.
func (l *Logger) MemberLeft(ctx context.Context, groupID, userID primitive.ObjectID) {
	l.group(ctx, logs.EventLeft, groupID, userID, "")
}
