// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/intorehq/intorehub/internal/app/store/audit"
	"github.com/intorehq/intorehub/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config controls where audit records go, per category.
// Values: "all" (MongoDB + zap), "db", "log", or "off".
type Config struct {
	// Auth applies to authentication events (LOGIN, LOGIN_FAILED, LOGOUT, REGISTER).
	Auth string
	// Admin applies to everything else (entity CRUD, assignments, error path).
	Admin string
}

// Sink persists audit records. *audit.Store satisfies it; tests substitute
// failing sinks to prove the error path never masks a response.
type Sink interface {
	Log(ctx context.Context, rec audit.Record) error
}

// Logger records audit events to the sink and mirrors them to zap.
// A nil *Logger is a safe no-op, so tests can pass nil.
type Logger struct {
	sink   Sink
	zapLog *zap.Logger
	config Config
}

// New creates an audit Logger.
func New(sink Sink, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{sink: sink, zapLog: zapLog, config: config}
}

func isAuthAction(action string) bool {
	switch action {
	case audit.ActionLogin, audit.ActionLoginFailed, audit.ActionLogout, audit.ActionRegister:
		return true
	}
	return false
}

// Log records one audit event according to configuration.
func (l *Logger) Log(ctx context.Context, rec audit.Record) {
	if l == nil {
		return
	}

	setting := l.config.Admin
	if isAuthAction(rec.Action) {
		setting = l.config.Auth
	}
	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" || setting == "" {
		l.logToZap(rec)
	}
	if setting == "all" || setting == "db" || setting == "" {
		if err := l.sink.Log(ctx, rec); err != nil {
			l.zapLog.Error("failed to store audit record",
				zap.Error(err),
				zap.String("action", rec.Action),
				zap.String("resource_type", rec.ResourceType),
			)
		}
	}
}

func (l *Logger) logToZap(rec audit.Record) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("action", rec.Action),
		zap.String("resource_type", rec.ResourceType),
		zap.String("severity", rec.Severity),
		zap.String("ip", rec.IP),
	}
	if rec.ResourceID != nil {
		fields = append(fields, zap.String("resource_id", rec.ResourceID.Hex()))
	}
	if rec.PerformedBy != nil {
		fields = append(fields, zap.String("performed_by", rec.PerformedBy.Hex()))
	}
	if rec.Description != "" {
		fields = append(fields, zap.String("description", rec.Description))
	}

	switch rec.Severity {
	case audit.SeverityError, audit.SeverityCritical:
		l.zapLog.Error("audit event", fields...)
	case audit.SeverityWarning:
		l.zapLog.Warn("audit event", fields...)
	default:
		l.zapLog.Info("audit event", fields...)
	}
}

/* --------------------------- convenience calls --------------------------- */

// Mutation records a successful entity mutation with before/after snapshots;
// the changed-field map is computed here.
func (l *Logger) Mutation(ctx context.Context, r *http.Request, action, resourceType string, resourceID primitive.ObjectID, actor *primitive.ObjectID, before, after bson.M, description string) {
	l.Log(ctx, audit.Record{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   &resourceID,
		PerformedBy:  actor,
		Before:       before,
		After:        after,
		Changes:      Diff(before, after),
		Severity:     audit.SeverityInfo,
		Description:  description,
		IP:           ratelimit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

// LoginSuccess records a successful login at info severity.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Record{
		Action:       audit.ActionLogin,
		ResourceType: "user",
		ResourceID:   &userID,
		PerformedBy:  &userID,
		Severity:     audit.SeverityInfo,
		Metadata:     map[string]string{"email": email},
		IP:           ratelimit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

// LoginFailed records a failed login at error severity.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, email, reason string) {
	l.Log(ctx, audit.Record{
		Action:       audit.ActionLoginFailed,
		ResourceType: "user",
		Severity:     audit.SeverityError,
		Description:  reason,
		Metadata:     map[string]string{"attempted_email": email},
		IP:           ratelimit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

// Unhandled records the single best-effort audit write for an unhandled
// request failure. Any panic or sink failure inside it is swallowed: the
// original error response must reach the client regardless.
func (l *Logger) Unhandled(ctx context.Context, r *http.Request, actor *primitive.ObjectID, description string) {
	if l == nil {
		return
	}
	defer func() { _ = recover() }()

	l.Log(ctx, audit.Record{
		Action:       audit.ActionError,
		ResourceType: "request",
		PerformedBy:  actor,
		Severity:     audit.SeverityError,
		Description:  description,
		Metadata: map[string]string{
			"method": r.Method,
			"url":    r.URL.String(),
		},
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
}

// Diff returns a per-field {from, to} map for every top-level key whose
// value differs between before and after.
func Diff(before, after bson.M) bson.M {
	if before == nil && after == nil {
		return nil
	}
	changes := bson.M{}
	for k, b := range before {
		a, ok := after[k]
		if !ok || !reflect.DeepEqual(a, b) {
			changes[k] = bson.M{"from": b, "to": a}
		}
	}
	for k, a := range after {
		if _, ok := before[k]; !ok {
			changes[k] = bson.M{"from": nil, "to": a}
		}
	}
	if len(changes) == 0 {
		return nil
	}
	return changes
}

// SeverityFor maps an action to its conventional severity, for callers
// that do not choose one explicitly.
func SeverityFor(action string) string {
	if strings.HasSuffix(action, "_FAILED") || action == audit.ActionError {
		return audit.SeverityError
	}
	return audit.SeverityInfo
}
