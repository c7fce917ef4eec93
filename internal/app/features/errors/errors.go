// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/app/system/auth"
	"github.com/intorehq/intorehub/internal/app/system/respond"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ErrorLogger centralizes the unhandled-failure path: log the concrete
// error, make one best-effort audit write, and answer with the uniform
// 500 envelope. The response is written regardless of whether the audit
// write succeeds.
type ErrorLogger struct {
	Audit *auditlog.Logger
	Log   *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(audit *auditlog.Logger, logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{Audit: audit, Log: logger}
}

// Internal handles an unexpected failure in a handler.
func (e *ErrorLogger) Internal(w http.ResponseWriter, r *http.Request, err error, description string) {
	e.Log.Error(description,
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
	e.Audit.Unhandled(r.Context(), r, actorID(r), description)
	respond.InternalError(w)
}

// Recoverer converts panics into the uniform 500 envelope, with the same
// log-and-audit treatment as Internal.
func (e *ErrorLogger) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				e.Log.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				e.Audit.Unhandled(r.Context(), r, actorID(r), "panic in request handler")
				respond.InternalError(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func actorID(r *http.Request) *primitive.ObjectID {
	p, ok := auth.CurrentUser(r)
	if !ok {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return nil
	}
	return &id
}
