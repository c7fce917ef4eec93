package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/intorehq/intorehub/internal/app/store/audit"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"go.uber.org/zap"
)

type failingSink struct{}

func (failingSink) Log(context.Context, audit.Record) error {
	return errors.New("audit store unavailable")
}

func TestInternal_RespondsEvenWhenAuditFails(t *testing.T) {
	auditLog := auditlog.New(failingSink{}, zap.NewNop(), auditlog.Config{Admin: "db"})
	e := NewErrorLogger(auditLog, zap.NewNop())

	req := httptest.NewRequest("GET", "/districts", nil)
	rec := httptest.NewRecorder()

	e.Internal(rec, req, errors.New("boom"), "failed to list districts")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	var env struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if env.Success {
		t.Error("expected success=false")
	}
	if env.Message != "Something went wrong" {
		t.Errorf("message = %q", env.Message)
	}
}

func TestRecoverer_ConvertsPanicTo500(t *testing.T) {
	auditLog := auditlog.New(failingSink{}, zap.NewNop(), auditlog.Config{Admin: "db"})
	e := NewErrorLogger(auditLog, zap.NewNop())

	h := e.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	}))

	req := httptest.NewRequest("POST", "/districts", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRecoverer_PassesThroughNormally(t *testing.T) {
	e := NewErrorLogger(nil, zap.NewNop())

	h := e.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}
