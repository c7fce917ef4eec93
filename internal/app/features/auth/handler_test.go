package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	authfeature "github.com/intorehq/intorehub/internal/app/features/auth"
	uierrors "github.com/intorehq/intorehub/internal/app/features/errors"
	"github.com/intorehq/intorehub/internal/app/store/audit"
	userstore "github.com/intorehq/intorehub/internal/app/store/users"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/app/system/auth"
	"github.com/intorehq/intorehub/internal/app/system/ratelimit"
	"github.com/intorehq/intorehub/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*authfeature.Handler, *testutil.Fixtures) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	issuer, err := auth.NewIssuer("0123456789abcdef0123456789abcdef", 0)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	sessions, err := auth.NewSessionManager(
		"0123456789abcdef0123456789abcdef", "intorehub_session", "", false, issuer, logger)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}

	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{Auth: "db", Admin: "db"})
	errLog := uierrors.NewErrorLogger(auditLog, logger)
	limiter := ratelimit.NewLoginLimiter(ratelimit.NewMemoryStore())

	h := authfeature.NewHandler(userstore.New(db), sessions, issuer, limiter, auditLog, errLog, logger)
	return h, testutil.NewFixtures(t, db)
}

func postJSON(t *testing.T, target string, body any) *http.Request {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest("POST", target, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRegister_CreatesPublicUser(t *testing.T) {
	h, _ := newTestHandler(t)

	req := postJSON(t, "/auth/register", map[string]string{
		"full_name": "Uwimana Claudine",
		"email":     "claudine@test.rw",
		"password":  "correct horse battery",
	})
	rec := httptest.NewRecorder()
	h.ServeRegister(rec, req)

	testutil.AssertStatus(t, rec, http.StatusCreated)
	env := testutil.DecodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("expected success, got %+v", env)
	}

	var user struct {
		Role  string `json:"role"`
		Email string `json:"email"`
	}
	testutil.DecodeData(t, env, &user)
	if user.Role != "public" {
		t.Errorf("role = %q, want public", user.Role)
	}
	if user.Email != "claudine@test.rw" {
		t.Errorf("email = %q", user.Email)
	}
}

func TestRegister_RejectsShortPassword(t *testing.T) {
	h, _ := newTestHandler(t)

	req := postJSON(t, "/auth/register", map[string]string{
		"full_name": "Someone",
		"email":     "someone@test.rw",
		"password":  "short",
	})
	rec := httptest.NewRecorder()
	h.ServeRegister(rec, req)

	testutil.AssertStatus(t, rec, http.StatusBadRequest)
	env := testutil.DecodeEnvelope(t, rec)
	if len(env.Errors) == 0 {
		t.Error("expected validation errors in envelope")
	}
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	h, _ := newTestHandler(t)

	body := map[string]string{
		"full_name": "First User",
		"email":     "dup@test.rw",
		"password":  "long enough pass",
	}
	rec := httptest.NewRecorder()
	h.ServeRegister(rec, postJSON(t, "/auth/register", body))
	testutil.AssertStatus(t, rec, http.StatusCreated)

	rec = httptest.NewRecorder()
	h.ServeRegister(rec, postJSON(t, "/auth/register", body))
	testutil.AssertStatus(t, rec, http.StatusConflict)
}

func TestLogin_SuccessIssuesToken(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeRegister(rec, postJSON(t, "/auth/register", map[string]string{
		"full_name": "Login User",
		"email":     "login@test.rw",
		"password":  "long enough pass",
	}))
	testutil.AssertStatus(t, rec, http.StatusCreated)

	rec = httptest.NewRecorder()
	h.ServeLogin(rec, postJSON(t, "/auth/login", map[string]string{
		"email":    "login@test.rw",
		"password": "long enough pass",
	}))

	testutil.AssertStatus(t, rec, http.StatusOK)
	env := testutil.DecodeEnvelope(t, rec)
	var data struct {
		Token string `json:"token"`
	}
	testutil.DecodeData(t, env, &data)
	if data.Token == "" {
		t.Error("expected a token")
	}
}

func TestLogin_WrongPasswordRejected(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeRegister(rec, postJSON(t, "/auth/register", map[string]string{
		"full_name": "Victim",
		"email":     "victim@test.rw",
		"password":  "long enough pass",
	}))
	testutil.AssertStatus(t, rec, http.StatusCreated)

	rec = httptest.NewRecorder()
	h.ServeLogin(rec, postJSON(t, "/auth/login", map[string]string{
		"email":    "victim@test.rw",
		"password": "wrong password!!",
	}))
	testutil.AssertStatus(t, rec, http.StatusUnauthorized)
}

func TestLogin_RateLimited(t *testing.T) {
	h, _ := newTestHandler(t)

	var got429 bool
	for i := 0; i < 8; i++ {
		rec := httptest.NewRecorder()
		req := postJSON(t, "/auth/login", map[string]string{
			"email":    "hammered@test.rw",
			"password": "guess",
		})
		req.RemoteAddr = "192.0.2.1:1234"
		h.ServeLogin(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			got429 = true
			break
		}
	}
	if !got429 {
		t.Error("expected repeated failures to hit the rate limit")
	}
}
