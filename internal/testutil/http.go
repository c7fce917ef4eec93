package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/intorehq/intorehub/internal/app/system/auth"
	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestUser represents user data for testing HTTP handlers.
type TestUser struct {
	ID            string
	Name          string
	Email         string
	Role          string
	IntoreGroupID string
}

// SuperAdminUser returns a TestUser with super admin role.
func SuperAdminUser() TestUser {
	return TestUser{
		ID:    primitive.NewObjectID().Hex(),
		Name:  "Test Super Admin",
		Email: "superadmin@test.rw",
		Role:  models.RoleSuperAdmin,
	}
}

// DistrictAdminUser returns a TestUser with district admin role.
func DistrictAdminUser() TestUser {
	return TestUser{
		ID:    primitive.NewObjectID().Hex(),
		Name:  "Test District Admin",
		Email: "districtadmin@test.rw",
		Role:  models.RoleDistrictAdmin,
	}
}

// MemberUser returns a TestUser with member role, optionally in a group.
func MemberUser(groupID *primitive.ObjectID) TestUser {
	u := TestUser{
		ID:    primitive.NewObjectID().Hex(),
		Name:  "Test Member",
		Email: "member@test.rw",
		Role:  models.RoleMember,
	}
	if groupID != nil {
		u.IntoreGroupID = groupID.Hex()
	}
	return u
}

// PublicUser returns a TestUser with public role.
func PublicUser() TestUser {
	return TestUser{
		ID:    primitive.NewObjectID().Hex(),
		Name:  "Test Public User",
		Email: "public@test.rw",
		Role:  models.RolePublic,
	}
}

// WithUser adds a user to the request context for testing authenticated
// handlers. This bypasses the auth middleware and injects the principal
// directly.
func WithUser(r *http.Request, user TestUser) *http.Request {
	principal := &auth.Principal{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		Role:          user.Role,
		IntoreGroupID: user.IntoreGroupID,
	}
	return auth.WithTestUser(r, principal)
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewAuthenticatedRequest creates an HTTP request with a user in context.
func NewAuthenticatedRequest(method, target string, user TestUser) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return WithUser(req, user)
}

// Envelope mirrors the API response envelope for decoding in tests.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []string        `json:"errors"`
}

// DecodeEnvelope decodes a recorded response body into an Envelope.
func DecodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response envelope: %v", err)
	}
	return env
}

// DecodeData decodes the envelope's data payload into v.
func DecodeData(t *testing.T, env Envelope, v any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("failed to decode envelope data: %v", err)
	}
}

// AssertStatus fails the test when the recorded status differs.
func AssertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Errorf("status code: got %d, want %d (body: %s)", rec.Code, want, rec.Body.String())
	}
}
