package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestIssueAndVerify(t *testing.T) {
	issuer, err := NewIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	groupID := primitive.NewObjectID()
	u := models.User{
		ID:            primitive.NewObjectID(),
		FullName:      "Mukamana Claudine",
		Email:         "claudine@example.rw",
		Role:          models.RoleCellAdmin,
		IntoreGroupID: &groupID,
	}

	tok, err := issuer.Issue(u)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	p, err := issuer.Verify(tok)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if p.ID != u.ID.Hex() {
		t.Errorf("subject: got %q, want %q", p.ID, u.ID.Hex())
	}
	if p.Role != models.RoleCellAdmin {
		t.Errorf("role: got %q, want %q", p.Role, models.RoleCellAdmin)
	}
	if p.IntoreGroupID != groupID.Hex() {
		t.Errorf("group: got %q, want %q", p.IntoreGroupID, groupID.Hex())
	}
}

func TestVerify_RejectsExpired(t *testing.T) {
	issuer, _ := NewIssuer("0123456789abcdef0123456789abcdef", -time.Minute)

	tok, err := issuer.Issue(models.User{ID: primitive.NewObjectID(), Role: models.RoleMember})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := issuer.Verify(tok); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestVerify_RejectsForeignSignature(t *testing.T) {
	a, _ := NewIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	b, _ := NewIssuer("fedcba9876543210fedcba9876543210", time.Hour)

	tok, err := a.Issue(models.User{ID: primitive.NewObjectID(), Role: models.RoleMember})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Verify(tok); err == nil {
		t.Error("expected token signed with another secret to be rejected")
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("umurage-123")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "umurage-123") {
		t.Error("expected matching password to verify")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("expected wrong password to fail")
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(models.RoleSuperAdmin, models.RoleDistrictAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	tests := []struct {
		name string
		p    *Principal
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"member", &Principal{ID: "x", Role: models.RoleMember}, http.StatusForbidden},
		{"district admin", &Principal{ID: "x", Role: models.RoleDistrictAdmin}, http.StatusOK},
		{"super admin", &Principal{ID: "x", Role: models.RoleSuperAdmin}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.p != nil {
				r = WithTestUser(r, tt.p)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d", w.Code, tt.want)
			}
		})
	}
}
