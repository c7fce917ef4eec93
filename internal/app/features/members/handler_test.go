package members_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	uierrors "github.com/intorehq/intorehub/internal/app/features/errors"
	"github.com/intorehq/intorehub/internal/app/features/members"
	"github.com/intorehq/intorehub/internal/app/store/audit"
	userstore "github.com/intorehq/intorehub/internal/app/store/users"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/app/system/authz"
	"github.com/intorehq/intorehub/internal/app/system/hierarchy"
	"github.com/intorehq/intorehub/internal/domain/models"
	"github.com/intorehq/intorehub/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*members.Handler, *testutil.Fixtures) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{Auth: "db", Admin: "db"})
	errLog := uierrors.NewErrorLogger(auditLog, logger)

	h := members.NewHandler(
		userstore.New(db),
		hierarchy.New(hierarchy.NewMongoRefs(db)),
		authz.NewResolver(userstore.New(db)),
		auditLog, errLog, logger)
	return h, testutil.NewFixtures(t, db)
}

func jsonRequest(t *testing.T, method, target string, body any, user testutil.TestUser) *http.Request {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	return testutil.WithUser(req, user)
}

func asTestUser(u models.User) testutil.TestUser {
	return testutil.TestUser{ID: u.ID.Hex(), Name: u.FullName, Email: u.Email, Role: u.Role}
}

func TestCreate_CollectsAllHierarchyErrors(t *testing.T) {
	h, f := newTestHandler(t)
	super := f.CreateSuperAdmin(context.Background(), "Root", "root@test.rw")

	// No chain at all: district, sector, and cell errors must all appear.
	req := jsonRequest(t, "POST", "/members", map[string]string{
		"full_name": "No Chain",
		"email":     "nochain@test.rw",
		"password":  "long enough pass",
	}, asTestUser(super))
	rec := httptest.NewRecorder()
	h.ServeCreate(rec, req)

	testutil.AssertStatus(t, rec, http.StatusBadRequest)
	env := testutil.DecodeEnvelope(t, rec)
	if len(env.Errors) != 3 {
		t.Errorf("expected 3 collected errors, got %v", env.Errors)
	}
}

func TestCreate_RejectsCellOutsideSector(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	d := f.CreateDistrict(ctx, "Musanze", "MS-01")
	sec := f.CreateSector(ctx, "Kinigi", "KN-01", d.ID)
	otherSec := f.CreateSector(ctx, "Muhoza", "MH-01", d.ID)
	cell := f.CreateCell(ctx, "Bisoke", "BS-01", sec.ID, d.ID)
	super := f.CreateSuperAdmin(ctx, "Root", "root@test.rw")

	req := jsonRequest(t, "POST", "/members", map[string]string{
		"full_name":   "Wrong Chain",
		"email":       "wrong@test.rw",
		"password":    "long enough pass",
		"district_id": d.ID.Hex(),
		"sector_id":   otherSec.ID.Hex(),
		"cell_id":     cell.ID.Hex(),
	}, asTestUser(super))
	rec := httptest.NewRecorder()
	h.ServeCreate(rec, req)

	testutil.AssertStatus(t, rec, http.StatusBadRequest)
}

func TestCreate_ValidChainStoresMember(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	d := f.CreateDistrict(ctx, "Musanze", "MS-01")
	sec := f.CreateSector(ctx, "Kinigi", "KN-01", d.ID)
	cell := f.CreateCell(ctx, "Bisoke", "BS-01", sec.ID, d.ID)
	super := f.CreateSuperAdmin(ctx, "Root", "root@test.rw")

	req := jsonRequest(t, "POST", "/members", map[string]string{
		"full_name":   "Mukamana Alice",
		"email":       "Alice@Test.RW",
		"password":    "long enough pass",
		"district_id": d.ID.Hex(),
		"sector_id":   sec.ID.Hex(),
		"cell_id":     cell.ID.Hex(),
	}, asTestUser(super))
	rec := httptest.NewRecorder()
	h.ServeCreate(rec, req)

	testutil.AssertStatus(t, rec, http.StatusCreated)
	env := testutil.DecodeEnvelope(t, rec)

	var m models.User
	testutil.DecodeData(t, env, &m)
	if m.Role != models.RoleMember {
		t.Errorf("role = %q, want member", m.Role)
	}
	if m.Email != "alice@test.rw" {
		t.Errorf("email = %q, want normalized lowercase", m.Email)
	}
}

func TestCreate_CellAdminScopedToOwnCell(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	d := f.CreateDistrict(ctx, "Musanze", "MS-01")
	sec := f.CreateSector(ctx, "Kinigi", "KN-01", d.ID)
	own := f.CreateCell(ctx, "Bisoke", "BS-01", sec.ID, d.ID)
	foreign := f.CreateCell(ctx, "Kampanga", "KP-01", sec.ID, d.ID)
	admin := f.CreateUser(ctx, "Bisoke Admin", "bsadmin@test.rw", models.RoleCellAdmin, models.Hierarchy{
		DistrictID: &d.ID,
		SectorID:   &sec.ID,
		CellID:     &own.ID,
	})

	req := jsonRequest(t, "POST", "/members", map[string]string{
		"full_name":   "Out of Scope",
		"email":       "oos@test.rw",
		"password":    "long enough pass",
		"district_id": d.ID.Hex(),
		"sector_id":   sec.ID.Hex(),
		"cell_id":     foreign.ID.Hex(),
	}, asTestUser(admin))
	rec := httptest.NewRecorder()
	h.ServeCreate(rec, req)

	testutil.AssertStatus(t, rec, http.StatusForbidden)
}

func TestUpdate_NonMemberNotFound(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	super := f.CreateSuperAdmin(ctx, "Root", "root@test.rw")
	outsider := f.CreatePublicUser(ctx, "Not A Member", "notmember@test.rw")

	req := jsonRequest(t, "PATCH", "/members/"+outsider.ID.Hex(), map[string]string{
		"full_name": "Renamed",
	}, asTestUser(super))
	req = testutil.WithChiURLParam(req, "memberID", outsider.ID.Hex())
	rec := httptest.NewRecorder()
	h.ServeUpdate(rec, req)

	testutil.AssertStatus(t, rec, http.StatusNotFound)
}

func TestStatus_DisablesMember(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	d := f.CreateDistrict(ctx, "Musanze", "MS-01")
	sec := f.CreateSector(ctx, "Kinigi", "KN-01", d.ID)
	cell := f.CreateCell(ctx, "Bisoke", "BS-01", sec.ID, d.ID)
	member := f.CreateMember(ctx, "Member", "member@test.rw", d.ID, sec.ID, cell.ID)
	super := f.CreateSuperAdmin(ctx, "Root", "root@test.rw")

	req := jsonRequest(t, "PUT", "/members/"+member.ID.Hex()+"/status", map[string]string{
		"status": models.StatusDisabled,
	}, asTestUser(super))
	req = testutil.WithChiURLParam(req, "memberID", member.ID.Hex())
	rec := httptest.NewRecorder()
	h.ServeStatus(rec, req)

	testutil.AssertStatus(t, rec, http.StatusOK)

	reloaded, err := userstore.New(f.DB()).GetByID(ctx, member.ID)
	if err != nil {
		t.Fatalf("reload member: %v", err)
	}
	if reloaded.Status != models.StatusDisabled {
		t.Errorf("status = %q, want disabled", reloaded.Status)
	}
}
