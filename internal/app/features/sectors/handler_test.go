package sectors_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	uierrors "github.com/intorehq/intorehub/internal/app/features/errors"
	"github.com/intorehq/intorehub/internal/app/features/sectors"
	"github.com/intorehq/intorehub/internal/app/store/audit"
	sectorstore "github.com/intorehq/intorehub/internal/app/store/sectors"
	userstore "github.com/intorehq/intorehub/internal/app/store/users"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/app/system/authz"
	"github.com/intorehq/intorehub/internal/app/system/cascade"
	"github.com/intorehq/intorehub/internal/app/system/hierarchy"
	"github.com/intorehq/intorehub/internal/domain/models"
	"github.com/intorehq/intorehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*sectors.Handler, *testutil.Fixtures) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{Auth: "db", Admin: "db"})
	errLog := uierrors.NewErrorLogger(auditLog, logger)

	h := sectors.NewHandler(
		sectorstore.New(db),
		hierarchy.New(hierarchy.NewMongoRefs(db)),
		authz.NewResolver(userstore.New(db)),
		cascade.New(db, logger),
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

func TestCreate_RequiresExistingDistrict(t *testing.T) {
	h, f := newTestHandler(t)
	admin := f.CreateSuperAdmin(context.Background(), "Root", "root@test.rw")

	req := jsonRequest(t, "POST", "/sectors", map[string]string{
		"name":        "Kinigi",
		"code":        "KN-01",
		"district_id": "64b000000000000000000000",
	}, asTestUser(admin))
	rec := httptest.NewRecorder()
	h.ServeCreate(rec, req)

	testutil.AssertStatus(t, rec, http.StatusBadRequest)
	env := testutil.DecodeEnvelope(t, rec)
	if len(env.Errors) == 0 {
		t.Error("expected hierarchy validation errors")
	}
}

func TestCreate_ScopedToOwnDistrict(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	home := f.CreateDistrict(ctx, "Musanze", "MS-01")
	foreign := f.CreateDistrict(ctx, "Huye", "HY-01")
	admin := f.CreateDistrictAdmin(ctx, "Musanze Admin", "msadmin@test.rw", home.ID)

	req := jsonRequest(t, "POST", "/sectors", map[string]string{
		"name":        "Tumba",
		"code":        "TB-01",
		"district_id": foreign.ID.Hex(),
	}, asTestUser(admin))
	rec := httptest.NewRecorder()
	h.ServeCreate(rec, req)

	testutil.AssertStatus(t, rec, http.StatusForbidden)
}

func TestCreate_StoresSector(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	d := f.CreateDistrict(ctx, "Musanze", "MS-01")
	admin := f.CreateSuperAdmin(ctx, "Root", "root@test.rw")

	req := jsonRequest(t, "POST", "/sectors", map[string]string{
		"name":        "Kinigi",
		"code":        "kn-01",
		"district_id": d.ID.Hex(),
	}, asTestUser(admin))
	rec := httptest.NewRecorder()
	h.ServeCreate(rec, req)

	testutil.AssertStatus(t, rec, http.StatusCreated)
	env := testutil.DecodeEnvelope(t, rec)

	var s models.Sector
	testutil.DecodeData(t, env, &s)
	if s.Code != "KN-01" {
		t.Errorf("code = %q, want KN-01", s.Code)
	}
	if s.DistrictID != d.ID {
		t.Errorf("district_id = %s, want %s", s.DistrictID.Hex(), d.ID.Hex())
	}
}

func TestAssignAdmin_PromotesWithDistrict(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	d := f.CreateDistrict(ctx, "Musanze", "MS-01")
	sec := f.CreateSector(ctx, "Kinigi", "KN-01", d.ID)
	target := f.CreatePublicUser(ctx, "Future Sector Admin", "secadmin@test.rw")
	super := f.CreateSuperAdmin(ctx, "Root", "root@test.rw")

	req := jsonRequest(t, "PUT", "/sectors/"+sec.ID.Hex()+"/admin", map[string]string{
		"user_id": target.ID.Hex(),
	}, asTestUser(super))
	req = testutil.WithChiURLParam(req, "sectorID", sec.ID.Hex())
	rec := httptest.NewRecorder()
	h.ServeAssignAdmin(rec, req)

	testutil.AssertStatus(t, rec, http.StatusOK)

	var promoted models.User
	if err := f.DB().Collection("users").FindOne(ctx, bson.M{"_id": target.ID}).Decode(&promoted); err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if promoted.Role != models.RoleSectorAdmin {
		t.Errorf("role = %q, want sector_admin", promoted.Role)
	}
	if promoted.Hierarchy.DistrictID == nil || *promoted.Hierarchy.DistrictID != d.ID {
		t.Error("district should be propagated from the sector")
	}
}

func TestUpdate_ForeignSectorAdminForbidden(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	d := f.CreateDistrict(ctx, "Musanze", "MS-01")
	sec := f.CreateSector(ctx, "Kinigi", "KN-01", d.ID)
	otherSec := f.CreateSector(ctx, "Muhoza", "MH-01", d.ID)
	admin := f.CreateUser(ctx, "Muhoza Admin", "mhadmin@test.rw", models.RoleSectorAdmin, models.Hierarchy{
		DistrictID: &d.ID,
		SectorID:   &otherSec.ID,
	})

	req := jsonRequest(t, "PATCH", "/sectors/"+sec.ID.Hex(), map[string]string{
		"name": "Renamed",
	}, asTestUser(admin))
	req = testutil.WithChiURLParam(req, "sectorID", sec.ID.Hex())
	rec := httptest.NewRecorder()
	h.ServeUpdate(rec, req)

	testutil.AssertStatus(t, rec, http.StatusForbidden)
}
