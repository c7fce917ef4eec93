package cells_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/intorehq/intorehub/internal/app/features/cells"
	uierrors "github.com/intorehq/intorehub/internal/app/features/errors"
	"github.com/intorehq/intorehub/internal/app/store/audit"
	cellstore "github.com/intorehq/intorehub/internal/app/store/cells"
	userstore "github.com/intorehq/intorehub/internal/app/store/users"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/app/system/authz"
	"github.com/intorehq/intorehub/internal/app/system/cascade"
	"github.com/intorehq/intorehub/internal/app/system/hierarchy"
	"github.com/intorehq/intorehub/internal/domain/models"
	"github.com/intorehq/intorehub/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*cells.Handler, *testutil.Fixtures) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{Auth: "db", Admin: "db"})
	errLog := uierrors.NewErrorLogger(auditLog, logger)

	h := cells.NewHandler(
		cellstore.New(db),
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

func TestCreate_DerivesDistrictFromSector(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	d := f.CreateDistrict(ctx, "Musanze", "MS-01")
	sec := f.CreateSector(ctx, "Kinigi", "KN-01", d.ID)
	super := f.CreateSuperAdmin(ctx, "Root", "root@test.rw")

	req := jsonRequest(t, "POST", "/cells", map[string]string{
		"name":      "Bisoke",
		"code":      "BS-01",
		"sector_id": sec.ID.Hex(),
	}, asTestUser(super))
	rec := httptest.NewRecorder()
	h.ServeCreate(rec, req)

	testutil.AssertStatus(t, rec, http.StatusCreated)
	env := testutil.DecodeEnvelope(t, rec)

	var c models.Cell
	testutil.DecodeData(t, env, &c)
	if c.DistrictID != d.ID {
		t.Errorf("district_id = %s, want derived %s", c.DistrictID.Hex(), d.ID.Hex())
	}
}

func TestCreate_RejectsDistrictMismatch(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	d := f.CreateDistrict(ctx, "Musanze", "MS-01")
	other := f.CreateDistrict(ctx, "Huye", "HY-01")
	sec := f.CreateSector(ctx, "Kinigi", "KN-01", d.ID)
	super := f.CreateSuperAdmin(ctx, "Root", "root@test.rw")

	req := jsonRequest(t, "POST", "/cells", map[string]string{
		"name":        "Bisoke",
		"code":        "BS-01",
		"sector_id":   sec.ID.Hex(),
		"district_id": other.ID.Hex(),
	}, asTestUser(super))
	rec := httptest.NewRecorder()
	h.ServeCreate(rec, req)

	testutil.AssertStatus(t, rec, http.StatusBadRequest)
	env := testutil.DecodeEnvelope(t, rec)
	if len(env.Errors) == 0 {
		t.Error("expected a hierarchy mismatch error")
	}
}

func TestCreate_UnknownSectorRejected(t *testing.T) {
	h, f := newTestHandler(t)
	super := f.CreateSuperAdmin(context.Background(), "Root", "root@test.rw")

	req := jsonRequest(t, "POST", "/cells", map[string]string{
		"name":      "Bisoke",
		"code":      "BS-01",
		"sector_id": "64b000000000000000000000",
	}, asTestUser(super))
	rec := httptest.NewRecorder()
	h.ServeCreate(rec, req)

	testutil.AssertStatus(t, rec, http.StatusBadRequest)
}

func TestAssignAdmin_PropagatesFullChain(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	d := f.CreateDistrict(ctx, "Musanze", "MS-01")
	sec := f.CreateSector(ctx, "Kinigi", "KN-01", d.ID)
	cell := f.CreateCell(ctx, "Bisoke", "BS-01", sec.ID, d.ID)
	target := f.CreatePublicUser(ctx, "Future Cell Admin", "celladmin@test.rw")
	super := f.CreateSuperAdmin(ctx, "Root", "root@test.rw")

	req := jsonRequest(t, "PUT", "/cells/"+cell.ID.Hex()+"/admin", map[string]string{
		"user_id": target.ID.Hex(),
	}, asTestUser(super))
	req = testutil.WithChiURLParam(req, "cellID", cell.ID.Hex())
	rec := httptest.NewRecorder()
	h.ServeAssignAdmin(rec, req)

	testutil.AssertStatus(t, rec, http.StatusOK)

	promoted, err := userstore.New(f.DB()).GetByID(ctx, target.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if promoted.Role != models.RoleCellAdmin {
		t.Errorf("role = %q, want cell_admin", promoted.Role)
	}
	hier := promoted.Hierarchy
	if hier.DistrictID == nil || *hier.DistrictID != d.ID ||
		hier.SectorID == nil || *hier.SectorID != sec.ID ||
		hier.CellID == nil || *hier.CellID != cell.ID {
		t.Errorf("full chain not propagated: %+v", hier)
	}
}

func TestStatus_CellAdminScopedToOwnCell(t *testing.T) {
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

	req := jsonRequest(t, "PUT", "/cells/"+foreign.ID.Hex()+"/status", map[string]string{
		"status": models.StatusDisabled,
	}, asTestUser(admin))
	req = testutil.WithChiURLParam(req, "cellID", foreign.ID.Hex())
	rec := httptest.NewRecorder()
	h.ServeStatus(rec, req)

	testutil.AssertStatus(t, rec, http.StatusForbidden)
}
