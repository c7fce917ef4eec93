package districts_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/intorehq/intorehub/internal/app/features/districts"
	uierrors "github.com/intorehq/intorehub/internal/app/features/errors"
	"github.com/intorehq/intorehub/internal/app/store/audit"
	districtstore "github.com/intorehq/intorehub/internal/app/store/districts"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/app/system/cascade"
	"github.com/intorehq/intorehub/internal/app/system/indexes"
	"github.com/intorehq/intorehub/internal/domain/models"
	"github.com/intorehq/intorehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*districts.Handler, *testutil.Fixtures) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{Auth: "db", Admin: "db"})
	errLog := uierrors.NewErrorLogger(auditLog, logger)

	h := districts.NewHandler(districtstore.New(db), cascade.New(db, logger), auditLog, errLog, logger)
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

func TestCreate_StoresDistrict(t *testing.T) {
	h, _ := newTestHandler(t)

	req := jsonRequest(t, "POST", "/districts", map[string]string{
		"name": "Musanze",
		"code": "ms-01",
	}, testutil.SuperAdminUser())
	rec := httptest.NewRecorder()
	h.ServeCreate(rec, req)

	testutil.AssertStatus(t, rec, http.StatusCreated)
	env := testutil.DecodeEnvelope(t, rec)

	var d models.District
	testutil.DecodeData(t, env, &d)
	if d.Name != "Musanze" {
		t.Errorf("name = %q", d.Name)
	}
	if d.Code != "MS-01" {
		t.Errorf("code = %q, want uppercased MS-01", d.Code)
	}
	if d.Status != models.StatusActive {
		t.Errorf("status = %q, want active", d.Status)
	}
}

func TestCreate_DuplicateCodeConflicts(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()

	// The conflict is backed by the unique code index.
	if err := indexes.EnsureAll(ctx, f.DB()); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	body := map[string]string{"name": "Musanze", "code": "MS-01"}
	rec := httptest.NewRecorder()
	h.ServeCreate(rec, jsonRequest(t, "POST", "/districts", body, testutil.SuperAdminUser()))
	testutil.AssertStatus(t, rec, http.StatusCreated)

	rec = httptest.NewRecorder()
	h.ServeCreate(rec, jsonRequest(t, "POST", "/districts", body, testutil.SuperAdminUser()))
	testutil.AssertStatus(t, rec, http.StatusConflict)
}

func TestCreate_ValidatesInput(t *testing.T) {
	h, _ := newTestHandler(t)

	req := jsonRequest(t, "POST", "/districts", map[string]string{}, testutil.SuperAdminUser())
	rec := httptest.NewRecorder()
	h.ServeCreate(rec, req)

	testutil.AssertStatus(t, rec, http.StatusBadRequest)
	env := testutil.DecodeEnvelope(t, rec)
	if len(env.Errors) != 2 {
		t.Errorf("expected 2 validation errors, got %v", env.Errors)
	}
}

func TestGet_UnknownDistrict(t *testing.T) {
	h, _ := newTestHandler(t)

	req := testutil.NewRequest("GET", "/districts/64b000000000000000000000")
	req = testutil.WithChiURLParam(req, "districtID", "64b000000000000000000000")
	rec := httptest.NewRecorder()
	h.ServeGet(rec, req)

	testutil.AssertStatus(t, rec, http.StatusNotFound)
}

func TestList_FiltersAndPages(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	f.CreateDistrict(ctx, "Musanze", "MS-01")
	f.CreateDistrict(ctx, "Huye", "HY-01")
	f.CreateDistrict(ctx, "Muhanga", "MH-01")

	req := testutil.NewRequest("GET", "/districts?q=mu&per_page=1")
	rec := httptest.NewRecorder()
	h.ServeList(rec, req)

	testutil.AssertStatus(t, rec, http.StatusOK)
	env := testutil.DecodeEnvelope(t, rec)

	var data struct {
		Districts []models.District `json:"districts"`
		Paging    struct {
			Page    int  `json:"page"`
			PerPage int  `json:"per_page"`
			HasNext bool `json:"has_next"`
		} `json:"paging"`
	}
	testutil.DecodeData(t, env, &data)
	if len(data.Districts) != 1 {
		t.Fatalf("expected 1 district on page, got %d", len(data.Districts))
	}
	if !data.Paging.HasNext {
		t.Error("expected has_next: two districts match the q=mu prefix")
	}
}

func TestUpdate_RenamesAndAudits(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	d := f.CreateDistrict(ctx, "Musanze", "MS-01")

	req := jsonRequest(t, "PATCH", "/districts/"+d.ID.Hex(), map[string]string{
		"name": "Musanze Renamed",
	}, testutil.SuperAdminUser())
	req = testutil.WithChiURLParam(req, "districtID", d.ID.Hex())
	rec := httptest.NewRecorder()
	h.ServeUpdate(rec, req)

	testutil.AssertStatus(t, rec, http.StatusOK)

	var reloaded models.District
	if err := f.DB().Collection("districts").FindOne(ctx, bson.M{"_id": d.ID}).Decode(&reloaded); err != nil {
		t.Fatalf("reload district: %v", err)
	}
	if reloaded.Name != "Musanze Renamed" {
		t.Errorf("name = %q", reloaded.Name)
	}

	n, err := f.DB().Collection("audit_logs").CountDocuments(ctx, bson.M{
		"action":        audit.ActionUpdate,
		"resource_type": "district",
	})
	if err != nil {
		t.Fatalf("count audit logs: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 audit record, got %d", n)
	}
}

func TestStatus_RejectsUnknownValue(t *testing.T) {
	h, f := newTestHandler(t)
	d := f.CreateDistrict(context.Background(), "Musanze", "MS-01")

	req := jsonRequest(t, "PUT", "/districts/"+d.ID.Hex()+"/status", map[string]string{
		"status": "archived",
	}, testutil.SuperAdminUser())
	req = testutil.WithChiURLParam(req, "districtID", d.ID.Hex())
	rec := httptest.NewRecorder()
	h.ServeStatus(rec, req)

	testutil.AssertStatus(t, rec, http.StatusBadRequest)
}

func TestAssignAdmin_PromotesUser(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	d := f.CreateDistrict(ctx, "Musanze", "MS-01")
	u := f.CreatePublicUser(ctx, "Future Admin", "future@test.rw")

	req := jsonRequest(t, "PUT", "/districts/"+d.ID.Hex()+"/admin", map[string]string{
		"user_id": u.ID.Hex(),
	}, testutil.SuperAdminUser())
	req = testutil.WithChiURLParam(req, "districtID", d.ID.Hex())
	rec := httptest.NewRecorder()
	h.ServeAssignAdmin(rec, req)

	testutil.AssertStatus(t, rec, http.StatusOK)

	var promoted models.User
	if err := f.DB().Collection("users").FindOne(ctx, bson.M{"_id": u.ID}).Decode(&promoted); err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if promoted.Role != models.RoleDistrictAdmin {
		t.Errorf("role = %q, want district_admin", promoted.Role)
	}
}

func TestAssignAdmin_UnknownUserRejected(t *testing.T) {
	h, f := newTestHandler(t)
	d := f.CreateDistrict(context.Background(), "Musanze", "MS-01")

	req := jsonRequest(t, "PUT", "/districts/"+d.ID.Hex()+"/admin", map[string]string{
		"user_id": "64b000000000000000000000",
	}, testutil.SuperAdminUser())
	req = testutil.WithChiURLParam(req, "districtID", d.ID.Hex())
	rec := httptest.NewRecorder()
	h.ServeAssignAdmin(rec, req)

	testutil.AssertStatus(t, rec, http.StatusUnprocessableEntity)
}
