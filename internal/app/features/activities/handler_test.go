package activities_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/intorehq/intorehub/internal/app/features/activities"
	uierrors "github.com/intorehq/intorehub/internal/app/features/errors"
	activitystore "github.com/intorehq/intorehub/internal/app/store/activities"
	"github.com/intorehq/intorehub/internal/app/store/audit"
	groupstore "github.com/intorehq/intorehub/internal/app/store/intoregroups"
	userstore "github.com/intorehq/intorehub/internal/app/store/users"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/app/system/authz"
	"github.com/intorehq/intorehub/internal/domain/models"
	"github.com/intorehq/intorehub/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*activities.Handler, *testutil.Fixtures) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{Auth: "db", Admin: "db"})
	errLog := uierrors.NewErrorLogger(auditLog, logger)

	h := activities.NewHandler(
		activitystore.New(db),
		groupstore.New(db),
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

func seedChain(t *testing.T, f *testutil.Fixtures) (models.District, models.Sector, models.Cell, models.IntoreGroup) {
	t.Helper()
	ctx := context.Background()
	d := f.CreateDistrict(ctx, "Musanze", "MS-01")
	sec := f.CreateSector(ctx, "Kinigi", "KN-01", d.ID)
	cell := f.CreateCell(ctx, "Bisoke", "BS-01", sec.ID, d.ID)
	group := f.CreateGroup(ctx, "Inganzo", "IG-01", cell)
	return d, sec, cell, group
}

func TestCreate_RefsComputedFromGroup(t *testing.T) {
	h, f := newTestHandler(t)
	d, sec, cell, group := seedChain(t, f)
	super := f.CreateSuperAdmin(context.Background(), "Root", "root@test.rw")

	starts := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	req := jsonRequest(t, "POST", "/activities", map[string]string{
		"title":           "Umuganura rehearsal",
		"intore_group_id": group.ID.Hex(),
		"starts_at":       starts,
	}, asTestUser(super))
	rec := httptest.NewRecorder()
	h.ServeCreate(rec, req)

	testutil.AssertStatus(t, rec, http.StatusCreated)
	env := testutil.DecodeEnvelope(t, rec)

	var a models.Activity
	testutil.DecodeData(t, env, &a)
	if a.CellID != cell.ID || a.SectorID != sec.ID || a.DistrictID != d.ID {
		t.Error("hierarchy refs must be recomputed from the owning group")
	}
	if a.Status != activitystore.StatusScheduled {
		t.Errorf("status = %q, want scheduled", a.Status)
	}
}

func TestCreate_EndsBeforeStartsRejected(t *testing.T) {
	h, f := newTestHandler(t)
	_, _, _, group := seedChain(t, f)
	super := f.CreateSuperAdmin(context.Background(), "Root", "root@test.rw")

	starts := time.Now().Add(48 * time.Hour).UTC()
	ends := starts.Add(-time.Hour).Format(time.RFC3339)
	req := jsonRequest(t, "POST", "/activities", map[string]any{
		"title":           "Backwards",
		"intore_group_id": group.ID.Hex(),
		"starts_at":       starts.Format(time.RFC3339),
		"ends_at":         ends,
	}, asTestUser(super))
	rec := httptest.NewRecorder()
	h.ServeCreate(rec, req)

	testutil.AssertStatus(t, rec, http.StatusBadRequest)
}

func TestCreate_MemberOfGroupForbidden(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	d, sec, cell, group := seedChain(t, f)

	member := f.CreateMember(ctx, "Plain Member", "plain@test.rw", d.ID, sec.ID, cell.ID)
	_ = group

	req := jsonRequest(t, "POST", "/activities", map[string]string{
		"title":           "Unauthorized",
		"intore_group_id": group.ID.Hex(),
		"starts_at":       time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	}, asTestUser(member))
	rec := httptest.NewRecorder()
	h.ServeCreate(rec, req)

	testutil.AssertStatus(t, rec, http.StatusForbidden)
}

func TestStatus_CancelActivity(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	_, _, _, group := seedChain(t, f)
	activity := f.CreateActivity(ctx, "Rehearsal", group, time.Now().Add(24*time.Hour).UTC())
	super := f.CreateSuperAdmin(ctx, "Root", "root@test.rw")

	req := jsonRequest(t, "PUT", "/activities/"+activity.ID.Hex()+"/status", map[string]string{
		"status": activitystore.StatusCancelled,
	}, asTestUser(super))
	req = testutil.WithChiURLParam(req, "activityID", activity.ID.Hex())
	rec := httptest.NewRecorder()
	h.ServeStatus(rec, req)

	testutil.AssertStatus(t, rec, http.StatusOK)

	reloaded, err := activitystore.New(f.DB()).GetByID(ctx, activity.ID)
	if err != nil {
		t.Fatalf("reload activity: %v", err)
	}
	if reloaded.Status != activitystore.StatusCancelled {
		t.Errorf("status = %q, want cancelled", reloaded.Status)
	}
}

func TestUpcoming_ExcludesPast(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	_, _, _, group := seedChain(t, f)
	f.CreateActivity(ctx, "Past", group, time.Now().Add(-24*time.Hour).UTC())
	f.CreateActivity(ctx, "Future", group, time.Now().Add(24*time.Hour).UTC())

	req := testutil.NewRequest("GET", "/activities/upcoming?intore_group_id="+group.ID.Hex())
	rec := httptest.NewRecorder()
	h.ServeUpcoming(rec, req)

	testutil.AssertStatus(t, rec, http.StatusOK)
	env := testutil.DecodeEnvelope(t, rec)

	var data struct {
		Activities []models.Activity `json:"activities"`
	}
	testutil.DecodeData(t, env, &data)
	if len(data.Activities) != 1 || data.Activities[0].Title != "Future" {
		t.Errorf("expected only the future activity, got %d", len(data.Activities))
	}
}
