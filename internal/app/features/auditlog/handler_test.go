package auditlog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	auditfeature "github.com/intorehq/intorehub/internal/app/features/auditlog"
	uierrors "github.com/intorehq/intorehub/internal/app/features/errors"
	"github.com/intorehq/intorehub/internal/app/store/audit"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/domain/models"
	"github.com/intorehq/intorehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*auditfeature.Handler, *audit.Store, *testutil.Fixtures) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	store := audit.New(db)
	auditLog := auditlog.New(store, logger, auditlog.Config{Auth: "db", Admin: "db"})
	errLog := uierrors.NewErrorLogger(auditLog, logger)

	return auditfeature.NewHandler(store, errLog, logger), store, testutil.NewFixtures(t, db)
}

func asTestUser(u models.User) testutil.TestUser {
	return testutil.TestUser{ID: u.ID.Hex(), Name: u.FullName, Email: u.Email, Role: u.Role}
}

func seedRecords(t *testing.T, store *audit.Store, actor primitive.ObjectID) primitive.ObjectID {
	t.Helper()
	ctx := context.Background()
	district := primitive.NewObjectID()

	records := []audit.Record{
		{Action: audit.ActionCreate, ResourceType: "district", ResourceID: &district, PerformedBy: &actor},
		{Action: audit.ActionUpdate, ResourceType: "district", ResourceID: &district, PerformedBy: &actor},
		{Action: audit.ActionLogin, ResourceType: "user", PerformedBy: &actor},
	}
	for _, rec := range records {
		if err := store.Log(ctx, rec); err != nil {
			t.Fatalf("seed audit record: %v", err)
		}
	}
	return district
}

func TestList_FiltersByAction(t *testing.T) {
	h, store, f := newTestHandler(t)
	super := f.CreateSuperAdmin(context.Background(), "Root", "root@test.rw")
	seedRecords(t, store, super.ID)

	req := testutil.NewAuthenticatedRequest("GET", "/audit-logs?action=CREATE", asTestUser(super))
	rec := httptest.NewRecorder()
	h.ServeList(rec, req)

	testutil.AssertStatus(t, rec, http.StatusOK)
	env := testutil.DecodeEnvelope(t, rec)

	var data struct {
		Records []audit.Record `json:"audit_logs"`
		Total   int64          `json:"total"`
	}
	testutil.DecodeData(t, env, &data)
	if len(data.Records) != 1 || data.Total != 1 {
		t.Fatalf("got %d records (total %d), want 1", len(data.Records), data.Total)
	}
	if data.Records[0].Action != audit.ActionCreate {
		t.Errorf("action = %q", data.Records[0].Action)
	}
}

func TestList_PagingLooksAhead(t *testing.T) {
	h, store, f := newTestHandler(t)
	super := f.CreateSuperAdmin(context.Background(), "Root", "root@test.rw")
	seedRecords(t, store, super.ID)

	req := testutil.NewAuthenticatedRequest("GET", "/audit-logs?per_page=2", asTestUser(super))
	rec := httptest.NewRecorder()
	h.ServeList(rec, req)

	testutil.AssertStatus(t, rec, http.StatusOK)
	env := testutil.DecodeEnvelope(t, rec)

	var data struct {
		Records []audit.Record `json:"audit_logs"`
		Paging  struct {
			HasNext bool `json:"has_next"`
		} `json:"paging"`
	}
	testutil.DecodeData(t, env, &data)
	if len(data.Records) != 2 {
		t.Fatalf("got %d records, want page of 2", len(data.Records))
	}
	if !data.Paging.HasNext {
		t.Error("has_next should be set with a third record available")
	}
}

func TestList_RejectsBadTimeRange(t *testing.T) {
	h, _, f := newTestHandler(t)
	super := f.CreateSuperAdmin(context.Background(), "Root", "root@test.rw")

	req := testutil.NewAuthenticatedRequest("GET", "/audit-logs?from=yesterday", asTestUser(super))
	rec := httptest.NewRecorder()
	h.ServeList(rec, req)

	testutil.AssertStatus(t, rec, http.StatusBadRequest)
}

func TestByResource_ReturnsResourceTrail(t *testing.T) {
	h, store, f := newTestHandler(t)
	super := f.CreateSuperAdmin(context.Background(), "Root", "root@test.rw")
	district := seedRecords(t, store, super.ID)

	target := "/audit-logs/resource/district/" + district.Hex()
	req := testutil.NewAuthenticatedRequest("GET", target, asTestUser(super))
	req = testutil.WithChiURLParam(req, "resourceType", "district")
	req = testutil.WithChiURLParam(req, "resourceID", district.Hex())
	rec := httptest.NewRecorder()
	h.ServeByResource(rec, req)

	testutil.AssertStatus(t, rec, http.StatusOK)
	env := testutil.DecodeEnvelope(t, rec)

	var data struct {
		Records []audit.Record `json:"audit_logs"`
	}
	testutil.DecodeData(t, env, &data)
	if len(data.Records) != 2 {
		t.Fatalf("got %d records, want the district's 2", len(data.Records))
	}
	for _, rec := range data.Records {
		if rec.ResourceType != "district" {
			t.Errorf("resource_type = %q", rec.ResourceType)
		}
	}
}
