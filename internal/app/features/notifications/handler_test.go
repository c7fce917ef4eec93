package notifications_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	uierrors "github.com/intorehq/intorehub/internal/app/features/errors"
	"github.com/intorehq/intorehub/internal/app/features/notifications"
	"github.com/intorehq/intorehub/internal/app/store/audit"
	cellstore "github.com/intorehq/intorehub/internal/app/store/cells"
	groupstore "github.com/intorehq/intorehub/internal/app/store/intoregroups"
	notificationstore "github.com/intorehq/intorehub/internal/app/store/notifications"
	sectorstore "github.com/intorehq/intorehub/internal/app/store/sectors"
	userstore "github.com/intorehq/intorehub/internal/app/store/users"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/app/system/authz"
	"github.com/intorehq/intorehub/internal/app/system/indexes"
	"github.com/intorehq/intorehub/internal/domain/models"
	"github.com/intorehq/intorehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*notifications.Handler, *testutil.Fixtures) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{Auth: "db", Admin: "db"})
	errLog := uierrors.NewErrorLogger(auditLog, logger)

	h := notifications.NewHandler(
		notificationstore.New(db),
		groupstore.New(db),
		cellstore.New(db),
		sectorstore.New(db),
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

func listFor(t *testing.T, h *notifications.Handler, u models.User) []models.Notification {
	t.Helper()
	req := testutil.NewAuthenticatedRequest("GET", "/notifications", asTestUser(u))
	rec := httptest.NewRecorder()
	h.ServeList(rec, req)
	testutil.AssertStatus(t, rec, http.StatusOK)
	env := testutil.DecodeEnvelope(t, rec)

	var data struct {
		Notifications []models.Notification `json:"notifications"`
	}
	testutil.DecodeData(t, env, &data)
	return data.Notifications
}

func TestCreate_CellScopeFansOutAtReadTime(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	d := f.CreateDistrict(ctx, "Musanze", "MS-01")
	sec := f.CreateSector(ctx, "Kinigi", "KN-01", d.ID)
	cell := f.CreateCell(ctx, "Bisoke", "BS-01", sec.ID, d.ID)
	other := f.CreateCell(ctx, "Kampanga", "KP-01", sec.ID, d.ID)
	super := f.CreateSuperAdmin(ctx, "Root", "root@test.rw")
	insider := f.CreateMember(ctx, "Insider", "insider@test.rw", d.ID, sec.ID, cell.ID)
	outsider := f.CreateMember(ctx, "Outsider", "outsider@test.rw", d.ID, sec.ID, other.ID)

	req := jsonRequest(t, "POST", "/notifications", map[string]string{
		"title":   "Umuganda reminder",
		"type":    notifications.TypeAnnouncement,
		"cell_id": cell.ID.Hex(),
	}, asTestUser(super))
	rec := httptest.NewRecorder()
	h.ServeCreate(rec, req)
	testutil.AssertStatus(t, rec, http.StatusCreated)

	if got := listFor(t, h, insider); len(got) != 1 {
		t.Errorf("insider sees %d notifications, want 1", len(got))
	}
	if got := listFor(t, h, outsider); len(got) != 0 {
		t.Errorf("outsider sees %d notifications, want 0", len(got))
	}
}

func TestCreate_DedupeKeySuppressesDuplicate(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	if err := indexes.EnsureAll(ctx, f.DB()); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}
	d := f.CreateDistrict(ctx, "Musanze", "MS-01")
	super := f.CreateSuperAdmin(ctx, "Root", "root@test.rw")

	create := func() *httptest.ResponseRecorder {
		req := jsonRequest(t, "POST", "/notifications", map[string]string{
			"title":       "Season opening",
			"type":        notifications.TypeSystem,
			"district_id": d.ID.Hex(),
			"dedupe_key":  "season-opening-2026",
		}, asTestUser(super))
		rec := httptest.NewRecorder()
		h.ServeCreate(rec, req)
		return rec
	}

	testutil.AssertStatus(t, create(), http.StatusCreated)
	testutil.AssertStatus(t, create(), http.StatusCreated)

	n, err := f.DB().Collection("notifications").CountDocuments(ctx, bson.M{
		"dedupe_key": "season-opening-2026",
	})
	if err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected the duplicate insert to be dropped, got %d rows", n)
	}
}

func TestMarkRead_OnlyRecipient(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	d := f.CreateDistrict(ctx, "Musanze", "MS-01")
	sec := f.CreateSector(ctx, "Kinigi", "KN-01", d.ID)
	cell := f.CreateCell(ctx, "Bisoke", "BS-01", sec.ID, d.ID)
	super := f.CreateSuperAdmin(ctx, "Root", "root@test.rw")
	member := f.CreateMember(ctx, "Dancer", "dancer@test.rw", d.ID, sec.ID, cell.ID)
	other := f.CreateMember(ctx, "Other", "other@test.rw", d.ID, sec.ID, cell.ID)

	req := jsonRequest(t, "POST", "/notifications", map[string]string{
		"title":        "Practice moved",
		"type":         notifications.TypeActivity,
		"recipient_id": member.ID.Hex(),
	}, asTestUser(super))
	rec := httptest.NewRecorder()
	h.ServeCreate(rec, req)
	testutil.AssertStatus(t, rec, http.StatusCreated)
	env := testutil.DecodeEnvelope(t, rec)

	var n models.Notification
	testutil.DecodeData(t, env, &n)

	markAs := func(u models.User) {
		req := jsonRequest(t, "PUT", "/notifications/"+n.ID.Hex()+"/read", nil, asTestUser(u))
		req = testutil.WithChiURLParam(req, "notificationID", n.ID.Hex())
		rec := httptest.NewRecorder()
		h.ServeMarkRead(rec, req)
		testutil.AssertStatus(t, rec, http.StatusOK)
	}

	// Someone else marking read is a silent no-op.
	markAs(other)
	unread, err := notificationstore.New(f.DB()).CountUnread(ctx, member.ID)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if unread != 1 {
		t.Fatalf("unread = %d after foreign mark, want 1", unread)
	}

	markAs(member)
	unread, err = notificationstore.New(f.DB()).CountUnread(ctx, member.ID)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if unread != 0 {
		t.Fatalf("unread = %d after recipient mark, want 0", unread)
	}
}

func TestCreate_ForeignSectorForbidden(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := context.Background()
	d := f.CreateDistrict(ctx, "Musanze", "MS-01")
	mine := f.CreateSector(ctx, "Kinigi", "KN-01", d.ID)
	foreign := f.CreateSector(ctx, "Muhoza", "MH-01", d.ID)
	admin := f.CreateUser(ctx, "Sector Admin", "sadmin@test.rw", models.RoleSectorAdmin, models.Hierarchy{
		DistrictID: &d.ID,
		SectorID:   &mine.ID,
	})

	req := jsonRequest(t, "POST", "/notifications", map[string]string{
		"title":     "Not yours",
		"type":      notifications.TypeAnnouncement,
		"sector_id": foreign.ID.Hex(),
	}, asTestUser(admin))
	rec := httptest.NewRecorder()
	h.ServeCreate(rec, req)

	testutil.AssertStatus(t, rec, http.StatusForbidden)
}
