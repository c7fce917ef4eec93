package chat_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/intorehq/intorehub/internal/app/features/chat"
	uierrors "github.com/intorehq/intorehub/internal/app/features/errors"
	"github.com/intorehq/intorehub/internal/app/store/audit"
	chatstore "github.com/intorehq/intorehub/internal/app/store/chat"
	groupstore "github.com/intorehq/intorehub/internal/app/store/intoregroups"
	userstore "github.com/intorehq/intorehub/internal/app/store/users"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/app/system/authz"
	"github.com/intorehq/intorehub/internal/domain/models"
	"github.com/intorehq/intorehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*chat.Handler, *testutil.Fixtures) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{Auth: "db", Admin: "db"})
	errLog := uierrors.NewErrorLogger(auditLog, logger)

	h := chat.NewHandler(
		chatstore.New(db),
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

type seeded struct {
	group  models.IntoreGroup
	member models.User
	super  models.User
}

func seed(t *testing.T, f *testutil.Fixtures) seeded {
	t.Helper()
	ctx := context.Background()
	d := f.CreateDistrict(ctx, "Musanze", "MS-01")
	sec := f.CreateSector(ctx, "Kinigi", "KN-01", d.ID)
	cell := f.CreateCell(ctx, "Bisoke", "BS-01", sec.ID, d.ID)
	group := f.CreateGroup(ctx, "Inganzo", "IG-01", cell)

	member := f.CreateMember(ctx, "Dancer", "dancer@test.rw", d.ID, sec.ID, cell.ID)
	if _, err := f.DB().Collection("users").UpdateByID(ctx, member.ID,
		bson.M{"$set": bson.M{"intore_group_id": group.ID}}); err != nil {
		t.Fatalf("attach member to group: %v", err)
	}
	member.IntoreGroupID = &group.ID

	return seeded{
		group:  group,
		member: member,
		super:  f.CreateSuperAdmin(ctx, "Root", "root@test.rw"),
	}
}

func createChatGroup(t *testing.T, f *testutil.Fixtures, s seeded) models.ChatGroup {
	t.Helper()
	created, err := chatstore.New(f.DB()).CreateGroup(context.Background(), models.ChatGroup{
		Name:          "Inganzo chat",
		IntoreGroupID: &s.group.ID,
		CellID:        &s.group.CellID,
		SectorID:      &s.group.SectorID,
		DistrictID:    &s.group.DistrictID,
		CreatedBy:     s.super.ID,
	})
	if err != nil {
		t.Fatalf("seed chat group: %v", err)
	}
	return created
}

func TestCreateGroup_CopiesRefsAndConflictsOnSecond(t *testing.T) {
	h, f := newTestHandler(t)
	s := seed(t, f)

	create := func() *httptest.ResponseRecorder {
		req := jsonRequest(t, "POST", "/chat/groups", map[string]string{
			"name":            "Inganzo chat",
			"intore_group_id": s.group.ID.Hex(),
		}, asTestUser(s.super))
		rec := httptest.NewRecorder()
		h.ServeCreateGroup(rec, req)
		return rec
	}

	rec := create()
	testutil.AssertStatus(t, rec, http.StatusCreated)
	env := testutil.DecodeEnvelope(t, rec)

	var cg models.ChatGroup
	testutil.DecodeData(t, env, &cg)
	if cg.DistrictID == nil || *cg.DistrictID != s.group.DistrictID {
		t.Error("district reference should be copied from the intore group")
	}
	if cg.Status != models.StatusActive {
		t.Errorf("status = %q, want active", cg.Status)
	}

	testutil.AssertStatus(t, create(), http.StatusConflict)
}

func TestPostMessage_SanitizesBody(t *testing.T) {
	h, f := newTestHandler(t)
	s := seed(t, f)
	cg := createChatGroup(t, f, s)

	req := jsonRequest(t, "POST", "/chat/groups/"+cg.ID.Hex()+"/messages", map[string]string{
		"body": "  <b>muraho</b> neza ",
	}, asTestUser(s.member))
	req = testutil.WithChiURLParam(req, "chatGroupID", cg.ID.Hex())
	rec := httptest.NewRecorder()
	h.ServePostMessage(rec, req)

	testutil.AssertStatus(t, rec, http.StatusCreated)
	env := testutil.DecodeEnvelope(t, rec)

	var msg models.Message
	testutil.DecodeData(t, env, &msg)
	if msg.Body != "muraho neza" {
		t.Errorf("body = %q, want markup stripped and trimmed", msg.Body)
	}
	if msg.SenderID != s.member.ID {
		t.Error("sender should be the posting member")
	}
}

func TestPostMessage_NonParticipantForbidden(t *testing.T) {
	h, f := newTestHandler(t)
	s := seed(t, f)
	cg := createChatGroup(t, f, s)
	outsider := f.CreatePublicUser(context.Background(), "Outsider", "outsider@test.rw")

	req := jsonRequest(t, "POST", "/chat/groups/"+cg.ID.Hex()+"/messages", map[string]string{
		"body": "muraho",
	}, asTestUser(outsider))
	req = testutil.WithChiURLParam(req, "chatGroupID", cg.ID.Hex())
	rec := httptest.NewRecorder()
	h.ServePostMessage(rec, req)

	testutil.AssertStatus(t, rec, http.StatusForbidden)
}

func TestMessages_BeforePagesBackwards(t *testing.T) {
	h, f := newTestHandler(t)
	s := seed(t, f)
	cg := createChatGroup(t, f, s)
	ctx := context.Background()

	store := chatstore.New(f.DB())
	times := make([]time.Time, 0, 3)
	for _, body := range []string{"first", "second", "third"} {
		msg, err := store.AddMessage(ctx, models.Message{
			ChatGroupID: cg.ID,
			SenderID:    s.member.ID,
			Body:        body,
		})
		if err != nil {
			t.Fatalf("seed message: %v", err)
		}
		times = append(times, msg.CreatedAt)
		time.Sleep(5 * time.Millisecond)
	}

	// Mongo stores timestamps at millisecond precision; truncate the cursor
	// so it compares equal to the stored value.
	cursor := times[2].Truncate(time.Millisecond).Format(time.RFC3339Nano)
	target := "/chat/groups/" + cg.ID.Hex() + "/messages?before=" + cursor
	req := testutil.NewAuthenticatedRequest("GET", target, asTestUser(s.member))
	req = testutil.WithChiURLParam(req, "chatGroupID", cg.ID.Hex())
	rec := httptest.NewRecorder()
	h.ServeMessages(rec, req)

	testutil.AssertStatus(t, rec, http.StatusOK)
	env := testutil.DecodeEnvelope(t, rec)

	var data struct {
		Messages []models.Message `json:"messages"`
	}
	testutil.DecodeData(t, env, &data)
	if len(data.Messages) != 2 {
		t.Fatalf("got %d messages, want the 2 older than the cursor", len(data.Messages))
	}
	if data.Messages[0].Body != "second" || data.Messages[1].Body != "first" {
		t.Errorf("messages out of order: %q, %q", data.Messages[0].Body, data.Messages[1].Body)
	}
}
