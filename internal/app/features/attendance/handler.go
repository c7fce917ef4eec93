// internal/app/features/attendance/handler.go
package attendance

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/intorehq/intorehub/internal/app/features/errors"
	"github.com/intorehq/intorehub/internal/app/features/shared"
	activitystore "github.com/intorehq/intorehub/internal/app/store/activities"
	attendancestore "github.com/intorehq/intorehub/internal/app/store/attendance"
	"github.com/intorehq/intorehub/internal/app/store/audit"
	groupstore "github.com/intorehq/intorehub/internal/app/store/intoregroups"
	userstore "github.com/intorehq/intorehub/internal/app/store/users"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/app/system/authz"
	"github.com/intorehq/intorehub/internal/app/system/respond"
	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves attendance recording for activities.
type Handler struct {
	Attendance *attendancestore.Store
	Activities *activitystore.Store
	Groups     *groupstore.Store
	Users      *userstore.Store
	Resolver   *authz.Resolver
	Audit      *auditlog.Logger
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger
}

// NewHandler constructs an attendance Handler.
func NewHandler(att *attendancestore.Store, activities *activitystore.Store, groups *groupstore.Store, users *userstore.Store, resolver *authz.Resolver, auditLog *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Attendance: att,
		Activities: activities,
		Groups:     groups,
		Users:      users,
		Resolver:   resolver,
		Audit:      auditLog,
		ErrLog:     errLog,
		Log:        logger,
	}
}

type recordRequest struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
	Note   string `json:"note"`
}

// ServeRecord handles PUT /activities/{activityID}/attendance. Recording the
// same member twice replaces the earlier status.
func (h *Handler) ServeRecord(w http.ResponseWriter, r *http.Request) {
	activityID, ok := shared.IDParam(r, "activityID")
	if !ok {
		respond.NotFound(w, "Activity not found")
		return
	}
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var errs []string
	userID, ok := shared.ParseID(req.UserID)
	if !ok {
		errs = append(errs, "user_id must be a valid id")
	}
	if !models.ValidAttendanceStatus(req.Status) {
		errs = append(errs, "status must be present, absent, excused, or late")
	}
	if len(errs) > 0 {
		respond.Invalid(w, "Validation failed", errs)
		return
	}

	activity, err := h.Activities.GetByID(r.Context(), activityID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Activity not found")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load activity")
		return
	}

	group, err := h.Groups.GetByID(r.Context(), activity.IntoreGroupID)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to load owning group")
		return
	}
	actor := h.Resolver.Actor(r)
	if !authz.CanManageGroup(actor, group) {
		respond.Fail(w, http.StatusForbidden, "You may not record attendance for this group")
		return
	}

	member, err := h.Users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.Invalid(w, "Validation failed", []string{"user does not exist"})
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load member")
		return
	}
	if !authz.InGroup(member, group.ID) {
		respond.Invalid(w, "Validation failed", []string{"user is not a member of this intore group"})
		return
	}

	stored, err := h.Attendance.Record(r.Context(), models.Attendance{
		ActivityID:    activityID,
		UserID:        userID,
		IntoreGroupID: group.ID,
		Status:        req.Status,
		Note:          strings.TrimSpace(req.Note),
		RecordedBy:    actor.ID,
	})
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to record attendance")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionUpdate, "attendance", stored.ID,
		shared.Actor(r), nil, bson.M{
			"activity_id": activityID.Hex(),
			"user_id":     userID.Hex(),
			"status":      stored.Status,
		}, "attendance recorded")
	respond.OK(w, "Attendance recorded", stored)
}

// ServeByActivity handles GET /activities/{activityID}/attendance.
func (h *Handler) ServeByActivity(w http.ResponseWriter, r *http.Request) {
	activityID, ok := shared.IDParam(r, "activityID")
	if !ok {
		respond.NotFound(w, "Activity not found")
		return
	}
	if _, err := h.Activities.GetByID(r.Context(), activityID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Activity not found")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load activity")
		return
	}

	rows, err := h.Attendance.ByActivity(r.Context(), activityID)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to list attendance")
		return
	}
	respond.OK(w, "", map[string]any{"attendance": rows})
}

// ServeSummary handles GET /activities/{activityID}/attendance/summary:
// per-status counts for the activity.
func (h *Handler) ServeSummary(w http.ResponseWriter, r *http.Request) {
	activityID, ok := shared.IDParam(r, "activityID")
	if !ok {
		respond.NotFound(w, "Activity not found")
		return
	}

	counts, err := h.Attendance.CountByStatus(r.Context(), bson.M{"activity_id": activityID})
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to summarize attendance")
		return
	}
	respond.OK(w, "", map[string]any{"counts": counts})
}

// ServeByUser handles GET /members/{memberID}/attendance: a member's own
// history, newest first.
func (h *Handler) ServeByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.IDParam(r, "memberID")
	if !ok {
		respond.NotFound(w, "Member not found")
		return
	}

	rows, err := h.Attendance.ByUser(r.Context(), userID, 100)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to list attendance history")
		return
	}
	respond.OK(w, "", map[string]any{"attendance": rows})
}
