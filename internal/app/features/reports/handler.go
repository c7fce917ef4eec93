// internal/app/features/reports/handler.go
package reports

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/query"
	uierrors "github.com/intorehq/intorehub/internal/app/features/errors"
	"github.com/intorehq/intorehub/internal/app/features/shared"
	activitystore "github.com/intorehq/intorehub/internal/app/store/activities"
	attendancestore "github.com/intorehq/intorehub/internal/app/store/attendance"
	"github.com/intorehq/intorehub/internal/app/store/audit"
	cellstore "github.com/intorehq/intorehub/internal/app/store/cells"
	groupstore "github.com/intorehq/intorehub/internal/app/store/intoregroups"
	reportstore "github.com/intorehq/intorehub/internal/app/store/reports"
	sectorstore "github.com/intorehq/intorehub/internal/app/store/sectors"
	userstore "github.com/intorehq/intorehub/internal/app/store/users"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/app/system/authz"
	"github.com/intorehq/intorehub/internal/app/system/paging"
	"github.com/intorehq/intorehub/internal/app/system/respond"
	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler generates and serves stored summary reports. Generation is pure
// data shaping: counts per hierarchy node over a period, no analysis.
type Handler struct {
	Reports    *reportstore.Store
	Users      *userstore.Store
	Activities *activitystore.Store
	Attendance *attendancestore.Store
	Groups     *groupstore.Store
	Cells      *cellstore.Store
	Sectors    *sectorstore.Store
	Resolver   *authz.Resolver
	Audit      *auditlog.Logger
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger
}

// NewHandler constructs a reports Handler.
func NewHandler(reports *reportstore.Store, users *userstore.Store, activities *activitystore.Store, attendance *attendancestore.Store, groups *groupstore.Store, cells *cellstore.Store, sectors *sectorstore.Store, resolver *authz.Resolver, auditLog *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Reports:    reports,
		Users:      users,
		Activities: activities,
		Attendance: attendance,
		Groups:     groups,
		Cells:      cells,
		Sectors:    sectors,
		Resolver:   resolver,
		Audit:      auditLog,
		ErrLog:     errLog,
		Log:        logger,
	}
}

func validReportType(t string) bool {
	switch t {
	case reportstore.TypeMembership, reportstore.TypeAttendance, reportstore.TypeActivity:
		return true
	}
	return false
}

// scope is a resolved hierarchy node a report runs over. The chain above
// the node is filled so the stored report carries denormalized references.
type scope struct {
	IntoreGroupID *primitive.ObjectID
	CellID        *primitive.ObjectID
	SectorID      *primitive.ObjectID
	DistrictID    *primitive.ObjectID
}

// usersFilter selects member users belonging to the scope's node.
func (sc scope) usersFilter() bson.M {
	f := bson.M{"role": models.RoleMember}
	switch {
	case sc.IntoreGroupID != nil:
		f["intore_group_id"] = *sc.IntoreGroupID
	case sc.CellID != nil:
		f["hierarchy.cell_id"] = *sc.CellID
	case sc.SectorID != nil:
		f["hierarchy.sector_id"] = *sc.SectorID
	default:
		f["hierarchy.district_id"] = *sc.DistrictID
	}
	return f
}

// activitiesFilter selects activities owned by groups under the scope's node.
func (sc scope) activitiesFilter() bson.M {
	switch {
	case sc.IntoreGroupID != nil:
		return bson.M{"intore_group_id": *sc.IntoreGroupID}
	case sc.CellID != nil:
		return bson.M{"cell_id": *sc.CellID}
	case sc.SectorID != nil:
		return bson.M{"sector_id": *sc.SectorID}
	default:
		return bson.M{"district_id": *sc.DistrictID}
	}
}

// groupsFilter selects the intore groups under the scope's node. Used to
// widen attendance queries, which only carry a group reference.
func (sc scope) groupsFilter() bson.M {
	switch {
	case sc.IntoreGroupID != nil:
		return bson.M{"_id": *sc.IntoreGroupID}
	case sc.CellID != nil:
		return bson.M{"cell_id": *sc.CellID}
	case sc.SectorID != nil:
		return bson.M{"sector_id": *sc.SectorID}
	default:
		return bson.M{"district_id": *sc.DistrictID}
	}
}

type listResponse struct {
	Reports []models.Report `json:"reports"`
}

// ServeList handles GET /reports. Supports type and scope reference filters.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	p := paging.FromRequest(r)

	filter := bson.M{}
	for _, param := range []string{"intore_group_id", "cell_id", "sector_id", "district_id"} {
		if s := query.Get(r, param); s != "" {
			id, ok := shared.ParseID(s)
			if !ok {
				respond.Invalid(w, "Validation failed", []string{param + " must be a valid id"})
				return
			}
			filter[param] = id
		}
	}
	if t := query.Get(r, "type"); t != "" {
		filter["type"] = t
	}

	rows, err := h.Reports.Find(r.Context(), filter, p.Limit)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to list reports")
		return
	}
	respond.OK(w, "", listResponse{Reports: rows})
}

// ServeGet handles GET /reports/{reportID}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "reportID")
	if !ok {
		respond.NotFound(w, "Report not found")
		return
	}
	report, err := h.Reports.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Report not found")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load report")
		return
	}
	respond.OK(w, "", report)
}

type generateRequest struct {
	Title         string `json:"title"`
	Type          string `json:"type"`
	IntoreGroupID string `json:"intore_group_id"`
	CellID        string `json:"cell_id"`
	SectorID      string `json:"sector_id"`
	DistrictID    string `json:"district_id"`
	PeriodStart   string `json:"period_start"`
	PeriodEnd     string `json:"period_end"`
}

// ServeGenerate handles POST /reports: shape the counts for one hierarchy
// node over a period and store the result.
func (h *Handler) ServeGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var errs []string
	if !validReportType(req.Type) {
		errs = append(errs, "type must be membership, attendance, or activity")
	}
	targets := 0
	for _, s := range []string{req.IntoreGroupID, req.CellID, req.SectorID, req.DistrictID} {
		if s != "" {
			targets++
		}
	}
	if targets != 1 {
		errs = append(errs, "exactly one of intore_group_id, cell_id, sector_id, district_id is required")
	}

	start, end, perrs := parsePeriod(req.PeriodStart, req.PeriodEnd)
	errs = append(errs, perrs...)
	if len(errs) > 0 {
		respond.Invalid(w, "Validation failed", errs)
		return
	}

	sc, ok := h.resolveScope(w, r, req)
	if !ok {
		return
	}

	data, err := h.shapeData(r, req.Type, sc, start, end)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to shape report data")
		return
	}

	actor := h.Resolver.Actor(r)
	report := models.Report{
		Title:         strings.TrimSpace(req.Title),
		Type:          req.Type,
		IntoreGroupID: sc.IntoreGroupID,
		CellID:        sc.CellID,
		SectorID:      sc.SectorID,
		DistrictID:    sc.DistrictID,
		PeriodStart:   start,
		PeriodEnd:     end,
		Data:          data,
	}
	if report.Title == "" {
		report.Title = req.Type + " report"
	}
	if actor != nil {
		report.GeneratedBy = actor.ID
	}

	created, err := h.Reports.Create(r.Context(), report)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to store report")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionCreate, "report", created.ID,
		shared.Actor(r), nil, bson.M{
			"title": created.Title,
			"type":  created.Type,
		}, "report generated")
	respond.Created(w, "Report generated", created)
}

func parsePeriod(startStr, endStr string) (time.Time, time.Time, []string) {
	var errs []string
	end := time.Now().UTC()
	start := end.AddDate(0, -1, 0)

	if startStr != "" {
		t, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			errs = append(errs, "period_start must be an RFC3339 timestamp")
		} else {
			start = t.UTC()
		}
	}
	if endStr != "" {
		t, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			errs = append(errs, "period_end must be an RFC3339 timestamp")
		} else {
			end = t.UTC()
		}
	}
	if len(errs) == 0 && !end.After(start) {
		errs = append(errs, "period_end must be after period_start")
	}
	return start, end, errs
}

// resolveScope loads the referenced node, fills the chain above it, and
// checks the actor may run reports over it.
func (h *Handler) resolveScope(w http.ResponseWriter, r *http.Request, req generateRequest) (scope, bool) {
	invalid := func(msg string) (scope, bool) {
		respond.Invalid(w, "Validation failed", []string{msg})
		return scope{}, false
	}
	forbidden := func() (scope, bool) {
		respond.Fail(w, http.StatusForbidden, "You may not report on this scope")
		return scope{}, false
	}
	actor := h.Resolver.Actor(r)

	switch {
	case req.IntoreGroupID != "":
		id, ok := shared.ParseID(req.IntoreGroupID)
		if !ok {
			return invalid("intore_group_id must be a valid id")
		}
		group, err := h.Groups.GetByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return invalid("intore group does not exist")
			}
			h.ErrLog.Internal(w, r, err, "failed to load intore group")
			return scope{}, false
		}
		if !authz.CanManageGroup(actor, group) {
			return forbidden()
		}
		return scope{
			IntoreGroupID: &group.ID,
			CellID:        &group.CellID,
			SectorID:      &group.SectorID,
			DistrictID:    &group.DistrictID,
		}, true

	case req.CellID != "":
		id, ok := shared.ParseID(req.CellID)
		if !ok {
			return invalid("cell_id must be a valid id")
		}
		cell, err := h.Cells.GetByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return invalid("cell does not exist")
			}
			h.ErrLog.Internal(w, r, err, "failed to load cell")
			return scope{}, false
		}
		if !authz.CanManageCell(actor, cell) {
			return forbidden()
		}
		return scope{
			CellID:     &cell.ID,
			SectorID:   &cell.SectorID,
			DistrictID: &cell.DistrictID,
		}, true

	case req.SectorID != "":
		id, ok := shared.ParseID(req.SectorID)
		if !ok {
			return invalid("sector_id must be a valid id")
		}
		sector, err := h.Sectors.GetByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return invalid("sector does not exist")
			}
			h.ErrLog.Internal(w, r, err, "failed to load sector")
			return scope{}, false
		}
		if !authz.CanManageSector(actor, sector) {
			return forbidden()
		}
		return scope{
			SectorID:   &sector.ID,
			DistrictID: &sector.DistrictID,
		}, true

	default:
		id, ok := shared.ParseID(req.DistrictID)
		if !ok {
			return invalid("district_id must be a valid id")
		}
		if !authz.CanManageDistrict(actor, id) {
			return forbidden()
		}
		return scope{DistrictID: &id}, true
	}
}

func (h *Handler) shapeData(r *http.Request, reportType string, sc scope, start, end time.Time) (bson.M, error) {
	ctx := r.Context()

	switch reportType {
	case reportstore.TypeMembership:
		total, err := h.Users.Count(ctx, sc.usersFilter())
		if err != nil {
			return nil, err
		}
		activeFilter := sc.usersFilter()
		activeFilter["status"] = models.StatusActive
		active, err := h.Users.Count(ctx, activeFilter)
		if err != nil {
			return nil, err
		}
		return bson.M{
			"total_members":    total,
			"active_members":   active,
			"disabled_members": total - active,
		}, nil

	case reportstore.TypeAttendance:
		// Attendance rows only reference their intore group, so wider
		// scopes are widened to the groups under the node.
		groups, err := h.Groups.Find(ctx, sc.groupsFilter())
		if err != nil {
			return nil, err
		}
		ids := make([]primitive.ObjectID, 0, len(groups))
		for _, g := range groups {
			ids = append(ids, g.ID)
		}
		counts := map[string]int64{}
		if len(ids) > 0 {
			counts, err = h.Attendance.CountByStatus(ctx, bson.M{
				"intore_group_id": bson.M{"$in": ids},
				"created_at":      bson.M{"$gte": start, "$lte": end},
			})
			if err != nil {
				return nil, err
			}
		}
		var total int64
		for _, n := range counts {
			total += n
		}
		return bson.M{
			"groups":        len(ids),
			"total_records": total,
			"by_status":     counts,
		}, nil

	default: // reportstore.TypeActivity
		total, err := h.Activities.CountInRange(ctx, sc.activitiesFilter(), start, end)
		if err != nil {
			return nil, err
		}
		byStatus := bson.M{}
		for _, status := range []string{activitystore.StatusScheduled, activitystore.StatusCompleted, activitystore.StatusCancelled} {
			f := sc.activitiesFilter()
			f["status"] = status
			n, err := h.Activities.CountInRange(ctx, f, start, end)
			if err != nil {
				return nil, err
			}
			byStatus[status] = n
		}
		return bson.M{
			"total_activities": total,
			"by_status":        byStatus,
		}, nil
	}
}
