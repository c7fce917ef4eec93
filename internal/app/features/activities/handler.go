// internal/app/features/activities/handler.go
package activities

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
	"github.com/intorehq/intorehub/internal/app/store/audit"
	groupstore "github.com/intorehq/intorehub/internal/app/store/intoregroups"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/app/system/authz"
	"github.com/intorehq/intorehub/internal/app/system/paging"
	"github.com/intorehq/intorehub/internal/app/system/respond"
	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Handler serves activity management. Activities always belong to an intore
// group; their cell/sector/district references are recomputed from the group
// at write time and never taken from the request.
type Handler struct {
	Activities *activitystore.Store
	Groups     *groupstore.Store
	Resolver   *authz.Resolver
	Audit      *auditlog.Logger
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger
}

// NewHandler constructs an activities Handler.
func NewHandler(activities *activitystore.Store, groups *groupstore.Store, resolver *authz.Resolver, auditLog *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Activities: activities,
		Groups:     groups,
		Resolver:   resolver,
		Audit:      auditLog,
		ErrLog:     errLog,
		Log:        logger,
	}
}

func snapshot(a models.Activity) bson.M {
	m := bson.M{
		"title":           a.Title,
		"intore_group_id": a.IntoreGroupID.Hex(),
		"starts_at":       a.StartsAt,
		"status":          a.Status,
	}
	if a.Description != "" {
		m["description"] = a.Description
	}
	if a.Location != "" {
		m["location"] = a.Location
	}
	if a.EndsAt != nil {
		m["ends_at"] = *a.EndsAt
	}
	return m
}

type listResponse struct {
	Activities []models.Activity `json:"activities"`
	Paging     paging.Meta       `json:"paging"`
}

// ServeList handles GET /activities. Supports intore_group_id, cell_id,
// sector_id, district_id, status, from/to (RFC 3339), and the standard
// paging parameters.
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
	if status := query.Get(r, "status"); status != "" {
		filter["status"] = status
	}

	window := bson.M{}
	if s := query.Get(r, "from"); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			respond.Invalid(w, "Validation failed", []string{"from must be an RFC 3339 timestamp"})
			return
		}
		window["$gte"] = ts
	}
	if s := query.Get(r, "to"); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			respond.Invalid(w, "Validation failed", []string{"to must be an RFC 3339 timestamp"})
			return
		}
		window["$lt"] = ts
	}
	if len(window) > 0 {
		filter["starts_at"] = window
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "starts_at", Value: 1}}).
		SetSkip(p.Offset).
		SetLimit(p.LimitPlusOne())
	rows, err := h.Activities.Find(r.Context(), filter, opts)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to list activities")
		return
	}

	meta := paging.Trim(&rows, p)
	respond.OK(w, "", listResponse{Activities: rows, Paging: meta})
}

type createRequest struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Location      string  `json:"location"`
	IntoreGroupID string  `json:"intore_group_id"`
	StartsAt      string  `json:"starts_at"`
	EndsAt        *string `json:"ends_at"`
}

// ServeCreate handles POST /activities.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var errs []string
	if strings.TrimSpace(req.Title) == "" {
		errs = append(errs, "title is required")
	}
	groupID, ok := shared.ParseID(req.IntoreGroupID)
	if !ok {
		errs = append(errs, "intore_group_id must be a valid id")
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		errs = append(errs, "starts_at must be an RFC 3339 timestamp")
	}
	var endsAt *time.Time
	if req.EndsAt != nil {
		ts, err := time.Parse(time.RFC3339, *req.EndsAt)
		if err != nil {
			errs = append(errs, "ends_at must be an RFC 3339 timestamp")
		} else if !ts.After(startsAt) {
			errs = append(errs, "ends_at must be after starts_at")
		} else {
			endsAt = &ts
		}
	}
	if len(errs) > 0 {
		respond.Invalid(w, "Validation failed", errs)
		return
	}

	group, err := h.Groups.GetByID(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.Invalid(w, "Validation failed", []string{"intore group does not exist"})
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load intore group")
		return
	}

	actor := h.Resolver.Actor(r)
	if !authz.CanManageGroup(actor, group) {
		respond.Fail(w, http.StatusForbidden, "You may not manage this intore group")
		return
	}

	activity := models.Activity{
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		Location:      strings.TrimSpace(req.Location),
		IntoreGroupID: group.ID,
		CellID:        group.CellID,
		SectorID:      group.SectorID,
		DistrictID:    group.DistrictID,
		StartsAt:      startsAt.UTC(),
		EndsAt:        endsAt,
		CreatedBy:     actor.ID,
	}

	created, err := h.Activities.Create(r.Context(), activity)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to create activity")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionCreate, "activity", created.ID,
		shared.Actor(r), nil, snapshot(created), "activity created")
	respond.Created(w, "Activity created", created)
}

// ServeGet handles GET /activities/{activityID}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "activityID")
	if !ok {
		respond.NotFound(w, "Activity not found")
		return
	}
	activity, err := h.Activities.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Activity not found")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load activity")
		return
	}
	respond.OK(w, "", activity)
}

// load fetches the activity and enforces scope via the owning group.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (models.Activity, bool) {
	id, ok := shared.IDParam(r, "activityID")
	if !ok {
		respond.NotFound(w, "Activity not found")
		return models.Activity{}, false
	}
	activity, err := h.Activities.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Activity not found")
			return models.Activity{}, false
		}
		h.ErrLog.Internal(w, r, err, "failed to load activity")
		return models.Activity{}, false
	}
	group, err := h.Groups.GetByID(r.Context(), activity.IntoreGroupID)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to load owning group")
		return models.Activity{}, false
	}
	if !authz.CanManageGroup(h.Resolver.Actor(r), group) {
		respond.Fail(w, http.StatusForbidden, "You may not manage this intore group")
		return models.Activity{}, false
	}
	return activity, true
}

type updateRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	StartsAt    string  `json:"starts_at"`
	EndsAt      *string `json:"ends_at"`
}

// ServeUpdate handles PATCH /activities/{activityID}. The owning group is
// immutable; schedule and descriptive fields may change.
func (h *Handler) ServeUpdate(w http.ResponseWriter, r *http.Request) {
	before, ok := h.load(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	upd := models.Activity{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
	}
	var errs []string
	if req.StartsAt != "" {
		ts, err := time.Parse(time.RFC3339, req.StartsAt)
		if err != nil {
			errs = append(errs, "starts_at must be an RFC 3339 timestamp")
		} else {
			upd.StartsAt = ts.UTC()
		}
	}
	if req.EndsAt != nil {
		ts, err := time.Parse(time.RFC3339, *req.EndsAt)
		if err != nil {
			errs = append(errs, "ends_at must be an RFC 3339 timestamp")
		} else {
			upd.EndsAt = &ts
		}
	}
	if len(errs) > 0 {
		respond.Invalid(w, "Validation failed", errs)
		return
	}

	if err := h.Activities.Update(r.Context(), before.ID, upd); err != nil {
		h.ErrLog.Internal(w, r, err, "failed to update activity")
		return
	}

	after, err := h.Activities.GetByID(r.Context(), before.ID)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to reload activity")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionUpdate, "activity", before.ID,
		shared.Actor(r), snapshot(before), snapshot(after), "activity updated")
	respond.OK(w, "Activity updated", after)
}

type statusRequest struct {
	Status string `json:"status"`
}

// ServeStatus handles PUT /activities/{activityID}/status. Moves between
// scheduled, completed, and cancelled.
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	before, ok := h.load(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	switch req.Status {
	case activitystore.StatusScheduled, activitystore.StatusCompleted, activitystore.StatusCancelled:
	default:
		respond.Invalid(w, "Validation failed", []string{"status must be scheduled, completed, or cancelled"})
		return
	}

	if err := h.Activities.SetStatus(r.Context(), before.ID, req.Status); err != nil {
		h.ErrLog.Internal(w, r, err, "failed to update activity status")
		return
	}

	after := before
	after.Status = req.Status
	h.Audit.Mutation(r.Context(), r, audit.ActionStatusChange, "activity", before.ID,
		shared.Actor(r), snapshot(before), snapshot(after), "activity status changed")
	respond.OK(w, "Activity status updated", nil)
}

// ServeUpcoming handles GET /activities/upcoming: the next scheduled
// activities, optionally scoped by the same hierarchy filters as the list.
func (h *Handler) ServeUpcoming(w http.ResponseWriter, r *http.Request) {
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

	rows, err := h.Activities.Upcoming(r.Context(), filter, time.Now().UTC(), paging.PageSize)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to list upcoming activities")
		return
	}
	respond.OK(w, "", map[string]any{"activities": rows})
}
