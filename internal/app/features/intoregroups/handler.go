// internal/app/features/intoregroups/handler.go
package intoregroups

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/text"
	uierrors "github.com/intorehq/intorehub/internal/app/features/errors"
	"github.com/intorehq/intorehub/internal/app/features/shared"
	"github.com/intorehq/intorehub/internal/app/store/audit"
	groupstore "github.com/intorehq/intorehub/internal/app/store/intoregroups"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/app/system/authz"
	"github.com/intorehq/intorehub/internal/app/system/cascade"
	"github.com/intorehq/intorehub/internal/app/system/hierarchy"
	"github.com/intorehq/intorehub/internal/app/system/paging"
	"github.com/intorehq/intorehub/internal/app/system/respond"
	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Handler serves intore group administration.
type Handler struct {
	Groups    *groupstore.Store
	Hierarchy *hierarchy.Validator
	Resolver  *authz.Resolver
	Cascade   *cascade.Synchronizer
	Audit     *auditlog.Logger
	ErrLog    *uierrors.ErrorLogger
	Log       *zap.Logger
}

// NewHandler constructs an intore groups Handler.
func NewHandler(groups *groupstore.Store, validator *hierarchy.Validator, resolver *authz.Resolver, sync *cascade.Synchronizer, auditLog *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Groups:    groups,
		Hierarchy: validator,
		Resolver:  resolver,
		Cascade:   sync,
		Audit:     auditLog,
		ErrLog:    errLog,
		Log:       logger,
	}
}

func snapshot(g models.IntoreGroup) bson.M {
	m := bson.M{
		"name":        g.Name,
		"code":        g.Code,
		"cell_id":     g.CellID.Hex(),
		"sector_id":   g.SectorID.Hex(),
		"district_id": g.DistrictID.Hex(),
		"status":      g.Status,
	}
	if g.LeaderID != nil {
		m["leader_id"] = g.LeaderID.Hex()
	}
	if g.Description != "" {
		m["description"] = g.Description
	}
	return m
}

type listResponse struct {
	Groups []models.IntoreGroup `json:"intore_groups"`
	Paging paging.Meta          `json:"paging"`
}

// ServeList handles GET /intore-groups. Supports cell_id, sector_id,
// district_id, q, status, and the standard paging parameters.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	p := paging.FromRequest(r)

	filter := bson.M{}
	for _, param := range []string{"cell_id", "sector_id", "district_id"} {
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
	if q := strings.TrimSpace(query.Get(r, "q")); q != "" {
		filter["name_ci"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(text.Fold(q))}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "name_ci", Value: 1}}).
		SetSkip(p.Offset).
		SetLimit(p.LimitPlusOne())
	rows, err := h.Groups.Find(r.Context(), filter, opts)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to list intore groups")
		return
	}

	meta := paging.Trim(&rows, p)
	respond.OK(w, "", listResponse{Groups: rows, Paging: meta})
}

type createRequest struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	CellID      string `json:"cell_id"`
	Description string `json:"description"`
}

// ServeCreate handles POST /intore-groups. Sector and district are always
// derived from the cell; they cannot be supplied.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var errs []string
	if strings.TrimSpace(req.Name) == "" {
		errs = append(errs, "name is required")
	}
	if strings.TrimSpace(req.Code) == "" {
		errs = append(errs, "code is required")
	}
	cellID, ok := shared.ParseID(req.CellID)
	if !ok {
		errs = append(errs, "cell_id must be a valid id")
	}
	if len(errs) > 0 {
		respond.Invalid(w, "Validation failed", errs)
		return
	}

	group := models.IntoreGroup{
		Name:        strings.TrimSpace(req.Name),
		Code:        strings.ToUpper(strings.TrimSpace(req.Code)),
		CellID:      cellID,
		Description: strings.TrimSpace(req.Description),
	}

	result, err := h.Hierarchy.ValidateGroupParents(r.Context(), group.CellID, group.SectorID, group.DistrictID)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to validate group parents")
		return
	}
	if !result.IsValid {
		respond.Invalid(w, "Hierarchy validation failed", result.Errors)
		return
	}

	if err := h.Cascade.FillGroupParents(r.Context(), &group); err != nil {
		if errors.Is(err, cascade.ErrParentNotFound) {
			respond.Invalid(w, "Hierarchy validation failed", []string{"cell does not exist"})
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to derive group parents")
		return
	}

	cell := models.Cell{ID: group.CellID, SectorID: group.SectorID, DistrictID: group.DistrictID}
	if !authz.CanManageCell(h.Resolver.Actor(r), cell) {
		respond.Fail(w, http.StatusForbidden, "You may not manage this cell")
		return
	}

	created, err := h.Groups.Create(r.Context(), group)
	if err != nil {
		if errors.Is(err, groupstore.ErrDuplicateCode) {
			respond.Conflict(w, "An intore group with this code already exists")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to create intore group")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionCreate, "intore_group", created.ID,
		shared.Actor(r), nil, snapshot(created), "intore group created")
	respond.Created(w, "Intore group created", created)
}

// ServeGet handles GET /intore-groups/{groupID}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "groupID")
	if !ok {
		respond.NotFound(w, "Intore group not found")
		return
	}
	group, err := h.Groups.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Intore group not found")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load intore group")
		return
	}
	respond.OK(w, "", group)
}

// load fetches the group and enforces management scope in one step.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (models.IntoreGroup, bool) {
	id, ok := shared.IDParam(r, "groupID")
	if !ok {
		respond.NotFound(w, "Intore group not found")
		return models.IntoreGroup{}, false
	}
	group, err := h.Groups.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Intore group not found")
			return models.IntoreGroup{}, false
		}
		h.ErrLog.Internal(w, r, err, "failed to load intore group")
		return models.IntoreGroup{}, false
	}
	if !authz.CanManageGroup(h.Resolver.Actor(r), group) {
		respond.Fail(w, http.StatusForbidden, "You may not manage this intore group")
		return models.IntoreGroup{}, false
	}
	return group, true
}

type updateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ServeUpdate handles PATCH /intore-groups/{groupID}. Code and parents are
// immutable; name and description may change.
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
	if strings.TrimSpace(req.Name) == "" && strings.TrimSpace(req.Description) == "" {
		respond.Invalid(w, "Validation failed", []string{"nothing to update"})
		return
	}

	if err := h.Groups.Update(r.Context(), before.ID, models.IntoreGroup{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	}); err != nil {
		h.ErrLog.Internal(w, r, err, "failed to update intore group")
		return
	}

	after, err := h.Groups.GetByID(r.Context(), before.ID)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to reload intore group")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionUpdate, "intore_group", before.ID,
		shared.Actor(r), snapshot(before), snapshot(after), "intore group updated")
	respond.OK(w, "Intore group updated", after)
}

type statusRequest struct {
	Status string `json:"status"`
}

// ServeStatus handles PUT /intore-groups/{groupID}/status.
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
	if req.Status != models.StatusActive && req.Status != models.StatusDisabled {
		respond.Invalid(w, "Validation failed", []string{"status must be active or disabled"})
		return
	}

	if err := h.Groups.SetStatus(r.Context(), before.ID, req.Status); err != nil {
		h.ErrLog.Internal(w, r, err, "failed to update intore group status")
		return
	}

	after := before
	after.Status = req.Status
	h.Audit.Mutation(r.Context(), r, audit.ActionStatusChange, "intore_group", before.ID,
		shared.Actor(r), snapshot(before), snapshot(after), "intore group status changed")
	respond.OK(w, "Intore group status updated", nil)
}

type assignLeaderRequest struct {
	UserID string `json:"user_id"`
}

// ServeAssignLeader handles PUT /intore-groups/{groupID}/leader. The
// leader's role is unchanged; only the group reference is written.
func (h *Handler) ServeAssignLeader(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "groupID")
	if !ok {
		respond.NotFound(w, "Intore group not found")
		return
	}
	before, err := h.Groups.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Intore group not found")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load intore group")
		return
	}
	cell := models.Cell{ID: before.CellID, SectorID: before.SectorID, DistrictID: before.DistrictID}
	if !authz.CanManageCell(h.Resolver.Actor(r), cell) {
		respond.Fail(w, http.StatusForbidden, "You may not assign leaders in this cell")
		return
	}

	var req assignLeaderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	userID, ok := shared.ParseID(req.UserID)
	if !ok {
		respond.Invalid(w, "Validation failed", []string{"user_id must be a valid id"})
		return
	}

	if err := h.Cascade.AssignGroupLeader(r.Context(), id, userID); err != nil {
		if errors.Is(err, cascade.ErrParentNotFound) {
			respond.Fail(w, http.StatusUnprocessableEntity, "Referenced group or user does not exist")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to assign group leader")
		return
	}

	after := before
	after.LeaderID = &userID
	h.Audit.Mutation(r.Context(), r, audit.ActionAssignLeader, "intore_group", id,
		shared.Actor(r), snapshot(before), snapshot(after), "intore group leader assigned")
	respond.OK(w, "Intore group leader assigned", nil)
}
