// internal/app/features/cells/handler.go
package cells

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
	cellstore "github.com/intorehq/intorehub/internal/app/store/cells"
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

// Handler serves cell administration.
type Handler struct {
	Cells     *cellstore.Store
	Hierarchy *hierarchy.Validator
	Resolver  *authz.Resolver
	Cascade   *cascade.Synchronizer
	Audit     *auditlog.Logger
	ErrLog    *uierrors.ErrorLogger
	Log       *zap.Logger
}

// NewHandler constructs a cells Handler.
func NewHandler(cells *cellstore.Store, validator *hierarchy.Validator, resolver *authz.Resolver, sync *cascade.Synchronizer, auditLog *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Cells:     cells,
		Hierarchy: validator,
		Resolver:  resolver,
		Cascade:   sync,
		Audit:     auditLog,
		ErrLog:    errLog,
		Log:       logger,
	}
}

func snapshot(c models.Cell) bson.M {
	m := bson.M{
		"name":        c.Name,
		"code":        c.Code,
		"sector_id":   c.SectorID.Hex(),
		"district_id": c.DistrictID.Hex(),
		"status":      c.Status,
	}
	if c.AdminID != nil {
		m["admin_id"] = c.AdminID.Hex()
	}
	return m
}

type listResponse struct {
	Cells  []models.Cell `json:"cells"`
	Paging paging.Meta   `json:"paging"`
}

// ServeList handles GET /cells. Supports sector_id, district_id, q, status,
// and the standard paging parameters.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	p := paging.FromRequest(r)

	filter := bson.M{}
	for param, field := range map[string]string{"sector_id": "sector_id", "district_id": "district_id"} {
		if s := query.Get(r, param); s != "" {
			id, ok := shared.ParseID(s)
			if !ok {
				respond.Invalid(w, "Validation failed", []string{param + " must be a valid id"})
				return
			}
			filter[field] = id
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
	rows, err := h.Cells.Find(r.Context(), filter, opts)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to list cells")
		return
	}

	meta := paging.Trim(&rows, p)
	respond.OK(w, "", listResponse{Cells: rows, Paging: meta})
}

type createRequest struct {
	Name       string `json:"name"`
	Code       string `json:"code"`
	SectorID   string `json:"sector_id"`
	DistrictID string `json:"district_id"`
}

// ServeCreate handles POST /cells. district_id is optional: when omitted it
// is derived from the sector, and when supplied it must agree with the
// sector's own district.
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
	sectorID, ok := shared.ParseID(req.SectorID)
	if !ok {
		errs = append(errs, "sector_id must be a valid id")
	}
	districtID, ok := shared.ParseOptionalID(req.DistrictID)
	if !ok {
		errs = append(errs, "district_id must be a valid id")
	}
	if len(errs) > 0 {
		respond.Invalid(w, "Validation failed", errs)
		return
	}

	cell := models.Cell{
		Name:     strings.TrimSpace(req.Name),
		Code:     strings.ToUpper(strings.TrimSpace(req.Code)),
		SectorID: sectorID,
	}
	if districtID != nil {
		cell.DistrictID = *districtID
	}

	result, err := h.Hierarchy.ValidateCellParents(r.Context(), cell.SectorID, cell.DistrictID)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to validate cell parents")
		return
	}
	if !result.IsValid {
		respond.Invalid(w, "Hierarchy validation failed", result.Errors)
		return
	}

	if err := h.Cascade.FillCellParents(r.Context(), &cell); err != nil {
		if errors.Is(err, cascade.ErrParentNotFound) {
			respond.Invalid(w, "Hierarchy validation failed", []string{"sector does not exist"})
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to derive cell parents")
		return
	}

	sec := models.Sector{ID: cell.SectorID, DistrictID: cell.DistrictID}
	if !authz.CanManageSector(h.Resolver.Actor(r), sec) {
		respond.Fail(w, http.StatusForbidden, "You may not manage this sector")
		return
	}

	created, err := h.Cells.Create(r.Context(), cell)
	if err != nil {
		if errors.Is(err, cellstore.ErrDuplicateCode) {
			respond.Conflict(w, "A cell with this code already exists in the sector")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to create cell")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionCreate, "cell", created.ID,
		shared.Actor(r), nil, snapshot(created), "cell created")
	respond.Created(w, "Cell created", created)
}

// ServeGet handles GET /cells/{cellID}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "cellID")
	if !ok {
		respond.NotFound(w, "Cell not found")
		return
	}
	cell, err := h.Cells.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Cell not found")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load cell")
		return
	}
	respond.OK(w, "", cell)
}

// load fetches the cell and enforces management scope in one step.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (models.Cell, bool) {
	id, ok := shared.IDParam(r, "cellID")
	if !ok {
		respond.NotFound(w, "Cell not found")
		return models.Cell{}, false
	}
	cell, err := h.Cells.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Cell not found")
			return models.Cell{}, false
		}
		h.ErrLog.Internal(w, r, err, "failed to load cell")
		return models.Cell{}, false
	}
	if !authz.CanManageCell(h.Resolver.Actor(r), cell) {
		respond.Fail(w, http.StatusForbidden, "You may not manage this cell")
		return models.Cell{}, false
	}
	return cell, true
}

type updateRequest struct {
	Name string `json:"name"`
}

// ServeUpdate handles PATCH /cells/{cellID}. Code and parents are immutable.
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
	if strings.TrimSpace(req.Name) == "" {
		respond.Invalid(w, "Validation failed", []string{"name is required"})
		return
	}

	if err := h.Cells.Update(r.Context(), before.ID, models.Cell{Name: strings.TrimSpace(req.Name)}); err != nil {
		h.ErrLog.Internal(w, r, err, "failed to update cell")
		return
	}

	after, err := h.Cells.GetByID(r.Context(), before.ID)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to reload cell")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionUpdate, "cell", before.ID,
		shared.Actor(r), snapshot(before), snapshot(after), "cell updated")
	respond.OK(w, "Cell updated", after)
}

type statusRequest struct {
	Status string `json:"status"`
}

// ServeStatus handles PUT /cells/{cellID}/status.
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

	if err := h.Cells.SetStatus(r.Context(), before.ID, req.Status); err != nil {
		h.ErrLog.Internal(w, r, err, "failed to update cell status")
		return
	}

	after := before
	after.Status = req.Status
	h.Audit.Mutation(r.Context(), r, audit.ActionStatusChange, "cell", before.ID,
		shared.Actor(r), snapshot(before), snapshot(after), "cell status changed")
	respond.OK(w, "Cell status updated", nil)
}

type assignAdminRequest struct {
	UserID string `json:"user_id"`
}

// ServeAssignAdmin handles PUT /cells/{cellID}/admin. Only roles above the
// cell may hand it to a new admin.
func (h *Handler) ServeAssignAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "cellID")
	if !ok {
		respond.NotFound(w, "Cell not found")
		return
	}
	before, err := h.Cells.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Cell not found")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load cell")
		return
	}
	sec := models.Sector{ID: before.SectorID, DistrictID: before.DistrictID}
	if !authz.CanManageSector(h.Resolver.Actor(r), sec) {
		respond.Fail(w, http.StatusForbidden, "You may not assign admins in this sector")
		return
	}

	var req assignAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	userID, ok := shared.ParseID(req.UserID)
	if !ok {
		respond.Invalid(w, "Validation failed", []string{"user_id must be a valid id"})
		return
	}

	if err := h.Cascade.AssignCellAdmin(r.Context(), id, userID); err != nil {
		if errors.Is(err, cascade.ErrParentNotFound) {
			respond.Fail(w, http.StatusUnprocessableEntity, "Referenced cell or user does not exist")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to assign cell admin")
		return
	}

	after := before
	after.AdminID = &userID
	h.Audit.Mutation(r.Context(), r, audit.ActionAssignAdmin, "cell", id,
		shared.Actor(r), snapshot(before), snapshot(after), "cell admin assigned")
	respond.OK(w, "Cell admin assigned", nil)
}
