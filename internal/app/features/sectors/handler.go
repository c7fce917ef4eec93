// internal/app/features/sectors/handler.go
package sectors

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
	sectorstore "github.com/intorehq/intorehub/internal/app/store/sectors"
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

// Handler serves sector administration.
type Handler struct {
	Sectors   *sectorstore.Store
	Hierarchy *hierarchy.Validator
	Resolver  *authz.Resolver
	Cascade   *cascade.Synchronizer
	Audit     *auditlog.Logger
	ErrLog    *uierrors.ErrorLogger
	Log       *zap.Logger
}

// NewHandler constructs a sectors Handler.
func NewHandler(sectors *sectorstore.Store, validator *hierarchy.Validator, resolver *authz.Resolver, sync *cascade.Synchronizer, auditLog *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Sectors:   sectors,
		Hierarchy: validator,
		Resolver:  resolver,
		Cascade:   sync,
		Audit:     auditLog,
		ErrLog:    errLog,
		Log:       logger,
	}
}

func snapshot(s models.Sector) bson.M {
	m := bson.M{
		"name":        s.Name,
		"code":        s.Code,
		"district_id": s.DistrictID.Hex(),
		"status":      s.Status,
	}
	if s.AdminID != nil {
		m["admin_id"] = s.AdminID.Hex()
	}
	return m
}

type listResponse struct {
	Sectors []models.Sector `json:"sectors"`
	Paging  paging.Meta     `json:"paging"`
}

// ServeList handles GET /sectors. Supports district_id, q, status, and the
// standard paging parameters.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	p := paging.FromRequest(r)

	filter := bson.M{}
	if s := query.Get(r, "district_id"); s != "" {
		id, ok := shared.ParseID(s)
		if !ok {
			respond.Invalid(w, "Validation failed", []string{"district_id must be a valid id"})
			return
		}
		filter["district_id"] = id
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
	rows, err := h.Sectors.Find(r.Context(), filter, opts)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to list sectors")
		return
	}

	meta := paging.Trim(&rows, p)
	respond.OK(w, "", listResponse{Sectors: rows, Paging: meta})
}

type createRequest struct {
	Name       string `json:"name"`
	Code       string `json:"code"`
	DistrictID string `json:"district_id"`
}

// ServeCreate handles POST /sectors. The parent district must exist and the
// actor must be allowed to manage it.
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
	districtID, ok := shared.ParseID(req.DistrictID)
	if !ok {
		errs = append(errs, "district_id must be a valid id")
	}
	if len(errs) > 0 {
		respond.Invalid(w, "Validation failed", errs)
		return
	}

	result, err := h.Hierarchy.ValidateSectorParent(r.Context(), districtID)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to validate sector parent")
		return
	}
	if !result.IsValid {
		respond.Invalid(w, "Hierarchy validation failed", result.Errors)
		return
	}

	if !authz.CanManageDistrict(h.Resolver.Actor(r), districtID) {
		respond.Fail(w, http.StatusForbidden, "You may not manage this district")
		return
	}

	sector, err := h.Sectors.Create(r.Context(), models.Sector{
		Name:       strings.TrimSpace(req.Name),
		Code:       strings.ToUpper(strings.TrimSpace(req.Code)),
		DistrictID: districtID,
	})
	if err != nil {
		if errors.Is(err, sectorstore.ErrDuplicateCode) {
			respond.Conflict(w, "A sector with this code already exists in the district")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to create sector")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionCreate, "sector", sector.ID,
		shared.Actor(r), nil, snapshot(sector), "sector created")
	respond.Created(w, "Sector created", sector)
}

// ServeGet handles GET /sectors/{sectorID}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "sectorID")
	if !ok {
		respond.NotFound(w, "Sector not found")
		return
	}
	sector, err := h.Sectors.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Sector not found")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load sector")
		return
	}
	respond.OK(w, "", sector)
}

// load fetches the sector and enforces management scope in one step.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (models.Sector, bool) {
	id, ok := shared.IDParam(r, "sectorID")
	if !ok {
		respond.NotFound(w, "Sector not found")
		return models.Sector{}, false
	}
	sector, err := h.Sectors.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Sector not found")
			return models.Sector{}, false
		}
		h.ErrLog.Internal(w, r, err, "failed to load sector")
		return models.Sector{}, false
	}
	if !authz.CanManageSector(h.Resolver.Actor(r), sector) {
		respond.Fail(w, http.StatusForbidden, "You may not manage this sector")
		return models.Sector{}, false
	}
	return sector, true
}

type updateRequest struct {
	Name string `json:"name"`
}

// ServeUpdate handles PATCH /sectors/{sectorID}. Code and district are
// immutable after creation.
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

	if err := h.Sectors.Update(r.Context(), before.ID, models.Sector{Name: strings.TrimSpace(req.Name)}); err != nil {
		h.ErrLog.Internal(w, r, err, "failed to update sector")
		return
	}

	after, err := h.Sectors.GetByID(r.Context(), before.ID)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to reload sector")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionUpdate, "sector", before.ID,
		shared.Actor(r), snapshot(before), snapshot(after), "sector updated")
	respond.OK(w, "Sector updated", after)
}

type statusRequest struct {
	Status string `json:"status"`
}

// ServeStatus handles PUT /sectors/{sectorID}/status.
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

	if err := h.Sectors.SetStatus(r.Context(), before.ID, req.Status); err != nil {
		h.ErrLog.Internal(w, r, err, "failed to update sector status")
		return
	}

	after := before
	after.Status = req.Status
	h.Audit.Mutation(r.Context(), r, audit.ActionStatusChange, "sector", before.ID,
		shared.Actor(r), snapshot(before), snapshot(after), "sector status changed")
	respond.OK(w, "Sector status updated", nil)
}

type assignAdminRequest struct {
	UserID string `json:"user_id"`
}

// ServeAssignAdmin handles PUT /sectors/{sectorID}/admin. Only roles above
// the sector may hand it to a new admin.
func (h *Handler) ServeAssignAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "sectorID")
	if !ok {
		respond.NotFound(w, "Sector not found")
		return
	}
	before, err := h.Sectors.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Sector not found")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load sector")
		return
	}
	if !authz.CanManageDistrict(h.Resolver.Actor(r), before.DistrictID) {
		respond.Fail(w, http.StatusForbidden, "You may not assign admins in this district")
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

	if err := h.Cascade.AssignSectorAdmin(r.Context(), id, userID); err != nil {
		if errors.Is(err, cascade.ErrParentNotFound) {
			respond.Fail(w, http.StatusUnprocessableEntity, "Referenced sector or user does not exist")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to assign sector admin")
		return
	}

	after := before
	after.AdminID = &userID
	h.Audit.Mutation(r.Context(), r, audit.ActionAssignAdmin, "sector", id,
		shared.Actor(r), snapshot(before), snapshot(after), "sector admin assigned")
	respond.OK(w, "Sector admin assigned", nil)
}
