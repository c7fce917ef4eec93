// internal/app/features/districts/handler.go
package districts

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
	districtstore "github.com/intorehq/intorehub/internal/app/store/districts"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/app/system/cascade"
	"github.com/intorehq/intorehub/internal/app/system/paging"
	"github.com/intorehq/intorehub/internal/app/system/respond"
	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Handler serves district administration.
type Handler struct {
	Districts *districtstore.Store
	Cascade   *cascade.Synchronizer
	Audit     *auditlog.Logger
	ErrLog    *uierrors.ErrorLogger
	Log       *zap.Logger
}

// NewHandler constructs a districts Handler.
func NewHandler(districts *districtstore.Store, sync *cascade.Synchronizer, auditLog *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Districts: districts,
		Cascade:   sync,
		Audit:     auditLog,
		ErrLog:    errLog,
		Log:       logger,
	}
}

func snapshot(d models.District) bson.M {
	m := bson.M{
		"name":   d.Name,
		"code":   d.Code,
		"status": d.Status,
	}
	if d.AdminID != nil {
		m["admin_id"] = d.AdminID.Hex()
	}
	return m
}

type listResponse struct {
	Districts []models.District `json:"districts"`
	Paging    paging.Meta       `json:"paging"`
}

// ServeList handles GET /districts. Supports q (name search), status, and
// the standard paging parameters.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	p := paging.FromRequest(r)

	filter := bson.M{}
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
	rows, err := h.Districts.Find(r.Context(), filter, opts)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to list districts")
		return
	}

	meta := paging.Trim(&rows, p)
	respond.OK(w, "", listResponse{Districts: rows, Paging: meta})
}

type createRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// ServeCreate handles POST /districts.
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
	if len(errs) > 0 {
		respond.Invalid(w, "Validation failed", errs)
		return
	}

	district, err := h.Districts.Create(r.Context(), models.District{
		Name: strings.TrimSpace(req.Name),
		Code: strings.ToUpper(strings.TrimSpace(req.Code)),
	})
	if err != nil {
		if errors.Is(err, districtstore.ErrDuplicateCode) {
			respond.Conflict(w, "A district with this code already exists")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to create district")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionCreate, "district", district.ID,
		shared.Actor(r), nil, snapshot(district), "district created")
	respond.Created(w, "District created", district)
}

// ServeGet handles GET /districts/{districtID}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "districtID")
	if !ok {
		respond.NotFound(w, "District not found")
		return
	}
	district, err := h.Districts.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "District not found")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load district")
		return
	}
	respond.OK(w, "", district)
}

type updateRequest struct {
	Name string `json:"name"`
}

// ServeUpdate handles PATCH /districts/{districtID}. Only the name is
// mutable; codes are permanent and admin assignment has its own endpoint.
func (h *Handler) ServeUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "districtID")
	if !ok {
		respond.NotFound(w, "District not found")
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

	before, err := h.Districts.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "District not found")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load district")
		return
	}

	if err := h.Districts.Update(r.Context(), id, models.District{Name: strings.TrimSpace(req.Name)}); err != nil {
		h.ErrLog.Internal(w, r, err, "failed to update district")
		return
	}

	after, err := h.Districts.GetByID(r.Context(), id)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to reload district")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionUpdate, "district", id,
		shared.Actor(r), snapshot(before), snapshot(after), "district updated")
	respond.OK(w, "District updated", after)
}

type statusRequest struct {
	Status string `json:"status"`
}

// ServeStatus handles PUT /districts/{districtID}/status.
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "districtID")
	if !ok {
		respond.NotFound(w, "District not found")
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

	before, err := h.Districts.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "District not found")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load district")
		return
	}

	if err := h.Districts.SetStatus(r.Context(), id, req.Status); err != nil {
		h.ErrLog.Internal(w, r, err, "failed to update district status")
		return
	}

	after := before
	after.Status = req.Status
	h.Audit.Mutation(r.Context(), r, audit.ActionStatusChange, "district", id,
		shared.Actor(r), snapshot(before), snapshot(after), "district status changed")
	respond.OK(w, "District status updated", nil)
}

type assignAdminRequest struct {
	UserID string `json:"user_id"`
}

// ServeAssignAdmin handles PUT /districts/{districtID}/admin. The target
// user is promoted to district_admin; a replaced admin is demoted.
func (h *Handler) ServeAssignAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "districtID")
	if !ok {
		respond.NotFound(w, "District not found")
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

	before, err := h.Districts.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "District not found")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load district")
		return
	}

	if err := h.Cascade.AssignDistrictAdmin(r.Context(), id, userID); err != nil {
		if errors.Is(err, cascade.ErrParentNotFound) {
			respond.Fail(w, http.StatusUnprocessableEntity, "Referenced district or user does not exist")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to assign district admin")
		return
	}

	after := before
	after.AdminID = &userID
	h.Audit.Mutation(r.Context(), r, audit.ActionAssignAdmin, "district", id,
		shared.Actor(r), snapshot(before), snapshot(after), "district admin assigned")
	respond.OK(w, "District admin assigned", nil)
}
