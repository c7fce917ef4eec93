// internal/app/features/members/handler.go
package members

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
	userstore "github.com/intorehq/intorehub/internal/app/store/users"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/app/system/auth"
	"github.com/intorehq/intorehub/internal/app/system/authz"
	"github.com/intorehq/intorehub/internal/app/system/hierarchy"
	"github.com/intorehq/intorehub/internal/app/system/normalize"
	"github.com/intorehq/intorehub/internal/app/system/paging"
	"github.com/intorehq/intorehub/internal/app/system/respond"
	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Handler serves member administration. Members are created by admins with
// a full hierarchy chain; the chain is re-validated on every write.
type Handler struct {
	Users     *userstore.Store
	Hierarchy *hierarchy.Validator
	Resolver  *authz.Resolver
	Audit     *auditlog.Logger
	ErrLog    *uierrors.ErrorLogger
	Log       *zap.Logger
}

// NewHandler constructs a members Handler.
func NewHandler(users *userstore.Store, validator *hierarchy.Validator, resolver *authz.Resolver, auditLog *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:     users,
		Hierarchy: validator,
		Resolver:  resolver,
		Audit:     auditLog,
		ErrLog:    errLog,
		Log:       logger,
	}
}

func snapshot(u models.User) bson.M {
	m := bson.M{
		"full_name": u.FullName,
		"email":     u.Email,
		"role":      u.Role,
		"status":    u.Status,
	}
	if u.Phone != "" {
		m["phone"] = u.Phone
	}
	if u.Hierarchy.DistrictID != nil {
		m["district_id"] = u.Hierarchy.DistrictID.Hex()
	}
	if u.Hierarchy.SectorID != nil {
		m["sector_id"] = u.Hierarchy.SectorID.Hex()
	}
	if u.Hierarchy.CellID != nil {
		m["cell_id"] = u.Hierarchy.CellID.Hex()
	}
	if u.IntoreGroupID != nil {
		m["intore_group_id"] = u.IntoreGroupID.Hex()
	}
	return m
}

// memberScope builds the cell-shaped scope a member's chain lives in.
func memberScope(h models.Hierarchy) models.Cell {
	cell := models.Cell{}
	if h.CellID != nil {
		cell.ID = *h.CellID
	}
	if h.SectorID != nil {
		cell.SectorID = *h.SectorID
	}
	if h.DistrictID != nil {
		cell.DistrictID = *h.DistrictID
	}
	return cell
}

type listResponse struct {
	Members []models.User `json:"members"`
	Paging  paging.Meta   `json:"paging"`
}

// ServeList handles GET /members. Supports district_id, sector_id, cell_id,
// intore_group_id, q, status, and the standard paging parameters.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	p := paging.FromRequest(r)

	filter := bson.M{"role": models.RoleMember}
	for param, field := range map[string]string{
		"district_id":     "hierarchy.district_id",
		"sector_id":       "hierarchy.sector_id",
		"cell_id":         "hierarchy.cell_id",
		"intore_group_id": "intore_group_id",
	} {
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
		filter["full_name_ci"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(text.Fold(q))}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "full_name_ci", Value: 1}}).
		SetSkip(p.Offset).
		SetLimit(p.LimitPlusOne())
	rows, err := h.Users.Find(r.Context(), filter, opts)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to list members")
		return
	}

	meta := paging.Trim(&rows, p)
	respond.OK(w, "", listResponse{Members: rows, Paging: meta})
}

type createRequest struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	DistrictID string `json:"district_id"`
	SectorID   string `json:"sector_id"`
	CellID     string `json:"cell_id"`
}

// ServeCreate handles POST /members. The full district/sector/cell chain is
// required for the member role and is validated before the account exists.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var errs []string
	if strings.TrimSpace(req.FullName) == "" {
		errs = append(errs, "full_name is required")
	}
	if normalize.Email(req.Email) == "" {
		errs = append(errs, "email is required")
	}
	if len(req.Password) < 8 {
		errs = append(errs, "password must be at least 8 characters")
	}
	districtID, ok := shared.ParseOptionalID(req.DistrictID)
	if !ok {
		errs = append(errs, "district_id must be a valid id")
	}
	sectorID, ok := shared.ParseOptionalID(req.SectorID)
	if !ok {
		errs = append(errs, "sector_id must be a valid id")
	}
	cellID, ok := shared.ParseOptionalID(req.CellID)
	if !ok {
		errs = append(errs, "cell_id must be a valid id")
	}
	if len(errs) > 0 {
		respond.Invalid(w, "Validation failed", errs)
		return
	}

	result, err := h.Hierarchy.Validate(r.Context(), models.RoleMember, districtID, sectorID, cellID)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to validate member hierarchy")
		return
	}
	if !result.IsValid {
		respond.Invalid(w, "Hierarchy validation failed", result.Errors)
		return
	}

	chain := models.Hierarchy{DistrictID: districtID, SectorID: sectorID, CellID: cellID}
	if !authz.CanManageCell(h.Resolver.Actor(r), memberScope(chain)) {
		respond.Fail(w, http.StatusForbidden, "You may not manage members in this cell")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to hash password")
		return
	}

	member, err := h.Users.Create(r.Context(), models.User{
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         models.RoleMember,
		Hierarchy:    chain,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			respond.Conflict(w, "A user with this email already exists")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to create member")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionCreate, "user", member.ID,
		shared.Actor(r), nil, snapshot(member), "member created")
	respond.Created(w, "Member created", member)
}

// ServeGet handles GET /members/{memberID}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "memberID")
	if !ok {
		respond.NotFound(w, "Member not found")
		return
	}
	member, err := h.Users.GetMemberByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Member not found")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load member")
		return
	}
	respond.OK(w, "", member)
}

// load fetches the member and enforces management scope in one step.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	id, ok := shared.IDParam(r, "memberID")
	if !ok {
		respond.NotFound(w, "Member not found")
		return nil, false
	}
	member, err := h.Users.GetMemberByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Member not found")
			return nil, false
		}
		h.ErrLog.Internal(w, r, err, "failed to load member")
		return nil, false
	}
	if !authz.CanManageCell(h.Resolver.Actor(r), memberScope(member.Hierarchy)) {
		respond.Fail(w, http.StatusForbidden, "You may not manage members in this cell")
		return nil, false
	}
	return member, true
}

type updateRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// ServeUpdate handles PATCH /members/{memberID}. Hierarchy moves are not
// supported here; a member changes residence by being recreated under the
// new chain.
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
	if req.FullName == "" && req.Email == "" && req.Phone == "" {
		respond.Invalid(w, "Validation failed", []string{"nothing to update"})
		return
	}

	if req.Email != "" {
		taken, err := h.Users.EmailExistsForOther(r.Context(), req.Email, before.ID)
		if err != nil {
			h.ErrLog.Internal(w, r, err, "failed to check email uniqueness")
			return
		}
		if taken {
			respond.Conflict(w, "A user with this email already exists")
			return
		}
	}

	if err := h.Users.UpdateMember(r.Context(), before.ID, userstore.MemberUpdate{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
	}); err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			respond.Conflict(w, "A user with this email already exists")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to update member")
		return
	}

	after, err := h.Users.GetMemberByID(r.Context(), before.ID)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to reload member")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionUpdate, "user", before.ID,
		shared.Actor(r), snapshot(*before), snapshot(*after), "member updated")
	respond.OK(w, "Member updated", after)
}

type statusRequest struct {
	Status string `json:"status"`
}

// ServeStatus handles PUT /members/{memberID}/status.
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

	if err := h.Users.SetStatus(r.Context(), before.ID, req.Status); err != nil {
		h.ErrLog.Internal(w, r, err, "failed to update member status")
		return
	}

	after := *before
	after.Status = req.Status
	h.Audit.Mutation(r.Context(), r, audit.ActionStatusChange, "user", before.ID,
		shared.Actor(r), snapshot(*before), snapshot(after), "member status changed")
	respond.OK(w, "Member status updated", nil)
}
