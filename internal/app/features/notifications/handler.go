// internal/app/features/notifications/handler.go
package notifications

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/google/uuid"
	uierrors "github.com/intorehq/intorehub/internal/app/features/errors"
	"github.com/intorehq/intorehub/internal/app/features/shared"
	"github.com/intorehq/intorehub/internal/app/store/audit"
	cellstore "github.com/intorehq/intorehub/internal/app/store/cells"
	groupstore "github.com/intorehq/intorehub/internal/app/store/intoregroups"
	notificationstore "github.com/intorehq/intorehub/internal/app/store/notifications"
	sectorstore "github.com/intorehq/intorehub/internal/app/store/sectors"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/app/system/authz"
	"github.com/intorehq/intorehub/internal/app/system/paging"
	"github.com/intorehq/intorehub/internal/app/system/respond"
	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Notification types.
const (
	TypeActivity     = "activity"
	TypeChat         = "chat"
	TypeSystem       = "system"
	TypeAnnouncement = "announcement"
)

func isAdmin(role string) bool {
	switch role {
	case models.RoleSuperAdmin, models.RoleDistrictAdmin, models.RoleSectorAdmin, models.RoleCellAdmin:
		return true
	}
	return false
}

func validType(t string) bool {
	switch t {
	case TypeActivity, TypeChat, TypeSystem, TypeAnnouncement:
		return true
	}
	return false
}

// Handler serves in-app notifications. A notification targets either one
// recipient or exactly one hierarchy node; fan-out happens at read time, so
// scoped records carry only their single targeting reference.
type Handler struct {
	Notifications *notificationstore.Store
	Groups        *groupstore.Store
	Cells         *cellstore.Store
	Sectors       *sectorstore.Store
	Resolver      *authz.Resolver
	Audit         *auditlog.Logger
	ErrLog        *uierrors.ErrorLogger
	Log           *zap.Logger
}

// NewHandler constructs a notifications Handler.
func NewHandler(notifications *notificationstore.Store, groups *groupstore.Store, cells *cellstore.Store, sectors *sectorstore.Store, resolver *authz.Resolver, auditLog *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Notifications: notifications,
		Groups:        groups,
		Cells:         cells,
		Sectors:       sectors,
		Resolver:      resolver,
		Audit:         auditLog,
		ErrLog:        errLog,
		Log:           logger,
	}
}

type listResponse struct {
	Notifications []models.Notification `json:"notifications"`
}

// ServeList handles GET /notifications: the current user's notifications,
// direct plus hierarchy-scoped, newest first. Supports unread_only.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	actor := h.Resolver.Actor(r)
	if actor == nil {
		respond.Fail(w, http.StatusUnauthorized, "Sign in required")
		return
	}

	unreadOnly := query.Get(r, "unread_only") == "true"
	p := paging.FromRequest(r)

	rows, err := h.Notifications.ForUser(r.Context(), *actor, unreadOnly, p.Limit)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to list notifications")
		return
	}
	respond.OK(w, "", listResponse{Notifications: rows})
}

// ServeUnreadCount handles GET /notifications/unread-count.
func (h *Handler) ServeUnreadCount(w http.ResponseWriter, r *http.Request) {
	actor := h.Resolver.Actor(r)
	if actor == nil {
		respond.Fail(w, http.StatusUnauthorized, "Sign in required")
		return
	}

	n, err := h.Notifications.CountUnread(r.Context(), actor.ID)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to count unread notifications")
		return
	}
	respond.OK(w, "", map[string]int64{"unread": n})
}

// ServeMarkRead handles PUT /notifications/{notificationID}/read. Only the
// direct recipient may mark a notification read; scoped notifications have
// no per-user read state.
func (h *Handler) ServeMarkRead(w http.ResponseWriter, r *http.Request) {
	actor := h.Resolver.Actor(r)
	if actor == nil {
		respond.Fail(w, http.StatusUnauthorized, "Sign in required")
		return
	}
	id, ok := shared.IDParam(r, "notificationID")
	if !ok {
		respond.NotFound(w, "Notification not found")
		return
	}

	if err := h.Notifications.MarkRead(r.Context(), id, actor.ID); err != nil {
		h.ErrLog.Internal(w, r, err, "failed to mark notification read")
		return
	}
	respond.OK(w, "Notification marked read", nil)
}

type createRequest struct {
	Title         string `json:"title"`
	Body          string `json:"body"`
	Type          string `json:"type"`
	RecipientID   string `json:"recipient_id"`
	IntoreGroupID string `json:"intore_group_id"`
	CellID        string `json:"cell_id"`
	SectorID      string `json:"sector_id"`
	DistrictID    string `json:"district_id"`
	DedupeKey     string `json:"dedupe_key"`
}

// ServeCreate handles POST /notifications. Exactly one target must be set:
// a recipient or a single hierarchy node the actor may manage.
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
	if !validType(req.Type) {
		errs = append(errs, "type must be activity, chat, system, or announcement")
	}

	targets := 0
	for _, s := range []string{req.RecipientID, req.IntoreGroupID, req.CellID, req.SectorID, req.DistrictID} {
		if s != "" {
			targets++
		}
	}
	if targets != 1 {
		errs = append(errs, "exactly one of recipient_id, intore_group_id, cell_id, sector_id, district_id is required")
	}
	if len(errs) > 0 {
		respond.Invalid(w, "Validation failed", errs)
		return
	}

	actor := h.Resolver.Actor(r)
	n := models.Notification{
		Title:     strings.TrimSpace(req.Title),
		Body:      strings.TrimSpace(req.Body),
		Type:      req.Type,
		DedupeKey: req.DedupeKey,
	}
	if n.DedupeKey == "" {
		n.DedupeKey = uuid.NewString()
	}
	if actor != nil {
		n.CreatedBy = actor.ID
	}

	if ok := h.resolveTarget(w, r, actor, req, &n); !ok {
		return
	}

	created, err := h.Notifications.Create(r.Context(), n)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to create notification")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionCreate, "notification", created.ID,
		shared.Actor(r), nil, bson.M{
			"title": created.Title,
			"type":  created.Type,
		}, "notification created")
	respond.Created(w, "Notification created", created)
}

// resolveTarget parses the single target reference, checks the actor may
// notify that scope, and writes the reference into n. The authz check needs
// the node's parent chain, so scoped targets load their entity first.
func (h *Handler) resolveTarget(w http.ResponseWriter, r *http.Request, actor *models.User, req createRequest, n *models.Notification) bool {
	invalid := func(msg string) bool {
		respond.Invalid(w, "Validation failed", []string{msg})
		return false
	}
	forbidden := func() bool {
		respond.Fail(w, http.StatusForbidden, "You may not notify this scope")
		return false
	}

	switch {
	case req.RecipientID != "":
		id, ok := shared.ParseID(req.RecipientID)
		if !ok {
			return invalid("recipient_id must be a valid id")
		}
		if actor == nil || !isAdmin(actor.Role) {
			return forbidden()
		}
		n.RecipientID = &id
		return true

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
			return false
		}
		if !authz.CanManageGroup(actor, group) {
			return forbidden()
		}
		n.IntoreGroupID = &group.ID
		return true

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
			return false
		}
		if !authz.CanManageCell(actor, cell) {
			return forbidden()
		}
		n.CellID = &cell.ID
		return true

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
			return false
		}
		if !authz.CanManageSector(actor, sector) {
			return forbidden()
		}
		n.SectorID = &sector.ID
		return true

	default:
		id, ok := shared.ParseID(req.DistrictID)
		if !ok {
			return invalid("district_id must be a valid id")
		}
		if !authz.CanManageDistrict(actor, id) {
			return forbidden()
		}
		n.DistrictID = &id
		return true
	}
}
