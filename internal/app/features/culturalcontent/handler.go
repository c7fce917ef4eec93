// internal/app/features/culturalcontent/handler.go
package culturalcontent

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
	contentstore "github.com/intorehq/intorehub/internal/app/store/culturalcontent"
	groupstore "github.com/intorehq/intorehub/internal/app/store/intoregroups"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/app/system/authz"
	"github.com/intorehq/intorehub/internal/app/system/htmlsanitize"
	"github.com/intorehq/intorehub/internal/app/system/paging"
	"github.com/intorehq/intorehub/internal/app/system/respond"
	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Handler serves cultural content records: songs, dances, poems, traditions,
// proverbs. Reading is public; curation is scoped to the owning group, or to
// admins for records without a group.
type Handler struct {
	Contents *contentstore.Store
	Groups   *groupstore.Store
	Resolver *authz.Resolver
	Audit    *auditlog.Logger
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

// NewHandler constructs a cultural content Handler.
func NewHandler(contents *contentstore.Store, groups *groupstore.Store, resolver *authz.Resolver, auditLog *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Contents: contents,
		Groups:   groups,
		Resolver: resolver,
		Audit:    auditLog,
		ErrLog:   errLog,
		Log:      logger,
	}
}

func isAdmin(role string) bool {
	switch role {
	case models.RoleSuperAdmin, models.RoleDistrictAdmin, models.RoleSectorAdmin, models.RoleCellAdmin:
		return true
	}
	return false
}

func snapshot(c models.CulturalContent) bson.M {
	m := bson.M{
		"title":    c.Title,
		"category": c.Category,
		"status":   c.Status,
	}
	if c.Language != "" {
		m["language"] = c.Language
	}
	if c.IntoreGroupID != nil {
		m["intore_group_id"] = c.IntoreGroupID.Hex()
	}
	return m
}

type listResponse struct {
	Contents []models.CulturalContent `json:"cultural_contents"`
	Paging   paging.Meta              `json:"paging"`
}

// ServeList handles GET /cultural-contents. Supports q, category, language,
// status, intore_group_id, and the standard paging parameters.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	p := paging.FromRequest(r)

	filter := bson.M{}
	if s := query.Get(r, "intore_group_id"); s != "" {
		id, ok := shared.ParseID(s)
		if !ok {
			respond.Invalid(w, "Validation failed", []string{"intore_group_id must be a valid id"})
			return
		}
		filter["intore_group_id"] = id
	}
	if c := query.Get(r, "category"); c != "" {
		filter["category"] = c
	}
	if l := query.Get(r, "language"); l != "" {
		filter["language"] = strings.ToLower(strings.TrimSpace(l))
	}
	if status := query.Get(r, "status"); status != "" {
		filter["status"] = status
	}
	if q := strings.TrimSpace(query.Get(r, "q")); q != "" {
		filter["title_ci"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(text.Fold(q))}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "title_ci", Value: 1}}).
		SetSkip(p.Offset).
		SetLimit(p.LimitPlusOne())
	rows, err := h.Contents.Find(r.Context(), filter, opts)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to list cultural contents")
		return
	}

	meta := paging.Trim(&rows, p)
	respond.OK(w, "", listResponse{Contents: rows, Paging: meta})
}

type createRequest struct {
	Title         string `json:"title"`
	Category      string `json:"category"`
	Body          string `json:"body"`
	Language      string `json:"language"`
	IntoreGroupID string `json:"intore_group_id"`
}

// ServeCreate handles POST /cultural-contents. The body is sanitized before
// storage; scripts and event handlers never reach the database.
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
	if !models.ValidContentCategory(req.Category) {
		errs = append(errs, "category must be song, dance, poem, tradition, or proverb")
	}
	body := htmlsanitize.Sanitize(req.Body)
	if strings.TrimSpace(body) == "" {
		errs = append(errs, "body is required")
	}
	if len(errs) > 0 {
		respond.Invalid(w, "Validation failed", errs)
		return
	}

	actor := h.Resolver.Actor(r)
	content := models.CulturalContent{
		Title:    strings.TrimSpace(req.Title),
		Category: req.Category,
		Body:     body,
		Language: strings.ToLower(strings.TrimSpace(req.Language)),
	}
	if actor != nil {
		content.CreatedBy = actor.ID
	}

	if req.IntoreGroupID != "" {
		groupID, ok := shared.ParseID(req.IntoreGroupID)
		if !ok {
			respond.Invalid(w, "Validation failed", []string{"intore_group_id must be a valid id"})
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
		if !authz.CanManageGroup(actor, group) && !authz.InGroup(actor, group.ID) {
			respond.Fail(w, http.StatusForbidden, "You may not add content for this intore group")
			return
		}
		content.IntoreGroupID = &group.ID
		content.CellID = &group.CellID
		content.SectorID = &group.SectorID
		content.DistrictID = &group.DistrictID
	} else if actor == nil || !isAdmin(actor.Role) {
		respond.Fail(w, http.StatusForbidden, "Only administrators may add ungrouped content")
		return
	}

	created, err := h.Contents.Create(r.Context(), content)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to create cultural content")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionCreate, "cultural_content", created.ID,
		shared.Actor(r), nil, snapshot(created), "cultural content created")
	respond.Created(w, "Cultural content created", created)
}

// ServeGet handles GET /cultural-contents/{contentID}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "contentID")
	if !ok {
		respond.NotFound(w, "Cultural content not found")
		return
	}
	content, err := h.Contents.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Cultural content not found")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load cultural content")
		return
	}
	respond.OK(w, "", content)
}

// load fetches a content record and enforces curation scope in one step.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (models.CulturalContent, bool) {
	id, ok := shared.IDParam(r, "contentID")
	if !ok {
		respond.NotFound(w, "Cultural content not found")
		return models.CulturalContent{}, false
	}
	content, err := h.Contents.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Cultural content not found")
			return models.CulturalContent{}, false
		}
		h.ErrLog.Internal(w, r, err, "failed to load cultural content")
		return models.CulturalContent{}, false
	}

	actor := h.Resolver.Actor(r)
	allowed := false
	if content.IntoreGroupID != nil {
		group, err := h.Groups.GetByID(r.Context(), *content.IntoreGroupID)
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			h.ErrLog.Internal(w, r, err, "failed to load owning group")
			return models.CulturalContent{}, false
		}
		allowed = err == nil && authz.CanManageGroup(actor, group)
	} else {
		allowed = actor != nil && isAdmin(actor.Role)
	}
	if !allowed {
		respond.Fail(w, http.StatusForbidden, "You may not curate this content")
		return models.CulturalContent{}, false
	}
	return content, true
}

type updateRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Body     string `json:"body"`
	Language string `json:"language"`
}

// ServeUpdate handles PATCH /cultural-contents/{contentID}.
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
	if req.Category != "" && !models.ValidContentCategory(req.Category) {
		respond.Invalid(w, "Validation failed", []string{"category must be song, dance, poem, tradition, or proverb"})
		return
	}

	upd := models.CulturalContent{
		Title:    strings.TrimSpace(req.Title),
		Category: req.Category,
		Body:     htmlsanitize.Sanitize(req.Body),
		Language: strings.ToLower(strings.TrimSpace(req.Language)),
	}
	if upd.Title == "" && upd.Category == "" && upd.Body == "" && upd.Language == "" {
		respond.Invalid(w, "Validation failed", []string{"nothing to update"})
		return
	}

	if err := h.Contents.Update(r.Context(), before.ID, upd); err != nil {
		h.ErrLog.Internal(w, r, err, "failed to update cultural content")
		return
	}

	after, err := h.Contents.GetByID(r.Context(), before.ID)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to reload cultural content")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionUpdate, "cultural_content", before.ID,
		shared.Actor(r), snapshot(before), snapshot(after), "cultural content updated")
	respond.OK(w, "Cultural content updated", after)
}

type statusRequest struct {
	Status string `json:"status"`
}

// ServeStatus handles PUT /cultural-contents/{contentID}/status.
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

	if err := h.Contents.SetStatus(r.Context(), before.ID, req.Status); err != nil {
		h.ErrLog.Internal(w, r, err, "failed to update cultural content status")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionStatusChange, "cultural_content", before.ID,
		shared.Actor(r), bson.M{"status": before.Status}, bson.M{"status": req.Status}, "cultural content status changed")
	respond.OK(w, "Cultural content status updated", nil)
}
