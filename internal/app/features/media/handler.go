// internal/app/features/media/handler.go
package media

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/waffle/pantry/query"
	uierrors "github.com/intorehq/intorehub/internal/app/features/errors"
	"github.com/intorehq/intorehub/internal/app/features/shared"
	activitystore "github.com/intorehq/intorehub/internal/app/store/activities"
	"github.com/intorehq/intorehub/internal/app/store/audit"
	groupstore "github.com/intorehq/intorehub/internal/app/store/intoregroups"
	mediastore "github.com/intorehq/intorehub/internal/app/store/media"
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

// Handler serves media metadata records. File bytes live in external
// storage; only the metadata and the minted object key pass through here.
type Handler struct {
	Media      *mediastore.Store
	Activities *activitystore.Store
	Groups     *groupstore.Store
	Resolver   *authz.Resolver
	Audit      *auditlog.Logger
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger
}

// NewHandler constructs a media Handler.
func NewHandler(media *mediastore.Store, activities *activitystore.Store, groups *groupstore.Store, resolver *authz.Resolver, auditLog *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Media:      media,
		Activities: activities,
		Groups:     groups,
		Resolver:   resolver,
		Audit:      auditLog,
		ErrLog:     errLog,
		Log:        logger,
	}
}

func validMediaType(t string) bool {
	switch t {
	case models.MediaPhoto, models.MediaVideo, models.MediaAudio, models.MediaDocument:
		return true
	}
	return false
}

type listResponse struct {
	Media  []models.Media `json:"media"`
	Paging paging.Meta    `json:"paging"`
}

// ServeList handles GET /media. Supports activity_id, intore_group_id,
// type, status, and the standard paging parameters.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	p := paging.FromRequest(r)

	filter := bson.M{}
	for _, param := range []string{"activity_id", "intore_group_id"} {
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
	if status := query.Get(r, "status"); status != "" {
		filter["status"] = status
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(p.Offset).
		SetLimit(p.LimitPlusOne())
	rows, err := h.Media.Find(r.Context(), filter, opts)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to list media")
		return
	}

	meta := paging.Trim(&rows, p)
	respond.OK(w, "", listResponse{Media: rows, Paging: meta})
}

type createRequest struct {
	Title      string `json:"title"`
	Type       string `json:"type"`
	URL        string `json:"url"`
	SizeBytes  int64  `json:"size_bytes"`
	ActivityID string `json:"activity_id"`
	GroupID    string `json:"intore_group_id"`
}

// ServeCreate handles POST /media. The record is anchored to an activity
// or directly to an intore group; hierarchy references are copied from the
// anchor.
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
	if !validMediaType(req.Type) {
		errs = append(errs, "type must be photo, video, audio, or document")
	}
	if req.ActivityID == "" && req.GroupID == "" {
		errs = append(errs, "activity_id or intore_group_id is required")
	}
	if len(errs) > 0 {
		respond.Invalid(w, "Validation failed", errs)
		return
	}

	actor := h.Resolver.Actor(r)
	media := models.Media{
		Title:     strings.TrimSpace(req.Title),
		Type:      req.Type,
		URL:       strings.TrimSpace(req.URL),
		SizeBytes: req.SizeBytes,
	}
	if actor != nil {
		media.UploadedBy = actor.ID
	}

	var group models.IntoreGroup
	if req.ActivityID != "" {
		activityID, ok := shared.ParseID(req.ActivityID)
		if !ok {
			respond.Invalid(w, "Validation failed", []string{"activity_id must be a valid id"})
			return
		}
		activity, err := h.Activities.GetByID(r.Context(), activityID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respond.Invalid(w, "Validation failed", []string{"activity does not exist"})
				return
			}
			h.ErrLog.Internal(w, r, err, "failed to load activity")
			return
		}
		media.ActivityID = &activity.ID
		media.IntoreGroupID = &activity.IntoreGroupID
		media.CellID = &activity.CellID
		media.SectorID = &activity.SectorID
		media.DistrictID = &activity.DistrictID

		group, err = h.Groups.GetByID(r.Context(), activity.IntoreGroupID)
		if err != nil {
			h.ErrLog.Internal(w, r, err, "failed to load owning group")
			return
		}
	} else {
		groupID, ok := shared.ParseID(req.GroupID)
		if !ok {
			respond.Invalid(w, "Validation failed", []string{"intore_group_id must be a valid id"})
			return
		}
		var err error
		group, err = h.Groups.GetByID(r.Context(), groupID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respond.Invalid(w, "Validation failed", []string{"intore group does not exist"})
				return
			}
			h.ErrLog.Internal(w, r, err, "failed to load intore group")
			return
		}
		media.IntoreGroupID = &group.ID
		media.CellID = &group.CellID
		media.SectorID = &group.SectorID
		media.DistrictID = &group.DistrictID
	}

	if !authz.CanManageGroup(actor, group) && !authz.InGroup(actor, group.ID) {
		respond.Fail(w, http.StatusForbidden, "You may not add media for this intore group")
		return
	}

	created, err := h.Media.Create(r.Context(), media)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to create media record")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionCreate, "media", created.ID,
		shared.Actor(r), nil, bson.M{
			"title":      created.Title,
			"type":       created.Type,
			"object_key": created.ObjectKey,
		}, "media record created")
	respond.Created(w, "Media record created", created)
}

// ServeGet handles GET /media/{mediaID}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "mediaID")
	if !ok {
		respond.NotFound(w, "Media not found")
		return
	}
	media, err := h.Media.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Media not found")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load media")
		return
	}
	respond.OK(w, "", media)
}

type statusRequest struct {
	Status string `json:"status"`
}

// ServeStatus handles PUT /media/{mediaID}/status. Flagging media hides it
// without losing the record.
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "mediaID")
	if !ok {
		respond.NotFound(w, "Media not found")
		return
	}
	media, err := h.Media.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Media not found")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load media")
		return
	}

	if media.IntoreGroupID != nil {
		group, err := h.Groups.GetByID(r.Context(), *media.IntoreGroupID)
		if err == nil && !authz.CanManageGroup(h.Resolver.Actor(r), group) {
			respond.Fail(w, http.StatusForbidden, "You may not manage media for this intore group")
			return
		}
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

	if err := h.Media.SetStatus(r.Context(), id, req.Status); err != nil {
		h.ErrLog.Internal(w, r, err, "failed to update media status")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionStatusChange, "media", id,
		shared.Actor(r), bson.M{"status": media.Status}, bson.M{"status": req.Status}, "media status changed")
	respond.OK(w, "Media status updated", nil)
}
