// internal/app/features/chat/handler.go
package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/query"
	uierrors "github.com/intorehq/intorehub/internal/app/features/errors"
	"github.com/intorehq/intorehub/internal/app/features/shared"
	"github.com/intorehq/intorehub/internal/app/store/audit"
	chatstore "github.com/intorehq/intorehub/internal/app/store/chat"
	groupstore "github.com/intorehq/intorehub/internal/app/store/intoregroups"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/app/system/authz"
	"github.com/intorehq/intorehub/internal/app/system/htmlsanitize"
	"github.com/intorehq/intorehub/internal/app/system/paging"
	"github.com/intorehq/intorehub/internal/app/system/respond"
	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Handler serves chat groups and their messages. A chat group is bound to
// one intore group; members and the group's managers may participate.
type Handler struct {
	Chat     *chatstore.Store
	Groups   *groupstore.Store
	Resolver *authz.Resolver
	Audit    *auditlog.Logger
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

// NewHandler constructs a chat Handler.
func NewHandler(chat *chatstore.Store, groups *groupstore.Store, resolver *authz.Resolver, auditLog *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Chat:     chat,
		Groups:   groups,
		Resolver: resolver,
		Audit:    auditLog,
		ErrLog:   errLog,
		Log:      logger,
	}
}

// owningGroup resolves the intore group a chat group is bound to.
func (h *Handler) owningGroup(r *http.Request, chat models.ChatGroup) (models.IntoreGroup, error) {
	if chat.IntoreGroupID == nil {
		return models.IntoreGroup{}, mongo.ErrNoDocuments
	}
	return h.Groups.GetByID(r.Context(), *chat.IntoreGroupID)
}

// canParticipate reports whether a user may read or post in a chat group:
// intore group members plus anyone who can manage the owning group.
func canParticipate(u *models.User, chat models.ChatGroup, owning models.IntoreGroup) bool {
	if chat.IntoreGroupID != nil && authz.InGroup(u, *chat.IntoreGroupID) {
		return true
	}
	return authz.CanManageGroup(u, owning)
}

type listResponse struct {
	ChatGroups []models.ChatGroup `json:"chat_groups"`
	Paging     paging.Meta        `json:"paging"`
}

// ServeListGroups handles GET /chat/groups. Supports intore_group_id,
// status, and the standard paging parameters.
func (h *Handler) ServeListGroups(w http.ResponseWriter, r *http.Request) {
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
	if status := query.Get(r, "status"); status != "" {
		filter["status"] = status
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "name_ci", Value: 1}}).
		SetSkip(p.Offset).
		SetLimit(p.LimitPlusOne())
	rows, err := h.Chat.FindGroups(r.Context(), filter, opts)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to list chat groups")
		return
	}

	meta := paging.Trim(&rows, p)
	respond.OK(w, "", listResponse{ChatGroups: rows, Paging: meta})
}

type createGroupRequest struct {
	Name          string `json:"name"`
	IntoreGroupID string `json:"intore_group_id"`
}

// ServeCreateGroup handles POST /chat/groups. Each intore group carries at
// most one chat group; hierarchy references are copied from the group.
func (h *Handler) ServeCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var errs []string
	if strings.TrimSpace(req.Name) == "" {
		errs = append(errs, "name is required")
	}
	groupID, ok := shared.ParseID(req.IntoreGroupID)
	if !ok {
		errs = append(errs, "intore_group_id must be a valid id")
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

	existing, err := h.Chat.GroupForIntoreGroup(r.Context(), group.ID)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to check for existing chat group")
		return
	}
	if existing != nil {
		respond.Conflict(w, "This intore group already has a chat group")
		return
	}

	chat := models.ChatGroup{
		Name:          strings.TrimSpace(req.Name),
		IntoreGroupID: &group.ID,
		CellID:        &group.CellID,
		SectorID:      &group.SectorID,
		DistrictID:    &group.DistrictID,
	}
	if actor != nil {
		chat.CreatedBy = actor.ID
	}

	created, err := h.Chat.CreateGroup(r.Context(), chat)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to create chat group")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionCreate, "chat_group", created.ID,
		shared.Actor(r), nil, bson.M{
			"name":            created.Name,
			"intore_group_id": group.ID.Hex(),
		}, "chat group created")
	respond.Created(w, "Chat group created", created)
}

// load fetches a chat group with its owning intore group and enforces
// participation in one step.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (models.ChatGroup, models.IntoreGroup, bool) {
	id, ok := shared.IDParam(r, "chatGroupID")
	if !ok {
		respond.NotFound(w, "Chat group not found")
		return models.ChatGroup{}, models.IntoreGroup{}, false
	}
	chat, err := h.Chat.GetGroupByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Chat group not found")
			return models.ChatGroup{}, models.IntoreGroup{}, false
		}
		h.ErrLog.Internal(w, r, err, "failed to load chat group")
		return models.ChatGroup{}, models.IntoreGroup{}, false
	}
	owning, err := h.owningGroup(r, chat)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		h.ErrLog.Internal(w, r, err, "failed to load owning intore group")
		return models.ChatGroup{}, models.IntoreGroup{}, false
	}
	if !canParticipate(h.Resolver.Actor(r), chat, owning) {
		respond.Fail(w, http.StatusForbidden, "You are not a participant of this chat group")
		return models.ChatGroup{}, models.IntoreGroup{}, false
	}
	return chat, owning, true
}

// ServeGetGroup handles GET /chat/groups/{chatGroupID}.
func (h *Handler) ServeGetGroup(w http.ResponseWriter, r *http.Request) {
	chat, _, ok := h.load(w, r)
	if !ok {
		return
	}
	respond.OK(w, "", chat)
}

type statusRequest struct {
	Status string `json:"status"`
}

// ServeGroupStatus handles PUT /chat/groups/{chatGroupID}/status. Only the
// owning group's managers may disable or re-enable the chat.
func (h *Handler) ServeGroupStatus(w http.ResponseWriter, r *http.Request) {
	chat, owning, ok := h.load(w, r)
	if !ok {
		return
	}
	if !authz.CanManageGroup(h.Resolver.Actor(r), owning) {
		respond.Fail(w, http.StatusForbidden, "You may not manage this chat group")
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

	if err := h.Chat.SetGroupStatus(r.Context(), chat.ID, req.Status); err != nil {
		h.ErrLog.Internal(w, r, err, "failed to update chat group status")
		return
	}

	h.Audit.Mutation(r.Context(), r, audit.ActionStatusChange, "chat_group", chat.ID,
		shared.Actor(r), bson.M{"status": chat.Status}, bson.M{"status": req.Status}, "chat group status changed")
	respond.OK(w, "Chat group status updated", nil)
}

type postMessageRequest struct {
	Body string `json:"body"`
}

// ServePostMessage handles POST /chat/groups/{chatGroupID}/messages. Bodies
// are stripped to plain text before storage.
func (h *Handler) ServePostMessage(w http.ResponseWriter, r *http.Request) {
	chat, _, ok := h.load(w, r)
	if !ok {
		return
	}
	if chat.Status != models.StatusActive {
		respond.Fail(w, http.StatusForbidden, "This chat group is disabled")
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	body := htmlsanitize.SanitizeMessage(req.Body)
	if body == "" {
		respond.Invalid(w, "Validation failed", []string{"message body is required"})
		return
	}

	actor := h.Resolver.Actor(r)
	msg := models.Message{
		ChatGroupID: chat.ID,
		Body:        body,
	}
	if actor != nil {
		msg.SenderID = actor.ID
	}

	created, err := h.Chat.AddMessage(r.Context(), msg)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to store chat message")
		return
	}
	respond.Created(w, "Message sent", created)
}

type messagesResponse struct {
	Messages []models.Message `json:"messages"`
}

// ServeMessages handles GET /chat/groups/{chatGroupID}/messages. History is
// paged backwards with a "before" RFC3339 timestamp; newest messages first.
func (h *Handler) ServeMessages(w http.ResponseWriter, r *http.Request) {
	chat, _, ok := h.load(w, r)
	if !ok {
		return
	}

	var before time.Time
	if s := query.Get(r, "before"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			respond.Invalid(w, "Validation failed", []string{"before must be an RFC3339 timestamp"})
			return
		}
		before = t
	}

	p := paging.FromRequest(r)
	msgs, err := h.Chat.Messages(r.Context(), chat.ID, before, p.Limit)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to load chat messages")
		return
	}
	respond.OK(w, "", messagesResponse{Messages: msgs})
}
