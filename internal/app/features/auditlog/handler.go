// internal/app/features/auditlog/handler.go
package auditlog

import (
	"net/http"
	"time"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	uierrors "github.com/intorehq/intorehub/internal/app/features/errors"
	"github.com/intorehq/intorehub/internal/app/features/shared"
	"github.com/intorehq/intorehub/internal/app/store/audit"
	"github.com/intorehq/intorehub/internal/app/system/paging"
	"github.com/intorehq/intorehub/internal/app/system/respond"
	"go.uber.org/zap"
)

// Handler serves the read side of the audit trail. Records are append-only;
// there is no mutation surface here.
type Handler struct {
	Audit  *audit.Store
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

// NewHandler constructs an audit log Handler.
func NewHandler(auditStore *audit.Store, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Audit: auditStore, ErrLog: errLog, Log: logger}
}

type listResponse struct {
	Records []audit.Record `json:"audit_logs"`
	Total   int64          `json:"total"`
	Paging  paging.Meta    `json:"paging"`
}

// ServeList handles GET /audit-logs. Supports action, severity,
// resource_type, resource_id, performed_by, from, to, and the standard
// paging parameters.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	p := paging.FromRequest(r)

	filter := audit.Filter{
		Action:       query.Get(r, "action"),
		Severity:     query.Get(r, "severity"),
		ResourceType: query.Get(r, "resource_type"),
		Limit:        p.LimitPlusOne(),
		Offset:       p.Offset,
	}

	if s := query.Get(r, "resource_id"); s != "" {
		id, ok := shared.ParseID(s)
		if !ok {
			respond.Invalid(w, "Validation failed", []string{"resource_id must be a valid id"})
			return
		}
		filter.ResourceID = &id
	}
	if s := query.Get(r, "performed_by"); s != "" {
		id, ok := shared.ParseID(s)
		if !ok {
			respond.Invalid(w, "Validation failed", []string{"performed_by must be a valid id"})
			return
		}
		filter.PerformedBy = &id
	}
	if s := query.Get(r, "from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			respond.Invalid(w, "Validation failed", []string{"from must be an RFC3339 timestamp"})
			return
		}
		filter.StartTime = &t
	}
	if s := query.Get(r, "to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			respond.Invalid(w, "Validation failed", []string{"to must be an RFC3339 timestamp"})
			return
		}
		filter.EndTime = &t
	}

	rows, err := h.Audit.Query(r.Context(), filter)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to query audit logs")
		return
	}

	countFilter := filter
	countFilter.Limit = 0
	countFilter.Offset = 0
	total, err := h.Audit.Count(r.Context(), countFilter)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to count audit logs")
		return
	}

	meta := paging.Trim(&rows, p)
	respond.OK(w, "", listResponse{Records: rows, Total: total, Paging: meta})
}

// ServeByResource handles GET /audit-logs/resource/{resourceType}/{resourceID}:
// the recent trail for one resource.
func (h *Handler) ServeByResource(w http.ResponseWriter, r *http.Request) {
	resourceType := chi.URLParam(r, "resourceType")
	id, ok := shared.IDParam(r, "resourceID")
	if !ok || resourceType == "" {
		respond.NotFound(w, "Resource not found")
		return
	}

	rows, err := h.Audit.ByResource(r.Context(), resourceType, id, paging.PageSize)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to query audit logs")
		return
	}
	respond.OK(w, "", map[string]any{"audit_logs": rows})
}
