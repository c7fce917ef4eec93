// internal/app/features/shared/shared.go
//
// Small helpers used across the JSON feature handlers.
package shared

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/intorehq/intorehub/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor returns the signed-in user's ID for audit attribution, or nil when
// the request is anonymous.
func Actor(r *http.Request) *primitive.ObjectID {
	p, ok := auth.CurrentUser(r)
	if !ok {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return nil
	}
	return &id
}

// IDParam parses a chi URL parameter as an ObjectID.
func IDParam(r *http.Request, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

// ParseID parses a request-body hex ID.
func ParseID(s string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

// ParseOptionalID parses an optional hex ID; empty input yields nil.
func ParseOptionalID(s string) (*primitive.ObjectID, bool) {
	if s == "" {
		return nil, true
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return nil, false
	}
	return &id, true
}
