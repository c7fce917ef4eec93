// internal/domain/models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification is an in-app notification record. Delivery transport is
// out of scope; this is only the persisted fact.
type Notification struct {
	ID    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title string             `bson:"title" json:"title"`
	Body  string             `bson:"body,omitempty" json:"body,omitempty"`
	Type  string             `bson:"type" json:"type"` // activity | chat | system | announcement

	// RecipientID targets one user; when nil the notification is scoped
	// to the hierarchy references below (fan-out is resolved at read time).
	RecipientID *primitive.ObjectID `bson:"recipient_id,omitempty" json:"recipient_id,omitempty"`

	IntoreGroupID *primitive.ObjectID `bson:"intore_group_id,omitempty" json:"intore_group_id,omitempty"`
	CellID        *primitive.ObjectID `bson:"cell_id,omitempty" json:"cell_id,omitempty"`
	SectorID      *primitive.ObjectID `bson:"sector_id,omitempty" json:"sector_id,omitempty"`
	DistrictID    *primitive.ObjectID `bson:"district_id,omitempty" json:"district_id,omitempty"`

	// DedupeKey prevents double-writes when the same event is reported twice.
	DedupeKey string `bson:"dedupe_key,omitempty" json:"-"`

	Read      bool               `bson:"read" json:"read"`
	CreatedBy primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
