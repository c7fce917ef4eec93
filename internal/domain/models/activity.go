// internal/domain/models/activity.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Activity is an event organized by an intore group (rehearsal, performance,
// community work). The cell/sector/district references are recomputed from
// the owning group at write time.
type Activity struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	TitleCI     string             `bson:"title_ci" json:"-"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Location    string             `bson:"location,omitempty" json:"location,omitempty"`

	IntoreGroupID primitive.ObjectID `bson:"intore_group_id" json:"intore_group_id"`
	CellID        primitive.ObjectID `bson:"cell_id" json:"cell_id"`
	SectorID      primitive.ObjectID `bson:"sector_id" json:"sector_id"`
	DistrictID    primitive.ObjectID `bson:"district_id" json:"district_id"`

	StartsAt  time.Time          `bson:"starts_at" json:"starts_at"`
	EndsAt    *time.Time         `bson:"ends_at,omitempty" json:"ends_at,omitempty"`
	CreatedBy primitive.ObjectID `bson:"created_by" json:"created_by"`

	Status    string    `bson:"status" json:"status"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
