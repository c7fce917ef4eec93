// internal/domain/models/intoregroup.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IntoreGroup is a cultural troupe anchored to a Cell. Sector and district
// references are denormalized from the cell's own chain and are derived,
// never supplied independently. Code is unique across all groups.
type IntoreGroup struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name       string              `bson:"name" json:"name"`
	NameCI     string              `bson:"name_ci" json:"-"`
	Code       string              `bson:"code" json:"code"`
	CellID     primitive.ObjectID  `bson:"cell_id" json:"cell_id"`
	SectorID   primitive.ObjectID  `bson:"sector_id" json:"sector_id"`
	DistrictID primitive.ObjectID  `bson:"district_id" json:"district_id"`
	LeaderID   *primitive.ObjectID `bson:"leader_id,omitempty" json:"leader_id,omitempty"`

	Description string `bson:"description,omitempty" json:"description,omitempty"`

	Status    string    `bson:"status" json:"status"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
