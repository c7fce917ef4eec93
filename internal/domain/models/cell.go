// internal/domain/models/cell.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Cell belongs to a Sector. DistrictID is denormalized from the sector's
// district and must always agree with it; the cascade layer fills it in
// when a cell is created with only a sector reference.
type Cell struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name       string              `bson:"name" json:"name"`
	NameCI     string              `bson:"name_ci" json:"-"`
	Code       string              `bson:"code" json:"code"`
	SectorID   primitive.ObjectID  `bson:"sector_id" json:"sector_id"`
	DistrictID primitive.ObjectID  `bson:"district_id" json:"district_id"`
	AdminID    *primitive.ObjectID `bson:"admin_id,omitempty" json:"admin_id,omitempty"`

	Status    string    `bson:"status" json:"status"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
