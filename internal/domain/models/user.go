// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Hierarchy is the administrative path a user belongs to. Which fields are
// set (and which must be set) depends on the user's role:
//
//	super_admin    — none
//	district_admin — district
//	sector_admin   — district, sector
//	cell_admin     — district, sector, cell
//	member         — district, sector, cell
//	public         — none
type Hierarchy struct {
	DistrictID *primitive.ObjectID `bson:"district_id,omitempty" json:"district_id,omitempty"`
	SectorID   *primitive.ObjectID `bson:"sector_id,omitempty" json:"sector_id,omitempty"`
	CellID     *primitive.ObjectID `bson:"cell_id,omitempty" json:"cell_id,omitempty"`
}

// User represents every account in the system, from super admins down to
// public visitors. Role and hierarchy fields are kept consistent by the
// cascade layer; they are never written directly by handlers.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName     string             `bson:"full_name" json:"full_name"`
	FullNameCI   string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email        string             `bson:"email" json:"email"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	PasswordHash string             `bson:"password_hash,omitempty" json:"-"`

	Role      string    `bson:"role" json:"role"`
	Status    string    `bson:"status" json:"status"`
	Hierarchy Hierarchy `bson:"hierarchy" json:"hierarchy"`

	// IntoreGroupID is set when the user leads or belongs to an intore group.
	IntoreGroupID *primitive.ObjectID `bson:"intore_group_id,omitempty" json:"intore_group_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
