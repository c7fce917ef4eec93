// internal/domain/models/district.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// District is the top level of the administrative hierarchy.
// Code is unique across all districts.
type District struct {
	ID      primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name    string              `bson:"name" json:"name"`
	NameCI  string              `bson:"name_ci" json:"-"`
	Code    string              `bson:"code" json:"code"`
	AdminID *primitive.ObjectID `bson:"admin_id,omitempty" json:"admin_id,omitempty"`

	Status    string    `bson:"status" json:"status"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
