// internal/domain/models/media.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Media types.
const (
	MediaPhoto    = "photo"
	MediaVideo    = "video"
	MediaAudio    = "audio"
	MediaDocument = "document"
)

// Media is the metadata record for an uploaded file. The bytes themselves
// live in external storage; ObjectKey is the stable key under which they
// were stored.
type Media struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title     string             `bson:"title" json:"title"`
	Type      string             `bson:"type" json:"type"`
	ObjectKey string             `bson:"object_key" json:"object_key"`
	URL       string             `bson:"url,omitempty" json:"url,omitempty"`
	SizeBytes int64              `bson:"size_bytes,omitempty" json:"size_bytes,omitempty"`

	UploadedBy primitive.ObjectID  `bson:"uploaded_by" json:"uploaded_by"`
	ActivityID *primitive.ObjectID `bson:"activity_id,omitempty" json:"activity_id,omitempty"`

	IntoreGroupID *primitive.ObjectID `bson:"intore_group_id,omitempty" json:"intore_group_id,omitempty"`
	CellID        *primitive.ObjectID `bson:"cell_id,omitempty" json:"cell_id,omitempty"`
	SectorID      *primitive.ObjectID `bson:"sector_id,omitempty" json:"sector_id,omitempty"`
	DistrictID    *primitive.ObjectID `bson:"district_id,omitempty" json:"district_id,omitempty"`

	Status    string    `bson:"status" json:"status"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
