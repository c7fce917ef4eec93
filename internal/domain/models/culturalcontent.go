// internal/domain/models/culturalcontent.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Cultural content categories.
const (
	ContentSong      = "song"
	ContentDance     = "dance"
	ContentPoem      = "poem"
	ContentTradition = "tradition"
	ContentProverb   = "proverb"
)

// CulturalContent is a record of cultural material (songs, dances, poems,
// traditions) curated by a group or hierarchy node. Body may contain
// limited HTML and is sanitized before storage.
type CulturalContent struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title    string             `bson:"title" json:"title"`
	TitleCI  string             `bson:"title_ci" json:"-"`
	Category string             `bson:"category" json:"category"`
	Body     string             `bson:"body" json:"body"`
	Language string             `bson:"language,omitempty" json:"language,omitempty"`

	IntoreGroupID *primitive.ObjectID `bson:"intore_group_id,omitempty" json:"intore_group_id,omitempty"`
	CellID        *primitive.ObjectID `bson:"cell_id,omitempty" json:"cell_id,omitempty"`
	SectorID      *primitive.ObjectID `bson:"sector_id,omitempty" json:"sector_id,omitempty"`
	DistrictID    *primitive.ObjectID `bson:"district_id,omitempty" json:"district_id,omitempty"`

	CreatedBy primitive.ObjectID `bson:"created_by" json:"created_by"`
	Status    string             `bson:"status" json:"status"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// ValidContentCategory reports whether c is a known content category.
func ValidContentCategory(c string) bool {
	switch c {
	case ContentSong, ContentDance, ContentPoem, ContentTradition, ContentProverb:
		return true
	}
	return false
}
