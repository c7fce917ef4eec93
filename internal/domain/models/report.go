// internal/domain/models/report.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Report is a stored summary for a hierarchy node over a period.
// Data holds the shaped counts; there is no computation beyond
// aggregation at generation time.
type Report struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title   string             `bson:"title" json:"title"`
	Type    string             `bson:"type" json:"type"` // membership | attendance | activity

	IntoreGroupID *primitive.ObjectID `bson:"intore_group_id,omitempty" json:"intore_group_id,omitempty"`
	CellID        *primitive.ObjectID `bson:"cell_id,omitempty" json:"cell_id,omitempty"`
	SectorID      *primitive.ObjectID `bson:"sector_id,omitempty" json:"sector_id,omitempty"`
	DistrictID    *primitive.ObjectID `bson:"district_id,omitempty" json:"district_id,omitempty"`

	PeriodStart time.Time `bson:"period_start" json:"period_start"`
	PeriodEnd   time.Time `bson:"period_end" json:"period_end"`
	Data        bson.M    `bson:"data" json:"data"`

	GeneratedBy primitive.ObjectID `bson:"generated_by" json:"generated_by"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}
