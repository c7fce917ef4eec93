// internal/domain/models/chat.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatGroup is a conversation scoped to a hierarchy node, usually an
// intore group.
type ChatGroup struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name   string             `bson:"name" json:"name"`
	NameCI string             `bson:"name_ci" json:"-"`

	IntoreGroupID *primitive.ObjectID `bson:"intore_group_id,omitempty" json:"intore_group_id,omitempty"`
	CellID        *primitive.ObjectID `bson:"cell_id,omitempty" json:"cell_id,omitempty"`
	SectorID      *primitive.ObjectID `bson:"sector_id,omitempty" json:"sector_id,omitempty"`
	DistrictID    *primitive.ObjectID `bson:"district_id,omitempty" json:"district_id,omitempty"`

	CreatedBy primitive.ObjectID `bson:"created_by" json:"created_by"`
	Status    string             `bson:"status" json:"status"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// Message is a single chat message. Body is sanitized before storage.
type Message struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChatGroupID primitive.ObjectID `bson:"chat_group_id" json:"chat_group_id"`
	SenderID    primitive.ObjectID `bson:"sender_id" json:"sender_id"`
	Body        string             `bson:"body" json:"body"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
