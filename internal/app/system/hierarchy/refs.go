// internal/app/system/hierarchy/refs.go
package hierarchy

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoRefs implements Refs over the live collections. Only the parent
// reference fields are projected; the validator never needs full documents.
type MongoRefs struct {
	db *mongo.Database
}

// NewMongoRefs creates a Refs backed by the given database.
func NewMongoRefs(db *mongo.Database) *MongoRefs {
	return &MongoRefs{db: db}
}

func (m *MongoRefs) District(ctx context.Context, id primitive.ObjectID) (bool, error) {
	err := m.db.Collection("districts").FindOne(ctx, bson.M{"_id": id}).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, err
}

func (m *MongoRefs) Sector(ctx context.Context, id primitive.ObjectID) (SectorRef, bool, error) {
	var doc struct {
		DistrictID primitive.ObjectID `bson:"district_id"`
	}
	err := m.db.Collection("sectors").FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == nil {
		return SectorRef{DistrictID: doc.DistrictID}, true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return SectorRef{}, false, nil
	}
	return SectorRef{}, false, err
}

func (m *MongoRefs) Cell(ctx context.Context, id primitive.ObjectID) (CellRef, bool, error) {
	var doc struct {
		SectorID   primitive.ObjectID `bson:"sector_id"`
		DistrictID primitive.ObjectID `bson:"district_id"`
	}
	err := m.db.Collection("cells").FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == nil {
		return CellRef{SectorID: doc.SectorID, DistrictID: doc.DistrictID}, true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return CellRef{}, false, nil
	}
	return CellRef{}, false, err
}

func (m *MongoRefs) Group(ctx context.Context, id primitive.ObjectID) (GroupRef, bool, error) {
	var doc struct {
		CellID     primitive.ObjectID `bson:"cell_id"`
		SectorID   primitive.ObjectID `bson:"sector_id"`
		DistrictID primitive.ObjectID `bson:"district_id"`
	}
	err := m.db.Collection("intore_groups").FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == nil {
		return GroupRef{CellID: doc.CellID, SectorID: doc.SectorID, DistrictID: doc.DistrictID}, true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return GroupRef{}, false, nil
	}
	return GroupRef{}, false, err
}
