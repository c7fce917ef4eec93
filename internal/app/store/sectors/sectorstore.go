// internal/app/store/sectors/sectorstore.go
package sectorstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateCode = errors.New("a sector with this code already exists in the district")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("sectors")}
}

func (s *Store) Create(ctx context.Context, sector models.Sector) (models.Sector, error) {
	now := time.Now().UTC()
	sector.ID = primitive.NewObjectID()
	sector.NameCI = text.Fold(sector.Name)
	if sector.Status == "" {
		sector.Status = models.StatusActive
	}
	sector.CreatedAt = now
	sector.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, sector)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Sector{}, ErrDuplicateCode
		}
		return models.Sector{}, err
	}
	return sector, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Sector, error) {
	var sector models.Sector
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&sector)
	if err != nil {
		return models.Sector{}, err
	}
	return sector, nil
}

// ByDistrict returns all sectors of a district, ordered by folded name.
func (s *Store) ByDistrict(ctx context.Context, districtID primitive.ObjectID) ([]models.Sector, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}})
	return s.Find(ctx, bson.M{"district_id": districtID}, opts)
}

// Update modifies a sector's mutable fields and refreshes UpdatedAt.
// The district reference is immutable after creation.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, sector models.Sector) error {
	set := bson.M{
		"updated_at": time.Now().UTC(),
	}
	if sector.Name != "" {
		set["name"] = sector.Name
		set["name_ci"] = text.Fold(sector.Name)
	}
	if sector.Status != "" {
		set["status"] = sector.Status
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateCode
		}
		return err
	}
	return nil
}

// SetStatus flips a sector between active and disabled.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// CodeExistsInDistrict checks if a sector with the given code exists in
// the district. Codes are only unique per district.
func (s *Store) CodeExistsInDistrict(ctx context.Context, code string, districtID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"code": code, "district_id": districtID}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Find returns sectors matching the given filter with optional find options.
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Sector, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var sectors []models.Sector
	if err := cur.All(ctx, &sectors); err != nil {
		return nil, err
	}
	return sectors, nil
}

// Count returns the number of sectors matching the given filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
