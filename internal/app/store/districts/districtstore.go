// internal/app/store/districts/districtstore.go
package districtstore

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

var ErrDuplicateCode = errors.New("a district with this code already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("districts")}
}

func (s *Store) Create(ctx context.Context, district models.District) (models.District, error) {
	now := time.Now().UTC()
	district.ID = primitive.NewObjectID()
	district.NameCI = text.Fold(district.Name)
	if district.Status == "" {
		district.Status = models.StatusActive
	}
	district.CreatedAt = now
	district.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, district)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.District{}, ErrDuplicateCode
		}
		return models.District{}, err
	}
	return district, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.District, error) {
	var district models.District
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&district)
	if err != nil {
		return models.District{}, err
	}
	return district, nil
}

// GetByCode loads a district by its unique code.
func (s *Store) GetByCode(ctx context.Context, code string) (models.District, error) {
	var district models.District
	err := s.c.FindOne(ctx, bson.M{"code": code}).Decode(&district)
	if err != nil {
		return models.District{}, err
	}
	return district, nil
}

// Update modifies a district's mutable fields and refreshes UpdatedAt.
// Code and admin assignment are handled elsewhere.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, district models.District) error {
	set := bson.M{
		"updated_at": time.Now().UTC(),
	}
	if district.Name != "" {
		set["name"] = district.Name
		set["name_ci"] = text.Fold(district.Name)
	}
	if district.Status != "" {
		set["status"] = district.Status
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

// SetStatus flips a district between active and disabled.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// CodeExists checks if a district with the given code exists.
func (s *Store) CodeExists(ctx context.Context, code string) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"code": code}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Find returns districts matching the given filter with optional find options.
// The caller builds the filter and options (pagination, sorting, projection).
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.District, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var districts []models.District
	if err := cur.All(ctx, &districts); err != nil {
		return nil, err
	}
	return districts, nil
}

// Count returns the number of districts matching the given filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
