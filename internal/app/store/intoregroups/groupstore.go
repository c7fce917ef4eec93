// internal/app/store/intoregroups/groupstore.go
package groupstore

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

var ErrDuplicateCode = errors.New("an intore group with this code already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("intore_groups")}
}

// Create inserts a group. The caller is expected to have derived the sector
// and district references from the cell chain before calling.
func (s *Store) Create(ctx context.Context, group models.IntoreGroup) (models.IntoreGroup, error) {
	now := time.Now().UTC()
	group.ID = primitive.NewObjectID()
	group.NameCI = text.Fold(group.Name)
	if group.Status == "" {
		group.Status = models.StatusActive
	}
	group.CreatedAt = now
	group.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, group)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.IntoreGroup{}, ErrDuplicateCode
		}
		return models.IntoreGroup{}, err
	}
	return group, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.IntoreGroup, error) {
	var group models.IntoreGroup
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&group)
	if err != nil {
		return models.IntoreGroup{}, err
	}
	return group, nil
}

// GetByCode loads a group by its unique code.
func (s *Store) GetByCode(ctx context.Context, code string) (models.IntoreGroup, error) {
	var group models.IntoreGroup
	err := s.c.FindOne(ctx, bson.M{"code": code}).Decode(&group)
	if err != nil {
		return models.IntoreGroup{}, err
	}
	return group, nil
}

// ByCell returns all groups anchored to a cell, ordered by folded name.
func (s *Store) ByCell(ctx context.Context, cellID primitive.ObjectID) ([]models.IntoreGroup, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}})
	return s.Find(ctx, bson.M{"cell_id": cellID}, opts)
}

// Update modifies a group's mutable fields and refreshes UpdatedAt.
// Parent references and leader assignment are handled elsewhere.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, group models.IntoreGroup) error {
	set := bson.M{
		"updated_at": time.Now().UTC(),
	}
	if group.Name != "" {
		set["name"] = group.Name
		set["name_ci"] = text.Fold(group.Name)
	}
	if group.Description != "" {
		set["description"] = group.Description
	}
	if group.Status != "" {
		set["status"] = group.Status
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

// SetStatus flips a group between active and disabled.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// CodeExists checks if a group with the given code exists.
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

// Find returns groups matching the given filter with optional find options.
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.IntoreGroup, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var groups []models.IntoreGroup
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// Count returns the number of groups matching the given filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
