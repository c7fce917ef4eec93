// internal/app/store/media/mediastore.go
package mediastore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("media")}
}

// Create inserts a media record. An object key is minted when the caller
// has not provided one.
func (s *Store) Create(ctx context.Context, media models.Media) (models.Media, error) {
	now := time.Now().UTC()
	media.ID = primitive.NewObjectID()
	if media.ObjectKey == "" {
		media.ObjectKey = uuid.NewString()
	}
	if media.Status == "" {
		media.Status = models.StatusActive
	}
	media.CreatedAt = now
	media.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, media)
	if err != nil {
		return models.Media{}, err
	}
	return media, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Media, error) {
	var media models.Media
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&media)
	if err != nil {
		return models.Media{}, err
	}
	return media, nil
}

// ByActivity returns media attached to one activity, newest first.
func (s *Store) ByActivity(ctx context.Context, activityID primitive.ObjectID) ([]models.Media, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return s.Find(ctx, bson.M{"activity_id": activityID}, opts)
}

// ByGroup returns media belonging to one intore group, newest first.
func (s *Store) ByGroup(ctx context.Context, groupID primitive.ObjectID, limit int64) ([]models.Media, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return s.Find(ctx, bson.M{"intore_group_id": groupID}, opts)
}

// Update modifies a media record's mutable fields.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, media models.Media) error {
	set := bson.M{
		"updated_at": time.Now().UTC(),
	}
	if media.Title != "" {
		set["title"] = media.Title
	}
	if media.Status != "" {
		set["status"] = media.Status
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	return err
}

// SetStatus flips a media record between active and disabled.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// Find returns media matching the given filter with optional find options.
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Media, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var items []models.Media
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Count returns the number of media records matching the given filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
