// internal/app/store/culturalcontent/contentstore.go
package contentstore

import (
	"context"
	"time"

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

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("cultural_contents")}
}

// Create inserts a cultural content record. The body must already be
// sanitized by the caller.
func (s *Store) Create(ctx context.Context, content models.CulturalContent) (models.CulturalContent, error) {
	now := time.Now().UTC()
	content.ID = primitive.NewObjectID()
	content.TitleCI = text.Fold(content.Title)
	if content.Status == "" {
		content.Status = models.StatusActive
	}
	content.CreatedAt = now
	content.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, content)
	if err != nil {
		return models.CulturalContent{}, err
	}
	return content, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.CulturalContent, error) {
	var content models.CulturalContent
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&content)
	if err != nil {
		return models.CulturalContent{}, err
	}
	return content, nil
}

// Update modifies a content record's mutable fields.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, content models.CulturalContent) error {
	set := bson.M{
		"updated_at": time.Now().UTC(),
	}
	if content.Title != "" {
		set["title"] = content.Title
		set["title_ci"] = text.Fold(content.Title)
	}
	if content.Category != "" {
		set["category"] = content.Category
	}
	if content.Body != "" {
		set["body"] = content.Body
	}
	if content.Language != "" {
		set["language"] = content.Language
	}
	if content.Status != "" {
		set["status"] = content.Status
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	return err
}

// SetStatus flips a content record between active and disabled.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// Find returns content matching the given filter with optional find options.
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.CulturalContent, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var contents []models.CulturalContent
	if err := cur.All(ctx, &contents); err != nil {
		return nil, err
	}
	return contents, nil
}

// Count returns the number of content records matching the given filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
