// internal/app/store/reports/reportstore.go
package reportstore

import (
	"context"
	"time"

	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Report types.
const (
	TypeMembership = "membership"
	TypeAttendance = "attendance"
	TypeActivity   = "activity"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("reports")}
}

// Create stores a generated report.
func (s *Store) Create(ctx context.Context, report models.Report) (models.Report, error) {
	report.ID = primitive.NewObjectID()
	report.CreatedAt = time.Now().UTC()
	_, err := s.c.InsertOne(ctx, report)
	if err != nil {
		return models.Report{}, err
	}
	return report, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Report, error) {
	var report models.Report
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&report)
	if err != nil {
		return models.Report{}, err
	}
	return report, nil
}

// Find returns reports matching the given filter, newest first.
func (s *Store) Find(ctx context.Context, filter bson.M, limit int64) ([]models.Report, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var reports []models.Report
	if err := cur.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// Count returns the number of reports matching the given filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
