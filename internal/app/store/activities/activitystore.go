// internal/app/store/activities/activitystore.go
package activitystore

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

// Activity statuses.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("activities")}
}

// Create inserts an activity. The caller is expected to have recomputed the
// cell/sector/district references from the owning group before calling.
func (s *Store) Create(ctx context.Context, activity models.Activity) (models.Activity, error) {
	now := time.Now().UTC()
	activity.ID = primitive.NewObjectID()
	activity.TitleCI = text.Fold(activity.Title)
	if activity.Status == "" {
		activity.Status = StatusScheduled
	}
	activity.CreatedAt = now
	activity.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, activity)
	if err != nil {
		return models.Activity{}, err
	}
	return activity, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Activity, error) {
	var activity models.Activity
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&activity)
	if err != nil {
		return models.Activity{}, err
	}
	return activity, nil
}

// ByGroup returns activities of a group, soonest first.
func (s *Store) ByGroup(ctx context.Context, groupID primitive.ObjectID, limit int64) ([]models.Activity, error) {
	opts := options.Find().SetSort(bson.D{{Key: "starts_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return s.Find(ctx, bson.M{"intore_group_id": groupID}, opts)
}

// Upcoming returns scheduled activities starting at or after the given time,
// scoped by the caller-built filter.
func (s *Store) Upcoming(ctx context.Context, filter bson.M, from time.Time, limit int64) ([]models.Activity, error) {
	if filter == nil {
		filter = bson.M{}
	}
	filter["status"] = StatusScheduled
	filter["starts_at"] = bson.M{"$gte": from}

	opts := options.Find().SetSort(bson.D{{Key: "starts_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return s.Find(ctx, filter, opts)
}

// Update modifies an activity's mutable fields and refreshes UpdatedAt.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, activity models.Activity) error {
	set := bson.M{
		"updated_at": time.Now().UTC(),
	}
	if activity.Title != "" {
		set["title"] = activity.Title
		set["title_ci"] = text.Fold(activity.Title)
	}
	if activity.Description != "" {
		set["description"] = activity.Description
	}
	if activity.Location != "" {
		set["location"] = activity.Location
	}
	if !activity.StartsAt.IsZero() {
		set["starts_at"] = activity.StartsAt
	}
	if activity.EndsAt != nil {
		set["ends_at"] = activity.EndsAt
	}
	if activity.Status != "" {
		set["status"] = activity.Status
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	return err
}

// SetStatus moves an activity through its lifecycle.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// Find returns activities matching the given filter with optional find options.
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Activity, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var activities []models.Activity
	if err := cur.All(ctx, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// Count returns the number of activities matching the given filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

// CountInRange counts activities in a time range for report generation.
func (s *Store) CountInRange(ctx context.Context, filter bson.M, start, end time.Time) (int64, error) {
	if filter == nil {
		filter = bson.M{}
	}
	filter["starts_at"] = bson.M{"$gte": start, "$lte": end}
	return s.c.CountDocuments(ctx, filter)
}
