// internal/app/store/attendance/attendancestore.go
package attendancestore

import (
	"context"
	"time"

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
	return &Store{c: db.Collection("attendance")}
}

// Record upserts one member's attendance for an activity. Re-recording the
// same (activity, user) pair replaces the earlier status instead of adding
// a second row.
func (s *Store) Record(ctx context.Context, rec models.Attendance) (models.Attendance, error) {
	now := time.Now().UTC()
	rec.UpdatedAt = now

	filter := bson.M{"activity_id": rec.ActivityID, "user_id": rec.UserID}
	update := bson.M{
		"$set": bson.M{
			"intore_group_id": rec.IntoreGroupID,
			"status":          rec.Status,
			"note":            rec.Note,
			"recorded_by":     rec.RecordedBy,
			"updated_at":      now,
		},
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID(),
			"created_at": now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stored models.Attendance
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored); err != nil {
		return models.Attendance{}, err
	}
	return stored, nil
}

// ByActivity returns all attendance rows for one activity.
func (s *Store) ByActivity(ctx context.Context, activityID primitive.ObjectID) ([]models.Attendance, error) {
	return s.find(ctx, bson.M{"activity_id": activityID}, nil)
}

// ByUser returns a member's attendance history, newest first.
func (s *Store) ByUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.Attendance, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return s.find(ctx, bson.M{"user_id": userID}, opts)
}

// Get returns the attendance row for one (activity, user) pair.
func (s *Store) Get(ctx context.Context, activityID, userID primitive.ObjectID) (models.Attendance, error) {
	var rec models.Attendance
	err := s.c.FindOne(ctx, bson.M{"activity_id": activityID, "user_id": userID}).Decode(&rec)
	if err != nil {
		return models.Attendance{}, err
	}
	return rec, nil
}

// CountByStatus returns per-status counts for report generation, over rows
// matching the caller-built filter.
func (s *Store) CountByStatus(ctx context.Context, filter bson.M) (map[string]int64, error) {
	if filter == nil {
		filter = bson.M{}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Count returns the number of attendance rows matching the given filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Attendance, error) {
	var cur *mongo.Cursor
	var err error
	if opts != nil {
		cur, err = s.c.Find(ctx, filter, opts)
	} else {
		cur, err = s.c.Find(ctx, filter)
	}
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var records []models.Attendance
	if err := cur.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
