// internal/app/store/notifications/notificationstore.go
package notificationstore

import (
	"context"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
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
	return &Store{c: db.Collection("notifications")}
}

// Create inserts a notification. When a dedupe key is set and a notification
// with the same key already exists, the duplicate insert is silently dropped
// so event sources can report the same fact more than once.
func (s *Store) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	n.ID = primitive.NewObjectID()
	n.CreatedAt = time.Now().UTC()
	_, err := s.c.InsertOne(ctx, n)
	if err != nil {
		if n.DedupeKey != "" && wafflemongo.IsDup(err) {
			return n, nil
		}
		return models.Notification{}, err
	}
	return n, nil
}

// ForUser returns notifications visible to a user: those addressed to them
// directly plus those scoped to any node of their hierarchy. Newest first.
func (s *Store) ForUser(ctx context.Context, user models.User, unreadOnly bool, limit int64) ([]models.Notification, error) {
	scopes := []bson.M{{"recipient_id": user.ID}}
	if user.IntoreGroupID != nil {
		scopes = append(scopes, bson.M{"recipient_id": nil, "intore_group_id": user.IntoreGroupID})
	}
	if user.Hierarchy.CellID != nil {
		scopes = append(scopes, bson.M{"recipient_id": nil, "cell_id": user.Hierarchy.CellID})
	}
	if user.Hierarchy.SectorID != nil {
		scopes = append(scopes, bson.M{"recipient_id": nil, "sector_id": user.Hierarchy.SectorID})
	}
	if user.Hierarchy.DistrictID != nil {
		scopes = append(scopes, bson.M{"recipient_id": nil, "district_id": user.Hierarchy.DistrictID})
	}

	filter := bson.M{"$or": scopes}
	if unreadOnly {
		filter["read"] = false
	}

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

	var notifications []models.Notification
	if err := cur.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkRead marks one notification read for its direct recipient.
func (s *Store) MarkRead(ctx context.Context, id, userID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "recipient_id": userID},
		bson.M{"$set": bson.M{"read": true}},
	)
	return err
}

// CountUnread returns how many direct notifications a user has not read.
func (s *Store) CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"recipient_id": userID, "read": false})
}
