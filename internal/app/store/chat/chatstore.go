// internal/app/store/chat/chatstore.go
package chatstore

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

// Store manages chat groups and their messages.
type Store struct {
	groups   *mongo.Collection
	messages *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		groups:   db.Collection("chat_groups"),
		messages: db.Collection("messages"),
	}
}

// CreateGroup inserts a chat group.
func (s *Store) CreateGroup(ctx context.Context, group models.ChatGroup) (models.ChatGroup, error) {
	now := time.Now().UTC()
	group.ID = primitive.NewObjectID()
	group.NameCI = text.Fold(group.Name)
	if group.Status == "" {
		group.Status = models.StatusActive
	}
	group.CreatedAt = now
	group.UpdatedAt = now
	_, err := s.groups.InsertOne(ctx, group)
	if err != nil {
		return models.ChatGroup{}, err
	}
	return group, nil
}

// GetGroupByID loads a chat group.
func (s *Store) GetGroupByID(ctx context.Context, id primitive.ObjectID) (models.ChatGroup, error) {
	var group models.ChatGroup
	err := s.groups.FindOne(ctx, bson.M{"_id": id}).Decode(&group)
	if err != nil {
		return models.ChatGroup{}, err
	}
	return group, nil
}

// GroupForIntoreGroup returns the chat group bound to an intore group, if any.
func (s *Store) GroupForIntoreGroup(ctx context.Context, intoreGroupID primitive.ObjectID) (*models.ChatGroup, error) {
	var group models.ChatGroup
	err := s.groups.FindOne(ctx, bson.M{"intore_group_id": intoreGroupID}).Decode(&group)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// SetGroupStatus flips a chat group between active and disabled.
func (s *Store) SetGroupStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	_, err := s.groups.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// FindGroups returns chat groups matching the given filter.
func (s *Store) FindGroups(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.ChatGroup, error) {
	cur, err := s.groups.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var groups []models.ChatGroup
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// AddMessage appends a message to a chat group. The body must already be
// sanitized by the caller.
func (s *Store) AddMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	msg.ID = primitive.NewObjectID()
	msg.CreatedAt = time.Now().UTC()
	_, err := s.messages.InsertOne(ctx, msg)
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Messages returns a chat group's messages, newest first. Before, when
// non-zero, restricts to messages older than the given time for paging
// backwards through history.
func (s *Store) Messages(ctx context.Context, chatGroupID primitive.ObjectID, before time.Time, limit int64) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	filter := bson.M{"chat_group_id": chatGroupID}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cur, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var msgs []models.Message
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// CountMessages returns the number of messages in a chat group.
func (s *Store) CountMessages(ctx context.Context, chatGroupID primitive.ObjectID) (int64, error) {
	return s.messages.CountDocuments(ctx, bson.M{"chat_group_id": chatGroupID})
}
