// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Severities. Callers choose severity at the call site.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Actions.
const (
	ActionCreate       = "CREATE"
	ActionUpdate       = "UPDATE"
	ActionStatusChange = "STATUS_CHANGE"
	ActionAssignAdmin  = "ASSIGN_ADMIN"
	ActionAssignLeader = "ASSIGN_LEADER"
	ActionRegister     = "REGISTER"
	ActionLogin        = "LOGIN"
	ActionLoginFailed  = "LOGIN_FAILED"
	ActionLogout       = "LOGOUT"
	ActionError        = "ERROR"
)

// Record is one immutable audit entry: who did what to which resource,
// with before/after snapshots of the mutation. Records are never updated
// or deleted by the application.
type Record struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`

	Action       string              `bson:"action" json:"action"`
	ResourceType string              `bson:"resource_type" json:"resource_type"`
	ResourceID   *primitive.ObjectID `bson:"resource_id,omitempty" json:"resource_id,omitempty"`
	PerformedBy  *primitive.ObjectID `bson:"performed_by,omitempty" json:"performed_by,omitempty"`

	Before  bson.M `bson:"before,omitempty" json:"before,omitempty"`
	After   bson.M `bson:"after,omitempty" json:"after,omitempty"`
	Changes bson.M `bson:"changes,omitempty" json:"changes,omitempty"`

	Metadata    map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Severity    string            `bson:"severity" json:"severity"`
	Description string            `bson:"description,omitempty" json:"description,omitempty"`
	IP          string            `bson:"ip,omitempty" json:"ip,omitempty"`
	UserAgent   string            `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
}

// Filter selects audit records for queries.
type Filter struct {
	ResourceType string
	ResourceID   *primitive.ObjectID
	PerformedBy  *primitive.ObjectID
	Action       string
	Severity     string
	StartTime    *time.Time
	EndTime      *time.Time
	Limit        int64
	Offset       int64
}

// Store manages audit records. It exposes no update or delete.
type Store struct {
	c *mongo.Collection
}

// New creates an audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_logs")}
}

// EnsureIndexes creates the indexes the query paths rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{
			{Key: "resource_type", Value: 1},
			{Key: "resource_id", Value: 1},
			{Key: "timestamp", Value: -1},
		}},
		{Keys: bson.D{
			{Key: "performed_by", Value: 1},
			{Key: "timestamp", Value: -1},
		}},
		{Keys: bson.D{
			{Key: "action", Value: 1},
			{Key: "timestamp", Value: -1},
		}},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Log appends one record. ID, timestamp, and severity default when unset.
func (s *Store) Log(ctx context.Context, rec Record) error {
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.Severity == "" {
		rec.Severity = SeverityInfo
	}
	_, err := s.c.InsertOne(ctx, rec)
	return err
}

func (f Filter) query() bson.M {
	query := bson.M{}
	if f.ResourceType != "" {
		query["resource_type"] = f.ResourceType
	}
	if f.ResourceID != nil {
		query["resource_id"] = f.ResourceID
	}
	if f.PerformedBy != nil {
		query["performed_by"] = f.PerformedBy
	}
	if f.Action != "" {
		query["action"] = f.Action
	}
	if f.Severity != "" {
		query["severity"] = f.Severity
	}
	if f.StartTime != nil || f.EndTime != nil {
		timeQuery := bson.M{}
		if f.StartTime != nil {
			timeQuery["$gte"] = *f.StartTime
		}
		if f.EndTime != nil {
			timeQuery["$lte"] = *f.EndTime
		}
		query["timestamp"] = timeQuery
	}
	return query
}

// Query returns records matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter Filter) ([]Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.c.Find(ctx, filter.query(), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Count returns how many records match the filter.
func (s *Store) Count(ctx context.Context, filter Filter) (int64, error) {
	return s.c.CountDocuments(ctx, filter.query())
}

// ByResource returns recent records for one resource.
func (s *Store) ByResource(ctx context.Context, resourceType string, resourceID primitive.ObjectID, limit int64) ([]Record, error) {
	return s.Query(ctx, Filter{ResourceType: resourceType, ResourceID: &resourceID, Limit: limit})
}

// Recent returns the most recent records overall.
func (s *Store) Recent(ctx context.Context, limit int64) ([]Record, error) {
	return s.Query(ctx, Filter{Limit: limit})
}
