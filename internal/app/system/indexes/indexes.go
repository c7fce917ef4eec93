// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// EnsureAll is called at startup. Each ensure* function is idempotent.
// Errors are aggregated so every problem is visible and startup can fail fast.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(name string, fn func(context.Context, *mongo.Database) error) {
		if err := fn(ctx, db); err != nil {
			problems = append(problems, name+": "+err.Error())
		}
	}

	ensure("users", ensureUsers)
	ensure("districts", ensureDistricts)
	ensure("sectors", ensureSectors)
	ensure("cells", ensureCells)
	ensure("intore_groups", ensureIntoreGroups)
	ensure("activities", ensureActivities)
	ensure("attendance", ensureAttendance)
	ensure("media", ensureMedia)
	ensure("chat", ensureChat)
	ensure("notifications", ensureNotifications)
	ensure("reports", ensureReports)
	ensure("cultural_contents", ensureCulturalContents)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------- reconcile a desired index set for one collection -------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolOf(p *bool) bool { return p != nil && *p }

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// ensureIndexSet reconciles desired indexes against what the collection
// already has: reuse on a key+uniqueness match, drop and recreate when the
// uniqueness option changed, create otherwise.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, desired []mongo.IndexModel) error {
	existing := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err == nil {
		defer cur.Close(ctx)
		for cur.Next(ctx) {
			var idx existingIndex
			if err := cur.Decode(&idx); err != nil {
				zap.L().Warn("failed to decode existing index",
					zap.String("collection", coll.Name()), zap.Error(err))
				continue
			}
			existing[keySig(idx.Key)] = idx
		}
	}

	var errs []string
	for _, m := range desired {
		var name string
		var unique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				name = *m.Options.Name
			}
			unique = m.Options.Unique
		}
		sig := keySig(m.Keys.(bson.D))

		if ex, ok := existing[sig]; ok {
			if boolOf(unique) == boolOf(ex.Unique) {
				continue
			}
			// Uniqueness changed: drop and recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), name, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isDuplicateKeyErr(err) && boolOf(unique) {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index, duplicates present", coll.Name(), name))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			}
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Bool("unique", boolOf(unique)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* ---------------------- collection-specific index sets -------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("users"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		// Role-scoped member lists per hierarchy node.
		{
			Keys: bson.D{
				{Key: "role", Value: 1},
				{Key: "hierarchy.district_id", Value: 1},
				{Key: "hierarchy.sector_id", Value: 1},
				{Key: "hierarchy.cell_id", Value: 1},
				{Key: "full_name_ci", Value: 1},
			},
			Options: options.Index().SetName("idx_users_role_hierarchy_name"),
		},
		{
			Keys:    bson.D{{Key: "intore_group_id", Value: 1}, {Key: "full_name_ci", Value: 1}},
			Options: options.Index().SetName("idx_users_group_name"),
		},
	})
}

func ensureDistricts(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("districts"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_districts_code"),
		},
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("idx_districts_nameci"),
		},
	})
}

func ensureSectors(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("sectors"), []mongo.IndexModel{
		// Sector codes are unique only within their district.
		{
			Keys:    bson.D{{Key: "district_id", Value: 1}, {Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_sectors_district_code"),
		},
		{
			Keys:    bson.D{{Key: "district_id", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("idx_sectors_district_nameci"),
		},
	})
}

func ensureCells(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("cells"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sector_id", Value: 1}, {Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_cells_sector_code"),
		},
		{
			Keys:    bson.D{{Key: "sector_id", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("idx_cells_sector_nameci"),
		},
		{
			Keys:    bson.D{{Key: "district_id", Value: 1}},
			Options: options.Index().SetName("idx_cells_district"),
		},
	})
}

func ensureIntoreGroups(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("intore_groups"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_groups_code"),
		},
		{
			Keys:    bson.D{{Key: "cell_id", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("idx_groups_cell_nameci"),
		},
		{
			Keys:    bson.D{{Key: "district_id", Value: 1}, {Key: "sector_id", Value: 1}},
			Options: options.Index().SetName("idx_groups_district_sector"),
		},
	})
}

func ensureActivities(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("activities"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "intore_group_id", Value: 1}, {Key: "starts_at", Value: -1}},
			Options: options.Index().SetName("idx_activities_group_start"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "starts_at", Value: 1}},
			Options: options.Index().SetName("idx_activities_status_start"),
		},
		{
			Keys:    bson.D{{Key: "district_id", Value: 1}, {Key: "starts_at", Value: -1}},
			Options: options.Index().SetName("idx_activities_district_start"),
		},
	})
}

func ensureAttendance(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("attendance"), []mongo.IndexModel{
		// One attendance row per member per activity; Record() upserts on it.
		{
			Keys:    bson.D{{Key: "activity_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_attendance_activity_user"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_attendance_user_updated"),
		},
		{
			Keys:    bson.D{{Key: "intore_group_id", Value: 1}},
			Options: options.Index().SetName("idx_attendance_group"),
		},
	})
}

func ensureMedia(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("media"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "object_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_media_object_key"),
		},
		{
			Keys:    bson.D{{Key: "activity_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_media_activity_created"),
		},
		{
			Keys:    bson.D{{Key: "intore_group_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_media_group_created"),
		},
	})
}

func ensureChat(ctx context.Context, db *mongo.Database) error {
	if err := ensureIndexSet(ctx, db.Collection("chat_groups"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "intore_group_id", Value: 1}},
			Options: options.Index().SetName("idx_chatgroups_group"),
		},
	}); err != nil {
		return err
	}
	return ensureIndexSet(ctx, db.Collection("messages"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "chat_group_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_messages_chatgroup_created"),
		},
	})
}

func ensureNotifications(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("notifications"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "recipient_id", Value: 1}, {Key: "read", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_notifications_recipient"),
		},
		// Sparse so only notifications carrying a dedupe key participate.
		{
			Keys:    bson.D{{Key: "dedupe_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_notifications_dedupe"),
		},
	})
}

func ensureReports(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("reports"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "type", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_reports_type_created"),
		},
		{
			Keys:    bson.D{{Key: "district_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_reports_district_created"),
		},
	})
}

func ensureCulturalContents(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("cultural_contents"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "title_ci", Value: 1}},
			Options: options.Index().SetName("idx_contents_category_titleci"),
		},
		{
			Keys:    bson.D{{Key: "intore_group_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_contents_group_created"),
		},
	})
}
