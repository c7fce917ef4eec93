// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	// Hierarchy collections
	ensure("districts", districtsSchema())
	ensure("sectors", sectorsSchema())
	ensure("cells", cellsSchema())
	ensure("intore_groups", intoreGroupsSchema())
	ensure("users", usersSchema())

	// Activity tracking
	ensure("activities", activitiesSchema())
	ensure("attendance", attendanceSchema())

	// These don't strictly need validators; we still ensure the collections exist.
	ensure("media", nil)
	ensure("chat_groups", nil)
	ensure("messages", nil)
	ensure("notifications", nil)
	ensure("reports", nil)
	ensure("cultural_contents", nil)
	ensure("audit_logs", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		return false, nil
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------------ error helpers ----------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func nonBlankString() bson.M {
	return bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}
}

func districtsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "code", "status"},
			"properties": bson.M{
				"name":     nonBlankString(),
				"name_ci":  nonBlankString(),
				"code":     nonBlankString(),
				"admin_id": bson.M{"bsonType": bson.A{"objectId", "null"}},
				"status":   bson.M{"enum": bson.A{"active", "disabled"}},
			},
		},
	}
}

func sectorsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "code", "district_id", "status"},
			"properties": bson.M{
				"name":        nonBlankString(),
				"name_ci":     nonBlankString(),
				"code":        nonBlankString(),
				"district_id": bson.M{"bsonType": "objectId"},
				"admin_id":    bson.M{"bsonType": bson.A{"objectId", "null"}},
				"status":      bson.M{"enum": bson.A{"active", "disabled"}},
			},
		},
	}
}

func cellsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "code", "sector_id", "district_id", "status"},
			"properties": bson.M{
				"name":        nonBlankString(),
				"name_ci":     nonBlankString(),
				"code":        nonBlankString(),
				"sector_id":   bson.M{"bsonType": "objectId"},
				"district_id": bson.M{"bsonType": "objectId"},
				"admin_id":    bson.M{"bsonType": bson.A{"objectId", "null"}},
				"status":      bson.M{"enum": bson.A{"active", "disabled"}},
			},
		},
	}
}

func intoreGroupsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "code", "cell_id", "sector_id", "district_id", "status"},
			"properties": bson.M{
				"name":        nonBlankString(),
				"name_ci":     nonBlankString(),
				"code":        nonBlankString(),
				"cell_id":     bson.M{"bsonType": "objectId"},
				"sector_id":   bson.M{"bsonType": "objectId"},
				"district_id": bson.M{"bsonType": "objectId"},
				"leader_id":   bson.M{"bsonType": bson.A{"objectId", "null"}},
				"status":      bson.M{"enum": bson.A{"active", "disabled"}},
			},
		},
	}
}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"full_name", "email", "role", "status"},
			"properties": bson.M{
				"full_name":    nonBlankString(),
				"full_name_ci": nonBlankString(),
				"email":        nonBlankString(),
				"phone":        bson.M{"bsonType": "string"},
				"role": bson.M{"enum": bson.A{
					"super_admin", "district_admin", "sector_admin", "cell_admin", "member", "public",
				}},
				"status":          bson.M{"enum": bson.A{"active", "disabled"}},
				"intore_group_id": bson.M{"bsonType": bson.A{"objectId", "null"}},
			},
		},
	}
}

func activitiesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"title", "intore_group_id", "starts_at", "status"},
			"properties": bson.M{
				"title":           nonBlankString(),
				"title_ci":        nonBlankString(),
				"intore_group_id": bson.M{"bsonType": "objectId"},
				"cell_id":         bson.M{"bsonType": "objectId"},
				"sector_id":       bson.M{"bsonType": "objectId"},
				"district_id":     bson.M{"bsonType": "objectId"},
				"starts_at":       bson.M{"bsonType": "date"},
				"status":          bson.M{"enum": bson.A{"scheduled", "completed", "cancelled"}},
			},
		},
	}
}

func attendanceSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"activity_id", "user_id", "status"},
			"properties": bson.M{
				"activity_id":     bson.M{"bsonType": "objectId"},
				"user_id":         bson.M{"bsonType": "objectId"},
				"intore_group_id": bson.M{"bsonType": "objectId"},
				"status":          bson.M{"enum": bson.A{"present", "absent", "excused", "late"}},
				"recorded_by":     bson.M{"bsonType": "objectId"},
			},
		},
	}
}
