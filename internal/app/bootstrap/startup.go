// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/waffle/config"
	userstore "github.com/intorehq/intorehub/internal/app/store/users"
	"github.com/intorehq/intorehub/internal/app/system/auth"
	"github.com/intorehq/intorehub/internal/app/system/normalize"
	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if appCfg.SuperAdminEmail != "" {
		if err := ensureSuperAdmin(ctx, deps, appCfg.SuperAdminEmail, appCfg.SuperAdminPassword, logger); err != nil {
			return err
		}
	}
	return nil
}

// ensureSuperAdmin guarantees a super admin exists. An existing user with
// the configured email is promoted; otherwise a new account is created when
// a password is configured. Idempotent across restarts.
func ensureSuperAdmin(ctx context.Context, deps DBDeps, email, password string, logger *zap.Logger) error {
	users := userstore.New(deps.MongoDatabase)

	existing, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role == models.RoleSuperAdmin {
			return nil
		}
		_, err := deps.MongoDatabase.Collection("users").UpdateByID(ctx, existing.ID, bson.M{"$set": bson.M{
			"role":       models.RoleSuperAdmin,
			"hierarchy":  models.Hierarchy{},
			"updated_at": time.Now().UTC(),
		}})
		if err != nil {
			return err
		}
		logger.Info("promoted existing user to super admin",
			zap.String("email", normalize.Email(email)))
		return nil

	case errors.Is(err, mongo.ErrNoDocuments):
		if password == "" {
			logger.Warn("superadmin_email not found and no superadmin_password set; skipping creation",
				zap.String("email", normalize.Email(email)))
			return nil
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		_, err = users.Create(ctx, models.User{
			FullName:     "Super Admin",
			Email:        email,
			PasswordHash: hash,
			Role:         models.RoleSuperAdmin,
			Status:       models.StatusActive,
		})
		if err != nil && !errors.Is(err, userstore.ErrDuplicateEmail) {
			return err
		}
		logger.Info("created super admin",
			zap.String("email", normalize.Email(email)))
		return nil

	default:
		return err
	}
}
