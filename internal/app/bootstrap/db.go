// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"github.com/intorehq/intorehub/internal/app/store/audit"
	"github.com/intorehq/intorehub/internal/app/system/indexes"
	"github.com/intorehq/intorehub/internal/app/system/validators"
	"go.uber.org/zap"
)

// EnsureSchema creates collections, JSON-schema validators, and indexes.
// Validator setup is best-effort (older servers lack collMod support);
// index setup is mandatory because the unique constraints carry the
// duplicate-code and duplicate-email semantics.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase

	if err := validators.EnsureAll(ctx, db); err != nil {
		logger.Warn("collection validators not fully applied", zap.Error(err))
	}

	if err := indexes.EnsureAll(ctx, db); err != nil {
		return err
	}

	if err := audit.New(db).EnsureIndexes(ctx); err != nil {
		return err
	}

	logger.Info("schema ensured")
	return nil
}
