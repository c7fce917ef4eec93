package bootstrap

import (
	"context"
	"testing"

	userstore "github.com/intorehq/intorehub/internal/app/store/users"
	"github.com/intorehq/intorehub/internal/app/system/auth"
	"github.com/intorehq/intorehub/internal/domain/models"
	"github.com/intorehq/intorehub/internal/testutil"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func TestEnsureSuperAdmin_CreatesNew(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	deps := DBDeps{MongoDatabase: db}

	if err := ensureSuperAdmin(ctx, deps, "root@intorehub.rw", "first-boot-password", testLogger()); err != nil {
		t.Fatalf("ensureSuperAdmin failed: %v", err)
	}

	user, err := userstore.New(db).GetByEmail(ctx, "root@intorehub.rw")
	if err != nil {
		t.Fatalf("failed to find created user: %v", err)
	}
	if user.Role != models.RoleSuperAdmin {
		t.Errorf("role = %q, want super_admin", user.Role)
	}
	if user.Status != models.StatusActive {
		t.Errorf("status = %q, want active", user.Status)
	}
	if !auth.CheckPassword(user.PasswordHash, "first-boot-password") {
		t.Error("stored password hash should verify")
	}
	if user.Hierarchy.DistrictID != nil {
		t.Error("super admin must carry no hierarchy")
	}
}

func TestEnsureSuperAdmin_PromotesExisting(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	deps := DBDeps{MongoDatabase: db}
	f := testutil.NewFixtures(t, db)

	d := f.CreateDistrict(ctx, "Musanze", "MS-01")
	existing := f.CreateUser(ctx, "Existing Admin", "existing@intorehub.rw", models.RoleDistrictAdmin, models.Hierarchy{
		DistrictID: &d.ID,
	})

	if err := ensureSuperAdmin(ctx, deps, "existing@intorehub.rw", "", testLogger()); err != nil {
		t.Fatalf("ensureSuperAdmin failed: %v", err)
	}

	user, err := userstore.New(db).GetByID(ctx, existing.ID)
	if err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if user.Role != models.RoleSuperAdmin {
		t.Errorf("role = %q, want promotion to super_admin", user.Role)
	}
	if user.Hierarchy.DistrictID != nil {
		t.Error("promotion must clear the hierarchy")
	}
}

func TestEnsureSuperAdmin_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	deps := DBDeps{MongoDatabase: db}

	for i := 0; i < 2; i++ {
		if err := ensureSuperAdmin(ctx, deps, "root@intorehub.rw", "first-boot-password", testLogger()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	n, err := db.Collection("users").CountDocuments(ctx, map[string]any{"email": "root@intorehub.rw"})
	if err != nil {
		t.Fatalf("count users: %v", err)
	}
	if n != 1 {
		t.Fatalf("got %d super admin rows, want 1", n)
	}
}
