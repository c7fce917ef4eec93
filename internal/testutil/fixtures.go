package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
// Calls chain: an existing route context is reused.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateDistrict creates a test district with the given name and code.
func (f *Fixtures) CreateDistrict(ctx context.Context, name, code string) models.District {
	f.t.Helper()

	now := time.Now().UTC()
	district := models.District{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Code:      code,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := f.db.Collection("districts").InsertOne(ctx, district)
	if err != nil {
		f.t.Fatalf("failed to create test district: %v", err)
	}

	return district
}

// CreateSector creates a test sector in the given district.
func (f *Fixtures) CreateSector(ctx context.Context, name, code string, districtID primitive.ObjectID) models.Sector {
	f.t.Helper()

	now := time.Now().UTC()
	sector := models.Sector{
		ID:         primitive.NewObjectID(),
		Name:       name,
		NameCI:     text.Fold(name),
		Code:       code,
		DistrictID: districtID,
		Status:     "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := f.db.Collection("sectors").InsertOne(ctx, sector)
	if err != nil {
		f.t.Fatalf("failed to create test sector: %v", err)
	}

	return sector
}

// CreateCell creates a test cell in the given sector, with the district
// reference already filled the way the cascade layer would fill it.
func (f *Fixtures) CreateCell(ctx context.Context, name, code string, sectorID, districtID primitive.ObjectID) models.Cell {
	f.t.Helper()

	now := time.Now().UTC()
	cell := models.Cell{
		ID:         primitive.NewObjectID(),
		Name:       name,
		NameCI:     text.Fold(name),
		Code:       code,
		SectorID:   sectorID,
		DistrictID: districtID,
		Status:     "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := f.db.Collection("cells").InsertOne(ctx, cell)
	if err != nil {
		f.t.Fatalf("failed to create test cell: %v", err)
	}

	return cell
}

// CreateGroup creates a test intore group in the given cell.
func (f *Fixtures) CreateGroup(ctx context.Context, name, code string, cell models.Cell) models.IntoreGroup {
	f.t.Helper()

	now := time.Now().UTC()
	group := models.IntoreGroup{
		ID:         primitive.NewObjectID(),
		Name:       name,
		NameCI:     text.Fold(name),
		Code:       code,
		CellID:     cell.ID,
		SectorID:   cell.SectorID,
		DistrictID: cell.DistrictID,
		Status:     "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := f.db.Collection("intore_groups").InsertOne(ctx, group)
	if err != nil {
		f.t.Fatalf("failed to create test intore group: %v", err)
	}

	return group
}

// CreateUser creates a test user with the given role and hierarchy.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email, role string, hierarchy models.Hierarchy) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:         primitive.NewObjectID(),
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Email:      email,
		Role:       role,
		Status:     "active",
		Hierarchy:  hierarchy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := f.db.Collection("users").InsertOne(ctx, user)
	if err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateSuperAdmin creates a test super admin user.
func (f *Fixtures) CreateSuperAdmin(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleSuperAdmin, models.Hierarchy{})
}

// CreatePublicUser creates a test public user with no hierarchy.
func (f *Fixtures) CreatePublicUser(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RolePublic, models.Hierarchy{})
}

// CreateMember creates a test member with the full district/sector/cell chain.
func (f *Fixtures) CreateMember(ctx context.Context, fullName, email string, districtID, sectorID, cellID primitive.ObjectID) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleMember, models.Hierarchy{
		DistrictID: &districtID,
		SectorID:   &sectorID,
		CellID:     &cellID,
	})
}

// CreateDistrictAdmin creates a test district admin for the given district.
func (f *Fixtures) CreateDistrictAdmin(ctx context.Context, fullName, email string, districtID primitive.ObjectID) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleDistrictAdmin, models.Hierarchy{
		DistrictID: &districtID,
	})
}

// CreateActivity creates a test activity scoped to the given group.
func (f *Fixtures) CreateActivity(ctx context.Context, title string, group models.IntoreGroup, startsAt time.Time) models.Activity {
	f.t.Helper()

	now := time.Now().UTC()
	endsAt := startsAt.Add(2 * time.Hour)
	activity := models.Activity{
		ID:            primitive.NewObjectID(),
		Title:         title,
		TitleCI:       text.Fold(title),
		IntoreGroupID: group.ID,
		CellID:        group.CellID,
		SectorID:      group.SectorID,
		DistrictID:    group.DistrictID,
		StartsAt:      startsAt,
		EndsAt:        &endsAt,
		CreatedBy:     primitive.NewObjectID(),
		Status:        "scheduled",
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := f.db.Collection("activities").InsertOne(ctx, activity)
	if err != nil {
		f.t.Fatalf("failed to create test activity: %v", err)
	}

	return activity
}
