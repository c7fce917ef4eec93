// internal/app/system/cascade/cascade.go
package cascade

// Role propagation rules:
//   - District.admin = u  → u.role = district_admin, u.hierarchy = {district}
//   - Sector.admin = u    → u.role = sector_admin,   u.hierarchy = {district, sector}
//   - Cell.admin = u      → u.role = cell_admin,     u.hierarchy = {district, sector, cell}
//   - IntoreGroup.leader = u → u.intore_group_id = group._id (role unchanged)
//
// A replaced admin is demoted to the public role; their hierarchy fields are
// left in place as last-known residence. Every assignment is applied as one
// unit of work: all mutations are planned first, then applied inside a
// transaction when the server supports one.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/intorehq/intorehub/internal/app/system/txn"
	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ErrParentNotFound is returned when a referenced parent entity cannot be
// found during auto-fill or assignment. The triggering write is rejected
// before any field is propagated.
var ErrParentNotFound = errors.New("referenced parent not found")

// Synchronizer propagates denormalized role and hierarchy fields.
// Re-applying any operation with the same inputs produces the same end state.
type Synchronizer struct {
	db     *mongo.Database
	client *mongo.Client
	log    *zap.Logger
}

// New creates a Synchronizer over the given database.
func New(db *mongo.Database, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{db: db, client: db.Client(), log: logger}
}

// mutation is one intended write inside a unit of work.
type mutation struct {
	collection string
	filter     bson.M
	update     bson.M
}

// apply runs the planned mutations in order, transactionally when possible.
func (s *Synchronizer) apply(ctx context.Context, muts []mutation) error {
	return txn.WithTransaction(ctx, s.client, s.log, func(ctx context.Context) error {
		for _, m := range muts {
			if _, err := s.db.Collection(m.collection).UpdateOne(ctx, m.filter, m.update); err != nil {
				return err
			}
		}
		return nil
	})
}

/* ------------------------------ auto-fill ------------------------------- */

// FillCellParents fills cell.DistrictID from the sector's district when the
// cell was created with only a sector reference. Nothing is written; the
// caller persists the cell afterwards.
func (s *Synchronizer) FillCellParents(ctx context.Context, cell *models.Cell) error {
	var sec struct {
		DistrictID primitive.ObjectID `bson:"district_id"`
	}
	err := s.db.Collection("sectors").FindOne(ctx, bson.M{"_id": cell.SectorID}).Decode(&sec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: sector %s", ErrParentNotFound, cell.SectorID.Hex())
	}
	if err != nil {
		return err
	}
	if cell.DistrictID.IsZero() {
		cell.DistrictID = sec.DistrictID
	}
	return nil
}

// FillGroupParents derives a group's sector and district transitively from
// its cell reference.
func (s *Synchronizer) FillGroupParents(ctx context.Context, group *models.IntoreGroup) error {
	var cell struct {
		SectorID   primitive.ObjectID `bson:"sector_id"`
		DistrictID primitive.ObjectID `bson:"district_id"`
	}
	err := s.db.Collection("cells").FindOne(ctx, bson.M{"_id": group.CellID}).Decode(&cell)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: cell %s", ErrParentNotFound, group.CellID.Hex())
	}
	if err != nil {
		return err
	}
	if group.SectorID.IsZero() {
		group.SectorID = cell.SectorID
	}
	if group.DistrictID.IsZero() {
		group.DistrictID = cell.DistrictID
	}
	return nil
}

/* --------------------------- admin assignment --------------------------- */

// AssignDistrictAdmin sets the district's admin and promotes the user to
// district_admin with a district-only hierarchy.
func (s *Synchronizer) AssignDistrictAdmin(ctx context.Context, districtID, userID primitive.ObjectID) error {
	var d models.District
	if err := s.db.Collection("districts").FindOne(ctx, bson.M{"_id": districtID}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("%w: district %s", ErrParentNotFound, districtID.Hex())
		}
		return err
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}

	now := time.Now().UTC()
	muts := []mutation{
		{
			collection: "districts",
			filter:     bson.M{"_id": districtID},
			update:     bson.M{"$set": bson.M{"admin_id": userID, "updated_at": now}},
		},
		{
			collection: "users",
			filter:     bson.M{"_id": userID},
			update: bson.M{"$set": bson.M{
				"role":       models.RoleDistrictAdmin,
				"hierarchy":  bson.M{"district_id": districtID},
				"updated_at": now,
			}},
		},
	}
	muts = appendDemotion(muts, d.AdminID, userID, models.RoleDistrictAdmin, now)
	return s.apply(ctx, muts)
}

// AssignSectorAdmin sets the sector's admin and promotes the user to
// sector_admin, propagating the sector's district onto the user.
func (s *Synchronizer) AssignSectorAdmin(ctx context.Context, sectorID, userID primitive.ObjectID) error {
	var sec models.Sector
	if err := s.db.Collection("sectors").FindOne(ctx, bson.M{"_id": sectorID}).Decode(&sec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("%w: sector %s", ErrParentNotFound, sectorID.Hex())
		}
		return err
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}

	now := time.Now().UTC()
	muts := []mutation{
		{
			collection: "sectors",
			filter:     bson.M{"_id": sectorID},
			update:     bson.M{"$set": bson.M{"admin_id": userID, "updated_at": now}},
		},
		{
			collection: "users",
			filter:     bson.M{"_id": userID},
			update: bson.M{"$set": bson.M{
				"role": models.RoleSectorAdmin,
				"hierarchy": bson.M{
					"district_id": sec.DistrictID,
					"sector_id":   sectorID,
				},
				"updated_at": now,
			}},
		},
	}
	muts = appendDemotion(muts, sec.AdminID, userID, models.RoleSectorAdmin, now)
	return s.apply(ctx, muts)
}

// AssignCellAdmin sets the cell's admin and promotes the user to cell_admin,
// propagating the cell's full district/sector/cell chain onto the user.
func (s *Synchronizer) AssignCellAdmin(ctx context.Context, cellID, userID primitive.ObjectID) error {
	var cell models.Cell
	if err := s.db.Collection("cells").FindOne(ctx, bson.M{"_id": cellID}).Decode(&cell); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("%w: cell %s", ErrParentNotFound, cellID.Hex())
		}
		return err
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}

	now := time.Now().UTC()
	muts := []mutation{
		{
			collection: "cells",
			filter:     bson.M{"_id": cellID},
			update:     bson.M{"$set": bson.M{"admin_id": userID, "updated_at": now}},
		},
		{
			collection: "users",
			filter:     bson.M{"_id": userID},
			update: bson.M{"$set": bson.M{
				"role": models.RoleCellAdmin,
				"hierarchy": bson.M{
					"district_id": cell.DistrictID,
					"sector_id":   cell.SectorID,
					"cell_id":     cellID,
				},
				"updated_at": now,
			}},
		},
	}
	muts = appendDemotion(muts, cell.AdminID, userID, models.RoleCellAdmin, now)
	return s.apply(ctx, muts)
}

// AssignGroupLeader sets the group's leader and points the user's
// intore_group_id at the group. The user's role is unchanged.
func (s *Synchronizer) AssignGroupLeader(ctx context.Context, groupID, userID primitive.ObjectID) error {
	err := s.db.Collection("intore_groups").FindOne(ctx, bson.M{"_id": groupID}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: intore group %s", ErrParentNotFound, groupID.Hex())
	}
	if err != nil {
		return err
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}

	now := time.Now().UTC()
	return s.apply(ctx, []mutation{
		{
			collection: "intore_groups",
			filter:     bson.M{"_id": groupID},
			update:     bson.M{"$set": bson.M{"leader_id": userID, "updated_at": now}},
		},
		{
			collection: "users",
			filter:     bson.M{"_id": userID},
			update:     bson.M{"$set": bson.M{"intore_group_id": groupID, "updated_at": now}},
		},
	})
}

/* ------------------------------- helpers -------------------------------- */

// requireUser rejects the assignment before any propagation when the target
// user does not exist.
func (s *Synchronizer) requireUser(ctx context.Context, userID primitive.ObjectID) error {
	err := s.db.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: user %s", ErrParentNotFound, userID.Hex())
	}
	return err
}

// appendDemotion demotes the previously assigned admin to the public role
// when an entity's admin is replaced. The role filter keeps this a no-op if
// the previous admin was already reassigned elsewhere, and assigning the
// same user twice plans no demotion at all.
func appendDemotion(muts []mutation, prevAdmin *primitive.ObjectID, newAdmin primitive.ObjectID, fromRole string, now time.Time) []mutation {
	if prevAdmin == nil || *prevAdmin == newAdmin {
		return muts
	}
	return append(muts, mutation{
		collection: "users",
		filter:     bson.M{"_id": *prevAdmin, "role": fromRole},
		update:     bson.M{"$set": bson.M{"role": models.RolePublic, "updated_at": now}},
	})
}
