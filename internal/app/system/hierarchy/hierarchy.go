// internal/app/system/hierarchy/hierarchy.go
package hierarchy

import (
	"context"
	"fmt"

	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Refs answers existence and parentage questions about hierarchy entities.
// The validator depends only on "does X exist" and "what is X's parent".
type Refs interface {
	District(ctx context.Context, id primitive.ObjectID) (bool, error)
	Sector(ctx context.Context, id primitive.ObjectID) (SectorRef, bool, error)
	Cell(ctx context.Context, id primitive.ObjectID) (CellRef, bool, error)
	Group(ctx context.Context, id primitive.ObjectID) (GroupRef, bool, error)
}

// SectorRef is the parent reference carried by a sector.
type SectorRef struct {
	DistrictID primitive.ObjectID
}

// CellRef is the parent chain carried by a cell.
type CellRef struct {
	SectorID   primitive.ObjectID
	DistrictID primitive.ObjectID
}

// GroupRef is the parent chain carried by an intore group.
type GroupRef struct {
	CellID     primitive.ObjectID
	SectorID   primitive.ObjectID
	DistrictID primitive.ObjectID
}

// Result is the outcome of a validation pass. Errors holds every rule
// violation found, not just the first one.
type Result struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

func invalid(errs []string) Result { return Result{IsValid: false, Errors: errs} }

var valid = Result{IsValid: true}

// Validator checks that a claimed role and its district/sector/cell
// references form a coherent chain. Rules are evaluated independently and
// all applicable errors are collected; validation failures are reported in
// the Result, never as an error. The error return is reserved for store
// failures.
type Validator struct {
	refs Refs
}

// New creates a Validator over the given reference source.
func New(refs Refs) *Validator {
	return &Validator{refs: refs}
}

// Validate applies the per-role rules:
//
//	super_admin, public — no hierarchy required, always valid
//	district_admin      — district required and must exist
//	sector_admin        — district and sector required; sector must exist
//	                      and belong to the given district
//	cell_admin, member  — district, sector, cell required; cell must exist
//	                      and its sector/district must match the given ones
func (v *Validator) Validate(ctx context.Context, role string, districtID, sectorID, cellID *primitive.ObjectID) (Result, error) {
	switch role {
	case models.RoleSuperAdmin, models.RolePublic:
		return valid, nil

	case models.RoleDistrictAdmin:
		var errs []string
		if districtID == nil {
			errs = append(errs, "district is required for role district_admin")
		} else {
			ok, err := v.refs.District(ctx, *districtID)
			if err != nil {
				return Result{}, err
			}
			if !ok {
				errs = append(errs, fmt.Sprintf("district %s does not exist", districtID.Hex()))
			}
		}
		if len(errs) > 0 {
			return invalid(errs), nil
		}
		return valid, nil

	case models.RoleSectorAdmin:
		var errs []string
		if districtID == nil {
			errs = append(errs, "district is required for role sector_admin")
		}
		if sectorID == nil {
			errs = append(errs, "sector is required for role sector_admin")
		} else {
			ref, ok, err := v.refs.Sector(ctx, *sectorID)
			if err != nil {
				return Result{}, err
			}
			switch {
			case !ok:
				errs = append(errs, fmt.Sprintf("sector %s does not exist", sectorID.Hex()))
			case districtID != nil && ref.DistrictID != *districtID:
				errs = append(errs, fmt.Sprintf("sector %s does not belong to district %s", sectorID.Hex(), districtID.Hex()))
			}
		}
		if len(errs) > 0 {
			return invalid(errs), nil
		}
		return valid, nil

	case models.RoleCellAdmin, models.RoleMember:
		var errs []string
		if districtID == nil {
			errs = append(errs, fmt.Sprintf("district is required for role %s", role))
		}
		if sectorID == nil {
			errs = append(errs, fmt.Sprintf("sector is required for role %s", role))
		}
		if cellID == nil {
			errs = append(errs, fmt.Sprintf("cell is required for role %s", role))
		} else {
			ref, ok, err := v.refs.Cell(ctx, *cellID)
			if err != nil {
				return Result{}, err
			}
			switch {
			case !ok:
				errs = append(errs, fmt.Sprintf("cell %s does not exist", cellID.Hex()))
			default:
				if sectorID != nil && ref.SectorID != *sectorID {
					errs = append(errs, fmt.Sprintf("cell %s does not belong to sector %s", cellID.Hex(), sectorID.Hex()))
				}
				if districtID != nil && ref.DistrictID != *districtID {
					errs = append(errs, fmt.Sprintf("cell %s does not belong to district %s", cellID.Hex(), districtID.Hex()))
				}
			}
		}
		if len(errs) > 0 {
			return invalid(errs), nil
		}
		return valid, nil
	}

	return invalid([]string{fmt.Sprintf("unknown role %q", role)}), nil
}

// ValidateSectorParent checks a sector's own parent reference at write time.
func (v *Validator) ValidateSectorParent(ctx context.Context, districtID primitive.ObjectID) (Result, error) {
	ok, err := v.refs.District(ctx, districtID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return invalid([]string{fmt.Sprintf("district %s does not exist", districtID.Hex())}), nil
	}
	return valid, nil
}

// ValidateCellParents checks a cell's sector/district pair. districtID may be
// the zero ObjectID when the caller expects auto-fill from the sector.
func (v *Validator) ValidateCellParents(ctx context.Context, sectorID, districtID primitive.ObjectID) (Result, error) {
	ref, ok, err := v.refs.Sector(ctx, sectorID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return invalid([]string{fmt.Sprintf("sector %s does not exist", sectorID.Hex())}), nil
	}
	if !districtID.IsZero() && ref.DistrictID != districtID {
		return invalid([]string{fmt.Sprintf("sector %s does not belong to district %s", sectorID.Hex(), districtID.Hex())}), nil
	}
	return valid, nil
}

// ValidateGroupParents checks an intore group's cell/sector/district chain.
// Sector and district may be zero when the caller expects auto-fill.
func (v *Validator) ValidateGroupParents(ctx context.Context, cellID, sectorID, districtID primitive.ObjectID) (Result, error) {
	ref, ok, err := v.refs.Cell(ctx, cellID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return invalid([]string{fmt.Sprintf("cell %s does not exist", cellID.Hex())}), nil
	}
	var errs []string
	if !sectorID.IsZero() && ref.SectorID != sectorID {
		errs = append(errs, fmt.Sprintf("cell %s does not belong to sector %s", cellID.Hex(), sectorID.Hex()))
	}
	if !districtID.IsZero() && ref.DistrictID != districtID {
		errs = append(errs, fmt.Sprintf("cell %s does not belong to district %s", cellID.Hex(), districtID.Hex()))
	}
	if len(errs) > 0 {
		return invalid(errs), nil
	}
	return valid, nil
}
