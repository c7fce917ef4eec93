// internal/app/system/authz/authz.go
package authz

import (
	"context"
	"net/http"

	"github.com/intorehq/intorehub/internal/app/system/auth"
	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserSource resolves a user ID to the stored user document. Satisfied by
// the users store.
type UserSource interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Resolver loads the full user document behind a request principal. Scope
// checks need the hierarchy fields, which live on the document rather than
// in the session.
type Resolver struct {
	users UserSource
}

// NewResolver creates a Resolver over the given user source.
func NewResolver(users UserSource) *Resolver {
	return &Resolver{users: users}
}

// Actor returns the stored user behind the signed-in principal, or nil when
// the request is anonymous or the principal no longer resolves.
func (z *Resolver) Actor(r *http.Request) *models.User {
	p, ok := auth.CurrentUser(r)
	if !ok {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return nil
	}
	u, err := z.users.GetByID(r.Context(), id)
	if err != nil {
		return nil
	}
	return u
}

func matches(ref *primitive.ObjectID, id primitive.ObjectID) bool {
	return ref != nil && *ref == id
}

// CanManageDistrict reports whether u may mutate entities scoped to the
// given district. District admins are confined to their own district.
func CanManageDistrict(u *models.User, districtID primitive.ObjectID) bool {
	if u == nil {
		return false
	}
	switch u.Role {
	case models.RoleSuperAdmin:
		return true
	case models.RoleDistrictAdmin:
		return matches(u.Hierarchy.DistrictID, districtID)
	}
	return false
}

// CanManageSector reports whether u may mutate entities scoped to the given
// sector. Sector admins are confined to their own sector; district admins
// to sectors of their district.
func CanManageSector(u *models.User, sec models.Sector) bool {
	if u == nil {
		return false
	}
	switch u.Role {
	case models.RoleSuperAdmin:
		return true
	case models.RoleDistrictAdmin:
		return matches(u.Hierarchy.DistrictID, sec.DistrictID)
	case models.RoleSectorAdmin:
		return matches(u.Hierarchy.SectorID, sec.ID)
	}
	return false
}

// CanManageCell reports whether u may mutate entities scoped to the given
// cell.
func CanManageCell(u *models.User, cell models.Cell) bool {
	if u == nil {
		return false
	}
	switch u.Role {
	case models.RoleSuperAdmin:
		return true
	case models.RoleDistrictAdmin:
		return matches(u.Hierarchy.DistrictID, cell.DistrictID)
	case models.RoleSectorAdmin:
		return matches(u.Hierarchy.SectorID, cell.SectorID)
	case models.RoleCellAdmin:
		return matches(u.Hierarchy.CellID, cell.ID)
	}
	return false
}

// CanManageGroup reports whether u may mutate the given intore group or
// entities scoped to it. Group leaders qualify through their group
// reference regardless of role.
func CanManageGroup(u *models.User, g models.IntoreGroup) bool {
	if u == nil {
		return false
	}
	if u.IntoreGroupID != nil && *u.IntoreGroupID == g.ID && g.LeaderID != nil && *g.LeaderID == u.ID {
		return true
	}
	switch u.Role {
	case models.RoleSuperAdmin:
		return true
	case models.RoleDistrictAdmin:
		return matches(u.Hierarchy.DistrictID, g.DistrictID)
	case models.RoleSectorAdmin:
		return matches(u.Hierarchy.SectorID, g.SectorID)
	case models.RoleCellAdmin:
		return matches(u.Hierarchy.CellID, g.CellID)
	}
	return false
}

// InGroup reports whether u belongs to the given intore group.
func InGroup(u *models.User, groupID primitive.ObjectID) bool {
	return u != nil && u.IntoreGroupID != nil && *u.IntoreGroupID == groupID
}
