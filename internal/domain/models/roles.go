// internal/domain/models/roles.go
package models

// Role values, from widest to narrowest scope.
const (
	RoleSuperAdmin    = "super_admin"
	RoleDistrictAdmin = "district_admin"
	RoleSectorAdmin   = "sector_admin"
	RoleCellAdmin     = "cell_admin"
	RoleMember        = "member"
	RolePublic        = "public"
)

// ValidRole reports whether role is one of the known role values.
func ValidRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleDistrictAdmin, RoleSectorAdmin, RoleCellAdmin, RoleMember, RolePublic:
		return true
	}
	return false
}

// Status values shared by all entities that support soft delete.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)
