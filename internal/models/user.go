package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleContributor UserRole = "CONTRIBUTOR"
	RoleMaintainer  UserRole = "MAINTAINER"
	RoleSponsor     UserRole = "SPONSOR"
	RoleAdmin       UserRole = "ADMIN"
)

// Valid reports whether the role is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleContributor, RoleMaintainer, RoleSponsor, RoleAdmin:
		return true
	}
	return false
}
