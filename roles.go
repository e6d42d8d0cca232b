package insurance

import (
	"strings"

	"github.com/samber/lo"
)

// Role is the account role used by the role gate
type Role string

const (
	// RolePatient owns policies and submits claims
	RolePatient Role = "patient"
	// RoleProvider issues policies and reviews claims
	RoleProvider Role = "provider"
	// RoleAdministrator manages everything, including account activation
	RoleAdministrator Role = "administrator"
)

// Roles lists every valid role
var Roles = []Role{RolePatient, RoleProvider, RoleAdministrator}

// StaffRoles can act on records owned by other accounts
var StaffRoles = []Role{RoleAdministrator, RoleProvider}

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	return lo.Contains(Roles, r)
}

// IsStaff reports whether the role may act on behalf of other accounts
func (r Role) IsStaff() bool {
	return lo.Contains(StaffRoles, r)
}

// ParseRole normalizes raw input. Empty input yields the patient role.
func ParseRole(raw string) (Role, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return RolePatient, nil
	}
	role := Role(raw)
	if !role.IsValid() {
		return "", ErrInvalidRole
	}
	return role, nil
}
