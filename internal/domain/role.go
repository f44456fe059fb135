package domain

import (
	"fmt"
	"strings"
)

// Role enumerates caller roles handed over by the identity provider.
type Role string

const (
	RoleCitizen    Role = "CITIZEN"
	RoleOfficer    Role = "OFFICER"
	RoleSupervisor Role = "SUPERVISOR"
	RoleAdmin      Role = "ADMIN"
)

// ParseRole accepts a role name in any case.
func ParseRole(raw string) (Role, error) {
	switch role := Role(strings.ToUpper(strings.TrimSpace(raw))); role {
	case RoleCitizen, RoleOfficer, RoleSupervisor, RoleAdmin:
		return role, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Actor is the verified caller of an operation.
type Actor struct {
	ID   string
	Role Role
}
