package membership

import (
	"fmt"
	"strings"
)

// Role is a user's tier inside one project. The zero value is not a role.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleMember
	RoleProjectAdmin
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleMember:
		return "MEMBER"
	case RoleProjectAdmin:
		return "PROJECT_ADMIN"
	case RoleAdmin:
		return "ADMIN"
	case RoleUnknown:
		return "UNKNOWN"
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// Valid reports whether r is one of the three tiers.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleProjectAdmin, RoleAdmin:
		return true
	case RoleUnknown:
		return false
	}
	return false
}

// Assignable reports whether r may be granted through the member endpoints.
// ADMIN is only ever seeded for a project's creator.
func (r Role) Assignable() bool {
	switch r {
	case RoleMember, RoleProjectAdmin:
		return true
	case RoleAdmin, RoleUnknown:
		return false
	}
	return false
}

// ParseRole accepts the wire names case-insensitively.
func ParseRole(raw string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "MEMBER":
		return RoleMember, nil
	case "PROJECT_ADMIN":
		return RoleProjectAdmin, nil
	case "ADMIN":
		return RoleAdmin, nil
	}
	return RoleUnknown, fmt.Errorf("%w: %q", ErrInvalidRole, raw)
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRole, uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// RoleSet is a set of roles allowed to perform an action.
type RoleSet uint8

// Roles builds a RoleSet. Invalid roles are ignored.
func Roles(rs ...Role) RoleSet {
	var s RoleSet
	for _, r := range rs {
		if r.Valid() {
			s |= 1 << r
		}
	}
	return s
}

// Has reports whether r is in the set.
func (s RoleSet) Has(r Role) bool {
	return r.Valid() && s&(1<<r) != 0
}

func (s RoleSet) String() string {
	var names []string
	for _, r := range []Role{RoleMember, RoleProjectAdmin, RoleAdmin} {
		if s.Has(r) {
			names = append(names, r.String())
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}
