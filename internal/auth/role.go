package auth

import "fmt"

// Role is the three-tier authorization level. Roles are totally ordered:
// every gate an Anonymous identity passes, User and Admin pass too.
type Role int

const (
	// RoleAnonymous is the sentinel for unauthenticated identities. It is
	// never persisted; the roles table starts at RoleUser.
	RoleAnonymous Role = iota
	RoleUser
	RoleAdmin
)

// RoleFromID maps a persisted role id onto a Role. Only user and admin
// exist in storage.
func RoleFromID(id int) (Role, error) {
	switch id {
	case int(RoleUser), int(RoleAdmin):
		return Role(id), nil
	default:
		return RoleAnonymous, fmt.Errorf("%w: unknown role id %d", ErrInvalidInput, id)
	}
}

// ID returns the persisted role id. Anonymous has no row and maps to zero.
func (r Role) ID() int { return int(r) }

// Satisfies reports whether the role meets a route's minimum requirement.
func (r Role) Satisfies(required Role) bool { return r >= required }

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return "anonymous"
	}
}
