package domain

import "time"

// Canonical role names seeded at bootstrap.
const (
	RoleAdmin     = "Admin"
	RoleModerator = "Moderator"
	RoleUser      = "User"
)

// Role is a pure label; it carries no attributes beyond its name.
type Role struct {
	ID          string
	Name        string
	Description *string
}

// AccountRole assigns a role to an account.
type AccountRole struct {
	AccountID  string
	RoleID     string
	AssignedAt time.Time
}

// SeededRoles returns the fixed role set provisioned at startup.
func SeededRoles() []string {
	return []string{RoleAdmin, RoleModerator, RoleUser}
}

// KnownRole reports whether name belongs to the seeded role set.
func KnownRole(name string) bool {
	switch name {
	case RoleAdmin, RoleModerator, RoleUser:
		return true
	}
	return false
}

// HasRole reports whether the provided role set contains the wanted role.
func HasRole(roles []string, wanted string) bool {
	for _, role := range roles {
		if role == wanted {
			return true
		}
	}
	return false
}
