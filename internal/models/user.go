package models

import "time"

// UserRole distinguishes developers (assignable) from managers.
type UserRole string

const (
	UserRoleDev     UserRole = "dev"
	UserRoleManager UserRole = "manager"
)

// User represents a team member. Subject is the external identity
// provider's subject id and is unique across users.
type User struct {
	ID        string
	Subject   string
	Name      string
	Email     string
	Role      UserRole
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidUserRole reports whether r is a known role value.
func ValidUserRole(r UserRole) bool {
	return r == UserRoleDev || r == UserRoleManager
}
