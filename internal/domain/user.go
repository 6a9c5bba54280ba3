package domain

import "time"

// Role enumerates the closed set of staff roles.
type Role string

const (
	RoleRO        Role = "RO"
	RoleDO        Role = "DO"
	RoleFO        Role = "FO"
	RoleSuperuser Role = "superuser"
)

// Roles lists every assignable role.
var Roles = []Role{RoleRO, RoleDO, RoleFO, RoleSuperuser}

// IsValid reports whether r belongs to the closed role set.
func (r Role) IsValid() bool {
	for _, candidate := range Roles {
		if candidate == r {
			return true
		}
	}
	return false
}

// User is a staff member of the feedback program.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	Role         Role
	BranchCode   string
	BranchName   string
	City         string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName prefers the full name and falls back to the username.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
