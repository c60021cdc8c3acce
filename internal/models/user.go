package models

import "github.com/golang-jwt/jwt/v5"

// Role controls which routes a logged-in user may reach. It does not gate
// data mutations; any authenticated user may edit any group.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleCommander Role = "commander"
	RoleCadet     Role = "cadet"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCommander, RoleCadet:
		return true
	}
	return false
}

// User is the logged-in identity, used for display and route gating only.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Claims is the JWT payload issued at login.
type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}
