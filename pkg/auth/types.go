package auth

import (
	"fmt"
	"strings"
	"time"
)

// Role is a department role. The set is closed: anything outside AllRoles
// is rejected when parsed.
type Role string

const (
	RoleDMV         Role = "DMV"          // Department of Motor Vehicles
	RoleMPD         Role = "MPD"          // Police department
	RoleFHP         Role = "FHP"          // Highway patrol
	RoleFSD         Role = "FSD"          // Sheriff's department
	RoleICE         Role = "ICE"          // Immigration enforcement
	RoleIRS         Role = "IRS"          // Revenue service
	RoleDirectorMPD Role = "Director_MPD" // MPD leadership
	RoleDirectorFHP Role = "Director_FHP" // FHP leadership
	RoleDirectorFSD Role = "Director_FSD" // FSD leadership
	RoleIT          Role = "IT"           // System administration
)

// AllRoles lists every valid role in display order.
var AllRoles = []Role{
	RoleDMV, RoleMPD, RoleFHP, RoleFSD, RoleICE, RoleIRS,
	RoleDirectorMPD, RoleDirectorFHP, RoleDirectorFSD, RoleIT,
}

// ParseRole converts a wire string to a Role. Matching is exact.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of AllRoles.
func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// IsDirector reports whether r is a Director_* role.
func (r Role) IsDirector() bool {
	return strings.HasPrefix(string(r), "Director_")
}

func (r Role) String() string {
	return string(r)
}

// User is a stored user account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Never expose hash
	Role         Role      `json:"role"`
	Department   *string   `json:"department"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	CreatedBy    *int64    `json:"createdBy"`
}

// Identity returns the session-bound projection of the user.
func (u *User) Identity() *Identity {
	id := &Identity{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
		IsActive: u.IsActive,
	}
	if u.Department != nil {
		id.Department = *u.Department
	}
	return id
}

// Identity is the authenticated principal attached to a request.
type Identity struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Role       Role   `json:"role"`
	Department string `json:"department,omitempty"`
	IsActive   bool   `json:"isActive"`
}
