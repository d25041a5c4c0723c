package auth

import (
	"time"

	"github.com/voyagecrm/voyagecrm/internal/shared"
)

// User is the credential-bearing account record.
type User struct {
	ID                int64
	Email             string
	Name              string
	PasswordHash      string
	Role              shared.Role
	CanSeeCostBreakup bool
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Actor converts the account into the explicit actor passed through every
// service call.
func (u *User) Actor() shared.Actor {
	return shared.Actor{ID: u.ID, Role: u.Role, CanSeeCostBreakup: u.CanSeeCostBreakup}
}
