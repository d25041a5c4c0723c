// Package users manages accounts, roles and the cost-visibility grant.
package users

import (
	"time"

	"github.com/voyagecrm/voyagecrm/internal/shared"
)

// User represents a user account for management.
type User struct {
	ID                int64       `json:"id"`
	Email             string      `json:"email"`
	Name              string      `json:"name"`
	Role              shared.Role `json:"role"`
	CanSeeCostBreakup bool        `json:"can_see_cost_breakup"`
	IsActive          bool        `json:"is_active"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}
