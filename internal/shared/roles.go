package shared

// Role enumerates the actor roles known to the system.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleSales      Role = "sales"
	RoleOperations Role = "operations"
	RoleAccountant Role = "accountant"
	RoleAdmin      Role = "admin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSales, RoleOperations, RoleAccountant, RoleAdmin:
		return true
	}
	return false
}

// Actor identifies who performs a transition. It is passed explicitly into
// every service call; nothing in the core reads the current user from
// ambient state.
type Actor struct {
	ID                int64
	Role              Role
	CanSeeCostBreakup bool
}

// IsStaff reports whether the actor belongs to the internal team.
func (a Actor) IsStaff() bool {
	return a.Role == RoleSales || a.Role == RoleOperations || a.Role == RoleAccountant || a.Role == RoleAdmin
}
