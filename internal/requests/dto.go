package requests

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateRequest struct {
	// CustomerID is only honoured for staff callers creating a request on a
	// customer's behalf; customers always create their own.
	CustomerID  int64           `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	Title       string          `json:"title" validate:"required,max=200"`
	Categories  []string        `json:"categories" validate:"required,min=1,dive,oneof=holiday hotel visa mice sightseeing transport_within_city transport_to_destination"`
	BudgetMin   decimal.Decimal `json:"budget_min"`
	BudgetMax   decimal.Decimal `json:"budget_max"`
	StartDate   *time.Time      `json:"start_date,omitempty"`
	EndDate     *time.Time      `json:"end_date,omitempty"`
	PeopleCount int             `json:"people_count" validate:"required,gt=0"`
	Notes       string          `json:"notes" validate:"max=2000"`
}

type UpdateRequest struct {
	Title       *string          `json:"title,omitempty" validate:"omitempty,max=200"`
	Categories  *[]string        `json:"categories,omitempty" validate:"omitempty,min=1,dive,oneof=holiday hotel visa mice sightseeing transport_within_city transport_to_destination"`
	BudgetMin   *decimal.Decimal `json:"budget_min,omitempty"`
	BudgetMax   *decimal.Decimal `json:"budget_max,omitempty"`
	StartDate   *time.Time       `json:"start_date,omitempty"`
	EndDate     *time.Time       `json:"end_date,omitempty"`
	PeopleCount *int             `json:"people_count,omitempty" validate:"omitempty,gt=0"`
	Notes       *string          `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type AssignRequest struct {
	AssignedTo int64 `json:"assigned_to" validate:"required,gt=0"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

// ListFilter narrows and pages request listings.
type ListFilter struct {
	Status     Status
	AssignedTo int64
	CustomerID int64
	Page       int
	PerPage    int
}
