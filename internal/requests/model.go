// Package requests manages customer travel requests, the root aggregate
// every quotation and invoice hangs off.
package requests

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates travel request states. ACCEPTED is set by the
// quotation accept transition, never directly.
type Status string

const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusAccepted   Status = "ACCEPTED"
	StatusCancelled  Status = "CANCELLED"
)

// Editable reports whether the request can still be modified. Accepted
// requests are frozen except for cancellation.
func (s Status) Editable() bool {
	return s == StatusNew || s == StatusInProgress
}

// TravelRequest captures what the customer asked for before any pricing.
type TravelRequest struct {
	ID            int64           `json:"id"`
	CustomerID    int64           `json:"customer_id"`
	Title         string          `json:"title"`
	Categories    []string        `json:"categories"`
	BudgetMin     decimal.Decimal `json:"budget_min"`
	BudgetMax     decimal.Decimal `json:"budget_max"`
	StartDate     *time.Time      `json:"start_date,omitempty"`
	EndDate       *time.Time      `json:"end_date,omitempty"`
	PeopleCount   int             `json:"people_count"`
	Status        Status          `json:"status"`
	AssignedTo    *int64          `json:"assigned_to,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
