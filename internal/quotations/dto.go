package quotations

import (
	"time"

	"github.com/shopspring/decimal"
)

type LineRequest struct {
	Name     string          `json:"name" validate:"required,max=200"`
	Supplier string          `json:"supplier" validate:"max=200"`
	Date     time.Time       `json:"date"`
	Quantity decimal.Decimal `json:"quantity" validate:"required"`
	UnitCost decimal.Decimal `json:"unit_cost" validate:"required"`
}

type CreateQuotationRequest struct {
	RequestID int64           `json:"request_id" validate:"required,gt=0"`
	Lines     []LineRequest   `json:"lines" validate:"required,min=1,dive"`
	Discount  decimal.Decimal `json:"discount"`

	// TCSPercent nil means the statutory default; an explicit 0 waives the
	// levy, so absent and zero are distinct.
	TCSPercent *decimal.Decimal `json:"tcs_percent,omitempty"`

	TravelerCount      int             `json:"traveler_count" validate:"required,gt=0"`
	AdvancePercent     decimal.Decimal `json:"advance_percent"`
	SelectedCategories []string        `json:"selected_categories" validate:"dive,oneof=holiday hotel visa mice sightseeing transport_within_city transport_to_destination"`
	Details            string          `json:"detailed_data"`
}

type UpdateQuotationRequest struct {
	Lines              *[]LineRequest   `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
	Discount           *decimal.Decimal `json:"discount,omitempty"`
	TCSPercent         *decimal.Decimal `json:"tcs_percent,omitempty"`
	TravelerCount      *int             `json:"traveler_count,omitempty" validate:"omitempty,gt=0"`
	AdvancePercent     *decimal.Decimal `json:"advance_percent,omitempty"`
	SelectedCategories *[]string        `json:"selected_categories,omitempty" validate:"omitempty,dive,oneof=holiday hotel visa mice sightseeing transport_within_city transport_to_destination"`
	Details            *string          `json:"detailed_data,omitempty"`
}

type PublishRequest struct {
	ExpiryDate time.Time `json:"expiry_date" validate:"required"`
	Notes      string    `json:"notes"`
}

// AcceptRequest optionally carries a custom installment schedule; when
// absent the default two-installment plan applies.
type AcceptRequest struct {
	ScheduleCount int         `json:"schedule_count" validate:"gte=0,lte=12"`
	DueDates      []time.Time `json:"due_dates" validate:"omitempty,dive,required"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

// ListFilter narrows and pages quotation listings.
type ListFilter struct {
	RequestID int64
	Status    Status
	Page      int
	PerPage   int
}
