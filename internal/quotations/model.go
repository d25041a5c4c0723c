// Package quotations owns the quotation lifecycle:
// DRAFT → SENT → {ACCEPTED, REJECTED, EXPIRED}.
package quotations

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/voyagecrm/voyagecrm/internal/pricing"
)

// Status enumerates quotation lifecycle states.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusSent     Status = "SENT"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusExpired
}

// Quotation is a priced offer against a travel request. Mutable only while
// DRAFT; SENT is a frozen snapshot with an expiry clock.
type Quotation struct {
	ID                 int64           `json:"id"`
	RequestID          int64           `json:"request_id"`
	Status             Status          `json:"status"`
	Lines              []pricing.Line  `json:"-"`
	Pricing            pricing.Summary `json:"pricing"`
	Discount           decimal.Decimal `json:"discount"`
	TCSPercent         decimal.Decimal `json:"tcs_percent"`
	TravelerCount      int             `json:"traveler_count"`
	AdvancePercent     decimal.Decimal `json:"advance_percent"`
	SelectedCategories []string        `json:"selected_categories"`
	Details            string          `json:"detailed_data,omitempty"`
	ExpiryDate         *time.Time      `json:"expiry_date,omitempty"`
	PublishedAt        *time.Time      `json:"published_at,omitempty"`
	CreatedBy          int64           `json:"created_by"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Acceptable answers "can this quotation still be accepted at t". The stored
// status saying SENT and being acceptable are two different questions:
// expiry is evaluated lazily, not flipped by a background job.
func (q Quotation) Acceptable(t time.Time) bool {
	if q.Status != StatusSent {
		return false
	}
	return q.ExpiryDate != nil && t.Before(*q.ExpiryDate)
}

// TimeRemaining reports how long until expiry, zero once lapsed. Only
// meaningful for SENT quotations.
func (q Quotation) TimeRemaining(t time.Time) time.Duration {
	if q.ExpiryDate == nil {
		return 0
	}
	remaining := q.ExpiryDate.Sub(t)
	if remaining < 0 {
		return 0
	}
	return remaining
}
