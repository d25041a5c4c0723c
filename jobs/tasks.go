// Package jobs defines the asynq task surface: the quotation expiry sweep
// and payment event notifications.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskQuotationExpirySweep flips lapsed SENT quotations to EXPIRED.
	TaskQuotationExpirySweep = "quotation:expiry_sweep"
	// TaskNotifyPaymentEvent delivers a payment lifecycle notification.
	TaskNotifyPaymentEvent = "notify:payment_event"

	// ExpirySweepCron runs the sweep every thirty minutes. The sweep is
	// cosmetic: Accept re-checks expiry against the clock regardless.
	ExpirySweepCron = "*/30 * * * *"
)

// NotifyPaymentEventPayload carries the data needed to format a payment
// notification.
type NotifyPaymentEventPayload struct {
	PaymentID int64  `json:"payment_id"`
	InvoiceID int64  `json:"invoice_id"`
	Amount    string `json:"amount"`
	Event     string `json:"event"`
}

// NewExpirySweepTask constructs the sweep task. It carries no payload; the
// handler works off the clock.
func NewExpirySweepTask() *asynq.Task {
	return asynq.NewTask(TaskQuotationExpirySweep, nil)
}

// NewNotifyPaymentEventTask constructs a notification task.
func NewNotifyPaymentEventTask(payload NotifyPaymentEventPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyPaymentEvent, data), nil
}
