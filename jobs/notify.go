package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	jobmetrics "github.com/voyagecrm/voyagecrm/internal/jobs"
	"github.com/voyagecrm/voyagecrm/internal/payments"
)

var notifyPrinter = message.NewPrinter(language.English)

// Notifier enqueues payment event notifications. It satisfies the payment
// service's notifier port; delivery happens asynchronously in the worker.
type Notifier struct {
	client *Client
	logger *slog.Logger
}

// NewNotifier constructs a Notifier.
func NewNotifier(client *Client, logger *slog.Logger) *Notifier {
	return &Notifier{client: client, logger: logger}
}

// PaymentEvent enqueues one notification task.
func (n *Notifier) PaymentEvent(ctx context.Context, p *payments.Payment, event string) error {
	task, err := NewNotifyPaymentEventTask(NotifyPaymentEventPayload{
		PaymentID: p.ID,
		InvoiceID: p.InvoiceID,
		Amount:    p.Amount.StringFixed(2),
		Event:     event,
	})
	if err != nil {
		return err
	}
	if _, err := n.client.Enqueue(ctx, task); err != nil {
		n.logger.Warn("enqueue payment notification", slog.Any("error", err))
		return err
	}
	return nil
}

// NotifyHandler processes queued payment notifications.
type NotifyHandler struct {
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewNotifyHandler constructs the handler.
func NewNotifyHandler(logger *slog.Logger, metrics *jobmetrics.Metrics) *NotifyHandler {
	return &NotifyHandler{logger: logger, metrics: metrics}
}

// Handle formats and delivers one notification. Delivery is currently a
// structured log line; TODO: route through the transactional mail sender
// once the template set lands.
func (h *NotifyHandler) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := h.metrics.Track("notify_payment_event")
	var payload NotifyPaymentEventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	text := notifyPrinter.Sprintf("Payment #%d on invoice #%d (%s): %s",
		payload.PaymentID, payload.InvoiceID, payload.Amount, payload.Event)
	h.logger.Info("payment notification", slog.String("message", text))
	return tracker.End(nil)
}
