package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/voyagecrm/voyagecrm/internal/jobs"
)

// QuotationExpirer is the slice of the quotation service the sweep needs.
type QuotationExpirer interface {
	ExpireLapsed(ctx context.Context, now time.Time) ([]int64, error)
}

// ExpirySweep handles the periodic quotation expiry sweep.
type ExpirySweep struct {
	expirer QuotationExpirer
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewExpirySweep constructs the sweep handler.
func NewExpirySweep(expirer QuotationExpirer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpirySweep {
	return &ExpirySweep{expirer: expirer, logger: logger, metrics: metrics}
}

// Handle processes one sweep run.
func (s *ExpirySweep) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := s.metrics.Track("quotation_expiry_sweep")
	flipped, err := s.expirer.ExpireLapsed(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("expiry sweep failed", slog.Any("error", err), slog.Int("flipped", len(flipped)))
		return tracker.End(err)
	}
	if len(flipped) > 0 {
		s.logger.Info("expiry sweep flipped quotations", slog.Int("count", len(flipped)))
	}
	return tracker.End(nil)
}
