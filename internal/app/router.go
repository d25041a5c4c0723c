package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/voyagecrm/voyagecrm/internal/activity"
	"github.com/voyagecrm/voyagecrm/internal/auth"
	"github.com/voyagecrm/voyagecrm/internal/billing"
	"github.com/voyagecrm/voyagecrm/internal/observability"
	"github.com/voyagecrm/voyagecrm/internal/payments"
	"github.com/voyagecrm/voyagecrm/internal/quotations"
	"github.com/voyagecrm/voyagecrm/internal/reporting"
	"github.com/voyagecrm/voyagecrm/internal/requests"
	"github.com/voyagecrm/voyagecrm/internal/shared"
	"github.com/voyagecrm/voyagecrm/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager

	AuthHandler      *auth.Handler
	RequestHandler   *requests.Handler
	QuotationHandler *quotations.Handler
	BillingHandler   *billing.Handler
	PaymentHandler   *payments.Handler
	ReportHandler    *reporting.Handler
	ActivityHandler  *activity.Handler
	UsersHandler     *users.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/requests", params.RequestHandler.MountRoutes)
	r.Route("/quotations", params.QuotationHandler.MountRoutes)
	r.Route("/invoices", params.BillingHandler.MountRoutes)
	r.Route("/payments", params.PaymentHandler.MountRoutes)
	r.Route("/reports", params.ReportHandler.MountRoutes)
	r.Route("/activities", params.ActivityHandler.MountRoutes)
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
