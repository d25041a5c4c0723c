package billing

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/voyagecrm/voyagecrm/internal/platform/httpx"
	"github.com/voyagecrm/voyagecrm/internal/pricing"
	"github.com/voyagecrm/voyagecrm/internal/shared"
	"github.com/voyagecrm/voyagecrm/internal/visibility"
)

// LineSource resolves the cost breakup behind an invoice's quotation so the
// visibility policy can be applied to the invoice composition read.
type LineSource interface {
	CostBreakup(ctx context.Context, quotationID int64) ([]pricing.Line, error)
}

// Handler manages invoice endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	lines   LineSource
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, lines LineSource) *Handler {
	return &Handler{logger: logger, service: service, lines: lines}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listByRequest)
	r.Get("/{id}", h.getInvoice)
}

type invoiceDetailResponse struct {
	*InvoiceWithInstallments
	CostBreakup any `json:"cost_breakup,omitempty"`
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}

	detail, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	resp := invoiceDetailResponse{InvoiceWithInstallments: detail}
	if h.lines != nil {
		lines, err := h.lines.CostBreakup(r.Context(), detail.QuotationID)
		if err != nil {
			h.logger.Warn("resolve invoice cost breakup", slog.Int64("invoice_id", id), slog.Any("error", err))
		} else {
			resp.CostBreakup = visibility.FilterLines(visibility.Decide(actor), lines)
		}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) listByRequest(w http.ResponseWriter, r *http.Request) {
	if _, ok := shared.ActorFromContext(r.Context()); !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	requestID, err := strconv.ParseInt(r.URL.Query().Get("request_id"), 10, 64)
	if err != nil || requestID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "request_id query parameter required")
		return
	}

	invoices, err := h.service.ListByRequest(r.Context(), requestID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}
