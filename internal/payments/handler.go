package payments

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/voyagecrm/voyagecrm/internal/billing"
	"github.com/voyagecrm/voyagecrm/internal/platform/httpx"
	"github.com/voyagecrm/voyagecrm/internal/shared"
)

// AllocationSource exposes the allocation trail a verified payment left
// behind.
type AllocationSource interface {
	AllocationsForPayment(ctx context.Context, paymentID int64) ([]billing.Allocation, error)
}

// Handler manages payment endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	allocations AllocationSource
	validate    *validator.Validate
	idempotency *shared.IdempotencyStore
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, allocations AllocationSource, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, allocations: allocations, validate: validator.New(), idempotency: idempotency}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.show)
	r.Get("/{id}/allocations", h.allocationTrail)
	r.Post("/", h.submit)
	r.Post("/{id}/verify-accountant", h.verifyAccountant)
	r.Post("/{id}/verify-ops", h.verifyOps)
	r.Post("/{id}/reject", h.reject)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (shared.Actor, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
	}
	return actor, ok
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payment id")
		return 0, false
	}
	return id, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	q := r.URL.Query()
	filter := ListFilter{Status: Status(q.Get("status"))}
	filter.InvoiceID, _ = strconv.ParseInt(q.Get("invoice_id"), 10, 64)
	filter.Page, filter.PerPage = shared.PageParams(q)

	payments, pagination, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": payments, "pagination": pagination})
}

func (h *Handler) allocationTrail(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	// the payment lookup keeps unknown ids a 404 instead of an empty trail
	if _, err := h.service.Get(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.allocations.AllocationsForPayment(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"allocations": list})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req SubmitPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key != "" {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, "payments"); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}

	p, err := h.service.Submit(r.Context(), actor, req)
	if err != nil {
		if key != "" {
			// allow the client to retry once the underlying failure clears
			_ = h.idempotency.Delete(r.Context(), key)
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) verifyAccountant(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, h.service.VerifyByAccountant)
}

func (h *Handler) verifyOps(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, h.service.VerifyByOps)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actor shared.Actor, id int64, notes string) (*Payment, error)) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var req VerifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	p, err := fn(r.Context(), actor, id, req.Notes)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var req RejectPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	p, err := h.service.Reject(r.Context(), actor, id, req.Reason)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}
