package billing

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/medilink-erp/medilink-erp/internal/credit"
	"github.com/medilink-erp/medilink-erp/internal/delivery"
	"github.com/medilink-erp/medilink-erp/internal/inventory"
	"github.com/medilink-erp/medilink-erp/internal/masterdata/products"
	"github.com/medilink-erp/medilink-erp/internal/platform/httpx"
	"github.com/medilink-erp/medilink-erp/internal/sales/customers"
	"github.com/medilink-erp/medilink-erp/internal/shared"
)

// Handler exposes the order and invoice endpoints.
type Handler struct {
	service *Service
	idem    *shared.IdempotencyStore
}

// NewHandler constructs Handler. The idempotency store is optional;
// without it the Idempotency-Key header is ignored.
func NewHandler(service *Service, idem *shared.IdempotencyStore) *Handler {
	return &Handler{service: service, idem: idem}
}

// Routes mounts the billing endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Post("/orders/draft", h.placeOrder)
	r.Post("/orders/{id}/confirm", h.confirmOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/invoices/{id}", h.getInvoice)
	r.Post("/invoices/{id}/cancel", h.cancelInvoice)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	req.ActorID = actorID(r)

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" && h.idem != nil {
		if err := h.idem.CheckAndInsert(r.Context(), idemKey, "billing.create-order"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
				return
			}
			httpx.RespondError(w, err)
			return
		}
	}

	res, err := h.service.CreateOrder(r.Context(), req)
	if err != nil {
		if idemKey != "" && h.idem != nil {
			_ = h.idem.Delete(r.Context(), idemKey)
		}
		respondBillingError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	req.ActorID = actorID(r)

	order, err := h.service.PlaceOrder(r.Context(), req)
	if err != nil {
		respondBillingError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.ConfirmOrder(r.Context(), id, actorID(r)); err != nil {
		respondBillingError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(OrderStatusConfirmed)})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		respondBillingError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		respondBillingError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req CancelInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	req.InvoiceID = id
	req.ActorID = actorID(r)

	if err := h.service.CancelInvoice(r.Context(), req); err != nil {
		respondBillingError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(InvoiceStatusCancelled)})
}

// respondBillingError maps workflow failures onto problem responses.
func respondBillingError(w http.ResponseWriter, err error) {
	var limitErr *credit.LimitExceededError
	var stockErr *inventory.InsufficientStockError
	var validationErr validator.ValidationErrors

	switch {
	case errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrInvoiceNotFound),
		errors.Is(err, customers.ErrNotFound),
		errors.Is(err, products.ErrNotFound),
		errors.Is(err, delivery.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &limitErr):
		httpx.Problem(w, http.StatusConflict, "Credit Limit Exceeded", err.Error())
	case errors.As(err, &stockErr):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrOrderNotInvoiceable),
		errors.Is(err, ErrOrderNotConfirmable),
		errors.Is(err, ErrInvoiceCancelled),
		errors.Is(err, delivery.ErrAlreadyConverted):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrTransientConflict):
		httpx.Problem(w, http.StatusServiceUnavailable, "Temporarily Unavailable", err.Error())
	case errors.As(err, &validationErr),
		errors.Is(err, ErrNoItems),
		errors.Is(err, ErrItemsFromSource),
		errors.Is(err, ErrUpfrontExceedsTotal),
		errors.Is(err, ErrProductInactive),
		errors.Is(err, customers.ErrInactive),
		errors.Is(err, customers.ErrBlacklisted),
		errors.Is(err, products.ErrInvalidTaxRate):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
