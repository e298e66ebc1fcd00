package payments

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/medilink-erp/medilink-erp/internal/billing"
	"github.com/medilink-erp/medilink-erp/internal/platform/httpx"
	"github.com/medilink-erp/medilink-erp/internal/shared"
)

// Handler exposes the payment endpoints.
type Handler struct {
	service *Service
	idem    *shared.IdempotencyStore
}

// NewHandler constructs Handler. The idempotency store is optional;
// without it the Idempotency-Key header is ignored.
func NewHandler(service *Service, idem *shared.IdempotencyStore) *Handler {
	return &Handler{service: service, idem: idem}
}

// Routes mounts the payment endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/invoices/{id}/payments", h.record)
	r.Get("/invoices/{id}/payments", h.list)
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req RecordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	req.InvoiceID = invoiceID
	req.ActorID, _ = strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" && h.idem != nil {
		if err := h.idem.CheckAndInsert(r.Context(), idemKey, "payments.record"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
				return
			}
			httpx.RespondError(w, err)
			return
		}
	}

	payment, err := h.service.Record(r.Context(), req)
	if err != nil {
		if idemKey != "" && h.idem != nil {
			_ = h.idem.Delete(r.Context(), idemKey)
		}
		respondPaymentError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	out, err := h.service.ListForInvoice(r.Context(), invoiceID)
	if err != nil {
		respondPaymentError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func respondPaymentError(w http.ResponseWriter, err error) {
	var balanceErr *ExceedsBalanceError
	var validationErr validator.ValidationErrors

	switch {
	case errors.Is(err, billing.ErrInvoiceNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, billing.ErrInvoiceCancelled):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &balanceErr):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Payment Exceeds Balance", err.Error())
	case errors.As(err, &validationErr):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrTransientConflict):
		httpx.Problem(w, http.StatusServiceUnavailable, "Temporarily Unavailable", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
