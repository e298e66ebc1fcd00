package inventory

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/medilink-erp/medilink-erp/internal/platform/httpx"
)

// Handler exposes the stock endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// Routes mounts the inventory endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/receipts", h.postReceipt)
	r.Post("/write-offs", h.postWriteOff)
	r.Get("/availability/{productID}", h.availability)
	r.Get("/expiring", h.expiring)
}

func (h *Handler) postReceipt(w http.ResponseWriter, r *http.Request) {
	var input ReceiptInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	input.ActorID, _ = strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)

	lot, err := h.service.PostReceipt(r.Context(), input)
	if err != nil {
		respondInventoryError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, lot)
}

func (h *Handler) postWriteOff(w http.ResponseWriter, r *http.Request) {
	var input WriteOffInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	input.ActorID, _ = strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)

	if err := h.service.PostWriteOff(r.Context(), input); err != nil {
		respondInventoryError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "written-off"})
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	qty, err := h.service.Availability(r.Context(), productID)
	if err != nil {
		respondInventoryError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product_id": productID, "available": qty})
}

func (h *Handler) expiring(w http.ResponseWriter, r *http.Request) {
	within := 90 * 24 * time.Hour
	if raw := r.URL.Query().Get("within"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Duration", err.Error())
			return
		}
		within = d
	}
	lots, err := h.service.ListExpiring(r.Context(), within)
	if err != nil {
		respondInventoryError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lots)
}

func respondInventoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLotNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrWriteOffExceedsAvailable):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
