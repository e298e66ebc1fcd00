package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/medilink-erp/medilink-erp/internal/platform/httpx"
)

// Handler exposes the delivery-note endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the delivery endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/notes", h.create)
	r.Get("/notes/{id}", h.get)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	note, err := h.service.Create(r.Context(), req)
	if err != nil {
		respondDeliveryError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, note)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	note, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondDeliveryError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

func respondDeliveryError(w http.ResponseWriter, err error) {
	var validationErr validator.ValidationErrors
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrOrderNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyConverted), errors.Is(err, ErrOrderNotConfirmed):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &validationErr):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
