package orders

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/httpx"
	"github.com/joao-fontenele/foodflow/internal/lifecycle"
	"github.com/joao-fontenele/foodflow/internal/validation"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
	resp    *httpx.Responder
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		resp:    httpx.NewResponder(logger),
	}
}

// Routes mounts the order endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/orders", h.HandleList)
	r.Post("/orders", h.HandleCreate)
	r.Get("/orders/{id}", h.HandleGet)
	r.Patch("/orders/{id}/status", h.HandleUpdateStatus)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateOrderInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.writeValidation(w, r, "Validation failed", err)
		return
	}

	order, err := h.service.Create(r.Context(), input)
	if err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			h.resp.ValidationError(w, r, "Validation failed", verr)
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to create order", "error", err)
		h.resp.Error(w, r, http.StatusInternalServerError, "Failed to create order")
		return
	}

	h.resp.JSON(w, r, http.StatusCreated, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	var filter ListFilter
	for _, s := range r.URL.Query()["status"] {
		filter.Statuses = append(filter.Statuses, domain.OrderStatus(s))
	}

	orders, err := h.service.List(r.Context(), filter)
	if err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			h.resp.ValidationError(w, r, "Invalid status", verr)
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to list orders", "error", err)
		h.resp.Error(w, r, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}

	h.resp.JSON(w, r, http.StatusOK, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.resp.Error(w, r, http.StatusNotFound, "Order not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to get order", "error", err, "order_id", id)
		h.resp.Error(w, r, http.StatusInternalServerError, "Failed to fetch order")
		return
	}

	h.resp.JSON(w, r, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeValidation(w, r, "Invalid status", err)
		return
	}

	order, err := h.service.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		var verr *validation.Error
		switch {
		case errors.As(err, &verr):
			h.resp.ValidationError(w, r, "Invalid status", verr)
		case errors.Is(err, ErrNotFound):
			h.resp.Error(w, r, http.StatusNotFound, "Order not found")
		case errors.Is(err, lifecycle.ErrInvalidTransition):
			h.resp.Error(w, r, http.StatusConflict, "Invalid status transition")
		case errors.Is(err, ErrStatusConflict):
			h.resp.Error(w, r, http.StatusConflict, "Order status changed, retry the request")
		default:
			h.logger.ErrorContext(r.Context(), "failed to update order status", "error", err, "order_id", id)
			h.resp.Error(w, r, http.StatusInternalServerError, "Failed to update order status")
		}
		return
	}

	h.resp.JSON(w, r, http.StatusOK, order)
}

func (h *Handler) writeValidation(w http.ResponseWriter, r *http.Request, message string, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		h.resp.ValidationError(w, r, message, verr)
		return
	}
	h.resp.Error(w, r, http.StatusBadRequest, message)
}
