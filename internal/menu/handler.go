package menu

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joao-fontenele/foodflow/internal/httpx"
)

type Handler struct {
	catalog Catalog
	logger  *slog.Logger
	resp    *httpx.Responder
}

func NewHandler(catalog Catalog, logger *slog.Logger) *Handler {
	return &Handler{
		catalog: catalog,
		logger:  logger,
		resp:    httpx.NewResponder(logger),
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/menu", h.HandleList)
	r.Get("/menu/{id}", h.HandleGet)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list menu items", "error", err)
		h.resp.Error(w, r, http.StatusInternalServerError, "Failed to fetch menu items")
		return
	}

	h.resp.JSON(w, r, http.StatusOK, items)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.catalog.GetByID(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get menu item", "error", err, "menu_item_id", id)
		h.resp.Error(w, r, http.StatusInternalServerError, "Failed to fetch menu item")
		return
	}

	if item == nil {
		h.resp.Error(w, r, http.StatusNotFound, "Menu item not found")
		return
	}

	h.resp.JSON(w, r, http.StatusOK, item)
}
