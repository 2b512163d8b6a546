package settings

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atelier-btp/atelier-btp/internal/platform/httpx"
)

type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

type upsertRequest struct {
	Value       string  `json:"value" validate:"required"`
	Description *string `json:"description,omitempty"`
}

func (h *Handler) ListCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	values, err := h.service.ListByCategory(r.Context(), category)
	if err != nil {
		h.logger.Error("list settings", slog.String("category", category), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"settings": values})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	key := chi.URLParam(r, "key")

	setting, err := h.service.Get(r.Context(), category, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown setting")
			return
		}
		h.logger.Error("get setting", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, setting)
}

func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	key := chi.URLParam(r, "key")

	var req upsertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	setting := Setting{Category: category, Key: key, Value: req.Value, Description: req.Description}
	if err := h.service.Upsert(r.Context(), setting); err != nil {
		h.logger.Error("upsert setting", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, setting)
}
