package numbering

import (
	"log/slog"
	"net/http"
	"strconv"

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

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{type}/preview", h.Preview)
	r.Get("/{type}/historique", h.History)
	r.Post("/{type}/reset", h.Reset)
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	docType := DocumentType(chi.URLParam(r, "type"))

	ref, err := h.service.Preview(r.Context(), docType)
	if err != nil {
		h.logger.Error("preview reference", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{
		"document_type": string(docType),
		"reference":     ref,
	})
}

type resetRequest struct {
	Value int64 `json:"value" validate:"gte=0"`
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	docType := DocumentType(chi.URLParam(r, "type"))

	var req resetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.Value == 0 {
		req.Value = 1
	}

	if err := h.service.ResetCounter(r.Context(), docType, req.Value); err != nil {
		h.logger.Error("reset counter", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "value": req.Value})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	docType := DocumentType(chi.URLParam(r, "type"))

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	entries, err := h.service.History(r.Context(), docType, limit)
	if err != nil {
		h.logger.Error("list numbering history", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": entries})
}
