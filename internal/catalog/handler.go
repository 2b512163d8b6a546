package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atelier-btp/atelier-btp/internal/platform/httpx"
	"github.com/atelier-btp/atelier-btp/internal/shared"
)

type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/ouvrages", func(r chi.Router) {
		r.Get("/", h.ListOuvrages)
		r.Post("/", h.CreateOuvrage)
		r.Get("/{id}", h.ShowOuvrage)
		r.Put("/{id}", h.UpdateOuvrage)
		r.Delete("/{id}", h.DeleteOuvrage)
	})
	r.Route("/materiaux", func(r chi.Router) {
		r.Get("/", h.ListMaterials)
		r.Post("/", h.CreateMaterial)
		r.Get("/{id}", h.ShowMaterial)
		r.Put("/{id}", h.UpdateMaterial)
		r.Delete("/{id}", h.DeleteMaterial)
	})
}

func (h *Handler) parseFilters(r *http.Request) ListFilters {
	f := ListFilters{
		Search:  r.URL.Query().Get("search"),
		Page:    1,
		PerPage: 20,
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && n > 0 {
		f.Page = n
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && n > 0 {
		f.PerPage = n
	}
	if raw := r.URL.Query().Get("is_active"); raw != "" {
		active := raw == "true" || raw == "1"
		f.IsActive = &active
	}
	return f
}

func (h *Handler) ListOuvrages(w http.ResponseWriter, r *http.Request) {
	f := h.parseFilters(r)
	list, total, err := h.service.ListOuvrages(r.Context(), f)
	if err != nil {
		h.logger.Error("list ouvrages", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"ouvrages":   list,
		"pagination": shared.NewPagination(f.Page, f.PerPage, total),
	})
}

func (h *Handler) ShowOuvrage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid ouvrage id")
		return
	}
	o, err := h.service.GetOuvrage(r.Context(), id)
	if err != nil {
		h.respondCatalogError(w, err, "get ouvrage")
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) CreateOuvrage(w http.ResponseWriter, r *http.Request) {
	var req CreateOuvrageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	o, err := h.service.CreateOuvrage(r.Context(), req)
	if err != nil {
		h.respondCatalogError(w, err, "create ouvrage")
		return
	}
	httpx.JSON(w, http.StatusCreated, o)
}

func (h *Handler) UpdateOuvrage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid ouvrage id")
		return
	}
	var req UpdateOuvrageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	o, err := h.service.UpdateOuvrage(r.Context(), id, req)
	if err != nil {
		h.respondCatalogError(w, err, "update ouvrage")
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) DeleteOuvrage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid ouvrage id")
		return
	}
	if err := h.service.DeleteOuvrage(r.Context(), id); err != nil {
		h.respondCatalogError(w, err, "delete ouvrage")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	f := h.parseFilters(r)
	list, total, err := h.service.ListMaterials(r.Context(), f)
	if err != nil {
		h.logger.Error("list materiaux", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"materiaux":  list,
		"pagination": shared.NewPagination(f.Page, f.PerPage, total),
	})
}

func (h *Handler) ShowMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid material id")
		return
	}
	m, err := h.service.GetMaterial(r.Context(), id)
	if err != nil {
		h.respondCatalogError(w, err, "get material")
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) CreateMaterial(w http.ResponseWriter, r *http.Request) {
	var req CreateMaterialRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	m, err := h.service.CreateMaterial(r.Context(), req)
	if err != nil {
		h.respondCatalogError(w, err, "create material")
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) UpdateMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid material id")
		return
	}
	var req UpdateMaterialRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	m, err := h.service.UpdateMaterial(r.Context(), id, req)
	if err != nil {
		h.respondCatalogError(w, err, "update material")
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) DeleteMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid material id")
		return
	}
	if err := h.service.DeleteMaterial(r.Context(), id); err != nil {
		h.respondCatalogError(w, err, "delete material")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondCatalogError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown catalog entry")
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "code already in use")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
