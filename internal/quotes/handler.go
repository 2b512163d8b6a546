package quotes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atelier-btp/atelier-btp/internal/clients"
	"github.com/atelier-btp/atelier-btp/internal/platform/httpx"
	"github.com/atelier-btp/atelier-btp/internal/shared"
)

// DevisRenderer produces the printable document for a devis.
type DevisRenderer interface {
	RenderDevis(ctx context.Context, d *Devis) ([]byte, error)
}

// InvoiceConverter creates a facture from an accepted devis and returns
// its id and reference.
type InvoiceConverter interface {
	FromDevis(ctx context.Context, devisID int64) (int64, string, error)
}

type Handler struct {
	logger    *slog.Logger
	service   *Service
	renderer  DevisRenderer
	converter InvoiceConverter
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, renderer DevisRenderer, converter InvoiceConverter) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		renderer:  renderer,
		converter: converter,
		validator: validator.New(),
	}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/envoyer", h.Send)
	r.Post("/{id}/accepter", h.Accept)
	r.Post("/{id}/refuser", h.Refuse)
	r.Post("/{id}/facture", h.Convert)
	r.Get("/{id}/pdf", h.PDF)
}

// MountPublicRoutes exposes the unauthenticated share link.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/partage/{token}", h.Shared)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req := ListDevisRequest{Page: 1, PerPage: 20, Search: r.URL.Query().Get("search")}
	q := r.URL.Query()
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		req.Page = n
	}
	if n, err := strconv.Atoi(q.Get("per_page")); err == nil && n > 0 {
		req.PerPage = n
	}
	if raw := q.Get("client_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			req.ClientID = &id
		}
	}
	if raw := q.Get("status"); raw != "" {
		status := Status(raw)
		req.Status = &status
	}
	if raw := q.Get("date_from"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			req.DateFrom = &t
		}
	}
	if raw := q.Get("date_to"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			req.DateTo = &t
		}
	}

	list, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list devis", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"devis":      list,
		"pagination": shared.NewPagination(req.Page, req.PerPage, total),
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateDevisRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	d, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.respondDevisError(w, err, "create devis")
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.devisID(w, r)
	if !ok {
		return
	}
	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondDevisError(w, err, "get devis")
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) Shared(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	d, err := h.service.GetShared(r.Context(), token)
	if err != nil {
		h.respondDevisError(w, err, "get shared devis")
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.devisID(w, r)
	if !ok {
		return
	}
	var req UpdateDevisRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	d, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.respondDevisError(w, err, "update devis")
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.devisID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondDevisError(w, err, "delete devis")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.service.Send, "send devis")
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.service.Accept, "accept devis")
}

func (h *Handler) Refuse(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.service.Refuse, "refuse devis")
}

func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	id, ok := h.devisID(w, r)
	if !ok {
		return
	}
	invoiceID, reference, err := h.converter.FromDevis(r.Context(), id)
	if err != nil {
		h.respondDevisError(w, err, "convert devis")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"facture_id": invoiceID,
		"reference":  reference,
	})
}

func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	id, ok := h.devisID(w, r)
	if !ok {
		return
	}
	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondDevisError(w, err, "get devis")
		return
	}
	doc, err := h.renderer.RenderDevis(r.Context(), d)
	if err != nil {
		h.logger.Error("render devis pdf", slog.Int64("devis_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+d.Reference+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

func (h *Handler) statusChange(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) (*Devis, error), op string) {
	id, ok := h.devisID(w, r)
	if !ok {
		return
	}
	d, err := fn(r.Context(), id)
	if err != nil {
		h.respondDevisError(w, err, op)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) devisID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid devis id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondDevisError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown devis")
	case errors.Is(err, clients.ErrNotFound):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown client")
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrNotDraft):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
