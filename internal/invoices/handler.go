package invoices

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
	"github.com/atelier-btp/atelier-btp/internal/quotes"
	"github.com/atelier-btp/atelier-btp/internal/shared"
)

// FactureRenderer produces the printable document for a facture.
type FactureRenderer interface {
	RenderFacture(ctx context.Context, f *Facture) ([]byte, error)
}

type Handler struct {
	logger    *slog.Logger
	service   *Service
	renderer  FactureRenderer
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, renderer FactureRenderer) *Handler {
	return &Handler{logger: logger, service: service, renderer: renderer, validator: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/envoyer", h.Send)
	r.Post("/{id}/payer", h.MarkPaid)
	r.Post("/{id}/annuler", h.Cancel)
	r.Get("/{id}/pdf", h.PDF)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req := ListFacturesRequest{Page: 1, PerPage: 20, Search: r.URL.Query().Get("search")}
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
	if raw := q.Get("overdue"); raw == "true" || raw == "1" {
		req.Overdue = true
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
		h.logger.Error("list factures", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"factures":   list,
		"pagination": shared.NewPagination(req.Page, req.PerPage, total),
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateFactureRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	f, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.respondFactureError(w, err, "create facture")
		return
	}
	httpx.JSON(w, http.StatusCreated, f)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.factureID(w, r)
	if !ok {
		return
	}
	f, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondFactureError(w, err, "get facture")
		return
	}
	httpx.JSON(w, http.StatusOK, f)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.factureID(w, r)
	if !ok {
		return
	}
	var req UpdateFactureRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	f, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.respondFactureError(w, err, "update facture")
		return
	}
	httpx.JSON(w, http.StatusOK, f)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.factureID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondFactureError(w, err, "delete facture")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.service.Send, "send facture")
}

func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.service.MarkPaid, "mark facture paid")
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.service.Cancel, "cancel facture")
}

func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	id, ok := h.factureID(w, r)
	if !ok {
		return
	}
	f, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondFactureError(w, err, "get facture")
		return
	}
	doc, err := h.renderer.RenderFacture(r.Context(), f)
	if err != nil {
		h.logger.Error("render facture pdf", slog.Int64("facture_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+f.Reference+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

func (h *Handler) statusChange(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) (*Facture, error), op string) {
	id, ok := h.factureID(w, r)
	if !ok {
		return
	}
	f, err := fn(r.Context(), id)
	if err != nil {
		h.respondFactureError(w, err, op)
		return
	}
	httpx.JSON(w, http.StatusOK, f)
}

func (h *Handler) factureID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid facture id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondFactureError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown facture")
	case errors.Is(err, quotes.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown devis")
	case errors.Is(err, clients.ErrNotFound):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown client")
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrNotDraft), errors.Is(err, ErrNotAccepted):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
