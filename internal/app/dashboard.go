package app

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atelier-btp/atelier-btp/internal/invoices"
	"github.com/atelier-btp/atelier-btp/internal/platform/httpx"
	"github.com/atelier-btp/atelier-btp/internal/quotes"
)

// DashboardHandler aggregates activity counters for the home screen.
type DashboardHandler struct {
	logger   *slog.Logger
	quotes   *quotes.Service
	invoices *invoices.Service
}

func NewDashboardHandler(logger *slog.Logger, quotesSvc *quotes.Service, invoicesSvc *invoices.Service) *DashboardHandler {
	return &DashboardHandler{logger: logger, quotes: quotesSvc, invoices: invoicesSvc}
}

type dashboardData struct {
	Devis       map[quotes.Status]int   `json:"devis"`
	Factures    map[invoices.Status]int `json:"factures"`
	Outstanding float64                 `json:"encours"`
	Overdue     int                     `json:"factures_en_retard"`
}

func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	var data dashboardData

	g, ctx := errgroup.WithContext(r.Context())

	g.Go(func() error {
		counts, err := h.quotes.CountByStatus(ctx)
		if err != nil {
			return err
		}
		data.Devis = counts
		return nil
	})

	g.Go(func() error {
		counts, err := h.invoices.CountByStatus(ctx)
		if err != nil {
			return err
		}
		data.Factures = counts
		return nil
	})

	g.Go(func() error {
		total, err := h.invoices.OutstandingTotal(ctx)
		if err != nil {
			return err
		}
		data.Outstanding = total
		return nil
	})

	g.Go(func() error {
		overdue, err := h.invoices.ListOverdue(ctx, time.Now())
		if err != nil {
			return err
		}
		data.Overdue = len(overdue)
		return nil
	})

	if err := g.Wait(); err != nil {
		h.logger.Error("load dashboard", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, data)
}
