package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/atelier-btp/atelier-btp/internal/catalog"
	"github.com/atelier-btp/atelier-btp/internal/clients"
	"github.com/atelier-btp/atelier-btp/internal/invoices"
	"github.com/atelier-btp/atelier-btp/internal/numbering"
	"github.com/atelier-btp/atelier-btp/internal/observability"
	"github.com/atelier-btp/atelier-btp/internal/prescribers"
	"github.com/atelier-btp/atelier-btp/internal/quotes"
	"github.com/atelier-btp/atelier-btp/internal/settings"
	"github.com/atelier-btp/atelier-btp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	ClientsHandler     *clients.Handler
	PrescribersHandler *prescribers.Handler
	CatalogHandler     *catalog.Handler
	QuotesHandler      *quotes.Handler
	InvoicesHandler    *invoices.Handler
	SettingsHandler    *settings.Handler
	NumberingHandler   *numbering.Handler
	DashboardHandler   *DashboardHandler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Atelier defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/clients", params.ClientsHandler.MountRoutes)
		api.Route("/prescripteurs", params.PrescribersHandler.MountRoutes)
		params.CatalogHandler.MountRoutes(api)
		api.Route("/devis", params.QuotesHandler.MountRoutes)
		api.Route("/factures", params.InvoicesHandler.MountRoutes)
		api.Route("/parametres", params.SettingsHandler.MountRoutes)
		api.Route("/numerotation", params.NumberingHandler.MountRoutes)
		if params.DashboardHandler != nil {
			api.Get("/tableau-de-bord", params.DashboardHandler.Summary)
		}
		if params.JobHandler != nil {
			api.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	// Public quote consultation via share token, outside the API prefix.
	params.QuotesHandler.MountPublicRoutes(r)

	return r
}
