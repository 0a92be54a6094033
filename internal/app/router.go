package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/spindle-erp/spindle-erp/internal/catalog"
	"github.com/spindle-erp/spindle-erp/internal/invoice"
	"github.com/spindle-erp/spindle-erp/internal/ledger"
	"github.com/spindle-erp/spindle-erp/internal/observability"
	"github.com/spindle-erp/spindle-erp/internal/party"
	"github.com/spindle-erp/spindle-erp/internal/reports"
	"github.com/spindle-erp/spindle-erp/internal/settlement"
	"github.com/spindle-erp/spindle-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	LedgerHandler     *ledger.Handler
	PartyHandler      *party.Handler
	InvoiceHandler    *invoice.Handler
	SettlementHandler *settlement.Handler
	CatalogHandler    *catalog.Handler
	ReportsHandler    *reports.Handler
	JobsHandler       *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Spindle defaults.
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
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if params.LedgerHandler != nil {
			r.Route("/inventory", params.LedgerHandler.MountRoutes)
		}
		if params.PartyHandler != nil {
			r.Route("/parties", params.PartyHandler.MountRoutes)
		}
		if params.InvoiceHandler != nil {
			r.Route("/invoices", params.InvoiceHandler.MountRoutes)
		}
		if params.SettlementHandler != nil {
			r.Route("/settlements", params.SettlementHandler.MountRoutes)
		}
		if params.CatalogHandler != nil {
			r.Route("/products", params.CatalogHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
