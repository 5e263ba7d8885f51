package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kurnik-erp/kurnik-erp/internal/accounting/invoices"
	"github.com/kurnik-erp/kurnik-erp/internal/accounting/relations"
	"github.com/kurnik-erp/kurnik-erp/internal/accounting/rules"
	"github.com/kurnik-erp/kurnik-erp/internal/accounting/sync"
	"github.com/kurnik-erp/kurnik-erp/internal/observability"
	"github.com/kurnik-erp/kurnik-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	InvoicesHandler  *invoices.Handler
	RulesHandler     *rules.Handler
	RelationsHandler *relations.Handler
	SyncHandler      *sync.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
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

	r.Route("/api/accounting", func(r chi.Router) {
		r.Route("/invoices", func(r chi.Router) {
			params.InvoicesHandler.MountRoutes(r)
			if params.RulesHandler != nil {
				params.RulesHandler.MountClassify(r)
			}
			if params.RelationsHandler != nil {
				params.RelationsHandler.MountInvoiceRoutes(r)
			}
		})
		if params.RulesHandler != nil {
			r.Route("/rules", params.RulesHandler.MountRoutes)
		}
		if params.RelationsHandler != nil {
			r.Route("/relations", params.RelationsHandler.MountRoutes)
		}
		if params.SyncHandler != nil {
			r.Route("/sync", params.SyncHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
