package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline-erp/ledgerline/internal/catalog"
	"github.com/ledgerline-erp/ledgerline/internal/credit"
	"github.com/ledgerline-erp/ledgerline/internal/purchasing"
	"github.com/ledgerline-erp/ledgerline/internal/returns"
	"github.com/ledgerline-erp/ledgerline/internal/sales"
	"github.com/ledgerline-erp/ledgerline/internal/stock"
	"github.com/ledgerline-erp/ledgerline/internal/transfers"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Pool              *pgxpool.Pool
	CatalogHandler    *catalog.Handler
	StockHandler      *stock.Handler
	CreditHandler     *credit.Handler
	SalesHandler      *sales.Handler
	ReturnsHandler    *returns.Handler
	TransfersHandler  *transfers.Handler
	PurchasingHandler *purchasing.Handler
}

// NewRouter constructs the chi.Router with ledgerline defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Pool != nil {
			if err := params.Pool.Ping(req.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/catalog", func(rt chi.Router) {
			params.CatalogHandler.MountRoutes(rt)
		})
		api.Route("/stock", func(rt chi.Router) {
			params.StockHandler.MountRoutes(rt)
			rt.Route("/transfers", func(tr chi.Router) {
				params.TransfersHandler.MountRoutes(tr)
			})
		})
		api.Route("/customers", func(rt chi.Router) {
			params.CreditHandler.MountRoutes(rt)
		})
		api.Route("/sales", func(rt chi.Router) {
			params.SalesHandler.MountRoutes(rt)
		})
		api.Route("/returns", func(rt chi.Router) {
			params.ReturnsHandler.MountRoutes(rt)
		})
		api.Route("/purchases", func(rt chi.Router) {
			params.PurchasingHandler.MountRoutes(rt)
		})
	})

	return r
}
