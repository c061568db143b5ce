package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fuelops/fuelops-backend/api/controllers"
	accountcontrollers "github.com/fuelops/fuelops-backend/api/controllers/accounts"
	invoicecontrollers "github.com/fuelops/fuelops-backend/api/controllers/invoices"
	"github.com/fuelops/fuelops-backend/api/middleware"
	"github.com/fuelops/fuelops-backend/internal/cashledger"
	"github.com/fuelops/fuelops-backend/internal/credit"
	"github.com/fuelops/fuelops-backend/internal/invoices"
	"github.com/fuelops/fuelops-backend/internal/ledger"
	"github.com/fuelops/fuelops-backend/internal/reconciliation"
	"github.com/fuelops/fuelops-backend/pkg/config"
	"github.com/fuelops/fuelops-backend/pkg/db"
	"github.com/fuelops/fuelops-backend/pkg/logger"
	"github.com/fuelops/fuelops-backend/pkg/metrics"
	"github.com/fuelops/fuelops-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	ledgerService ledger.Service,
	creditCalculator credit.Calculator,
	recoveryService reconciliation.Service,
	invoiceBridge invoices.Bridge,
	cashService cashledger.Service,
	deadLetters controllers.DeadLetterLister,
) http.Handler {
	var redisP redis.Pinger
	if redisClient != nil {
		redisP = redisClient
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.SecureHeaders(cfg.App.IsProd(), logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// Write middleware sits on inline groups so it runs after routing and
	// sees the full route pattern.
	writes := []func(http.Handler) http.Handler{
		middleware.WriteRateLimit(cfg.RateLimit.WriteRequests, cfg.RateLimit.Window, logg),
	}
	if redisClient != nil {
		writes = append(writes, middleware.Idempotency(redisClient, logg))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts/{accountId}", func(r chi.Router) {
			r.Get("/balance", accountcontrollers.Balance(ledgerService, logg))
			r.Get("/transactions", accountcontrollers.Transactions(ledgerService, logg))
			r.Get("/outstanding", accountcontrollers.Outstanding(ledgerService, logg))
			r.Get("/credit", accountcontrollers.Credit(creditCalculator, logg))

			r.Group(func(r chi.Router) {
				r.Use(writes...)
				r.Post("/credit/authorize", accountcontrollers.AuthorizeCredit(creditCalculator, logg))
				r.Post("/collections", accountcontrollers.RecordCollection(ledgerService, logg))
				r.Post("/obligations", accountcontrollers.RecordObligation(ledgerService, logg))
				r.Post("/recalculate", accountcontrollers.Recalculate(ledgerService, logg))
				r.Post("/auto-recover", accountcontrollers.AutoRecover(recoveryService, logg))
			})
		})

		r.Route("/invoices/{invoiceId}", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(writes...)
				r.Post("/status", invoicecontrollers.UpdateStatus(invoiceBridge, logg))
				r.Post("/cash-ledger", invoicecontrollers.PostCashLedger(cashService, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Get("/ledger/summary", controllers.AdminLedgerSummary(ledgerService, logg))
		r.Get("/outbox/dead-letters", controllers.AdminDeadLetters(deadLetters, logg))
		r.Get("/outbox/dead-letters/{eventId}", controllers.AdminDeadLetter(deadLetters, logg))
	})

	return r
}
