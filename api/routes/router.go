package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/paytrack/api/controllers"
	"github.com/angelmondragon/paytrack/api/middleware"
	"github.com/angelmondragon/paytrack/internal/payments"
	"github.com/angelmondragon/paytrack/pkg/config"
	"github.com/angelmondragon/paytrack/pkg/fees"
	"github.com/angelmondragon/paytrack/pkg/logger"
	"github.com/angelmondragon/paytrack/pkg/metrics"
	"github.com/angelmondragon/paytrack/pkg/redis"
)

// Dependencies groups what the HTTP surface is built from. Redis and DB may be
// nil in tests; idempotency and rate limiting are skipped without Redis.
type Dependencies struct {
	DB        controllers.Pinger
	Redis     *redis.Client
	Payments  controllers.PaymentsService
	Validator *payments.Validator
	Fees      *fees.Calculator
	Registry  *prometheus.Registry
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, metrics.NewHTTPMetrics(registerer(deps.Registry))),
		middleware.CORS(cfg.API.AllowedOrigins),
	)

	var (
		idempotencyStore redis.IdempotencyStore
		limiter          middleware.RateLimiterStore
	)
	readiness := map[string]controllers.Pinger{}
	if deps.DB != nil {
		readiness["database"] = deps.DB
	}
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		limiter = deps.Redis
		readiness["redis"] = deps.Redis
	}

	lookupPolicy := middleware.NewRateLimitPolicy(
		"lookup",
		cfg.API.LookupRateWindow,
		cfg.API.LookupIPLimit,
		cfg.API.LookupReferenceLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/payments", func(r chi.Router) {
		idempotent := r.With(middleware.Idempotency(idempotencyStore, logg))

		if deps.Fees != nil {
			r.Post("/quote", controllers.QuoteFee(deps.Fees, logg))
		}
		if deps.Validator != nil {
			r.Post("/validate", controllers.ValidatePayment(deps.Validator, logg))
		}
		if deps.Payments != nil {
			idempotent.Post("/", controllers.InitiatePayment(deps.Payments, logg))
			r.With(middleware.RateLimit(lookupPolicy, limiter, logg)).
				Get("/{reference}", controllers.GetPaymentStatus(deps.Payments, logg))
			idempotent.Post("/{reference}/status", controllers.UpdatePaymentStatus(deps.Payments, logg))
		}
	})

	return r
}

func registerer(reg *prometheus.Registry) prometheus.Registerer {
	if reg == nil {
		return nil
	}
	return reg
}
