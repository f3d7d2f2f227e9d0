package handler

import (
	"net/http"
	"time"

	"github.com/fintrackhq/fintrack-go/internal/infra/observability"
	"github.com/fintrackhq/fintrack-go/internal/port"
	"github.com/fintrackhq/fintrack-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// maxConcurrency caps in-flight requests; zero disables throttling.
func NewRouter(analyticsSvc *service.AnalyticsService, exportSvc *service.ExportService, authSvc *service.AuthService, store port.LedgerStore, metrics *observability.Metrics, logger *zap.Logger, maxConcurrency int) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(logger, metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	if maxConcurrency > 0 {
		r.Use(middleware.Throttle(maxConcurrency))
	}

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(store, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/analytics", metricsSnapshotHandler(metrics))

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(authSvc, logger))

			r.Route("/analytics", func(r chi.Router) {
				r.Get("/categories", categoryRollupsHandler(analyticsSvc, logger))
				r.Get("/top-expenses", topExpensesHandler(analyticsSvc, logger))
				r.Get("/heatmap", heatmapHandler(analyticsSvc, logger))
				r.Get("/heatmap/peaks", heatmapPeaksHandler(analyticsSvc, logger))
				r.Get("/compare-periods", comparePeriodsHandler(analyticsSvc, logger))
				r.Get("/forecast", forecastHandler(analyticsSvc, logger))
				r.Get("/trends", trendsHandler(analyticsSvc, logger))
				r.Get("/summary", summaryHandler(analyticsSvc, logger))
				r.Get("/export/csv", exportCSVHandler(exportSvc, logger))
				r.Get("/export/xlsx", exportXLSXHandler(exportSvc, logger))
			})
		})
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

type healthStatus struct {
	Status    string `json:"status"`
	Store     string `json:"store"`
	LatencyMs int64  `json:"latency_ms"`
	CheckedAt string `json:"checked_at"`
}

func healthzHandler(store port.LedgerStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{
			Status:    "healthy",
			Store:     "healthy",
			CheckedAt: time.Now().Format(time.RFC3339),
		}

		if store != nil {
			start := time.Now()
			if err := store.Ping(r.Context()); err != nil {
				logger.Warn("healthz: store unreachable", zap.Error(err))
				status.Status = "degraded"
				status.Store = "unreachable"
			}
			status.LatencyMs = time.Since(start).Milliseconds()
		}

		writeJSON(w, http.StatusOK, status)
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func metricsSnapshotHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetSnapshot())
	}
}
