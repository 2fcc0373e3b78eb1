package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BrokerStatus reports message broker connectivity. *messagebroker.NatsClient satisfies it.
type BrokerStatus interface {
	Connected() bool
}

// NewRouter builds the admin HTTP router. broker may be nil.
func NewRouter(handler *RoutingHandler, broker BrokerStatus, jwtSecret []byte, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(PrometheusMetricsMiddleware)

	r.Get("/healthz", healthHandler(handler.snapshots, broker))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/routing", func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret, logger))
		handler.RegisterRoutes(r)
	})
	return r
}

// healthHandler answers 200 once a snapshot is loaded and 503 before that.
func healthHandler(snapshots SnapshotReader, broker BrokerStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}
		if broker != nil {
			resp.BrokerConnected = broker.Connected()
		}
		snap := snapshots.Current()
		if snap == nil {
			resp.Status = "not_ready"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		loadedAt := snap.LoadedAt()
		resp.SnapshotLoadedAt = &loadedAt
		writeJSON(w, http.StatusOK, resp)
	}
}
