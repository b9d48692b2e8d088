package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"avalia/internal/platform/metrics"
	"avalia/internal/platform/middleware"
	"avalia/internal/transport/http/shared"
)

// Registrar mounts a feature's routes on the shared router.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck probes one collaborator. Name labels the result in the health
// payload.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// NewRouter assembles the service router: platform middleware, operational
// endpoints, and every feature registrar.
func NewRouter(logger *slog.Logger, m *metrics.Metrics, checks []HealthCheck, features ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Latency(m))

	r.Get("/healthz", handleHealth(checks))
	r.Handle("/metrics", promhttp.Handler())

	for _, feature := range features {
		feature.Register(r)
	}
	return r
}

func handleHealth(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, check := range checks {
			if err := check.Check(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				results[check.Name] = err.Error()
				continue
			}
			results[check.Name] = "ok"
		}
		shared.WriteJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": results,
		})
	}
}
