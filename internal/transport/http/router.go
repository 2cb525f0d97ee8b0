// Package httptransport assembles the public HTTP surface. Handlers stay in
// their domain packages; this package only mounts them and adds the
// cross-cutting middleware.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shardauth/pkg/platform/httputil"
	"shardauth/pkg/platform/middleware/metadata"
	"shardauth/pkg/platform/middleware/requestid"
	"shardauth/pkg/platform/middleware/requesttime"
)

// APIPrefix is where the domain routes are mounted.
const APIPrefix = "/api/auth"

// Routes is implemented by every domain handler.
type Routes interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// RouterOptions carries what the router needs beyond the domain handlers.
type RouterOptions struct {
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer
	Checks   map[string]HealthCheck
}

// NewRouter mounts handlers under APIPrefix plus /health and /metrics at the
// root.
func NewRouter(opts RouterOptions, handlers ...Routes) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(requestid.AccessLog(logger))

	r.Get("/health", healthHandler(opts.Checks))
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route(APIPrefix, func(api chi.Router) {
		for _, h := range handlers {
			h.Register(api)
		}
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := healthResponse{Status: "ok"}
		status := http.StatusOK
		for name, check := range checks {
			if res.Checks == nil {
				res.Checks = make(map[string]string, len(checks))
			}
			if err := check(r.Context()); err != nil {
				res.Checks[name] = err.Error()
				res.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			res.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, res)
	}
}
