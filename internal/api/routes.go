package api

import (
	"net/http"

	"opsdemo/internal/models"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel/metric"
)

type routeOptions struct {
	otelService   string
	meterProvider metric.MeterProvider
	rateLimit     func(http.Handler) http.Handler
}

// RouteOption configures optional route behavior.
type RouteOption func(*routeOptions)

// WithOTelMiddleware traces requests with otelmux. Probe and docs routes are
// not traced.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(o *routeOptions) {
		o.otelService = serviceName
	}
}

// WithRequestMetrics records per-route request counts and latencies.
func WithRequestMetrics(mp metric.MeterProvider) RouteOption {
	return func(o *routeOptions) {
		o.meterProvider = mp
	}
}

// WithRateLimiter throttles the task and CRM routes. Health probes are exempt.
func WithRateLimiter(middleware func(http.Handler) http.Handler) RouteOption {
	return func(o *routeOptions) {
		o.rateLimit = middleware
	}
}

var untracedPaths = map[string]bool{
	"/health":              true,
	"/api/v1/health":       true,
	"/api/v1/openapi.yaml": true,
	"/api/v1/docs":         true,
}

// SetupRoutes configures the HTTP routes for the API
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	var o routeOptions
	for _, opt := range opts {
		opt(&o)
	}

	router := mux.NewRouter()
	logger := handlers.logger

	router.Use(requestIDMiddleware)
	router.Use(recoveryMiddleware(logger))
	router.Use(loggingMiddleware(logger))
	if config.Server.CORS.Enabled {
		router.Use(corsMiddleware(config.Server.CORS))
	}
	if o.otelService != "" {
		router.Use(otelmux.Middleware(o.otelService,
			otelmux.WithFilter(func(r *http.Request) bool {
				return !untracedPaths[r.URL.Path]
			}),
		))
	}
	if o.meterProvider != nil {
		if m, err := newHTTPMetrics(o.meterProvider); err != nil {
			logger.Warn("HTTP request metrics disabled", "error", err)
		} else {
			router.Use(m.middleware)
		}
	}

	get(router, "/health", handlers.HealthCheck)
	get(router, "/api/v1/health", handlers.DetailedHealth)
	get(router, "/api/v1/openapi.yaml", handlers.ServeOpenAPISpec)
	get(router, "/api/v1/docs", handlers.ServeSwaggerUI)

	limited := router.NewRoute().Subrouter()
	if o.rateLimit != nil {
		limited.Use(o.rateLimit)
	}
	get(limited, "/api/tasks", handlers.ListTasks)
	get(limited, "/api/tasks/{id}", handlers.GetTask)
	get(limited, "/sf-status", handlers.CRMStatus)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, models.ErrorCodeNotFound, "Resource not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, models.ErrorCodeInvalidRequest, "Method not allowed")
	})

	return router
}

// get registers a GET route that also answers preflight OPTIONS requests.
func get(r *mux.Router, path string, handler http.HandlerFunc) {
	r.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		handler(w, req)
	}).Methods(http.MethodGet, http.MethodOptions)
}
