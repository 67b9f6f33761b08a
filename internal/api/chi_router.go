// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/chainwatch/internal/middleware"
)

// Router wires all HTTP handlers into a Chi mux.
type Router struct {
	profiles  *ProfileHandlers
	alerts    *AlertHandlers
	metrics   *MetricsHandlers
	killmails *KillmailHandlers
	ws        *WSHandlers

	chiMiddleware *ChiMiddleware
}

// NewRouter creates the router from its handler groups.
func NewRouter(
	profiles *ProfileHandlers,
	alerts *AlertHandlers,
	metrics *MetricsHandlers,
	killmails *KillmailHandlers,
	ws *WSHandlers,
	mw *ChiMiddleware,
) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{
		profiles:      profiles,
		alerts:        alerts,
		metrics:       metrics,
		killmails:     killmails,
		ws:            ws,
		chiMiddleware: mw,
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight

	// API routes get instrumentation and compression. The WebSocket
	// endpoint stays outside this group: wrapping its ResponseWriter
	// would hide http.Hijacker from the upgrader.
	r.Group(func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		r.Use(middleware.Compression)

		// Health endpoints, no rate limit so orchestration probes never 429.
		r.Get("/api/v1/health/live", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Get("/api/v1/status", router.alerts.Status)

		// Profile lifecycle
		r.Route("/api/v1/profiles", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Use(chiPathValue) // Bridge Chi URL params to r.PathValue()

			r.Get("/", router.profiles.List)
			r.Post("/", router.profiles.Create)
			r.Post("/draft", router.profiles.CreateDraft)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", router.profiles.Get)
				r.Put("/", router.profiles.Update)
				r.Delete("/", router.profiles.Delete)
				r.Post("/enable", router.profiles.Enable)
				r.Post("/disable", router.profiles.Disable)
			})
		})

		// Alert history
		r.Route("/api/v1/alerts", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())

			r.Get("/", router.alerts.List)
		})

		// Evaluation statistics
		r.Route("/api/v1/metrics", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Use(chiPathValue)

			r.Get("/system", router.metrics.System)
			r.Get("/profiles/{id}", router.metrics.Profile)
		})

		// HTTP killmail ingest (backfill path; NATS is the primary feed)
		r.Route("/api/v1/killmails", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitIngest())

			r.Post("/", router.killmails.Ingest)
			r.Post("/batch", router.killmails.IngestBatch)
		})
	})

	// Realtime alert stream
	r.Get("/ws", router.ws.Connect)

	// Observability
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// chiPathValue middleware injects Chi URL params into the request so
// handlers using r.PathValue() work. Bridges chi.URLParam() with
// Go 1.22+'s r.PathValue().
func chiPathValue(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		if rctx != nil {
			for i, key := range rctx.URLParams.Keys {
				if i < len(rctx.URLParams.Values) {
					r.SetPathValue(key, rctx.URLParams.Values[i])
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
