package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/vidscribe/internal/api"
	apiMiddleware "github.com/phrazzld/vidscribe/internal/api/middleware"
	"github.com/phrazzld/vidscribe/internal/api/shared"
	"github.com/phrazzld/vidscribe/internal/platform/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRouter creates the router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.Trace(app.logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)

	resourceHandler := api.NewResourceHandler(app.resources, app.logger)
	adminHandler := api.NewAdminHandler(api.AdminDependencies{
		Pool:        app.pool,
		Checker:     app.healthChecker,
		Workers:     app.runner,
		DeadLetters: app.deadLetters,
	}, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/videos/{"+api.ParamVideoID+"}", func(r chi.Router) {
			r.Post("/transcript", resourceHandler.RequestTranscript)
			r.Get("/transcript", resourceHandler.GetTranscript)
			r.Post("/summary", resourceHandler.RequestSummary)
			r.Get("/summary", resourceHandler.GetSummary)
			r.Post("/{"+api.ParamKind+"}/restart", resourceHandler.Restart)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/credentials", adminHandler.ListCredentials)
			r.Post("/credentials/{"+api.ParamCredentialID+"}/reset", adminHandler.ResetCredential)
			r.Post("/workers/restart", adminHandler.RestartWorkers)
			r.Get("/dead-letters", adminHandler.ListDeadLetters)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, body := app.health()
		shared.RespondWithJSON(w, r, status, body)
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
