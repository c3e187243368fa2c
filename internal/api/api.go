// Package api exposes the log, sync and feature operations over HTTP.
package api

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vladimiradmaev/wellnest/internal/config"
	"github.com/vladimiradmaev/wellnest/internal/errors"
	"github.com/vladimiradmaev/wellnest/internal/services"
)

// Services are the operations the API serves. FitbitSync and LibreLink may be
// nil when the integration is not configured.
type Services struct {
	CGM        *services.CGMService
	Insulin    *services.InsulinService
	Nutrition  *services.NutritionService
	Activity   *services.ActivityService
	Import     *services.ImportService
	FitbitSync *services.FitbitSyncService
	LibreLink  *services.LibreLinkService
	Features   *services.FeatureService

	// Errors logs failed requests. A handler on the application logger is
	// used when nil.
	Errors *errors.Handler
}

type Application struct {
	config   config.HTTPConfig
	services Services
	metrics  *Metrics
	errs     *errors.Handler
	logger   *slog.Logger
	started  time.Time
}

func NewApplication(cfg config.HTTPConfig, svc Services, logger *slog.Logger) *Application {
	errs := svc.Errors
	if errs == nil {
		errs = errors.NewHandler(logger)
	}
	return &Application{
		config:   cfg,
		services: svc,
		metrics:  NewMetrics(),
		errs:     errs,
		logger:   logger,
		started:  time.Now(),
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(app.requestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(app.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(app.metricsMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", app.healthHandler)
	r.Handle("/metrics", app.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(ownerMiddleware)

		r.Route("/logs/{kind}", func(r chi.Router) {
			r.Get("/", app.listLogsHandler)
			r.Post("/", app.createLogHandler)
			r.Get("/latest", app.latestLogHandler)
			r.Post("/batch-delete", app.batchDeleteHandler)
			r.Get("/{id}", app.getLogHandler)
			r.Delete("/{id}", app.deleteLogHandler)
		})

		r.Route("/nutrition", func(r chi.Router) {
			r.Get("/", app.listMealsHandler)
			r.Post("/", app.upsertMealHandler)
		})

		r.Route("/insulin", func(r chi.Router) {
			r.Get("/doses", app.listDosesHandler)
			r.Get("/latest-bolus", app.latestBolusHandler)
			r.Post("/predictions", app.recordPredictionHandler)
		})

		r.Route("/activity", func(r chi.Router) {
			r.Get("/date/{day}", app.activityForDateHandler)
			r.Get("/heart-rate/today", app.heartRateTodayHandler)
		})

		r.Post("/import", app.importHandler)
		r.Post("/cgm/readings", app.uploadReadingsHandler)

		r.Route("/sync", func(r chi.Router) {
			r.Post("/fitbit", app.syncFitbitHandler)
			r.Post("/librelink", app.syncLibreLinkHandler)
		})

		r.Route("/features", func(r chi.Router) {
			r.Post("/recent", app.recentFeaturesHandler)
			r.Post("/sequence", app.sequenceHandler)
			r.Post("/iss", app.issHandler)
			r.Post("/isf", app.isfHandler)
			r.Post("/dashboard-snapshot", app.dashboardSnapshotHandler)
			r.Post("/trained", app.markTrainedHandler)
		})
	})

	return r
}

// Run serves mux until ctx is cancelled, then shuts down gracefully.
func (app *Application) Run(ctx context.Context, mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.Addr,
		Handler:      mux,
		ReadTimeout:  app.config.ReadTimeout,
		WriteTimeout: app.config.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error, 1)
	go func() {
		<-ctx.Done()

		timeout := app.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		app.logger.Info("Shutting down HTTP server", "addr", srv.Addr)
		shutdown <- srv.Shutdown(sctx)
	}()

	app.logger.Info("HTTP server started", "addr", srv.Addr)

	if err := srv.ListenAndServe(); !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-shutdown; err != nil {
		return err
	}

	app.logger.Info("HTTP server stopped", "addr", srv.Addr)
	return nil
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
}

func (app *Application) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(app.started).Round(time.Second).String(),
	})
}
