package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"skedit/pkg/config"
	"skedit/pkg/contracts"
	"skedit/pkg/metrics"
	"skedit/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

type Application struct {
	cfg         *config.Config
	server      *http.Server
	metrics     *metrics.Metrics
	rateLimiter *middleware.RateLimiter
	workers     []contracts.Worker
	checks      map[string]contracts.ReadinessCheck
	handler     http.Handler
}

func NewApplication(cfg *config.Config, m *metrics.Metrics) *Application {
	return &Application{
		cfg:     cfg,
		metrics: m,
		checks:  make(map[string]contracts.ReadinessCheck),
	}
}

// RateLimiter is shared by every route that opts into rate limiting.
func (a *Application) RateLimiter() *middleware.RateLimiter {
	if a.rateLimiter == nil {
		a.rateLimiter = middleware.NewRateLimiter(a.cfg.RateLimitRequests, a.cfg.RateLimitWindow, middleware.PrincipalKey, a.cfg.Log)
		a.workers = append(a.workers, a.rateLimiter)
	}
	return a.rateLimiter
}

// AddWorker registers a background loop stopped during shutdown, in
// registration order.
func (a *Application) AddWorker(w contracts.Worker) {
	a.workers = append(a.workers, w)
}

func (a *Application) AddReadinessCheck(name string, check contracts.ReadinessCheck) {
	a.checks[name] = check
}

func (a *Application) SetApp(handlers ...contracts.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler())
	mux.Handle("/ready", a.healthHandler())
	mux.Handle("/metrics", a.metrics.Handler())
	mux.Handle("/", a.appHandler(handlers))
	a.handler = mux

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      a.handler,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

// Handler returns the fully wrapped root handler. Valid after SetApp.
func (a *Application) Handler() http.Handler {
	return a.handler
}

func (a *Application) healthHandler() http.Handler {
	router := httprouter.New()
	NewHealthHandler(a.checks, a.cfg.Log).RegisterRoutes(router)

	var h http.Handler = router
	h = middleware.Recovery(a.cfg.Log)(h)
	return h
}

func (a *Application) appHandler(handlers []contracts.Handler) http.Handler {
	router := httprouter.New()
	for _, h := range handlers {
		h.RegisterRoutes(router)
	}

	var h http.Handler = router
	h = middleware.RequestTimeout(a.cfg.RequestTimeout)(h)
	h = middleware.ContentTypeValidation(a.cfg.Log)(h)
	h = middleware.MaxRequestSize(int64(a.cfg.MaxRequestSize))(h)
	h = a.metrics.Instrument(h)
	h = middleware.RequestLogging(a.cfg.Log)(h)
	h = middleware.Recovery(a.cfg.Log)(h)
	a.cfg.Log.Info("Application endpoints configured", "handlers", len(handlers))
	return h
}

func (a *Application) Run() {
	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			a.cfg.Log.Fatal("HTTP server failed", "error", err)
		}

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig.String())
		a.gracefulShutdown()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Error("Could not stop server gracefully", "error", err)
		}
	}

	a.StopWorkers()
	a.cfg.GracefulShutdown()
	a.cfg.Log.Info("Server stopped gracefully")
}

// StopWorkers stops every registered background worker in registration order.
func (a *Application) StopWorkers() {
	a.cfg.Log.Info("Stopping background workers", "count", len(a.workers))
	for _, w := range a.workers {
		w.Stop()
	}
}
