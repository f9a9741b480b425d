package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rpupo63/portfolio-cms/config"
	"github.com/rpupo63/portfolio-cms/storage"
	"github.com/rs/zerolog/log"
)

// Dependencies are the resources the server is built from. main owns their lifecycle.
type Dependencies struct {
	DB         Pinger
	Projects   ProjectService
	AccessLogs AccessLogService
	Auth       Authenticator
	Blobs      storage.BlobStore
	// Recorder may be nil, which disables access logging.
	Recorder AccessRecorder
	// Metrics may be nil, in which case the server creates its own.
	Metrics *Metrics
	// UploadsDir is served under /uploads/ when set.
	UploadsDir string
}

type Server struct {
	*http.Server
	startupTime time.Time
}

func NewServer(cfg config.Config, deps Dependencies) (Server, error) {
	if deps.Projects == nil || deps.AccessLogs == nil || deps.Auth == nil || deps.Blobs == nil || deps.DB == nil {
		return Server{}, fmt.Errorf("api: incomplete dependencies")
	}

	address := fmt.Sprintf("0.0.0.0:%s", cfg.Port) // Bind to 0.0.0.0 for external access
	startupTime := time.Now()

	router := newRouter(deps,
		withConfig(cfg),
		withStartupTime(startupTime),
	)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return Server{server, startupTime}, nil
}

type router struct {
	config      config.Config
	startupTime time.Time
}

func withConfig(c config.Config) func(*router) {
	return func(r *router) {
		r.config = c
	}
}

func withStartupTime(startupTime time.Time) func(*router) {
	return func(r *router) {
		r.startupTime = startupTime
	}
}

func newRouter(deps Dependencies, opts ...func(*router)) *chi.Mux {
	var router router
	for _, opt := range opts {
		opt(&router)
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	chiRouter := chi.NewRouter()
	chiRouter.Use(middleware.RequestID)
	chiRouter.Use(clientIPMiddleware)
	if deps.Recorder != nil {
		chiRouter.Use(accessLogMiddleware(deps.Recorder))
	}
	if router.config.DevelopmentLogConsole {
		chiRouter.Use(newColoredHTTPLoggingMiddleware(os.Stderr))
	}
	chiRouter.Use(metrics.middleware)
	chiRouter.Use(LogInternalServerErrors)
	chiRouter.Use(corsMiddleware(router.config.AcceptedOrigins))

	handlers := initializeHandlers(deps, router.config.Storage.MaxUploadBytes, router.startupTime)
	authMiddleware := newAuthMiddleware(deps.Auth)

	chiRouter.Get("/healthz", handlers.healthHandler.health())
	chiRouter.Handle("/metrics", metrics.handler())

	if deps.UploadsDir != "" {
		fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.UploadsDir)))
		chiRouter.Handle("/uploads/*", fileServer)
	}

	chiRouter.Route("/api", func(r chi.Router) {
		setupAPIRoutes(r, handlers, authMiddleware)
	})

	return chiRouter
}

func (s Server) Start(errChannel chan<- error) {
	log.Info().Msgf("Server started on: %s", s.Addr)
	errChannel <- s.ListenAndServe()
}

func (s Server) ShutdownGracefully(timeout time.Duration) {
	log.Info().Msg("Gracefully shutting down...")

	gracefullCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Shutdown(gracefullCtx); err != nil {
		log.Error().Msgf("Error shutting down the server: %v", err)
	} else {
		log.Info().Msg("HttpServer gracefully shut down")
	}
}
