//	@title			Lanternfly Gallery API
//	@version		1.0
//	@description	Image intake and gallery listing backed by an object store.
//
//	@host		localhost:8080
//	@BasePath	/api/v1

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"github.com/thoas/stats"

	"github.com/lanternfly/gallery/internal/config"
	"github.com/lanternfly/gallery/internal/gallery"
	"github.com/lanternfly/gallery/internal/logger"
	appMiddleware "github.com/lanternfly/gallery/internal/middleware"
	"github.com/lanternfly/gallery/internal/storage"
	"github.com/lanternfly/gallery/web"

	_ "github.com/lanternfly/gallery/docs/swagger"
)

func main() {
	cfg := config.Load()

	log, closeLog, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Pretty:      cfg.LogPretty,
		File:        cfg.LogFile,
		MaxSizeMB:   cfg.LogMaxSizeMB,
		MaxBackups:  cfg.LogMaxBackups,
		MaxAgeDays:  cfg.LogMaxAgeDays,
		SentryDSN:   cfg.SentryDSN,
		Environment: cfg.AppEnv,
	})
	if err != nil {
		fallback := zerolog.New(os.Stderr).With().Timestamp().Logger()
		fallback.Fatal().Err(err).Msg("logger init failed")
	}
	defer closeLog.Close()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	policy, err := gallery.ParseTypePolicy(cfg.ContentTypePolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	store, objectHandler, err := newStorage(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StorageBackend).Msg("object storage init failed")
	}

	// The service must not serve traffic unless the container is usable.
	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	created, err := storage.EnsureContainer(bootCtx, store)
	cancelBoot()
	if err != nil {
		log.Fatal().Err(err).Str("container", cfg.Container).Msg("container bootstrap failed")
	}
	log.Info().
		Str("backend", cfg.StorageBackend).
		Str("container", cfg.Container).
		Bool("created", created).
		Msg("storage ready")

	// Wire dependencies: storage → service → handler
	gallerySvc := gallery.NewService(store,
		gallery.WithTypePolicy(policy),
		gallery.WithMaxSize(cfg.MaxUploadBytes),
		gallery.WithLogger(log.With().Str("component", "gallery").Logger()),
	)
	galleryHandler := gallery.NewHandler(gallerySvc, log)

	requestStats := stats.New()

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(requestStats.Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/", web.Index)
	r.Get("/health", health)

	// Swagger UI, available at http://localhost:8080/swagger/ outside production
	if !cfg.IsProduction() {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	if objectHandler != nil {
		r.Handle("/objects/*", objectHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health)
		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(requestStats.Data())
		})

		r.With(appMiddleware.RateLimit(cfg.UploadRatePerSec, cfg.UploadRateBurst)).
			Post("/upload", galleryHandler.Upload)
		r.Get("/gallery", galleryHandler.Gallery)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-quit
	log.Info().Msg("shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	if err := closeStorage(store); err != nil {
		log.Error().Err(err).Str("backend", cfg.StorageBackend).Msg("object storage close failed")
	}

	log.Info().Msg("server stopped")
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
