package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/siminyang/aboutxtime/internal/api"
	"github.com/siminyang/aboutxtime/internal/blob"
	"github.com/siminyang/aboutxtime/internal/config"
	"github.com/siminyang/aboutxtime/internal/delivery"
	"github.com/siminyang/aboutxtime/internal/friendcache"
	"github.com/siminyang/aboutxtime/internal/platform/factory"
	"github.com/siminyang/aboutxtime/internal/platform/logger"
	"github.com/siminyang/aboutxtime/internal/services"
	"github.com/siminyang/aboutxtime/internal/store"
)

func main() {
	// Optional build-target flag override (local | cloud)
	buildTarget := flag.String("build-target", "", "Override BUILD_TARGET (local, cloud)")
	flag.Parse()

	log := logger.New("capsule-service")

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *buildTarget != "" {
		cfg.BuildTarget = *buildTarget
		cfg.DocStore = "auto"
		cfg.BlobStore = "auto"
		cfg.PushStore = "auto"
		if err := cfg.ResolveDefaults(); err != nil {
			log.Fatal().Err(err).Msg("Invalid build-target override")
		}
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("doc_store", cfg.DocStore).
		Str("blob_store", cfg.BlobStore).
		Int("http_port", cfg.HTTPPort).
		Msg("Capsule service starting")

	ctx := context.Background()

	// -------- Adapters -----------------
	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Document store unavailable")
	}
	blobs, err := factory.NewBlobStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Blob store unavailable")
	}
	notifier, err := factory.NewNotifier(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Push notifier unavailable")
	}

	// -------- Services -----------------
	sync := delivery.New(st, blobs, notifier, log)
	capsuleSvc := services.NewCapsuleService(st, sync)
	userSvc := services.NewUserService(st, friendcache.New(cfg.FriendCacheSize))

	deps := api.Deps{
		Capsules: capsuleSvc,
		Users:    userSvc,
		Log:      log,
	}
	if pinger, ok := st.(store.HealthPinger); ok {
		deps.Pinger = pinger
	}
	if reader, ok := blobs.(blob.Reader); ok {
		deps.Blobs = reader
	}

	// -------- Router & Server --------------
	router := api.NewRouter(deps)
	server := &http.Server{
		Addr:        cfg.GetHTTPAddr(),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the watch endpoints hold the response open.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}
