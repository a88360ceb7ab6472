package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/feedhub/internal/api"
	"github.com/isdelr/feedhub/internal/auth"
	"github.com/isdelr/feedhub/internal/config"
	"github.com/isdelr/feedhub/internal/database"
	"github.com/isdelr/feedhub/internal/graph"
	"github.com/isdelr/feedhub/internal/images"
	"github.com/isdelr/feedhub/internal/logger"
	"github.com/isdelr/feedhub/internal/metrics"
	"github.com/isdelr/feedhub/internal/monitoring"
	"github.com/isdelr/feedhub/internal/services"
	"github.com/isdelr/feedhub/internal/store"
	"github.com/isdelr/feedhub/internal/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel, !cfg.IsProduction())

	// Set up database
	db, err := database.New(cfg.DatabaseDriver, cfg.DatabaseURL, cfg.DBMaxOpen)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	imageStore, err := images.NewStore(cfg.ImagesDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.ImagesDir).Msg("Failed to create images directory")
	}

	// Set up WebSocket Hub
	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := websocket.NewHub()
	hub.OnClientCount = metrics.SetConnectedClients
	if err := hub.Start(hubCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start websocket hub")
	}

	// Set up stores and services
	userStore := store.NewUserStore(db)
	postStore := store.NewPostStore(db)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	feedService := services.NewFeedService(postStore, userStore, imageStore, hub, cfg.FeedPageSize)
	userService := services.NewUserService(userStore, tokens)

	schema, err := graph.NewSchema(feedService, userService, userStore)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build GraphQL schema")
	}

	// Set up and run the background workers
	statUpdater := monitoring.NewStatUpdater(cfg.StatsInterval)
	go statUpdater.Run()

	janitor := monitoring.NewImageJanitor(imageStore, postStore, cfg.ImageSweepSchedule, cfg.ImageSweepGrace)
	if err := janitor.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start image janitor")
	}

	// Set up router
	router := api.NewRouter(api.Dependencies{
		Feed:           feedService,
		Users:          userService,
		Tokens:         tokens,
		Images:         imageStore,
		ImagesDir:      imageStore.Dir(),
		Hub:            hub,
		DB:             db,
		GraphQL:        graph.NewHandler(schema),
		AllowedOrigins: cfg.AllowedOrigins(),
		AuthRateLimit:  float64(cfg.AuthRateLimit),
		AuthRateBurst:  cfg.AuthRateBurst,
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("driver", cfg.DatabaseDriver).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	statUpdater.Stop()
	janitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Hijacked websocket connections are not tracked by Shutdown; the hub closes them.
	stopHub()
	<-hub.Done()

	log.Info().Msg("Server exiting")
}
