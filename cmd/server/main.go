package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/user/movierec/internal/config"
	"github.com/user/movierec/internal/handler"
	"github.com/user/movierec/internal/logging"
	"github.com/user/movierec/internal/middleware"
	"github.com/user/movierec/internal/repository"
	"github.com/user/movierec/internal/router"
	"github.com/user/movierec/internal/service"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logging.Info().Msg("No .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log := logging.Component("server")

	ctx := context.Background()

	var db *gorm.DB
	if repository.NeedsDB(cfg) {
		db, err = repository.InitDB(cfg.DatabaseURL())
		if err != nil {
			log.Fatal().Err(err).Msg("Database connection failed")
		}
		defer repository.CloseDB(db)
	}

	vectors, err := repository.OpenVectorStore(cfg, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Vector store init failed")
	}
	defer vectors.Close()

	documents, err := repository.OpenDocumentStore(ctx, cfg, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Document store init failed")
	}
	defer documents.Close()

	movies := service.NewMovieService(vectors, documents, service.MovieServiceConfig{
		Collection: cfg.Vector.Collection,
		CacheTTL:   cfg.API.CacheTTL,
		CacheSize:  cfg.API.CacheSize,
	})

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	opts := router.Options{CORSOrigins: cfg.CORSOriginList()}
	stopCleanup := make(chan struct{})
	if cfg.API.RateLimitRPS > 0 {
		opts.RateLimiter = middleware.NewRateLimiter(cfg.API.RateLimitRPS, cfg.API.RateLimitBurst)
		go opts.RateLimiter.Run(time.Minute, stopCleanup)
	}
	defer close(stopCleanup)

	h := handler.NewHandler(movies, &cfg.API)
	r := router.New(h, opts)

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Info().Str("addr", "http://localhost:"+cfg.Port).
			Str("vector_store", cfg.Vector.Backend).
			Str("document_store", cfg.Document.Backend).
			Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}
	log.Info().Msg("Server exited")
}
