// Command seed rebuilds the vector collection and the metadata documents
// from the embedding and metadata files. Every run is a full wipe and rebuild
// of the vector collection.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/user/movierec/internal/config"
	"github.com/user/movierec/internal/logging"
	"github.com/user/movierec/internal/repository"
	"github.com/user/movierec/internal/service"
	"gorm.io/gorm"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("Invalid configuration")
		return 1
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log := logging.Component("seed")

	if err := cfg.RequireSeedInputs(); err != nil {
		log.Error().Err(err).Msg("Cannot seed")
		return 1
	}
	distance, err := repository.ParseDistance(cfg.Vector.Distance)
	if err != nil {
		log.Error().Err(err).Msg("Invalid VECTOR_DISTANCE")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	posters, err := service.LoadPosterCache(cfg.Files.PosterCache)
	if err != nil {
		log.Warn().Err(err).Msg("Poster cache unreadable, seeding without posters")
		posters = service.PosterCache{}
	} else if len(posters) == 0 {
		log.Warn().Str("path", cfg.Files.PosterCache).Msg("Poster cache is empty, seeding without posters")
	}

	var db *gorm.DB
	if repository.NeedsDB(cfg) {
		db, err = repository.InitDB(cfg.DatabaseURL())
		if err != nil {
			log.Error().Err(err).Msg("Database connection failed")
			return 1
		}
		defer repository.CloseDB(db)
	}

	vectors, err := repository.OpenVectorStore(cfg, db)
	if err != nil {
		log.Error().Err(err).Msg("Vector store init failed")
		return 1
	}
	defer vectors.Close()

	documents, err := repository.OpenDocumentStore(ctx, cfg, db)
	if err != nil {
		log.Error().Err(err).Msg("Document store init failed")
		return 1
	}
	defer documents.Close()

	seeder := service.NewSeeder(vectors, documents, posters, service.SeederConfig{
		Collection:   cfg.Vector.Collection,
		Distance:     distance,
		FallbackDim:  cfg.Vector.Dimension,
		BatchSize:    cfg.Seed.BatchSize,
		ImageBaseURL: cfg.TMDB.ImageBaseURL,
	})
	if _, err := seeder.Run(ctx, cfg.Files.Metadata, cfg.Files.Embedding); err != nil {
		log.Error().Err(err).Msg("Seeding failed")
		return 1
	}
	return 0
}
