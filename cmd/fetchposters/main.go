// Command fetchposters fills the poster cache with TMDB poster paths for every
// movie in the metadata file. Re-runs only look up movies not yet cached.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/user/movierec/internal/config"
	"github.com/user/movierec/internal/logging"
	"github.com/user/movierec/internal/service"
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
	log := logging.Component("posters")

	if err := cfg.RequirePosterInputs(); err != nil {
		log.Error().Err(err).Msg("Cannot fetch posters")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache, err := service.LoadPosterCache(cfg.Files.PosterCache)
	if err != nil {
		log.Error().Err(err).Msg("Cannot read poster cache")
		return 1
	}

	tmdb := service.NewTMDBClient(service.TMDBConfig{
		BaseURL: cfg.TMDB.BaseURL,
		Token:   cfg.TMDB.Token,
		Timeout: cfg.TMDB.Timeout,
	})
	fetcher := service.NewPosterFetcher(tmdb, cache, service.PosterFetcherConfig{
		CachePath:       cfg.Files.PosterCache,
		Concurrency:     cfg.Posters.Concurrency,
		BatchDelay:      cfg.Posters.BatchDelay,
		CheckpointEvery: cfg.Posters.CheckpointEvery,
	})

	if _, err := fetcher.Run(ctx, cfg.Files.Metadata); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn().Msg("Interrupted, progress saved")
		} else {
			log.Error().Err(err).Msg("Poster fetch failed")
		}
		return 1
	}
	return 0
}
