package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/movierec/internal/logging"
	"github.com/user/movierec/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// PosterLookup resolves a movie's poster path. A nil path means the movie has
// no poster; ErrMovieNotFound means the movie is unknown upstream.
type PosterLookup interface {
	PosterPath(ctx context.Context, id int64) (*string, error)
}

// PosterFetcherConfig batch settings. Zero values get defaults.
type PosterFetcherConfig struct {
	CachePath       string
	Concurrency     int
	BatchDelay      time.Duration
	CheckpointEvery int
}

// PosterStats summary of one run.
type PosterStats struct {
	Total    int
	Found    int
	NoPoster int
	NotFound int
	Errors   int
	Duration time.Duration
}

// PosterFetcher fills a PosterCache for every movie in a metadata file. The
// cache is owned by the fetcher for the duration of Run.
type PosterFetcher struct {
	lookup PosterLookup
	cache  PosterCache
	cfg    PosterFetcherConfig
}

func NewPosterFetcher(lookup PosterLookup, cache PosterCache, cfg PosterFetcherConfig) *PosterFetcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 30
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 10
	}
	if cache == nil {
		cache = PosterCache{}
	}
	return &PosterFetcher{lookup: lookup, cache: cache, cfg: cfg}
}

type posterOutcome struct {
	id   int64
	path *string
	err  error
}

// Run looks up every metadata ID not yet in the cache, in batches of
// Concurrency parallel lookups. Transient failures are left out of the cache
// so the next run retries them. The cache is saved every CheckpointEvery
// batches and once more at the end, also when ctx is cancelled.
func (f *PosterFetcher) Run(ctx context.Context, metadataPath string) (*PosterStats, error) {
	log := logging.Component("posters")
	start := time.Now()
	stats := &PosterStats{}

	log.Info().Int("cached", len(f.cache)).Msg("Loaded poster cache")

	pending, err := f.pendingIDs(ctx, metadataPath)
	if err != nil {
		return nil, err
	}
	stats.Total = len(pending)
	if len(pending) == 0 {
		log.Info().Msg("All posters already cached")
		stats.Duration = time.Since(start)
		return stats, nil
	}
	log.Info().Int("pending", len(pending)).Int("concurrency", f.cfg.Concurrency).Msg("Fetching posters")

	done := 0
	var runErr error
	for batchIndex, begin := 0, 0; begin < len(pending); batchIndex, begin = batchIndex+1, begin+f.cfg.Concurrency {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		end := min(begin+f.cfg.Concurrency, len(pending))

		for _, o := range f.lookupBatch(ctx, pending[begin:end]) {
			f.record(o, stats)
		}
		done = end

		if batchIndex%f.cfg.CheckpointEvery == 0 {
			if err := f.cache.Save(f.cfg.CachePath); err != nil {
				return stats, fmt.Errorf("checkpoint poster cache: %w", err)
			}
			log.Info().
				Int("done", done).
				Int("total", len(pending)).
				Str("progress", fmt.Sprintf("%.1f%%", float64(done)*100/float64(len(pending)))).
				Msg("Checkpoint saved")
		}

		if end < len(pending) && f.cfg.BatchDelay > 0 {
			if err := sleepCtx(ctx, f.cfg.BatchDelay); err != nil {
				runErr = err
				break
			}
		}
	}

	if err := f.cache.Save(f.cfg.CachePath); err != nil {
		return stats, fmt.Errorf("save poster cache: %w", err)
	}
	stats.Duration = time.Since(start)

	log.Info().
		Int("processed", done).
		Int("total", stats.Total).
		Int("found", stats.Found).
		Int("no_poster", stats.NoPoster).
		Int("not_found", stats.NotFound).
		Int("errors", stats.Errors).
		Dur("elapsed", stats.Duration).
		Str("cache", f.cfg.CachePath).
		Msg("Poster fetch finished")
	return stats, runErr
}

// pendingIDs returns metadata IDs missing from the cache, deduplicated, in file order.
func (f *PosterFetcher) pendingIDs(ctx context.Context, metadataPath string) ([]int64, error) {
	log := logging.Component("posters")
	seen := make(map[int64]struct{})
	var pending []int64
	err := forEachLine(ctx, metadataPath, func(lineNo int, line []byte) error {
		m, err := parseMetadata(line)
		if err != nil {
			log.Warn().Err(err).Int("line", lineNo).Msg("Skipping malformed metadata line")
			return nil
		}
		if _, dup := seen[m.ID]; dup || f.cache.Has(m.ID) {
			return nil
		}
		seen[m.ID] = struct{}{}
		pending = append(pending, m.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return pending, nil
}

// lookupBatch runs one lookup per id concurrently and waits for all of them.
// Failures are carried in the outcomes, never abort the batch.
func (f *PosterFetcher) lookupBatch(ctx context.Context, ids []int64) []posterOutcome {
	outcomes := make([]posterOutcome, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			path, err := f.lookup.PosterPath(ctx, id)
			outcomes[i] = posterOutcome{id: id, path: path, err: err}
			return nil
		})
	}
	g.Wait()
	return outcomes
}

func (f *PosterFetcher) record(o posterOutcome, stats *PosterStats) {
	switch {
	case o.err == nil && o.path != nil:
		f.cache.Set(o.id, o.path)
		stats.Found++
		metrics.PosterLookups.WithLabelValues("found").Inc()
	case o.err == nil:
		f.cache.Set(o.id, nil)
		stats.NoPoster++
		metrics.PosterLookups.WithLabelValues("no_poster").Inc()
	case errors.Is(o.err, ErrMovieNotFound):
		f.cache.Set(o.id, nil)
		stats.NotFound++
		metrics.PosterLookups.WithLabelValues("not_found").Inc()
	default:
		stats.Errors++
		metrics.PosterLookups.WithLabelValues("error").Inc()
		log := logging.Component("posters")
		log.Warn().Err(o.err).Int64("id", o.id).Msg("Poster lookup failed, will retry next run")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
