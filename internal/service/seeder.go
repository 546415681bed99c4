package service

import (
	"context"
	"fmt"
	"time"

	"github.com/user/movierec/internal/logging"
	"github.com/user/movierec/internal/metrics"
	"github.com/user/movierec/internal/model"
	"github.com/user/movierec/internal/repository"
)

// SeederConfig settings for a seeding run.
type SeederConfig struct {
	Collection   string
	Distance     repository.Distance
	FallbackDim  int
	BatchSize    int
	ImageBaseURL string
}

// SeedStats summary of one run.
type SeedStats struct {
	Dimension    int
	Processed    int
	Vectors      int
	Documents    int
	MetadataOnly int
	Load         *LoadStats
	Duration     time.Duration
}

// Seeder rebuilds both stores from the metadata and embedding files.
type Seeder struct {
	vectors   repository.VectorStore
	documents repository.DocumentStore
	posters   PosterCache
	cfg       SeederConfig
}

// NewSeeder posters may be empty; records then get no poster URL unless
// their metadata carries one.
func NewSeeder(vectors repository.VectorStore, documents repository.DocumentStore, posters PosterCache, cfg SeederConfig) *Seeder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 90
	}
	if cfg.FallbackDim <= 0 {
		cfg.FallbackDim = 5000
	}
	if cfg.Distance == "" {
		cfg.Distance = repository.Cosine
	}
	if posters == nil {
		posters = PosterCache{}
	}
	return &Seeder{vectors: vectors, documents: documents, posters: posters, cfg: cfg}
}

// Run wipes and refills the vector collection and writes every metadata
// document. Inputs are fully loaded before the collection is recreated. Any
// store failure aborts the run.
func (s *Seeder) Run(ctx context.Context, metadataPath, embeddingPath string) (*SeedStats, error) {
	log := logging.Component("seed")
	start := time.Now()

	dimension, err := DetectDimension(ctx, embeddingPath, s.cfg.FallbackDim)
	if err != nil {
		return nil, fmt.Errorf("detect dimension: %w", err)
	}

	merged, loadStats, err := LoadAndMerge(ctx, metadataPath, embeddingPath, dimension)
	if err != nil {
		return nil, err
	}
	stats := &SeedStats{Dimension: dimension, Load: loadStats}

	log.Info().Str("collection", s.cfg.Collection).Int("dimension", dimension).Str("distance", string(s.cfg.Distance)).
		Msg("Recreating vector collection")
	if err := s.vectors.RecreateCollection(ctx, s.cfg.Collection, dimension, s.cfg.Distance); err != nil {
		return nil, fmt.Errorf("recreate collection %s: %w", s.cfg.Collection, err)
	}

	ids := merged.IDs()
	for begin := 0; begin < len(ids); begin += s.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		end := min(begin+s.cfg.BatchSize, len(ids))

		points, docs := s.buildBatch(merged, ids[begin:end])
		if err := s.writeBatch(ctx, points, docs); err != nil {
			return stats, fmt.Errorf("batch %d-%d: %w", begin, end, err)
		}

		stats.Processed = end
		stats.Vectors += len(points)
		stats.Documents += len(docs)
		stats.MetadataOnly += len(docs) - len(points)
		metrics.SeededPoints.Add(float64(len(points)))
		metrics.SeededDocuments.Add(float64(len(docs)))

		log.Info().Int("processed", stats.Processed).Int("total", len(ids)).Msg("CHECKPOINT")
	}

	stats.Duration = time.Since(start)
	log.Info().
		Int("processed", stats.Processed).
		Int("vectors", stats.Vectors).
		Int("documents", stats.Documents).
		Int("metadata_only", stats.MetadataOnly).
		Dur("elapsed", stats.Duration).
		Msg("Seeding finished")
	return stats, nil
}

// buildBatch splits records into vector points (records with an embedding)
// and documents (all records).
func (s *Seeder) buildBatch(merged *model.MergedSet, ids []int64) ([]model.VectorPoint, []repository.Document) {
	points := make([]model.VectorPoint, 0, len(ids))
	docs := make([]repository.Document, 0, len(ids))
	for _, id := range ids {
		rec, ok := merged.Get(id)
		if !ok {
			continue
		}
		posterURL := s.posters.URL(id, s.cfg.ImageBaseURL)

		if rec.Embedding != nil {
			title := rec.Embedding.Payload.Title
			if title == "" && rec.Metadata.Title != nil {
				title = *rec.Metadata.Title
			}
			points = append(points, model.VectorPoint{
				ID:     id,
				Vector: rec.Embedding.Vector,
				Payload: model.MoviePayload{
					Title:       title,
					PosterURL:   posterURL,
					VoteAverage: rec.Embedding.Payload.VoteAverage,
				},
			})
		}

		meta := rec.Metadata
		if meta.PosterURL == nil && posterURL != nil {
			meta.PosterURL = posterURL
		}
		docs = append(docs, repository.DocumentFromMetadata(meta))
	}
	return points, docs
}

func (s *Seeder) writeBatch(ctx context.Context, points []model.VectorPoint, docs []repository.Document) error {
	if len(points) > 0 {
		if err := s.vectors.Upsert(ctx, s.cfg.Collection, points); err != nil {
			return fmt.Errorf("upsert %d points: %w", len(points), err)
		}
	}
	batch := s.documents.NewBatch()
	for _, d := range docs {
		if err := batch.Add(d); err != nil {
			return err
		}
	}
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("commit %d documents: %w", len(docs), err)
	}
	return nil
}
