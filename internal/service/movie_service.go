package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/user/movierec/internal/apperr"
	"github.com/user/movierec/internal/metrics"
	"github.com/user/movierec/internal/model"
	"github.com/user/movierec/internal/repository"
	"github.com/user/movierec/internal/utils"
	"golang.org/x/sync/singleflight"
)

const movieNotFound = "Movie not found"

// MovieServiceConfig read path settings.
type MovieServiceConfig struct {
	Collection string
	CacheTTL   time.Duration
	CacheSize  int
}

// MovieService read-only access to the two stores for the API.
type MovieService struct {
	vectors   repository.VectorStore
	documents repository.DocumentStore
	cfg       MovieServiceConfig

	pages   *cache.Cache
	details *utils.LRUCache[int64, *model.MovieMetadata]
	recs    *utils.LRUCache[string, []model.Recommendation]
	group   singleflight.Group
}

// NewMovieService a CacheTTL of zero disables caching.
func NewMovieService(vectors repository.VectorStore, documents repository.DocumentStore, cfg MovieServiceConfig) *MovieService {
	s := &MovieService{vectors: vectors, documents: documents, cfg: cfg}
	if cfg.CacheTTL > 0 {
		s.pages = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
		s.details = utils.NewLRUCache[int64, *model.MovieMetadata](cfg.CacheSize, cfg.CacheTTL)
		s.recs = utils.NewLRUCache[string, []model.Recommendation](cfg.CacheSize, cfg.CacheTTL)
	}
	return s
}

// ListMovies returns one page of list items in ID order. page starts at 1.
func (s *MovieService) ListMovies(ctx context.Context, page, limit int) ([]model.MovieSummary, error) {
	key := fmt.Sprintf("movies:%d:%d", page, limit)
	if s.pages != nil {
		if v, ok := s.pages.Get(key); ok {
			metrics.RecordCache("pages", true)
			return v.([]model.MovieSummary), nil
		}
		metrics.RecordCache("pages", false)
	}

	points, err := s.vectors.Scroll(ctx, s.cfg.Collection, limit, (page-1)*limit)
	if err != nil {
		return nil, apperr.FromStore("list movies", err, "Movies collection not found")
	}
	movies := make([]model.MovieSummary, 0, len(points))
	for _, p := range points {
		movies = append(movies, model.SummaryFromPoint(p))
	}

	if s.pages != nil {
		s.pages.SetDefault(key, movies)
	}
	return movies, nil
}

// GetMovie returns the full metadata of a movie. Concurrent lookups of the
// same id share one store call.
func (s *MovieService) GetMovie(ctx context.Context, id int64) (*model.MovieMetadata, error) {
	if s.details != nil {
		if m, ok := s.details.Get(id); ok {
			metrics.RecordCache("details", true)
			return m, nil
		}
		metrics.RecordCache("details", false)
	}

	v, err, _ := s.group.Do("movie:"+strconv.FormatInt(id, 10), func() (any, error) {
		return s.documents.Get(ctx, id)
	})
	if err != nil {
		return nil, apperr.Upstream("get movie", err)
	}
	movie, _ := v.(*model.MovieMetadata)
	if movie == nil {
		return nil, apperr.NotFound(movieNotFound)
	}

	if s.details != nil {
		s.details.Set(id, movie)
	}
	return movie, nil
}

// Recommend returns up to limit movies most similar to id, best first.
func (s *MovieService) Recommend(ctx context.Context, id int64, limit int) ([]model.Recommendation, error) {
	key := strconv.FormatInt(id, 10) + ":" + strconv.Itoa(limit)
	if s.recs != nil {
		if r, ok := s.recs.Get(key); ok {
			metrics.RecordCache("recommendations", true)
			return r, nil
		}
		metrics.RecordCache("recommendations", false)
	}

	hits, err := s.vectors.SearchSimilar(ctx, s.cfg.Collection, id, limit)
	if err != nil {
		return nil, apperr.FromStore("recommend", err, movieNotFound)
	}
	recs := make([]model.Recommendation, 0, len(hits))
	for _, h := range hits {
		recs = append(recs, model.RecommendationFromHit(h))
	}

	if s.recs != nil {
		s.recs.Set(key, recs)
	}
	return recs, nil
}
