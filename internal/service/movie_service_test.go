package service

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/movierec/internal/apperr"
	"github.com/user/movierec/internal/model"
	"github.com/user/movierec/internal/repository"
)

// countingDocs counts Get calls on top of a memory store.
type countingDocs struct {
	*repository.MemoryDocumentStore
	gets atomic.Int32
	err  error
}

func (c *countingDocs) Get(ctx context.Context, id int64) (*model.MovieMetadata, error) {
	c.gets.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.MemoryDocumentStore.Get(ctx, id)
}

// failingVectors fails every read with a fixed store error.
type failingVectors struct {
	repository.VectorStore
	err error
}

func (f failingVectors) Scroll(context.Context, string, int, int) ([]model.VectorPoint, error) {
	return nil, f.err
}

func (f failingVectors) SearchSimilar(context.Context, string, int64, int) ([]model.ScoredPoint, error) {
	return nil, f.err
}

// seedMovies stores n movies with ids 1..n, all pointing roughly the same way.
func seedMovies(t *testing.T, n int) (*repository.MemoryVectorStore, *countingDocs) {
	t.Helper()
	ctx := context.Background()
	vectors := repository.NewMemoryVectorStore()
	if err := vectors.RecreateCollection(ctx, testCollection, 2, repository.Cosine); err != nil {
		t.Fatal(err)
	}
	docs := &countingDocs{MemoryDocumentStore: repository.NewMemoryDocumentStore()}
	batch := docs.NewBatch()
	points := make([]model.VectorPoint, 0, n)
	for i := 1; i <= n; i++ {
		id := int64(i)
		title := "Movie " + string(rune('A'+i-1))
		points = append(points, model.VectorPoint{
			ID:      id,
			Vector:  []float32{1, float32(i) / 10},
			Payload: model.MoviePayload{Title: title, VoteAverage: 6.5},
		})
		batch.Add(repository.DocumentFromMetadata(model.MovieMetadata{ID: id, Title: &title}))
	}
	if err := vectors.Upsert(ctx, testCollection, points); err != nil {
		t.Fatal(err)
	}
	if err := batch.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	return vectors, docs
}

func TestMovieService_ListMovies(t *testing.T) {
	vectors, docs := seedMovies(t, 23)
	svc := NewMovieService(vectors, docs, MovieServiceConfig{Collection: testCollection})

	tests := []struct {
		page, limit int
		wantLen     int
		wantFirst   int64
	}{
		{page: 1, limit: 20, wantLen: 20, wantFirst: 1},
		{page: 2, limit: 20, wantLen: 3, wantFirst: 21},
		{page: 3, limit: 20, wantLen: 0},
		{page: 5, limit: 5, wantLen: 3, wantFirst: 21},
	}
	for _, tt := range tests {
		got, err := svc.ListMovies(context.Background(), tt.page, tt.limit)
		if err != nil {
			t.Fatalf("ListMovies(%d, %d) error = %v", tt.page, tt.limit, err)
		}
		if len(got) != tt.wantLen {
			t.Errorf("ListMovies(%d, %d) len = %d, want %d", tt.page, tt.limit, len(got), tt.wantLen)
			continue
		}
		if tt.wantLen > 0 && got[0].ID != tt.wantFirst {
			t.Errorf("ListMovies(%d, %d) first id = %d, want %d", tt.page, tt.limit, got[0].ID, tt.wantFirst)
		}
	}

	page, _ := svc.ListMovies(context.Background(), 1, 1)
	if page[0].Title != "Movie A" || page[0].VoteAverage != 6.5 {
		t.Errorf("summary = %+v", page[0])
	}
}

func TestMovieService_ListMoviesMissingCollection(t *testing.T) {
	svc := NewMovieService(repository.NewMemoryVectorStore(), repository.NewMemoryDocumentStore(),
		MovieServiceConfig{Collection: testCollection})
	_, err := svc.ListMovies(context.Background(), 1, 20)
	if apperr.StatusCode(err) != http.StatusNotFound {
		t.Errorf("status = %d, want 404 (err = %v)", apperr.StatusCode(err), err)
	}
}

func TestMovieService_GetMovie(t *testing.T) {
	vectors, docs := seedMovies(t, 3)
	svc := NewMovieService(vectors, docs, MovieServiceConfig{Collection: testCollection})

	m, err := svc.GetMovie(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetMovie() error = %v", err)
	}
	if m.ID != 2 || m.Title == nil || *m.Title != "Movie B" {
		t.Errorf("GetMovie() = %+v", m)
	}

	_, err = svc.GetMovie(context.Background(), 999999999)
	if apperr.StatusCode(err) != http.StatusNotFound || apperr.PublicMessage(err) != "Movie not found" {
		t.Errorf("missing movie error = %v", err)
	}
}

func TestMovieService_UpstreamFailureIsGeneric(t *testing.T) {
	vectors, docs := seedMovies(t, 1)
	docs.err = errors.New("dial tcp: connection refused")
	svc := NewMovieService(vectors, docs, MovieServiceConfig{Collection: testCollection})

	_, err := svc.GetMovie(context.Background(), 1)
	if apperr.StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", apperr.StatusCode(err))
	}
	if msg := apperr.PublicMessage(err); msg != "Internal Server Error" {
		t.Errorf("public message = %q leaks details", msg)
	}

	broken := failingVectors{err: &repository.StoreError{Op: "scroll", Status: 503, Message: "unavailable"}}
	svc = NewMovieService(broken, docs, MovieServiceConfig{Collection: testCollection})
	if _, err := svc.ListMovies(context.Background(), 1, 20); apperr.StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("ListMovies status = %d, want 500", apperr.StatusCode(err))
	}
	if _, err := svc.Recommend(context.Background(), 1, 10); apperr.StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("Recommend status = %d, want 500", apperr.StatusCode(err))
	}
}

func TestMovieService_Recommend(t *testing.T) {
	vectors, docs := seedMovies(t, 5)
	svc := NewMovieService(vectors, docs, MovieServiceConfig{Collection: testCollection})

	recs, err := svc.Recommend(context.Background(), 1, 3)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("len = %d, want 3", len(recs))
	}
	for i, r := range recs {
		if r.ID == 1 {
			t.Error("seed movie recommended to itself")
		}
		if i > 0 && r.Score > recs[i-1].Score {
			t.Errorf("scores not descending: %v", recs)
		}
	}
	if recs[0].ID != 2 {
		t.Errorf("best match = %d, want 2", recs[0].ID)
	}

	_, err = svc.Recommend(context.Background(), 42, 3)
	if apperr.StatusCode(err) != http.StatusNotFound || apperr.PublicMessage(err) != "Movie not found" {
		t.Errorf("unknown seed error = %v", err)
	}
}

func TestMovieService_CachesDetails(t *testing.T) {
	vectors, docs := seedMovies(t, 2)
	svc := NewMovieService(vectors, docs, MovieServiceConfig{
		Collection: testCollection,
		CacheTTL:   time.Minute,
		CacheSize:  10,
	})

	for i := 0; i < 3; i++ {
		if _, err := svc.GetMovie(context.Background(), 1); err != nil {
			t.Fatalf("GetMovie() error = %v", err)
		}
	}
	if got := docs.gets.Load(); got != 1 {
		t.Errorf("document store hit %d times, want 1", got)
	}

	// Misses are not cached.
	svc.GetMovie(context.Background(), 77)
	svc.GetMovie(context.Background(), 77)
	if got := docs.gets.Load(); got != 3 {
		t.Errorf("document store hit %d times, want 3", got)
	}
}

func TestMovieService_NoCacheWhenTTLZero(t *testing.T) {
	vectors, docs := seedMovies(t, 1)
	svc := NewMovieService(vectors, docs, MovieServiceConfig{Collection: testCollection})
	svc.GetMovie(context.Background(), 1)
	svc.GetMovie(context.Background(), 1)
	if got := docs.gets.Load(); got != 2 {
		t.Errorf("document store hit %d times, want 2", got)
	}
}
