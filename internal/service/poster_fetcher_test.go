package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"
)

type lookupResult struct {
	path *string
	err  error
}

// fakeLookup answers from a fixed table; unknown ids have no poster.
type fakeLookup struct {
	mu      sync.Mutex
	results map[int64]lookupResult
	calls   []int64
	onCall  func(id int64)
}

func (f *fakeLookup) PosterPath(_ context.Context, id int64) (*string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	r := f.results[id]
	hook := f.onCall
	f.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return r.path, r.err
}

func (f *fakeLookup) called() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]int64(nil), f.calls...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestPosterFetcher_SkipsCachedIDs(t *testing.T) {
	meta := writeLines(t, "metadata.jsonl",
		metadataLine(1, "One"),
		metadataLine(2, "Two"),
		metadataLine(3, "Three"),
		metadataLine(4, "Four"),
		metadataLine(3, "Three again"),
	)
	cache := PosterCache{}
	cache.Set(1, strPtr("/one.jpg"))
	cache.Set(2, nil)

	lookup := &fakeLookup{results: map[int64]lookupResult{3: {path: strPtr("/three.jpg")}}}
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	f := NewPosterFetcher(lookup, cache, PosterFetcherConfig{CachePath: cachePath, Concurrency: 30})

	stats, err := f.Run(context.Background(), meta)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := lookup.called()
	if len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Errorf("looked up %v, want [3 4]", got)
	}
	if stats.Total != 2 || stats.Found != 1 || stats.NoPoster != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPosterFetcher_Outcomes(t *testing.T) {
	meta := writeLines(t, "metadata.jsonl",
		metadataLine(10, "Found"),
		metadataLine(11, "No poster"),
		metadataLine(12, "Not found"),
		metadataLine(13, "Flaky"),
	)
	lookup := &fakeLookup{results: map[int64]lookupResult{
		10: {path: strPtr("/found.jpg")},
		11: {},
		12: {err: ErrMovieNotFound},
		13: {err: &TMDBStatusError{Status: 503}},
	}}
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	f := NewPosterFetcher(lookup, nil, PosterFetcherConfig{CachePath: cachePath, Concurrency: 2})

	stats, err := f.Run(context.Background(), meta)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Found != 1 || stats.NoPoster != 1 || stats.NotFound != 1 || stats.Errors != 1 {
		t.Errorf("stats = %+v", stats)
	}

	saved, err := LoadPosterCache(cachePath)
	if err != nil {
		t.Fatalf("LoadPosterCache() error = %v", err)
	}
	if p := saved["10"]; p == nil || *p != "/found.jpg" {
		t.Errorf("entry 10 = %v", p)
	}
	for _, id := range []int64{11, 12} {
		if !saved.Has(id) {
			t.Errorf("entry %d missing, want null", id)
		}
	}
	if saved.Has(13) {
		t.Error("transient failure was cached; it must stay absent for retry")
	}

	// A second run retries only the failed id.
	lookup2 := &fakeLookup{results: map[int64]lookupResult{13: {path: strPtr("/flaky.jpg")}}}
	stats, err = NewPosterFetcher(lookup2, saved, PosterFetcherConfig{CachePath: cachePath}).Run(context.Background(), meta)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if got := lookup2.called(); len(got) != 1 || got[0] != 13 {
		t.Errorf("second run looked up %v, want [13]", got)
	}
	if stats.Found != 1 {
		t.Errorf("second run stats = %+v", stats)
	}
}

func TestPosterFetcher_AllCachedSavesNothing(t *testing.T) {
	meta := writeLines(t, "metadata.jsonl", metadataLine(1, "One"))
	cache := PosterCache{}
	cache.Set(1, nil)
	lookup := &fakeLookup{}
	cachePath := filepath.Join(t.TempDir(), "cache.json")

	stats, err := NewPosterFetcher(lookup, cache, PosterFetcherConfig{CachePath: cachePath}).Run(context.Background(), meta)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Total != 0 || len(lookup.called()) != 0 {
		t.Errorf("stats = %+v, calls = %v", stats, lookup.called())
	}
	if _, err := os.Stat(cachePath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("cache file written although nothing was fetched (stat err = %v)", err)
	}
}

func TestPosterFetcher_CancelStillSaves(t *testing.T) {
	meta := writeLines(t, "metadata.jsonl",
		metadataLine(1, "One"),
		metadataLine(2, "Two"),
		metadataLine(3, "Three"),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lookup := &fakeLookup{
		results: map[int64]lookupResult{1: {path: strPtr("/one.jpg")}},
		onCall:  func(int64) { cancel() },
	}
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	f := NewPosterFetcher(lookup, nil, PosterFetcherConfig{
		CachePath:   cachePath,
		Concurrency: 1,
		BatchDelay:  time.Second,
	})

	_, err := f.Run(ctx, meta)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if got := lookup.called(); len(got) != 1 {
		t.Errorf("looked up %v after cancel, want only the first batch", got)
	}
	saved, err := LoadPosterCache(cachePath)
	if err != nil {
		t.Fatalf("LoadPosterCache() error = %v", err)
	}
	if !saved.Has(1) || saved.Has(2) {
		t.Errorf("saved cache = %v, want only id 1", saved)
	}
}

func TestPosterFetcher_Checkpoints(t *testing.T) {
	meta := writeLines(t, "metadata.jsonl",
		metadataLine(1, "One"),
		metadataLine(2, "Two"),
		metadataLine(3, "Three"),
	)
	cachePath := filepath.Join(t.TempDir(), "cache.json")

	// The checkpoint after the first batch must be on disk before the
	// second batch's lookup runs.
	var sawCheckpoint bool
	lookup := &fakeLookup{}
	lookup.onCall = func(id int64) {
		if id != 2 {
			return
		}
		saved, err := LoadPosterCache(cachePath)
		sawCheckpoint = err == nil && saved.Has(1)
	}
	f := NewPosterFetcher(lookup, nil, PosterFetcherConfig{CachePath: cachePath, Concurrency: 1, CheckpointEvery: 10})

	if _, err := f.Run(context.Background(), meta); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !sawCheckpoint {
		t.Error("no checkpoint saved after batch 0")
	}
	saved, _ := LoadPosterCache(cachePath)
	if len(saved) != 3 {
		t.Errorf("final cache has %d entries, want 3", len(saved))
	}
}
