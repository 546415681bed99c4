package repository

import (
	"context"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/user/movierec/internal/model"
)

// DocumentStore flexible-schema store holding the full metadata of each movie,
// keyed by the decimal movie ID.
type DocumentStore interface {
	// Get returns nil, nil when no document exists for id.
	Get(ctx context.Context, id int64) (*model.MovieMetadata, error)

	// NewBatch starts an atomic write batch.
	NewBatch() DocumentBatch

	Close() error
}

// DocumentBatch queued document writes committed as one unit. A batch is
// used once; start a new one after Commit.
type DocumentBatch interface {
	Add(doc Document) error
	Len() int
	Commit(ctx context.Context) error
}

// Document the persisted form of one movie, field name to value.
type Document struct {
	ID     int64
	Fields map[string]any
}

type unset struct{}

// Unset marks a field that has no value at all. Clean drops Unset entries;
// nil is kept and stored as null.
var Unset any = unset{}

// Clean returns v with every Unset removed, recursing into maps and slices.
// Elements of a slice that are Unset are removed, shortening the slice.
func Clean(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if val == Unset {
				continue
			}
			out[k] = Clean(val)
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, val := range t {
			if val == Unset {
				continue
			}
			out = append(out, Clean(val))
		}
		return out
	default:
		return v
	}
}

// DocumentFromMetadata converts metadata into its persisted form. Absent
// nullable fields become null; absent required fields are Unset and so are
// left out of the stored document.
func DocumentFromMetadata(m model.MovieMetadata) Document {
	fields := map[string]any{
		"id":                  m.ID,
		"title":               orUnset(m.Title),
		"tagline":             orNull(m.Tagline),
		"overview":            orUnset(m.Overview),
		"posterUrl":           orNull(m.PosterURL),
		"runtime":             orNull(m.Runtime),
		"releaseDate":         orNull(m.ReleaseDate),
		"status":              orUnset(m.Status),
		"budget":              orUnset(m.Budget),
		"revenue":             orUnset(m.Revenue),
		"director":            orNull(m.Director),
		"cast":                listOrUnset(m.Cast),
		"genres":              listOrUnset(m.Genres),
		"productionCompanies": listOrUnset(m.ProductionCompanies),
		"productionCountries": listOrUnset(m.ProductionCountries),
		"spokenLanguages":     listOrUnset(m.SpokenLanguages),
	}
	return Document{ID: m.ID, Fields: Clean(fields).(map[string]any)}
}

// MetadataFromFields decodes stored fields back into metadata.
func MetadataFromFields(fields map[string]any) (*model.MovieMetadata, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var m model.MovieMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DocumentKey decimal form of id used as the document key.
func DocumentKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func orNull[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func orUnset[T any](p *T) any {
	if p == nil {
		return Unset
	}
	return *p
}

func listOrUnset(s []string) any {
	if s == nil {
		return Unset
	}
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
