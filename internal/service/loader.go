package service

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/user/movierec/internal/logging"
	"github.com/user/movierec/internal/model"
)

// errStopLines ends forEachLine early without an error.
var errStopLines = errors.New("stop")

// forEachLine streams a JSONL file one line at a time. Blank lines are skipped;
// lines have no length limit.
func forEachLine(ctx context.Context, path string, fn func(lineNo int, line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	lineNo := 0
	for {
		raw, readErr := r.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return fmt.Errorf("read %s: %w", path, readErr)
		}
		if len(raw) > 0 {
			lineNo++
			if lineNo%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if line := bytes.TrimSpace(raw); len(line) > 0 {
				if err := fn(lineNo, line); err != nil {
					if errors.Is(err, errStopLines) {
						return nil
					}
					return err
				}
			}
		}
		if readErr == io.EOF {
			return nil
		}
	}
}

// parseMetadata decodes one metadata line. A line without a usable id is malformed.
func parseMetadata(line []byte) (model.MovieMetadata, error) {
	var m model.MovieMetadata
	if err := json.Unmarshal(line, &m); err != nil {
		return m, err
	}
	if m.ID == 0 {
		return m, errors.New("missing id")
	}
	return m, nil
}

// DetectDimension returns the vector length of the first embedding line that
// parses and carries a non-empty vector, or fallback when there is none.
func DetectDimension(ctx context.Context, path string, fallback int) (int, error) {
	log := logging.Component("loader")
	dimension := 0
	err := forEachLine(ctx, path, func(lineNo int, line []byte) error {
		var first struct {
			Vector []float32 `json:"vector"`
		}
		if err := json.Unmarshal(line, &first); err != nil || len(first.Vector) == 0 {
			return nil
		}
		dimension = len(first.Vector)
		log.Info().Int("dimension", dimension).Int("line", lineNo).Msg("Detected embedding dimension")
		return errStopLines
	})
	if err != nil {
		return 0, err
	}
	if dimension == 0 {
		log.Warn().Int("fallback", fallback).Msg("No valid vector found, using configured dimension")
		return fallback, nil
	}
	return dimension, nil
}

// LoadStats counts what the merge loader saw.
type LoadStats struct {
	MetadataLines      int
	MalformedMetadata  int
	DuplicateMetadata  int
	EmbeddingsAttached int
	UnknownEmbeddings  int
	MalformedEmbedding int
	DimensionMismatch  int
}

// LoadAndMerge joins the metadata and embedding files by movie ID. Every
// well-formed metadata line yields one record; embeddings for unknown IDs are
// dropped. With dimension > 0, vectors of another length are dropped too.
func LoadAndMerge(ctx context.Context, metadataPath, embeddingPath string, dimension int) (*model.MergedSet, *LoadStats, error) {
	log := logging.Component("loader")
	set := model.NewMergedSet()
	stats := &LoadStats{}

	err := forEachLine(ctx, metadataPath, func(lineNo int, line []byte) error {
		m, err := parseMetadata(line)
		if err != nil {
			stats.MalformedMetadata++
			log.Warn().Err(err).Int("line", lineNo).Msg("Skipping malformed metadata line")
			return nil
		}
		stats.MetadataLines++
		if _, exists := set.Get(m.ID); exists {
			stats.DuplicateMetadata++
			log.Debug().Int64("id", m.ID).Int("line", lineNo).Msg("Duplicate metadata id, keeping the later record")
		}
		set.PutMetadata(m)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load metadata: %w", err)
	}
	log.Info().Int("records", set.Len()).Int("malformed", stats.MalformedMetadata).Msg("Loaded metadata")

	err = forEachLine(ctx, embeddingPath, func(lineNo int, line []byte) error {
		var e model.MovieEmbedding
		if err := json.Unmarshal(line, &e); err != nil {
			stats.MalformedEmbedding++
			log.Debug().Err(err).Int("line", lineNo).Msg("Skipping malformed embedding line")
			return nil
		}
		if _, known := set.Get(e.ID); !known {
			stats.UnknownEmbeddings++
			return nil
		}
		if dimension > 0 && len(e.Vector) != dimension {
			stats.DimensionMismatch++
			log.Warn().Int64("id", e.ID).Int("length", len(e.Vector)).Int("dimension", dimension).
				Msg("Dropping embedding with unexpected vector length")
			return nil
		}
		set.AttachEmbedding(e)
		stats.EmbeddingsAttached++
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load embeddings: %w", err)
	}

	log.Info().
		Int("records", set.Len()).
		Int("with_embedding", set.WithEmbedding()).
		Int("unknown_ids", stats.UnknownEmbeddings).
		Int("malformed", stats.MalformedEmbedding).
		Int("dimension_mismatch", stats.DimensionMismatch).
		Msg("Merged embeddings")
	return set, stats, nil
}
