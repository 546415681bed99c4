package repository

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/user/movierec/internal/model"
)

// Distance similarity metric of a vector collection. Values match Qdrant's names.
type Distance string

const (
	Cosine    Distance = "Cosine"
	Euclid    Distance = "Euclid"
	Dot       Distance = "Dot"
	Manhattan Distance = "Manhattan"
)

// ParseDistance accepts the metric name case-insensitively ("euclidean" is an alias of Euclid).
func ParseDistance(s string) (Distance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cosine":
		return Cosine, nil
	case "euclid", "euclidean":
		return Euclid, nil
	case "dot":
		return Dot, nil
	case "manhattan":
		return Manhattan, nil
	}
	return "", fmt.Errorf("unknown distance metric %q", s)
}

// VectorStore vector search backend holding one point per movie.
type VectorStore interface {
	// RecreateCollection drops the collection if it exists and creates it empty.
	RecreateCollection(ctx context.Context, name string, dimension int, distance Distance) error

	// Upsert writes points and returns once the store has acknowledged them.
	Upsert(ctx context.Context, name string, points []model.VectorPoint) error

	// SearchSimilar ranks the points most similar to the stored point seedID,
	// excluding the seed itself. A missing seed is a 404 StoreError.
	SearchSimilar(ctx context.Context, name string, seedID int64, limit int) ([]model.ScoredPoint, error)

	// Scroll returns up to limit points in ID order, skipping the first offset.
	// Vectors are not loaded.
	Scroll(ctx context.Context, name string, limit, offset int) ([]model.VectorPoint, error)

	Close() error
}

// StoreError uniform vector-store failure with an HTTP-like status.
type StoreError struct {
	Op      string
	Status  int
	Message string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
}

// HTTPStatus lets apperr.FromStore classify the failure.
func (e *StoreError) HTTPStatus() int { return e.Status }

func storeErr(op string, status int, format string, args ...any) *StoreError {
	return &StoreError{Op: op, Status: status, Message: fmt.Sprintf(format, args...)}
}

func internalErr(op string, err error) *StoreError {
	return &StoreError{Op: op, Status: http.StatusInternalServerError, Message: err.Error()}
}
