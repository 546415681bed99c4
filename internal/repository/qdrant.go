package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/user/movierec/internal/model"
)

// QdrantStore VectorStore over Qdrant's REST API.
type QdrantStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewQdrantStore baseURL like http://localhost:6333; apiKey may be empty.
func NewQdrantStore(baseURL, apiKey string) *QdrantStore {
	return &QdrantStore{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// NewQdrantStoreWithClient same as NewQdrantStore with a caller supplied client.
func NewQdrantStoreWithClient(baseURL, apiKey string, client *http.Client) *QdrantStore {
	s := NewQdrantStore(baseURL, apiKey)
	s.client = client
	return s
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status any             `json:"status"`
}

type qdrantPoint struct {
	ID      int64              `json:"id"`
	Score   float64            `json:"score,omitempty"`
	Vector  []float32          `json:"vector,omitempty"`
	Payload model.MoviePayload `json:"payload"`
}

func collectionPath(name string) string {
	return "/collections/" + url.PathEscape(name)
}

func (s *QdrantStore) RecreateCollection(ctx context.Context, name string, dimension int, distance Distance) error {
	const op = "recreateCollection"
	if dimension <= 0 {
		return storeErr(op, http.StatusBadRequest, "dimension must be positive, got %d", dimension)
	}
	_, err := s.do(ctx, op, http.MethodDelete, collectionPath(name), nil)
	if err != nil && !isStatus(err, http.StatusNotFound) {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": string(distance),
		},
	}
	_, err = s.do(ctx, op, http.MethodPut, collectionPath(name), body)
	return err
}

func (s *QdrantStore) Upsert(ctx context.Context, name string, points []model.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}
	wire := make([]qdrantPoint, len(points))
	for i, p := range points {
		wire[i] = qdrantPoint{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
	}
	_, err := s.do(ctx, "upsert", http.MethodPut, collectionPath(name)+"/points?wait=true",
		map[string]any{"points": wire})
	return err
}

func (s *QdrantStore) SearchSimilar(ctx context.Context, name string, seedID int64, limit int) ([]model.ScoredPoint, error) {
	const op = "searchSimilar"
	body := map[string]any{
		"positive":     []int64{seedID},
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	raw, err := s.do(ctx, op, http.MethodPost, collectionPath(name)+"/points/recommend", body)
	if err != nil {
		return nil, err
	}
	var result []qdrantPoint
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, internalErr(op, fmt.Errorf("decode result: %w", err))
	}
	hits := make([]model.ScoredPoint, 0, len(result))
	for _, r := range result {
		hits = append(hits, model.ScoredPoint{ID: r.ID, Score: r.Score, Payload: r.Payload})
	}
	return hits, nil
}

func (s *QdrantStore) Scroll(ctx context.Context, name string, limit, offset int) ([]model.VectorPoint, error) {
	const op = "scroll"
	body := map[string]any{
		"limit":        limit,
		"offset":       offset,
		"with_payload": true,
		"with_vector":  false,
	}
	raw, err := s.do(ctx, op, http.MethodPost, collectionPath(name)+"/points/query", body)
	if err != nil {
		return nil, err
	}
	var result struct {
		Points []qdrantPoint `json:"points"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, internalErr(op, fmt.Errorf("decode result: %w", err))
	}
	points := make([]model.VectorPoint, 0, len(result.Points))
	for _, r := range result.Points {
		points = append(points, model.VectorPoint{ID: r.ID, Payload: r.Payload})
	}
	return points, nil
}

func (s *QdrantStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// do sends one request and returns the "result" member of the response.
func (s *QdrantStore) do(ctx context.Context, op, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, internalErr(op, fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, internalErr(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, internalErr(op, fmt.Errorf("read response: %w", err))
	}

	var env qdrantEnvelope
	decodeErr := json.Unmarshal(data, &env)

	if resp.StatusCode >= 400 {
		return nil, storeErr(op, resp.StatusCode, "%s", qdrantMessage(env, decodeErr, data, resp.StatusCode))
	}
	if decodeErr != nil {
		return nil, internalErr(op, fmt.Errorf("decode response: %w", decodeErr))
	}
	return env.Result, nil
}

// qdrantMessage extracts status.error from an error response, falling back to the raw body.
func qdrantMessage(env qdrantEnvelope, decodeErr error, raw []byte, status int) string {
	if decodeErr == nil {
		if st, ok := env.Status.(map[string]any); ok {
			if msg, ok := st["error"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return http.StatusText(status)
}

func isStatus(err error, status int) bool {
	se, ok := err.(*StoreError)
	return ok && se.Status == status
}
