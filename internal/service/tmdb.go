package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/user/movierec/internal/logging"
)

// ErrMovieNotFound TMDB answered 404 for the movie.
var ErrMovieNotFound = errors.New("tmdb: movie not found")

// TMDBStatusError non-2xx answer other than 404.
type TMDBStatusError struct {
	Status int
	Body   string
}

func (e *TMDBStatusError) Error() string {
	return fmt.Sprintf("tmdb: unexpected status %d: %s", e.Status, e.Body)
}

// TMDBConfig settings for TMDBClient. Zero values get defaults.
type TMDBConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	// FailureThreshold consecutive transient failures that open the breaker.
	FailureThreshold uint32
	// OpenTimeout how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// TMDBClient looks up movie details on The Movie Database.
type TMDBClient struct {
	baseURL string
	token   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*string]
}

func NewTMDBClient(cfg TMDBConfig) *TMDBClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.themoviedb.org/3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 20
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 15 * time.Second
	}

	log := logging.Component("tmdb")
	settings := gobreaker.Settings{
		Name:    "tmdb",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrMovieNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}

	return &TMDBClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[*string](settings),
	}
}

type tmdbMovie struct {
	ID         int64   `json:"id"`
	PosterPath *string `json:"poster_path"`
}

// PosterPath returns the poster path fragment of a movie, nil when TMDB has
// none. A 404 is reported as ErrMovieNotFound.
func (c *TMDBClient) PosterPath(ctx context.Context, id int64) (*string, error) {
	return c.breaker.Execute(func() (*string, error) {
		return c.fetchPosterPath(ctx, id)
	})
}

func (c *TMDBClient) fetchPosterPath(ctx context.Context, id int64) (*string, error) {
	url := c.baseURL + "/movie/" + strconv.FormatInt(id, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tmdb: request movie %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return nil, ErrMovieNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &TMDBStatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var movie tmdbMovie
	if err := json.NewDecoder(resp.Body).Decode(&movie); err != nil {
		return nil, fmt.Errorf("tmdb: decode movie %d: %w", id, err)
	}
	if movie.PosterPath != nil && *movie.PosterPath == "" {
		return nil, nil
	}
	return movie.PosterPath, nil
}
