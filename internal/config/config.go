package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/user/movierec/internal/apperr"
)

// ConfigPathEnvVar points at an optional YAML config file.
const ConfigPathEnvVar = "CONFIG_PATH"

// MaxFirestoreBatch is the most writes Firestore accepts in one WriteBatch.
const MaxFirestoreBatch = 500

// Config application configuration
type Config struct {
	Env      string         `koanf:"env"`
	Port     string         `koanf:"port"`
	Log      LogConfig      `koanf:"log"`
	TMDB     TMDBConfig     `koanf:"tmdb"`
	Vector   VectorConfig   `koanf:"vector"`
	Document DocumentConfig `koanf:"document"`
	Database DatabaseConfig `koanf:"database"`
	Files    FilesConfig    `koanf:"files"`
	Posters  PosterConfig   `koanf:"posters"`
	Seed     SeedConfig     `koanf:"seed"`
	API      APIConfig      `koanf:"api"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TMDBConfig external movie database API
type TMDBConfig struct {
	BaseURL      string        `koanf:"base_url"`
	Token        string        `koanf:"token"`
	ImageBaseURL string        `koanf:"image_base_url"`
	Timeout      time.Duration `koanf:"timeout"`
}

// VectorConfig selects and configures the vector store.
// Backend is one of qdrant, pgvector, memory.
type VectorConfig struct {
	Backend    string `koanf:"backend"`
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	APIKey     string `koanf:"api_key"`
	Collection string `koanf:"collection"`
	Dimension  int    `koanf:"dimension"`
	Distance   string `koanf:"distance"`
}

// DocumentConfig selects and configures the document store.
// Backend is one of firestore, postgres, memory.
type DocumentConfig struct {
	Backend            string `koanf:"backend"`
	AppID              string `koanf:"app_id"`
	Collection         string `koanf:"collection"`
	ServiceAccountFile string `koanf:"service_account_file"`
	ProjectID          string `koanf:"project_id"`
}

// DatabaseConfig PostgreSQL connection, used by the pgvector and postgres backends.
type DatabaseConfig struct {
	URL      string `koanf:"url"`
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"sslmode"`
}

type FilesConfig struct {
	Metadata    string `koanf:"metadata"`
	Embedding   string `koanf:"embedding"`
	PosterCache string `koanf:"poster_cache"`
}

type PosterConfig struct {
	Concurrency     int           `koanf:"concurrency"`
	BatchDelay      time.Duration `koanf:"batch_delay"`
	CheckpointEvery int           `koanf:"checkpoint_every"`
}

type SeedConfig struct {
	BatchSize int `koanf:"batch_size"`
}

type APIConfig struct {
	DefaultPageSize        int           `koanf:"default_page_size"`
	MaxPageSize            int           `koanf:"max_page_size"`
	DefaultRecommendations int           `koanf:"default_recommendations"`
	MaxRecommendations     int           `koanf:"max_recommendations"`
	CORSOrigins            string        `koanf:"cors_origins"`
	RateLimitRPS           float64       `koanf:"rate_limit_rps"`
	RateLimitBurst         int           `koanf:"rate_limit_burst"`
	CacheTTL               time.Duration `koanf:"cache_ttl"`
	CacheSize              int           `koanf:"cache_size"`
}

func defaultConfig() *Config {
	return &Config{
		Env:  "development",
		Port: "5005",
		Log:  LogConfig{Level: "info", Format: "console"},
		TMDB: TMDBConfig{
			BaseURL:      "https://api.themoviedb.org/3",
			ImageBaseURL: "https://image.tmdb.org/t/p/w500",
			Timeout:      10 * time.Second,
		},
		Vector: VectorConfig{
			Backend:    "qdrant",
			Host:       "localhost",
			Port:       6333,
			Collection: "movies",
			Dimension:  5000,
			Distance:   "Cosine",
		},
		Document: DocumentConfig{
			Backend:    "firestore",
			Collection: "movie_metadata",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			Name:     "movierec",
			SSLMode:  "disable",
		},
		Files: FilesConfig{
			PosterCache: "./data/poster-cache.json",
		},
		Posters: PosterConfig{
			Concurrency:     30,
			BatchDelay:      100 * time.Millisecond,
			CheckpointEvery: 10,
		},
		Seed: SeedConfig{BatchSize: 90},
		API: APIConfig{
			DefaultPageSize:        20,
			MaxPageSize:            40,
			DefaultRecommendations: 10,
			MaxRecommendations:     100,
			CORSOrigins:            "http://localhost:5173",
			RateLimitRPS:           20,
			RateLimitBurst:         40,
			CacheTTL:               5 * time.Minute,
			CacheSize:              1000,
		},
	}
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Unlisted variables are ignored.
var envMappings = map[string]string{
	"app_env":    "env",
	"port":       "port",
	"log_level":  "log.level",
	"log_format": "log.format",

	"tmdb_base_url":          "tmdb.base_url",
	"tmdb_read_access_token": "tmdb.token",
	"tmdb_image_base_url":    "tmdb.image_base_url",
	"tmdb_timeout":           "tmdb.timeout",

	"vector_store":               "vector.backend",
	"qdrant_host":                "vector.host",
	"qdrant_port":                "vector.port",
	"qdrant_api_key":             "vector.api_key",
	"qdrant_collection":          "vector.collection",
	"qdrant_embedding_dimension": "vector.dimension",
	"vector_distance":            "vector.distance",

	"document_store":                "document.backend",
	"firebase_app_id":               "document.app_id",
	"firebase_collection_name":      "document.collection",
	"firebase_service_account_file": "document.service_account_file",
	"firebase_project_id":           "document.project_id",

	"database_url": "database.url",
	"db_host":      "database.host",
	"db_port":      "database.port",
	"db_user":      "database.user",
	"db_password":  "database.password",
	"db_name":      "database.name",
	"db_sslmode":   "database.sslmode",

	"movies_metadata_file":  "files.metadata",
	"movies_embedding_file": "files.embedding",
	"poster_cache_file":     "files.poster_cache",

	"poster_concurrency":      "posters.concurrency",
	"poster_batch_delay":      "posters.batch_delay",
	"poster_checkpoint_every": "posters.checkpoint_every",

	"seed_batch_size": "seed.batch_size",

	"cors_origins":     "api.cors_origins",
	"rate_limit_rps":   "api.rate_limit_rps",
	"rate_limit_burst": "api.rate_limit_burst",
	"cache_ttl":        "api.cache_ttl",
	"cache_size":       "api.cache_size",
}

func envTransform(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Load loads configuration: struct defaults, then the optional YAML file named
// by CONFIG_PATH, then environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Env == "production" && cfg.Log.Format == "console" {
		cfg.Log.Format = "json"
	}
	return cfg, nil
}

// Validate checks values every binary depends on.
func (c *Config) Validate() error {
	switch c.Vector.Backend {
	case "qdrant", "pgvector", "memory":
	default:
		return apperr.Configuration("unknown VECTOR_STORE %q (want qdrant, pgvector or memory)", c.Vector.Backend)
	}
	switch c.Document.Backend {
	case "firestore", "postgres", "memory":
	default:
		return apperr.Configuration("unknown DOCUMENT_STORE %q (want firestore, postgres or memory)", c.Document.Backend)
	}
	if c.Vector.Dimension <= 0 {
		return apperr.Configuration("QDRANT_EMBEDDING_DIMENSION must be positive, got %d", c.Vector.Dimension)
	}
	if c.API.MaxPageSize <= 0 || c.API.DefaultPageSize <= 0 || c.API.DefaultPageSize > c.API.MaxPageSize {
		return apperr.Configuration("invalid page size settings (default %d, max %d)", c.API.DefaultPageSize, c.API.MaxPageSize)
	}
	if c.Seed.BatchSize <= 0 {
		return apperr.Configuration("SEED_BATCH_SIZE must be positive, got %d", c.Seed.BatchSize)
	}
	if c.Document.Backend == "firestore" && c.Seed.BatchSize > MaxFirestoreBatch {
		return apperr.Configuration("SEED_BATCH_SIZE %d exceeds the Firestore batch limit of %d writes", c.Seed.BatchSize, MaxFirestoreBatch)
	}
	if c.Posters.Concurrency <= 0 {
		return apperr.Configuration("POSTER_CONCURRENCY must be positive, got %d", c.Posters.Concurrency)
	}
	return nil
}

// RequirePosterInputs checks what the poster fetcher needs before it starts.
func (c *Config) RequirePosterInputs() error {
	if err := requireFile("MOVIES_METADATA_FILE", "Metadata", c.Files.Metadata); err != nil {
		return err
	}
	if c.TMDB.Token == "" {
		return apperr.Configuration("TMDB_READ_ACCESS_TOKEN environment variable is not set")
	}
	return nil
}

// RequireSeedInputs checks what the seeder needs before any store is touched.
func (c *Config) RequireSeedInputs() error {
	if err := requireFile("MOVIES_EMBEDDING_FILE", "Embedding", c.Files.Embedding); err != nil {
		return err
	}
	return c.RequirePosterInputs()
}

func requireFile(envName, label, path string) error {
	if path == "" {
		return apperr.Configuration("%s file path is not set (%s)", label, envName)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return apperr.Configuration("%s file %q does not exist", label, path)
	}
	return nil
}

// DatabaseURL returns DATABASE_URL when set, otherwise one built from the DB_* parts.
func (c *Config) DatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     c.Database.Host + ":" + c.Database.Port,
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}

// QdrantURL is the REST base URL of the Qdrant service.
func (c *Config) QdrantURL() string {
	host := c.Vector.Host
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return fmt.Sprintf("%s:%d", strings.TrimSuffix(host, "/"), c.Vector.Port)
	}
	return fmt.Sprintf("http://%s:%d", host, c.Vector.Port)
}

// CORSOriginList splits CORS_ORIGINS on commas.
func (c *Config) CORSOriginList() []string {
	var origins []string
	for _, o := range strings.Split(c.API.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
