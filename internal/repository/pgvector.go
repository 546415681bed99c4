package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/user/movierec/internal/logging"
	"github.com/user/movierec/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HNSW indexes in pgvector support at most this many dimensions.
const maxIndexedDimension = 2000

// vectorCollection registry row, one per collection table.
type vectorCollection struct {
	Name      string `gorm:"primaryKey"`
	Dimension int
	Distance  string
	CreatedAt time.Time
}

func (vectorCollection) TableName() string { return "vector_collections" }

type pgPoint struct {
	ID          int64           `gorm:"column:id;primaryKey"`
	Embedding   pgvector.Vector `gorm:"column:embedding"`
	Title       string          `gorm:"column:title"`
	PosterURL   *string         `gorm:"column:poster_url"`
	VoteAverage float64         `gorm:"column:vote_average"`
}

type pgHit struct {
	ID          int64
	Title       string
	PosterURL   *string
	VoteAverage float64
	Distance    float64
}

// PgVectorStore VectorStore backed by PostgreSQL with the pgvector extension.
type PgVectorStore struct {
	db *gorm.DB
}

func NewPgVectorStore(db *gorm.DB) *PgVectorStore {
	return &PgVectorStore{db: db}
}

func pgTable(name string) string {
	return "vectors_" + name
}

func (s *PgVectorStore) RecreateCollection(ctx context.Context, name string, dimension int, distance Distance) error {
	if dimension <= 0 {
		return storeErr("recreateCollection", http.StatusBadRequest, "dimension must be positive, got %d", dimension)
	}
	ops, _, ok := pgOperator(distance)
	if !ok {
		return storeErr("recreateCollection", http.StatusBadRequest, "unsupported distance %q", distance)
	}
	table := pq.QuoteIdentifier(pgTable(name))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return err
		}
		if err := tx.AutoMigrate(&vectorCollection{}); err != nil {
			return err
		}
		if err := tx.Exec("DROP TABLE IF EXISTS " + table).Error; err != nil {
			return err
		}
		create := fmt.Sprintf(`CREATE TABLE %s (
			id BIGINT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			poster_url TEXT,
			vote_average DOUBLE PRECISION NOT NULL DEFAULT 0
		)`, table, dimension)
		if err := tx.Exec(create).Error; err != nil {
			return err
		}
		if dimension <= maxIndexedDimension {
			index := pq.QuoteIdentifier(pgTable(name) + "_embedding_idx")
			if err := tx.Exec(fmt.Sprintf("CREATE INDEX %s ON %s USING hnsw (embedding %s)", index, table, ops)).Error; err != nil {
				return err
			}
		} else {
			log := logging.Component("pgvector")
			log.Warn().
				Str("collection", name).
				Int("dimension", dimension).
				Msg("dimension too large for an HNSW index, searches will scan")
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&vectorCollection{
			Name:      name,
			Dimension: dimension,
			Distance:  string(distance),
			CreatedAt: time.Now(),
		}).Error
	})
	if err != nil {
		return internalErr("recreateCollection", err)
	}
	return nil
}

func (s *PgVectorStore) collection(ctx context.Context, op, name string) (*vectorCollection, error) {
	var col vectorCollection
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&col).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storeErr(op, http.StatusNotFound, "collection %s not found", name)
	}
	if err != nil {
		return nil, internalErr(op, err)
	}
	return &col, nil
}

func (s *PgVectorStore) Upsert(ctx context.Context, name string, points []model.VectorPoint) error {
	col, err := s.collection(ctx, "upsert", name)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}
	rows := make([]pgPoint, 0, len(points))
	for _, p := range points {
		if len(p.Vector) != col.Dimension {
			return storeErr("upsert", http.StatusBadRequest,
				"point %d: vector length %d, collection expects %d", p.ID, len(p.Vector), col.Dimension)
		}
		rows = append(rows, pgPoint{
			ID:          p.ID,
			Embedding:   pgvector.NewVector(p.Vector),
			Title:       p.Payload.Title,
			PosterURL:   p.Payload.PosterURL,
			VoteAverage: p.Payload.VoteAverage,
		})
	}
	err = s.db.WithContext(ctx).Table(pgTable(name)).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"embedding", "title", "poster_url", "vote_average"}),
		}).
		Create(&rows).Error
	if err != nil {
		return internalErr("upsert", err)
	}
	return nil
}

func (s *PgVectorStore) SearchSimilar(ctx context.Context, name string, seedID int64, limit int) ([]model.ScoredPoint, error) {
	col, err := s.collection(ctx, "searchSimilar", name)
	if err != nil {
		return nil, err
	}
	_, operator, ok := pgOperator(Distance(col.Distance))
	if !ok {
		return nil, storeErr("searchSimilar", http.StatusInternalServerError, "unsupported distance %q", col.Distance)
	}
	table := pq.QuoteIdentifier(pgTable(name))
	db := s.db.WithContext(ctx)

	var seeds int64
	if err := db.Table(pgTable(name)).Where("id = ?", seedID).Count(&seeds).Error; err != nil {
		return nil, internalErr("searchSimilar", err)
	}
	if seeds == 0 {
		return nil, storeErr("searchSimilar", http.StatusNotFound, "no point with id %d", seedID)
	}

	query := fmt.Sprintf(`SELECT p.id, p.title, p.poster_url, p.vote_average, p.embedding %s s.embedding AS distance
		FROM %s p, %s s
		WHERE s.id = ? AND p.id <> s.id
		ORDER BY distance, p.id
		LIMIT ?`, operator, table, table)
	var rows []pgHit
	if err := db.Raw(query, seedID, limit).Scan(&rows).Error; err != nil {
		return nil, internalErr("searchSimilar", err)
	}

	hits := make([]model.ScoredPoint, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, model.ScoredPoint{
			ID:    r.ID,
			Score: pgScore(Distance(col.Distance), r.Distance),
			Payload: model.MoviePayload{
				Title:       r.Title,
				PosterURL:   r.PosterURL,
				VoteAverage: r.VoteAverage,
			},
		})
	}
	return hits, nil
}

func (s *PgVectorStore) Scroll(ctx context.Context, name string, limit, offset int) ([]model.VectorPoint, error) {
	if _, err := s.collection(ctx, "scroll", name); err != nil {
		return nil, err
	}
	var rows []pgHit
	err := s.db.WithContext(ctx).Table(pgTable(name)).
		Select("id", "title", "poster_url", "vote_average").
		Order("id").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, internalErr("scroll", err)
	}
	points := make([]model.VectorPoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, model.VectorPoint{
			ID: r.ID,
			Payload: model.MoviePayload{
				Title:       r.Title,
				PosterURL:   r.PosterURL,
				VoteAverage: r.VoteAverage,
			},
		})
	}
	return points, nil
}

// Close is a no-op; the connection pool belongs to the caller of InitDB.
func (s *PgVectorStore) Close() error { return nil }

// pgOperator returns the HNSW operator class and the distance operator for d.
func pgOperator(d Distance) (ops, operator string, ok bool) {
	switch d {
	case Cosine:
		return "vector_cosine_ops", "<=>", true
	case Euclid:
		return "vector_l2_ops", "<->", true
	case Dot:
		return "vector_ip_ops", "<#>", true
	case Manhattan:
		return "vector_l1_ops", "<+>", true
	}
	return "", "", false
}

// pgScore converts a pgvector distance into the score Qdrant would report.
// <=> is 1 - cosine similarity and <#> the negated inner product.
func pgScore(d Distance, distance float64) float64 {
	switch d {
	case Cosine:
		return 1 - distance
	case Dot:
		return -distance
	default:
		return distance
	}
}
