package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/user/movierec/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MovieDocument row of movie_documents.
type MovieDocument struct {
	ID        int64          `gorm:"primaryKey;autoIncrement:false"`
	Data      datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time
}

func (MovieDocument) TableName() string { return "movie_documents" }

// PostgresDocumentStore DocumentStore keeping each movie as a JSONB row.
type PostgresDocumentStore struct {
	db *gorm.DB
}

// NewPostgresDocumentStore migrates movie_documents and returns the store.
func NewPostgresDocumentStore(ctx context.Context, db *gorm.DB) (*PostgresDocumentStore, error) {
	if err := db.WithContext(ctx).AutoMigrate(&MovieDocument{}); err != nil {
		return nil, fmt.Errorf("migrate movie_documents: %w", err)
	}
	return &PostgresDocumentStore{db: db}, nil
}

func (s *PostgresDocumentStore) Get(ctx context.Context, id int64) (*model.MovieMetadata, error) {
	var row MovieDocument
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load document %d: %w", id, err)
	}
	var m model.MovieMetadata
	if err := json.Unmarshal(row.Data, &m); err != nil {
		return nil, fmt.Errorf("decode document %d: %w", id, err)
	}
	return &m, nil
}

func (s *PostgresDocumentStore) NewBatch() DocumentBatch {
	return &postgresBatch{db: s.db}
}

// Close is a no-op; the connection pool belongs to the caller of InitDB.
func (s *PostgresDocumentStore) Close() error { return nil }

type postgresBatch struct {
	db   *gorm.DB
	rows []MovieDocument
}

func (b *postgresBatch) Add(doc Document) error {
	data, err := json.Marshal(Clean(doc.Fields))
	if err != nil {
		return fmt.Errorf("encode document %d: %w", doc.ID, err)
	}
	b.rows = append(b.rows, MovieDocument{ID: doc.ID, Data: datatypes.JSON(data), UpdatedAt: time.Now()})
	return nil
}

func (b *postgresBatch) Len() int { return len(b.rows) }

// Commit upserts every queued row in one transaction.
func (b *postgresBatch) Commit(ctx context.Context) error {
	if len(b.rows) == 0 {
		return nil
	}
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).Create(&b.rows).Error
	})
	if err != nil {
		return fmt.Errorf("commit %d documents: %w", len(b.rows), err)
	}
	return nil
}
