package repository

import (
	"context"
	"fmt"

	"github.com/user/movierec/internal/config"
	"gorm.io/gorm"
)

// NeedsDB reports whether the configured backends use PostgreSQL.
func NeedsDB(cfg *config.Config) bool {
	return cfg.Vector.Backend == "pgvector" || cfg.Document.Backend == "postgres"
}

// OpenVectorStore builds the vector store selected by VECTOR_STORE. db is only
// used by the pgvector backend.
func OpenVectorStore(cfg *config.Config, db *gorm.DB) (VectorStore, error) {
	switch cfg.Vector.Backend {
	case "qdrant":
		return NewQdrantStore(cfg.QdrantURL(), cfg.Vector.APIKey), nil
	case "pgvector":
		if db == nil {
			return nil, fmt.Errorf("pgvector backend needs a database connection")
		}
		return NewPgVectorStore(db), nil
	case "memory":
		return NewMemoryVectorStore(), nil
	}
	return nil, fmt.Errorf("unknown vector store %q", cfg.Vector.Backend)
}

// OpenDocumentStore builds the document store selected by DOCUMENT_STORE.
func OpenDocumentStore(ctx context.Context, cfg *config.Config, db *gorm.DB) (DocumentStore, error) {
	switch cfg.Document.Backend {
	case "firestore":
		return NewFirestoreStore(ctx, FirestoreOptions{
			ProjectID:          cfg.Document.ProjectID,
			ServiceAccountFile: cfg.Document.ServiceAccountFile,
			AppID:              cfg.Document.AppID,
			Collection:         cfg.Document.Collection,
		})
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("postgres document backend needs a database connection")
		}
		return NewPostgresDocumentStore(ctx, db)
	case "memory":
		return NewMemoryDocumentStore(), nil
	}
	return nil, fmt.Errorf("unknown document store %q", cfg.Document.Backend)
}
