package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/user/movierec/internal/model"
)

// FirestoreStore DocumentStore backed by Cloud Firestore. Documents live in
// artifacts/{appID}/{collection}/{id}.
type FirestoreStore struct {
	client *firestore.Client
	col    *firestore.CollectionRef
}

// FirestoreOptions connection settings. An empty ProjectID is detected from
// the credentials.
type FirestoreOptions struct {
	ProjectID          string
	ServiceAccountFile string
	AppID              string
	Collection         string
}

func NewFirestoreStore(ctx context.Context, opts FirestoreOptions) (*FirestoreStore, error) {
	if opts.AppID == "" {
		return nil, fmt.Errorf("firestore: app id is required")
	}
	if opts.Collection == "" {
		return nil, fmt.Errorf("firestore: collection name is required")
	}
	projectID := opts.ProjectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	var clientOpts []option.ClientOption
	if opts.ServiceAccountFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.ServiceAccountFile))
	}
	client, err := firestore.NewClient(ctx, projectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: new client: %w", err)
	}
	return &FirestoreStore{
		client: client,
		col:    client.Collection("artifacts").Doc(opts.AppID).Collection(opts.Collection),
	}, nil
}

func (s *FirestoreStore) Get(ctx context.Context, id int64) (*model.MovieMetadata, error) {
	snap, err := s.col.Doc(DocumentKey(id)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("firestore get %d: %w", id, err)
	}
	if !snap.Exists() {
		return nil, nil
	}
	return MetadataFromFields(snap.Data())
}

func (s *FirestoreStore) NewBatch() DocumentBatch {
	return &firestoreBatch{store: s, batch: s.client.Batch()}
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

type firestoreBatch struct {
	store *FirestoreStore
	batch *firestore.WriteBatch
	n     int
}

func (b *firestoreBatch) Add(doc Document) error {
	b.batch.Set(b.store.col.Doc(DocumentKey(doc.ID)), Clean(doc.Fields))
	b.n++
	return nil
}

func (b *firestoreBatch) Len() int { return b.n }

// Commit writes all queued documents atomically. Firestore rejects empty
// batches, so those commit as a no-op.
func (b *firestoreBatch) Commit(ctx context.Context) error {
	if b.n == 0 {
		return nil
	}
	if _, err := b.batch.Commit(ctx); err != nil {
		return fmt.Errorf("firestore commit %d documents: %w", b.n, err)
	}
	return nil
}
