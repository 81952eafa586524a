// Package firestore implements types.DocumentStore on Google Cloud Firestore,
// the database the order records and profiles live in.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ordernotify/internal/types"
)

// ClientConfig selects the Firestore project and database to connect to.
type ClientConfig struct {
	ProjectID       string
	DatabaseID      string
	CredentialsJSON string
}

// NewClient opens a Firestore client. Explicit credentials are optional;
// without them the client uses application default credentials, or the
// emulator when FIRESTORE_EMULATOR_HOST is set.
func NewClient(ctx context.Context, cfg ClientConfig) (*firestore.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}

	databaseID := cfg.DatabaseID
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, cfg.ProjectID, databaseID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: failed to create client for project %s: %w", cfg.ProjectID, err)
	}
	return client, nil
}

// Store implements types.DocumentStore with a Firestore client.
type Store struct {
	client *firestore.Client
	logger types.Logger
}

var _ types.DocumentStore = (*Store)(nil)

// NewStore creates a Store over an existing client.
func NewStore(client *firestore.Client, logger types.Logger) (*Store, error) {
	if client == nil {
		return nil, errors.New("firestore client cannot be nil")
	}
	return &Store{client: client, logger: logger}, nil
}

// Get reads collection/id. A missing document is reported as found=false.
func (s *Store) Get(ctx context.Context, collection, id string) (types.Document, bool, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, false, nil
		}
		return nil, false, types.NewAppError(types.ErrCodeInternalStore,
			fmt.Sprintf("failed to read %s/%s", collection, id), err)
	}
	return types.Document(snap.Data()), true, nil
}

// Update applies fields to an existing document in a single write. The
// write fails with not_found_document if the document does not exist.
func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	_, err := s.client.Collection(collection).Doc(id).Update(ctx, toUpdates(fields))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.NewAppError(types.ErrCodeNotFoundDocument,
				fmt.Sprintf("%s/%s does not exist", collection, id), err)
		}
		return types.NewAppError(types.ErrCodeInternalStore,
			fmt.Sprintf("failed to update %s/%s", collection, id), err)
	}

	s.logger.Info("document updated", "collection", collection, "id", id, "fields", len(fields))
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// toUpdates converts a field map to Firestore updates in a stable order,
// swapping the ServerTimestamp sentinel for Firestore's own.
func toUpdates(fields map[string]any) []firestore.Update {
	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	updates := make([]firestore.Update, 0, len(paths))
	for _, p := range paths {
		v := fields[p]
		if v == types.ServerTimestamp {
			v = firestore.ServerTimestamp
		}
		updates = append(updates, firestore.Update{Path: p, Value: v})
	}
	return updates
}
