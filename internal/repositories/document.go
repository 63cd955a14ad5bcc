package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/shared"
)

// DocumentStore persists the denormalized per-user document.
//
// Partial writes are typed methods rather than dynamic field maps: each one
// performs a read-modify-write of a single section and issues exactly one
// database write.
type DocumentStore interface {
	// GetDocument retrieves a user's document. Returns (nil, nil) when the
	// user has no document yet.
	GetDocument(ctx context.Context, userID string) (*models.UserDocument, error)

	// SetDocument replaces the user's document wholesale.
	SetDocument(ctx context.Context, userID string, doc *models.UserDocument) error

	// SaveProfile replaces only the profile section.
	SaveProfile(ctx context.Context, userID string, profile models.UserProfile) error

	// SaveCredential replaces only the credential; nil clears it ("not linked").
	SaveCredential(ctx context.Context, userID string, cred *models.Credential) error

	// SavePlaylists replaces the full playlist backup mapping in one write.
	SavePlaylists(ctx context.Context, userID string, playlists map[string]models.PlaylistInfo) error

	// SaveSnapshots replaces the snapshot collection for one source playlist.
	SaveSnapshots(ctx context.Context, userID, playlistID string, snapshots []models.PlaylistSnapshot) error
}

// SQLiteDocumentStore implements [DocumentStore] over a single documents table
// holding one JSON blob per user id.
//
// Section saves read, patch, and rewrite the whole document; mu serializes
// those cycles so concurrent saves of different sections cannot drop one
// another's write.
type SQLiteDocumentStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteDocumentStore creates a new SQLiteDocumentStore with the given database connection
func NewSQLiteDocumentStore(db *sql.DB) *SQLiteDocumentStore {
	return &SQLiteDocumentStore{db: db}
}

// rawDocument mirrors models.UserDocument with deferred section decoding so a
// malformed section degrades to defaults instead of failing the whole read.
type rawDocument struct {
	Profile json.RawMessage `json:"profile"`
	Spotify json.RawMessage `json:"spotify"`
}

// decodeDocument decodes a stored document leniently.
//
// A malformed top-level document is an error; a malformed section falls back
// to that section's default value.
func decodeDocument(data []byte) (*models.UserDocument, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDecodeFailed, err)
	}

	doc := &models.UserDocument{}

	if len(raw.Profile) > 0 {
		if err := json.Unmarshal(raw.Profile, &doc.Profile); err != nil {
			doc.Profile = models.UserProfile{}
		}
	}

	if len(raw.Spotify) > 0 {
		if err := json.Unmarshal(raw.Spotify, &doc.Spotify); err != nil {
			doc.Spotify = models.SpotifyDataBundle{}
		}
	}

	return doc, nil
}

// GetDocument retrieves a user's document, or (nil, nil) if absent.
func (s *SQLiteDocumentStore) GetDocument(ctx context.Context, userID string) (*models.UserDocument, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM documents WHERE user_id = ?", userID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	return decodeDocument(data)
}

// SetDocument replaces the user's document wholesale.
func (s *SQLiteDocumentStore) SetDocument(ctx context.Context, userID string, doc *models.UserDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrWriteFailed, err)
	}

	query := `
		INSERT INTO documents (user_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, userID, data, time.Now()); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrWriteFailed, err)
	}

	return nil
}

// mutate applies fn to the stored document (or a fresh one) and writes the
// result back in a single statement. The read-modify-write cycle runs under
// the store mutex.
func (s *SQLiteDocumentStore) mutate(ctx context.Context, userID string, fn func(doc *models.UserDocument)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.GetDocument(ctx, userID)
	if err != nil {
		return err
	}
	if doc == nil {
		doc = &models.UserDocument{}
	}

	fn(doc)

	return s.SetDocument(ctx, userID, doc)
}

// SaveProfile replaces only the profile section.
func (s *SQLiteDocumentStore) SaveProfile(ctx context.Context, userID string, profile models.UserProfile) error {
	return s.mutate(ctx, userID, func(doc *models.UserDocument) {
		doc.Profile = profile
	})
}

// SaveCredential replaces only the credential; nil clears it.
func (s *SQLiteDocumentStore) SaveCredential(ctx context.Context, userID string, cred *models.Credential) error {
	return s.mutate(ctx, userID, func(doc *models.UserDocument) {
		doc.Spotify.Credential = cred
	})
}

// SavePlaylists replaces the full playlist backup mapping.
func (s *SQLiteDocumentStore) SavePlaylists(ctx context.Context, userID string, playlists map[string]models.PlaylistInfo) error {
	return s.mutate(ctx, userID, func(doc *models.UserDocument) {
		doc.Spotify.Playlists = playlists
	})
}

// SaveSnapshots replaces the snapshot collection for one source playlist.
func (s *SQLiteDocumentStore) SaveSnapshots(ctx context.Context, userID, playlistID string, snapshots []models.PlaylistSnapshot) error {
	return s.mutate(ctx, userID, func(doc *models.UserDocument) {
		if doc.Spotify.Snapshots == nil {
			doc.Spotify.Snapshots = map[string][]models.PlaylistSnapshot{}
		}
		if len(snapshots) == 0 {
			delete(doc.Spotify.Snapshots, playlistID)
			return
		}
		doc.Spotify.Snapshots[playlistID] = snapshots
	})
}
