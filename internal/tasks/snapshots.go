package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/repositories"
	"github.com/desertthunder/replay/internal/services"
	"github.com/desertthunder/replay/internal/shared"
)

// MaxSnapshotsPerPlaylist caps the snapshot collection per source playlist.
// Creation past the cap is refused, never evicted.
const MaxSnapshotsPerPlaylist = 2

// SnapshotSource selects where ListSnapshots reads from.
type SnapshotSource int

const (
	// SourceCache reads the in-memory snapshot collection.
	SourceCache SnapshotSource = iota
	// SourceStore re-reads the persisted document.
	SourceStore
)

// SnapshotManager owns the immutable point-in-time playlist snapshots for one
// user.
//
// CreateSnapshot always re-reads the persisted collection before deciding, so
// the cap holds even when the in-memory view is stale.
type SnapshotManager struct {
	docs   repositories.DocumentStore
	userID string
	logger *log.Logger

	mu    sync.Mutex
	cache map[string][]models.PlaylistSnapshot
}

// NewSnapshotManager creates a SnapshotManager with an empty cache.
func NewSnapshotManager(docs repositories.DocumentStore, userID string, logger *log.Logger) *SnapshotManager {
	return &SnapshotManager{
		docs:   docs,
		userID: userID,
		logger: logger,
		cache:  make(map[string][]models.PlaylistSnapshot),
	}
}

// LoadPersisted hydrates the in-memory snapshot collections from the user's
// document.
func (m *SnapshotManager) LoadPersisted(ctx context.Context) error {
	doc, err := m.docs.GetDocument(ctx, m.userID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache = make(map[string][]models.PlaylistSnapshot)
	if doc != nil {
		for id, snaps := range doc.Spotify.Snapshots {
			m.cache[id] = append([]models.PlaylistSnapshot(nil), snaps...)
		}
	}
	return nil
}

// ListSnapshots returns the snapshots for one source playlist.
//
// SourceStore re-reads the document and refreshes the cached collection;
// SourceCache serves the in-memory copy.
func (m *SnapshotManager) ListSnapshots(ctx context.Context, playlistID string, source SnapshotSource) ([]models.PlaylistSnapshot, error) {
	if source == SourceCache {
		m.mu.Lock()
		defer m.mu.Unlock()
		return append([]models.PlaylistSnapshot(nil), m.cache[playlistID]...), nil
	}

	snaps, err := m.readPersisted(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[playlistID] = append([]models.PlaylistSnapshot(nil), snaps...)
	return snaps, nil
}

// GetSnapshot retrieves one snapshot by id. Returns
// [shared.ErrSnapshotNotFound] when no snapshot with that id exists.
func (m *SnapshotManager) GetSnapshot(ctx context.Context, playlistID, snapshotID string) (*models.PlaylistSnapshot, error) {
	snaps, err := m.ListSnapshots(ctx, playlistID, SourceStore)
	if err != nil {
		return nil, err
	}
	for _, snap := range snaps {
		if snap.ID == snapshotID {
			return &snap, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrSnapshotNotFound, snapshotID)
}

// CreateSnapshot freezes a deep copy of the playlist backup as a new
// snapshot.
//
// The persisted collection is re-read first; when it already holds
// [MaxSnapshotsPerPlaylist] snapshots the call fails with
// [shared.ErrSnapshotLimit] and nothing is written.
func (m *SnapshotManager) CreateSnapshot(ctx context.Context, info models.PlaylistInfo) (*models.PlaylistSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	playlistID := info.Playlist.ID
	snaps, err := m.readPersisted(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	if len(snaps) >= MaxSnapshotsPerPlaylist {
		return nil, fmt.Errorf("%w: playlist %s already has %d snapshots", shared.ErrSnapshotLimit, playlistID, len(snaps))
	}

	snap := models.PlaylistSnapshot{
		ID:          shared.GenerateID(),
		Playlist:    info.Clone(),
		VersionDate: time.Now(),
	}
	next := append(append([]models.PlaylistSnapshot(nil), snaps...), snap)

	if err := m.docs.SaveSnapshots(ctx, m.userID, playlistID, next); err != nil {
		return nil, fmt.Errorf("persisting snapshot: %w", err)
	}
	m.cache[playlistID] = next

	m.logger.Info("created snapshot", "playlist", playlistID, "snapshot", snap.ID)
	return &snap, nil
}

// DeleteSnapshot removes one snapshot. Deleting an absent snapshot is a
// no-op.
func (m *SnapshotManager) DeleteSnapshot(ctx context.Context, playlistID, snapshotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snaps, err := m.readPersisted(ctx, playlistID)
	if err != nil {
		return err
	}

	next := make([]models.PlaylistSnapshot, 0, len(snaps))
	for _, snap := range snaps {
		if snap.ID != snapshotID {
			next = append(next, snap)
		}
	}
	if len(next) == len(snaps) {
		m.cache[playlistID] = snaps
		return nil
	}

	if err := m.docs.SaveSnapshots(ctx, m.userID, playlistID, next); err != nil {
		return fmt.Errorf("persisting snapshot deletion: %w", err)
	}
	m.cache[playlistID] = next
	return nil
}

// RestoreSnapshot recreates a snapshot's track listing as a new playlist on
// the remote service. The original playlist is never modified.
//
// An empty name defaults to the snapshot's playlist name with a restored
// suffix.
func (m *SnapshotManager) RestoreSnapshot(ctx context.Context, service services.MusicService, snap *models.PlaylistSnapshot, name string, progress chan<- ProgressUpdate) (*models.Playlist, error) {
	if name == "" {
		name = fmt.Sprintf("%s (restored)", snap.Playlist.Playlist.Name)
	}
	description := fmt.Sprintf("Restored from a snapshot taken %s", snap.VersionDate.Format("2006-01-02"))

	sendProgress(progress, ProgressUpdate{Phase: PhaseRestorePlaylist, Message: fmt.Sprintf("creating playlist %q", name)})

	created, err := service.CreatePlaylist(ctx, name, false, false, description)
	if err != nil {
		err = fmt.Errorf("restoring snapshot %s: %w", snap.ID, err)
		sendProgress(progress, errorUpdate(err))
		return nil, err
	}

	uris := make([]string, 0, len(snap.Playlist.Tracks))
	for _, track := range snap.Playlist.Tracks {
		if track.URI != "" {
			uris = append(uris, track.URI)
		}
	}

	if err := service.ReplaceTracks(ctx, created.ID, uris); err != nil {
		err = fmt.Errorf("restoring snapshot %s tracks: %w", snap.ID, err)
		sendProgress(progress, errorUpdate(err))
		return nil, err
	}

	sendProgress(progress, completeUpdate(fmt.Sprintf("restored %d tracks to %q", len(uris), name)))
	m.logger.Info("restored snapshot", "snapshot", snap.ID, "playlist", created.ID, "tracks", len(uris))
	return created, nil
}

// readPersisted fetches the authoritative snapshot collection for one
// playlist from the document store.
func (m *SnapshotManager) readPersisted(ctx context.Context, playlistID string) ([]models.PlaylistSnapshot, error) {
	doc, err := m.docs.GetDocument(ctx, m.userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return doc.Spotify.Snapshots[playlistID], nil
}
