package tasks

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/repositories"
	"github.com/desertthunder/replay/internal/services"
	"github.com/desertthunder/replay/internal/shared"
)

// SyncEngine maintains the authoritative cached playlist collection for one
// signed-in user: fetching remote playlists, refreshing the local backups, and
// persisting the full mapping through the document store.
type SyncEngine interface {
	// FetchAllRemotePlaylists retrieves every playlist from the remote
	// service without touching the cache.
	FetchAllRemotePlaylists(ctx context.Context) ([]models.Playlist, error)

	// RefreshCache re-fetches the full playlist collection and replaces the
	// cache in one persisted write. Concurrent calls share a single in-flight
	// refresh.
	RefreshCache(ctx context.Context, progress chan<- ProgressUpdate) (map[string]models.PlaylistInfo, error)

	// BackupPlaylist fetches a single playlist's tracks and adds or updates
	// its cache entry.
	BackupPlaylist(ctx context.Context, remote models.Playlist) (models.PlaylistInfo, error)

	// RemoveBackup removes a playlist from the cache. Removing an absent
	// playlist is a no-op.
	RemoveBackup(ctx context.Context, playlistID string) error

	// CachedPlaylists returns a copy of the current cache.
	CachedPlaylists() map[string]models.PlaylistInfo
}

// refreshCall is a single in-flight cache refresh shared by concurrent
// callers.
type refreshCall struct {
	done   chan struct{}
	result map[string]models.PlaylistInfo
	err    error
}

// PlaylistEngine implements [SyncEngine] for one user against one remote
// service.
type PlaylistEngine struct {
	service services.MusicService
	docs    repositories.DocumentStore
	userID  string
	logger  *log.Logger

	mu       sync.Mutex
	cache    map[string]models.PlaylistInfo
	inflight *refreshCall
}

// NewPlaylistEngine creates a PlaylistEngine with an empty cache. Call
// [PlaylistEngine.LoadPersisted] to hydrate it from the document store.
func NewPlaylistEngine(service services.MusicService, docs repositories.DocumentStore, userID string, logger *log.Logger) *PlaylistEngine {
	return &PlaylistEngine{
		service: service,
		docs:    docs,
		userID:  userID,
		logger:  logger,
		cache:   make(map[string]models.PlaylistInfo),
	}
}

// LoadPersisted hydrates the in-memory cache from the user's document.
func (e *PlaylistEngine) LoadPersisted(ctx context.Context) error {
	doc, err := e.docs.GetDocument(ctx, e.userID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.cache = make(map[string]models.PlaylistInfo)
	if doc != nil {
		maps.Copy(e.cache, doc.Spotify.Playlists)
	}
	return nil
}

// FetchAllRemotePlaylists implements [SyncEngine].
func (e *PlaylistEngine) FetchAllRemotePlaylists(ctx context.Context) ([]models.Playlist, error) {
	playlists, err := e.service.ListPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching remote playlists: %w", err)
	}
	return playlists, nil
}

// RefreshCache implements [SyncEngine].
//
// A playlist whose snapshot id matches the cached entry keeps its cached
// tracks without a fetch. A playlist whose track fetch fails is skipped: its
// previous cache entry survives unchanged and the error is reported through a
// [shared.PartialFetchError]. A failure to fetch the playlist listing itself
// aborts the refresh with the cache untouched. The new mapping is persisted
// with exactly one document write before it replaces the in-memory cache; a
// partial refresh commits the mapping too, so cache and store stay aligned.
func (e *PlaylistEngine) RefreshCache(ctx context.Context, progress chan<- ProgressUpdate) (map[string]models.PlaylistInfo, error) {
	e.mu.Lock()
	if e.inflight != nil {
		call := e.inflight
		e.mu.Unlock()
		select {
		case <-call.done:
			return copyCache(call.result), call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	e.inflight = call
	prior := copyCache(e.cache)
	e.mu.Unlock()

	result, err := e.refresh(ctx, prior, progress)

	e.mu.Lock()
	call.result, call.err = result, err
	// A nil result means nothing was persisted; anything else mirrors the
	// mapping the store just accepted, partial refreshes included.
	if result != nil {
		e.cache = copyCache(result)
	}
	e.inflight = nil
	e.mu.Unlock()
	close(call.done)

	return result, err
}

func (e *PlaylistEngine) refresh(ctx context.Context, prior map[string]models.PlaylistInfo, progress chan<- ProgressUpdate) (map[string]models.PlaylistInfo, error) {
	sendProgress(progress, fetchPlaylistsUpdate())

	remote, err := e.service.ListPlaylists(ctx)
	if err != nil {
		err = fmt.Errorf("refreshing playlist cache: %w", err)
		sendProgress(progress, errorUpdate(err))
		return nil, err
	}

	next := make(map[string]models.PlaylistInfo, len(remote))
	var skipped []string

	for i, playlist := range remote {
		if cached, ok := prior[playlist.ID]; ok && cached.Playlist.SnapshotID == playlist.SnapshotID {
			next[playlist.ID] = cached
			continue
		}

		sendProgress(progress, fetchTracksUpdate(playlist.Name, i+1, len(remote)))

		tracks, err := e.service.ListTracks(ctx, playlist.ID)
		if err != nil {
			e.logger.Warn("skipping playlist, track fetch failed", "playlist", playlist.ID, "error", err)
			skipped = append(skipped, playlist.ID)
			if cached, ok := prior[playlist.ID]; ok {
				next[playlist.ID] = cached
			}
			continue
		}

		next[playlist.ID] = models.PlaylistInfo{
			Playlist:    playlist,
			Tracks:      tracks,
			LastFetched: time.Now(),
		}
	}

	sendProgress(progress, persistUpdate(len(next)))

	if err := e.docs.SavePlaylists(ctx, e.userID, next); err != nil {
		err = fmt.Errorf("persisting playlist cache: %w", err)
		sendProgress(progress, errorUpdate(err))
		return nil, err
	}

	if len(skipped) > 0 {
		err := &shared.PartialFetchError{SkippedIDs: skipped}
		sendProgress(progress, errorUpdate(err))
		return next, err
	}

	sendProgress(progress, completeUpdate(fmt.Sprintf("cached %d playlists", len(next))))
	return next, nil
}

// BackupPlaylist implements [SyncEngine].
//
// When the cached entry already matches the remote snapshot id the cached
// copy is returned without a track fetch.
func (e *PlaylistEngine) BackupPlaylist(ctx context.Context, remote models.Playlist) (models.PlaylistInfo, error) {
	e.mu.Lock()
	if cached, ok := e.cache[remote.ID]; ok && cached.Playlist.SnapshotID == remote.SnapshotID {
		e.mu.Unlock()
		return cached.Clone(), nil
	}
	e.mu.Unlock()

	tracks, err := e.service.ListTracks(ctx, remote.ID)
	if err != nil {
		return models.PlaylistInfo{}, fmt.Errorf("backing up playlist %s: %w", remote.ID, err)
	}

	info := models.PlaylistInfo{Playlist: remote, Tracks: tracks, LastFetched: time.Now()}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := copyCache(e.cache)
	next[remote.ID] = info
	if err := e.docs.SavePlaylists(ctx, e.userID, next); err != nil {
		return models.PlaylistInfo{}, fmt.Errorf("persisting playlist backup: %w", err)
	}
	e.cache = next
	return info.Clone(), nil
}

// RemoveBackup implements [SyncEngine].
func (e *PlaylistEngine) RemoveBackup(ctx context.Context, playlistID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.cache[playlistID]; !ok {
		return nil
	}

	next := copyCache(e.cache)
	delete(next, playlistID)
	if err := e.docs.SavePlaylists(ctx, e.userID, next); err != nil {
		return fmt.Errorf("persisting backup removal: %w", err)
	}
	e.cache = next
	return nil
}

// CachedPlaylists implements [SyncEngine].
func (e *PlaylistEngine) CachedPlaylists() map[string]models.PlaylistInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyCache(e.cache)
}

// ClearCache drops the in-memory cache without touching persisted backups.
// Used when the session loses authorization.
func (e *PlaylistEngine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]models.PlaylistInfo)
}

func copyCache(cache map[string]models.PlaylistInfo) map[string]models.PlaylistInfo {
	out := make(map[string]models.PlaylistInfo, len(cache))
	maps.Copy(out, cache)
	return out
}

// sendProgress emits an update without blocking; a full or nil channel drops
// the update.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
