package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/repositories"
	"github.com/desertthunder/replay/internal/services"
	"github.com/desertthunder/replay/internal/shared"
	"golang.org/x/oauth2"
)

// mockService is a controllable test double for [services.MusicService].
type mockService struct {
	mu sync.Mutex

	playlists []models.Playlist
	tracks    map[string][]models.Track

	listPlaylistsErr  error
	listTracksErr     map[string]error
	createPlaylistErr error
	replaceTracksErr  error

	listPlaylistsCalls int
	listTracksCalls    map[string]int

	created       []models.Playlist
	replaced      map[string][]string
	listGate      chan struct{} // when set, ListPlaylists blocks until closed
	listStarted   chan struct{} // signalled once per ListPlaylists entry
	credential    *models.Credential
	remoteProfile *services.RemoteUser
}

func newMockService() *mockService {
	return &mockService{
		tracks:          make(map[string][]models.Track),
		listTracksErr:   make(map[string]error),
		listTracksCalls: make(map[string]int),
		replaced:        make(map[string][]string),
		remoteProfile:   &services.RemoteUser{ID: "spotify_user", DisplayName: "Test User"},
	}
}

func (m *mockService) Me(ctx context.Context) (*services.RemoteUser, error) {
	return m.remoteProfile, nil
}

func (m *mockService) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	m.mu.Lock()
	m.listPlaylistsCalls++
	gate, started := m.listGate, m.listStarted
	m.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listPlaylistsErr != nil {
		return nil, m.listPlaylistsErr
	}
	return append([]models.Playlist(nil), m.playlists...), nil
}

func (m *mockService) ListTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listTracksCalls[playlistID]++
	if err := m.listTracksErr[playlistID]; err != nil {
		return nil, err
	}
	return append([]models.Track(nil), m.tracks[playlistID]...), nil
}

func (m *mockService) CreatePlaylist(ctx context.Context, name string, public, collaborative bool, description string) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createPlaylistErr != nil {
		return nil, m.createPlaylistErr
	}
	created := models.Playlist{
		ID:          fmt.Sprintf("created_%d", len(m.created)+1),
		Name:        name,
		Description: description,
		Public:      public,
	}
	m.created = append(m.created, created)
	return &created, nil
}

func (m *mockService) ReplaceTracks(ctx context.Context, playlistID string, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceTracksErr != nil {
		return m.replaceTracksErr
	}
	m.replaced[playlistID] = append([]string(nil), uris...)
	return nil
}

func (m *mockService) SetCredential(cred *models.Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credential = cred
}

func (m *mockService) Name() string { return "mock" }

func (m *mockService) installedCredential() *models.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credential
}

func (m *mockService) trackCalls(playlistID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listTracksCalls[playlistID]
}

func (m *mockService) playlistCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listPlaylistsCalls
}

// mockOAuthService adds the [services.OAuthService] surface.
type mockOAuthService struct {
	*mockService
	config *oauth2.Config
}

func (m *mockOAuthService) OAuthConfig() *oauth2.Config { return m.config }
func (m *mockOAuthService) Scopes() []string            { return []string{"playlist-read-private"} }

// countingStore wraps a DocumentStore and counts playlist writes.
type countingStore struct {
	repositories.DocumentStore

	mu             sync.Mutex
	savePlaylists  int
	savePlaylistsE error
}

func (c *countingStore) SavePlaylists(ctx context.Context, userID string, playlists map[string]models.PlaylistInfo) error {
	c.mu.Lock()
	c.savePlaylists++
	failErr := c.savePlaylistsE
	c.mu.Unlock()
	if failErr != nil {
		return failErr
	}
	return c.DocumentStore.SavePlaylists(ctx, userID, playlists)
}

func (c *countingStore) playlistWrites() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.savePlaylists
}

func newTestStore(t *testing.T) (*countingStore, *sql.DB) {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return &countingStore{DocumentStore: repositories.NewSQLiteDocumentStore(db)}, db
}

func testPlaylist(id, snapshotID string) models.Playlist {
	return models.Playlist{
		ID:         id,
		Name:       "Playlist " + id,
		Owner:      "spotify_user",
		TrackCount: 2,
		SnapshotID: snapshotID,
	}
}

func testTracks(id string) []models.Track {
	return []models.Track{
		{ID: id + "_t1", Title: "Track One", Artist: "Artist", URI: "spotify:track:" + id + "_t1"},
		{ID: id + "_t2", Title: "Track Two", Artist: "Artist", URI: "spotify:track:" + id + "_t2"},
	}
}

func newTestEngine(t *testing.T) (*PlaylistEngine, *mockService, *countingStore) {
	t.Helper()

	store, _ := newTestStore(t)
	service := newMockService()
	engine := NewPlaylistEngine(service, store, "user_1", shared.NewLogger(nil))
	return engine, service, store
}

func TestRefreshCache(t *testing.T) {
	ctx := context.Background()

	t.Run("caches all remote playlists in one write", func(t *testing.T) {
		engine, service, store := newTestEngine(t)
		for _, id := range []string{"p1", "p2", "p3"} {
			service.playlists = append(service.playlists, testPlaylist(id, "v1"))
			service.tracks[id] = testTracks(id)
		}

		cache, err := engine.RefreshCache(ctx, nil)
		if err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		if len(cache) != 3 {
			t.Errorf("expected 3 cached playlists, got %d", len(cache))
		}
		if got := len(cache["p2"].Tracks); got != 2 {
			t.Errorf("expected 2 tracks for p2, got %d", got)
		}
		if store.playlistWrites() != 1 {
			t.Errorf("expected exactly 1 playlist write, got %d", store.playlistWrites())
		}

		doc, err := store.GetDocument(ctx, "user_1")
		if err != nil {
			t.Fatalf("failed to read document: %v", err)
		}
		if doc == nil || len(doc.Spotify.Playlists) != 3 {
			t.Error("expected persisted document with 3 playlists")
		}
	})

	t.Run("skips track fetch when snapshot id unchanged", func(t *testing.T) {
		engine, service, _ := newTestEngine(t)
		service.playlists = []models.Playlist{testPlaylist("p1", "v1"), testPlaylist("p2", "v1")}
		service.tracks["p1"] = testTracks("p1")
		service.tracks["p2"] = testTracks("p2")

		if _, err := engine.RefreshCache(ctx, nil); err != nil {
			t.Fatalf("first refresh failed: %v", err)
		}

		// p1 unchanged, p2 bumped
		service.mu.Lock()
		service.playlists[1].SnapshotID = "v2"
		service.mu.Unlock()

		if _, err := engine.RefreshCache(ctx, nil); err != nil {
			t.Fatalf("second refresh failed: %v", err)
		}

		if got := service.trackCalls("p1"); got != 1 {
			t.Errorf("expected 1 track fetch for unchanged p1, got %d", got)
		}
		if got := service.trackCalls("p2"); got != 2 {
			t.Errorf("expected 2 track fetches for changed p2, got %d", got)
		}
	})

	t.Run("skips failed playlist and reports partial fetch", func(t *testing.T) {
		engine, service, store := newTestEngine(t)
		service.playlists = []models.Playlist{testPlaylist("p1", "v1"), testPlaylist("p2", "v1")}
		service.tracks["p1"] = testTracks("p1")
		service.listTracksErr["p2"] = shared.ErrNetworkFailure

		cache, err := engine.RefreshCache(ctx, nil)
		if !errors.Is(err, shared.ErrPartialFetch) {
			t.Fatalf("expected partial fetch error, got %v", err)
		}

		var partial *shared.PartialFetchError
		if !errors.As(err, &partial) || len(partial.SkippedIDs) != 1 || partial.SkippedIDs[0] != "p2" {
			t.Errorf("expected p2 in skipped ids, got %v", err)
		}
		if _, ok := cache["p1"]; !ok {
			t.Error("expected successful playlist p1 in cache")
		}
		if _, ok := cache["p2"]; ok {
			t.Error("expected failed playlist p2 absent from cache")
		}

		// The partial mapping was persisted, so the in-memory cache must hold it too.
		doc, err := store.GetDocument(ctx, "user_1")
		if err != nil {
			t.Fatalf("failed to load persisted document: %v", err)
		}
		cached := engine.CachedPlaylists()
		if len(cached) != len(doc.Spotify.Playlists) {
			t.Errorf("expected cache to mirror the store, got %d cached vs %d persisted", len(cached), len(doc.Spotify.Playlists))
		}
		if _, ok := cached["p1"]; !ok {
			t.Error("expected p1 retained in cache after partial refresh")
		}
	})

	t.Run("failed playlist keeps its previous cache entry", func(t *testing.T) {
		engine, service, _ := newTestEngine(t)
		service.playlists = []models.Playlist{testPlaylist("p1", "v1")}
		service.tracks["p1"] = testTracks("p1")

		if _, err := engine.RefreshCache(ctx, nil); err != nil {
			t.Fatalf("first refresh failed: %v", err)
		}

		service.mu.Lock()
		service.playlists[0].SnapshotID = "v2"
		service.listTracksErr["p1"] = shared.ErrNetworkFailure
		service.mu.Unlock()

		cache, err := engine.RefreshCache(ctx, nil)
		if !errors.Is(err, shared.ErrPartialFetch) {
			t.Fatalf("expected partial fetch error, got %v", err)
		}
		if cache["p1"].Playlist.SnapshotID != "v1" {
			t.Error("expected previous cache entry to survive the failed fetch")
		}
	})

	t.Run("listing failure aborts with cache untouched", func(t *testing.T) {
		engine, service, store := newTestEngine(t)
		service.playlists = []models.Playlist{testPlaylist("p1", "v1")}
		service.tracks["p1"] = testTracks("p1")

		if _, err := engine.RefreshCache(ctx, nil); err != nil {
			t.Fatalf("first refresh failed: %v", err)
		}
		writes := store.playlistWrites()

		service.mu.Lock()
		service.listPlaylistsErr = shared.ErrNetworkFailure
		service.mu.Unlock()

		if _, err := engine.RefreshCache(ctx, nil); !errors.Is(err, shared.ErrNetworkFailure) {
			t.Fatalf("expected network failure, got %v", err)
		}
		if store.playlistWrites() != writes {
			t.Error("expected no write after aborted refresh")
		}
		if len(engine.CachedPlaylists()) != 1 {
			t.Error("expected cache untouched after aborted refresh")
		}
	})

	t.Run("persist failure surfaces without cache update", func(t *testing.T) {
		engine, service, store := newTestEngine(t)
		service.playlists = []models.Playlist{testPlaylist("p1", "v1")}
		service.tracks["p1"] = testTracks("p1")
		store.savePlaylistsE = shared.ErrWriteFailed

		if _, err := engine.RefreshCache(ctx, nil); !errors.Is(err, shared.ErrWriteFailed) {
			t.Fatalf("expected write failure, got %v", err)
		}
		if len(engine.CachedPlaylists()) != 0 {
			t.Error("expected empty cache after failed persist")
		}
	})

	t.Run("concurrent calls share one in-flight refresh", func(t *testing.T) {
		engine, service, _ := newTestEngine(t)
		service.playlists = []models.Playlist{testPlaylist("p1", "v1")}
		service.tracks["p1"] = testTracks("p1")

		gate := make(chan struct{})
		started := make(chan struct{}, 8)
		service.mu.Lock()
		service.listGate = gate
		service.listStarted = started
		service.mu.Unlock()

		var wg sync.WaitGroup
		results := make([]map[string]models.PlaylistInfo, 4)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				cache, err := engine.RefreshCache(ctx, nil)
				if err != nil {
					t.Errorf("refresh %d failed: %v", i, err)
				}
				results[i] = cache
			}(i)
		}

		<-started
		time.Sleep(50 * time.Millisecond) // let the remaining callers join
		close(gate)
		wg.Wait()

		if got := service.playlistCalls(); got != 1 {
			t.Errorf("expected 1 playlist listing for concurrent refreshes, got %d", got)
		}
		for i, cache := range results {
			if len(cache) != 1 {
				t.Errorf("caller %d got %d playlists, want 1", i, len(cache))
			}
		}
	})

	t.Run("emits progress updates without blocking", func(t *testing.T) {
		engine, service, _ := newTestEngine(t)
		service.playlists = []models.Playlist{testPlaylist("p1", "v1")}
		service.tracks["p1"] = testTracks("p1")

		progress := make(chan ProgressUpdate, 16)
		if _, err := engine.RefreshCache(ctx, progress); err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		close(progress)

		var phases []Phase
		for update := range progress {
			phases = append(phases, update.Phase)
		}
		if len(phases) == 0 || phases[0] != PhaseFetchPlaylists {
			t.Errorf("expected first update to be fetch_playlists, got %v", phases)
		}
		if phases[len(phases)-1] != PhaseComplete {
			t.Errorf("expected final update to be complete, got %v", phases)
		}
	})
}

func TestBackupPlaylist(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches and persists a single playlist", func(t *testing.T) {
		engine, service, store := newTestEngine(t)
		playlist := testPlaylist("p1", "v1")
		service.tracks["p1"] = testTracks("p1")

		info, err := engine.BackupPlaylist(ctx, playlist)
		if err != nil {
			t.Fatalf("backup failed: %v", err)
		}
		if len(info.Tracks) != 2 {
			t.Errorf("expected 2 tracks, got %d", len(info.Tracks))
		}

		doc, err := store.GetDocument(ctx, "user_1")
		if err != nil || doc == nil {
			t.Fatalf("failed to read document: %v", err)
		}
		if _, ok := doc.Spotify.Playlists["p1"]; !ok {
			t.Error("expected backup persisted to document")
		}
	})

	t.Run("reuses cached entry when snapshot id matches", func(t *testing.T) {
		engine, service, _ := newTestEngine(t)
		playlist := testPlaylist("p1", "v1")
		service.tracks["p1"] = testTracks("p1")

		if _, err := engine.BackupPlaylist(ctx, playlist); err != nil {
			t.Fatalf("first backup failed: %v", err)
		}
		if _, err := engine.BackupPlaylist(ctx, playlist); err != nil {
			t.Fatalf("second backup failed: %v", err)
		}
		if got := service.trackCalls("p1"); got != 1 {
			t.Errorf("expected 1 track fetch for unchanged playlist, got %d", got)
		}
	})
}

func TestRemoveBackup(t *testing.T) {
	ctx := context.Background()
	engine, service, store := newTestEngine(t)
	service.tracks["p1"] = testTracks("p1")

	if _, err := engine.BackupPlaylist(ctx, testPlaylist("p1", "v1")); err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	if err := engine.RemoveBackup(ctx, "p1"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(engine.CachedPlaylists()) != 0 {
		t.Error("expected empty cache after removal")
	}

	doc, err := store.GetDocument(ctx, "user_1")
	if err != nil || doc == nil {
		t.Fatalf("failed to read document: %v", err)
	}
	if len(doc.Spotify.Playlists) != 0 {
		t.Error("expected removal persisted to document")
	}

	// absent playlist is a no-op
	writes := store.playlistWrites()
	if err := engine.RemoveBackup(ctx, "missing"); err != nil {
		t.Fatalf("remove of absent playlist failed: %v", err)
	}
	if store.playlistWrites() != writes {
		t.Error("expected no write for absent playlist removal")
	}
}

func TestLoadPersisted(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	service := newMockService()

	seed := map[string]models.PlaylistInfo{
		"p1": {Playlist: testPlaylist("p1", "v1"), Tracks: testTracks("p1"), LastFetched: time.Now()},
	}
	if err := store.SavePlaylists(ctx, "user_1", seed); err != nil {
		t.Fatalf("failed to seed playlists: %v", err)
	}

	engine := NewPlaylistEngine(service, store, "user_1", shared.NewLogger(nil))
	if err := engine.LoadPersisted(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(engine.CachedPlaylists()) != 1 {
		t.Error("expected hydrated cache from persisted document")
	}

	// another user's engine sees nothing
	other := NewPlaylistEngine(service, store, "user_2", shared.NewLogger(nil))
	if err := other.LoadPersisted(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(other.CachedPlaylists()) != 0 {
		t.Error("expected empty cache for a different user")
	}
}
