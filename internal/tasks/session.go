package tasks

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/replay/internal/auth"
	"github.com/desertthunder/replay/internal/identity"
	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/repositories"
	"github.com/desertthunder/replay/internal/services"
	"github.com/desertthunder/replay/internal/shared"
)

// SessionState is the observable aggregate view of the current session.
type SessionState struct {
	UserID       string
	IsAuthorized bool
	IsLoading    bool
	RemoteUser   *services.RemoteUser
	Playlists    map[string]models.PlaylistInfo
}

// SessionController reacts to identity transitions by tearing down and
// rebuilding the per-user collaborators: authorization manager, sync engine,
// and snapshot manager.
//
// Teardown of the previous user always completes before the next user's
// collaborators are constructed, so a stale auto-refresh can never write into
// the new user's session.
type SessionController struct {
	provider identity.Provider
	docs     repositories.DocumentStore
	service  services.OAuthService
	logger   *log.Logger

	mu          sync.Mutex
	userID      string
	manager     *auth.Manager
	engine      *PlaylistEngine
	snapshots   *SnapshotManager
	statusCh    chan auth.Status // serialized status deliveries for the active manager
	state       SessionState
	subscribers []func(SessionState)
}

// NewSessionController wires a controller to the identity provider. Call
// [SessionController.Start] to begin observing transitions.
func NewSessionController(provider identity.Provider, docs repositories.DocumentStore, service services.OAuthService, logger *log.Logger) *SessionController {
	return &SessionController{
		provider: provider,
		docs:     docs,
		service:  service,
		logger:   logger,
	}
}

// Start subscribes to identity transitions. The provider invokes the
// subscription immediately with the current user, so the session for an
// already-signed-in user is built before Start returns.
func (s *SessionController) Start(ctx context.Context) {
	s.provider.OnAuthStateChange(func(userID string) {
		s.handleIdentity(ctx, userID)
	})
}

// OnStateChange registers an observer invoked with the full [SessionState]
// after every change. The observer is invoked immediately with the current
// state. Observers must not call back into the controller.
func (s *SessionController) OnStateChange(fn func(SessionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
	fn(s.snapshotStateLocked())
}

// State returns a copy of the current session state.
func (s *SessionController) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotStateLocked()
}

// Manager returns the active user's authorization manager, or nil when
// signed out.
func (s *SessionController) Manager() *auth.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager
}

// Engine returns the active user's sync engine, or nil when signed out.
func (s *SessionController) Engine() *PlaylistEngine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// Snapshots returns the active user's snapshot manager, or nil when signed
// out.
func (s *SessionController) Snapshots() *SnapshotManager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshots
}

// RefreshNow refreshes the playlist cache, toggling the session's loading
// flag and publishing the refreshed collection to observers. Partial fetch
// failures still publish the playlists that did refresh.
func (s *SessionController) RefreshNow(ctx context.Context, progress chan<- ProgressUpdate) (map[string]models.PlaylistInfo, error) {
	s.mu.Lock()
	engine := s.engine
	manager := s.manager
	if engine == nil || manager == nil {
		s.mu.Unlock()
		return nil, shared.ErrNotAuthenticated
	}
	s.state.IsLoading = true
	s.notifyLocked()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state.IsLoading = false
		s.notifyLocked()
		s.mu.Unlock()
	}()

	if err := manager.RefreshIfExpired(ctx); err != nil {
		return nil, err
	}

	playlists, err := engine.RefreshCache(ctx, progress)
	if err != nil && !errors.Is(err, shared.ErrPartialFetch) {
		return nil, err
	}

	s.mu.Lock()
	s.state.Playlists = playlists
	s.mu.Unlock()

	return playlists, err
}

// handleIdentity tears down the previous user's collaborators and builds the
// next user's.
func (s *SessionController) handleIdentity(ctx context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.manager != nil {
		// Detach before closing the channel: a straggling authorization or
		// refresh on the old manager must not send after close.
		s.manager.OnStatusChange(nil)
		s.manager.Teardown()
		s.manager = nil
	}
	if s.statusCh != nil {
		close(s.statusCh)
		s.statusCh = nil
	}
	s.engine = nil
	s.snapshots = nil
	s.service.SetCredential(nil)
	s.userID = userID
	s.state = SessionState{UserID: userID}

	if userID == "" {
		s.logger.Debug("session torn down")
		s.notifyLocked()
		return
	}

	tokens := auth.NewTokenStore(s.docs, userID)
	manager := auth.NewManager(s.service.OAuthConfig(), tokens, s.logger)
	manager.OnCredentialChange(func(cred *models.Credential) {
		s.service.SetCredential(cred)
	})
	// Status transitions are queued through one channel per manager so they
	// reach handleAuthStatus in emission order; per-transition goroutines
	// could deliver a stale Authorized after an Unauthenticated.
	statusCh := make(chan auth.Status, 16)
	manager.OnStatusChange(func(status auth.Status) {
		// Runs on the manager's goroutine under its lock; the buffered send
		// returns without waiting for the controller's own lock.
		statusCh <- status
	})
	go func() {
		for status := range statusCh {
			s.handleAuthStatus(userID, status)
		}
	}()

	engine := NewPlaylistEngine(s.service, s.docs, userID, s.logger)
	snapshots := NewSnapshotManager(s.docs, userID, s.logger)

	if err := manager.LoadPersisted(ctx); err != nil {
		s.logger.Warn("loading persisted credential failed", "user", userID, "error", err)
	}
	if err := engine.LoadPersisted(ctx); err != nil {
		s.logger.Warn("loading persisted playlists failed", "user", userID, "error", err)
	}
	if err := snapshots.LoadPersisted(ctx); err != nil {
		s.logger.Warn("loading persisted snapshots failed", "user", userID, "error", err)
	}

	s.manager = manager
	s.engine = engine
	s.snapshots = snapshots
	s.statusCh = statusCh
	s.state = SessionState{
		UserID:       userID,
		IsAuthorized: manager.Status() == auth.StatusAuthorized,
		Playlists:    engine.CachedPlaylists(),
	}

	s.logger.Debug("session built", "user", userID, "authorized", s.state.IsAuthorized)
	s.notifyLocked()
}

// handleAuthStatus folds authorization status changes into the session
// state. A refresh in flight is still an authorized session; only losing the
// credential entirely clears the in-memory playlist view. Persisted backups
// are untouched either way.
func (s *SessionController) handleAuthStatus(userID string, status auth.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userID != userID {
		return
	}

	if status == auth.StatusUnauthenticated {
		if !s.state.IsAuthorized && s.state.Playlists == nil && s.state.RemoteUser == nil {
			return
		}
		s.state.IsAuthorized = false
		if s.engine != nil {
			s.engine.ClearCache()
		}
		s.state.Playlists = nil
		s.state.RemoteUser = nil
		s.notifyLocked()
		return
	}

	authorized := status == auth.StatusAuthorized || status == auth.StatusRefreshing
	if authorized == s.state.IsAuthorized {
		return
	}
	s.state.IsAuthorized = authorized
	s.notifyLocked()
}

// LoadRemoteUser fetches and publishes the remote account profile.
func (s *SessionController) LoadRemoteUser(ctx context.Context) (*services.RemoteUser, error) {
	s.mu.Lock()
	manager := s.manager
	userID := s.userID
	s.mu.Unlock()

	if manager == nil {
		return nil, shared.ErrNotAuthenticated
	}
	if err := manager.RefreshIfExpired(ctx); err != nil {
		return nil, err
	}

	user, err := s.service.Me(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.userID == userID {
		s.state.RemoteUser = user
		s.notifyLocked()
	}
	s.mu.Unlock()
	return user, nil
}

func (s *SessionController) snapshotStateLocked() SessionState {
	state := s.state
	if state.Playlists != nil {
		state.Playlists = copyCache(state.Playlists)
	}
	return state
}

func (s *SessionController) notifyLocked() {
	state := s.snapshotStateLocked()
	for _, fn := range s.subscribers {
		fn(state)
	}
}
