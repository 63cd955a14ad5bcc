// package auth owns the Spotify OAuth2 authorization lifecycle for one user session.
//
// [Manager] drives the authorization code flow: issuing authorization URLs with
// CSRF state, verifying and exchanging the redirect callback, persisting the
// resulting credential through [TokenStore], and refreshing the access token
// ahead of expiry on a cancellable one-shot timer.
package auth

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/shared"
	"golang.org/x/oauth2"
)

// RefreshMargin is how far ahead of expiry the token is refreshed.
const RefreshMargin = 115 * time.Second

// Status describes the manager's position in the authorization state machine.
type Status int

const (
	StatusUnauthenticated Status = iota
	StatusPendingCallback
	StatusAuthorized
	StatusRefreshing
)

func (s Status) String() string {
	switch s {
	case StatusPendingCallback:
		return "pending_callback"
	case StatusAuthorized:
		return "authorized"
	case StatusRefreshing:
		return "refreshing"
	default:
		return "unauthenticated"
	}
}

// Manager owns the OAuth2 authorization-code flow for a single user session.
type Manager struct {
	config *oauth2.Config
	tokens *TokenStore
	logger *log.Logger

	mu         sync.Mutex
	state      string // most recently issued CSRF state; only this value validates
	cred       *models.Credential
	status     Status
	generation int // bumped on every credential replacement or teardown
	timer      *time.Timer
	refreshing chan struct{} // non-nil while a refresh is in flight; closed on completion
	refreshErr error         // outcome of the most recent refresh

	onStatus     func(Status)
	onCredential func(*models.Credential)
}

// NewManager creates a Manager for one user session.
func NewManager(config *oauth2.Config, tokens *TokenStore, logger *log.Logger) *Manager {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Manager{config: config, tokens: tokens, logger: logger}
}

// OnStatusChange registers a callback invoked on every status transition.
func (m *Manager) OnStatusChange(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStatus = fn
}

// OnCredentialChange registers a callback invoked when the credential is
// replaced or cleared (nil).
func (m *Manager) OnCredentialChange(fn func(*models.Credential)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCredential = fn
}

// Status returns the current authorization status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Credential returns the current in-memory credential, or nil.
func (m *Manager) Credential() *models.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred
}

// LoadPersisted restores a previously persisted credential, if any, and arms
// the auto-refresh timer. Called once when a session attaches.
func (m *Manager) LoadPersisted(ctx context.Context) error {
	cred, err := m.tokens.Load(ctx)
	if err != nil {
		return err
	}
	if cred == nil {
		return nil
	}

	m.installCredential(cred)
	return nil
}

// BuildAuthorizationURL generates a fresh CSRF state token and returns the
// authorization request URL. Any previously issued state is invalidated.
func (m *Manager) BuildAuthorizationURL() (string, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.state = state
	m.setStatusLocked(StatusPendingCallback)
	m.mu.Unlock()

	return m.config.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// CompleteAuthorization verifies the redirect callback and exchanges its
// authorization code for a credential.
//
// The state parameter must equal the most recently issued value; a mismatch is
// treated as a potential CSRF attempt and the request is discarded.
func (m *Manager) CompleteAuthorization(ctx context.Context, callbackURL string) error {
	parsed, err := url.Parse(callbackURL)
	if err != nil {
		return fmt.Errorf("%w: malformed callback URL: %v", shared.ErrExchangeFailed, err)
	}
	query := parsed.Query()

	m.mu.Lock()
	expected := m.state
	m.mu.Unlock()

	if expected == "" || query.Get("state") != expected {
		m.logger.Warn("discarding callback with unexpected state parameter")
		return shared.ErrStateMismatch
	}

	if errParam := query.Get("error"); errParam != "" {
		m.mu.Lock()
		m.state = ""
		m.setStatusLocked(StatusUnauthenticated)
		m.mu.Unlock()

		if errParam == "access_denied" {
			return shared.ErrAccessDenied
		}
		return fmt.Errorf("%w: provider reported %s", shared.ErrExchangeFailed, errParam)
	}

	code := query.Get("code")
	if code == "" {
		return fmt.Errorf("%w: callback missing authorization code", shared.ErrExchangeFailed)
	}

	token, err := m.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrExchangeFailed, err)
	}

	cred := models.NewCredential(token, m.config.Scopes)
	if err := m.tokens.Save(ctx, cred); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = ""
	m.mu.Unlock()

	m.installCredential(cred)
	m.logger.Info("authorization complete", "expiry", cred.Expiry)

	return nil
}

// RefreshIfExpired refreshes the token when it expires within [RefreshMargin].
//
// Fresh tokens make this a no-op with zero network calls. Concurrent calls
// (such as the auto-refresh timer racing an explicit caller) share a single
// token-endpoint request and persisted write. An unrecoverable refresh failure
// (revoked or expired refresh token) deauthorizes the session.
func (m *Manager) RefreshIfExpired(ctx context.Context) error {
	m.mu.Lock()
	cred := m.cred
	if cred == nil {
		m.mu.Unlock()
		return shared.ErrNotAuthenticated
	}
	if !cred.ExpiresWithin(RefreshMargin) {
		m.mu.Unlock()
		return nil
	}
	if inflight := m.refreshing; inflight != nil {
		m.mu.Unlock()
		select {
		case <-inflight:
		case <-ctx.Done():
			return ctx.Err()
		}
		m.mu.Lock()
		err := m.refreshErr
		m.mu.Unlock()
		return err
	}
	if cred.RefreshToken == "" {
		m.mu.Unlock()
		return shared.ErrNoRefreshToken
	}
	done := make(chan struct{})
	m.refreshing = done
	generation := m.generation
	m.setStatusLocked(StatusRefreshing)
	m.mu.Unlock()

	err := m.refresh(ctx, cred, generation)

	m.mu.Lock()
	m.refreshErr = err
	m.refreshing = nil
	m.mu.Unlock()
	close(done)

	return err
}

// refresh performs the refresh-token exchange and installs the result unless
// the session moved on mid-flight.
func (m *Manager) refresh(ctx context.Context, cred *models.Credential, generation int) error {
	source := m.config.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})
	token, err := source.Token()
	if err != nil {
		m.logger.Warn("token refresh failed, deauthorizing", "error", err)
		if derr := m.Deauthorize(ctx); derr != nil {
			m.logger.Warn("failed to clear credential after refresh failure", "error", derr)
		}
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	// Spotify may omit the refresh token on renewal; keep the old one.
	if token.RefreshToken == "" {
		token.RefreshToken = cred.RefreshToken
	}

	next := models.NewCredential(token, cred.Scopes)

	m.mu.Lock()
	stale := m.generation != generation
	m.mu.Unlock()
	if stale {
		// The session was torn down or re-authorized mid-refresh.
		return nil
	}

	if err := m.tokens.Save(ctx, next); err != nil {
		return err
	}

	m.installCredential(next)
	m.logger.Info("token refreshed", "expiry", next.Expiry)

	return nil
}

// ScheduleAutoRefresh arms a one-shot deferred refresh at expiry minus
// [RefreshMargin], replacing any previously armed timer.
func (m *Manager) ScheduleAutoRefresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduleLocked()
}

func (m *Manager) scheduleLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cred == nil {
		return
	}

	refreshAt := m.cred.Expiry.Add(-RefreshMargin)
	delay := time.Until(refreshAt)
	if delay < 0 {
		delay = 0
	}

	m.timer = time.AfterFunc(delay, func() {
		if err := m.RefreshIfExpired(context.Background()); err != nil {
			m.logger.Warn("auto refresh failed", "error", err)
		}
	})
}

// Deauthorize clears the in-memory and persisted credential, cancels any
// scheduled refresh, and transitions to Unauthenticated.
func (m *Manager) Deauthorize(ctx context.Context) error {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.cred = nil
	m.state = ""
	m.generation++
	m.setStatusLocked(StatusUnauthenticated)
	onCredential := m.onCredential
	m.mu.Unlock()

	if onCredential != nil {
		onCredential(nil)
	}

	return m.tokens.Clear(ctx)
}

// Teardown cancels timers and drops in-memory state without touching the
// persisted credential. Used when a session detaches.
func (m *Manager) Teardown() {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.cred = nil
	m.state = ""
	m.generation++
	m.setStatusLocked(StatusUnauthenticated)
	m.mu.Unlock()
}

// installCredential commits a credential, notifies listeners, and re-arms the
// refresh timer.
func (m *Manager) installCredential(cred *models.Credential) {
	m.mu.Lock()
	m.cred = cred
	m.generation++
	m.setStatusLocked(StatusAuthorized)
	m.scheduleLocked()
	onCredential := m.onCredential
	m.mu.Unlock()

	if onCredential != nil {
		onCredential(cred)
	}
}

func (m *Manager) setStatusLocked(status Status) {
	if m.status == status {
		return
	}
	m.status = status
	if m.onStatus != nil {
		// Callbacks run inline; subscribers must not call back into the manager.
		m.onStatus(status)
	}
}
