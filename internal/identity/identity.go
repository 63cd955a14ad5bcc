// package identity abstracts the identity provider the session layer reacts to.
//
// The session controller only needs a "current user or nil" stream; everything
// else about account management stays behind [Provider].
package identity

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/repositories"
	"github.com/desertthunder/replay/internal/shared"
)

// Provider is the identity collaborator the session controller subscribes to.
type Provider interface {
	// CurrentUserID returns the signed-in user's id, or "" when signed out.
	CurrentUserID() string

	// OnAuthStateChange registers a callback invoked with the new user id
	// ("" on sign-out) on every auth state transition. The callback is also
	// invoked immediately with the current state.
	OnAuthStateChange(fn func(userID string))

	// SignOut clears the current session.
	SignOut() error
}

// LocalProvider implements [Provider] backed by the local sqlite account table.
//
// The signed-in user survives process restarts via the single-row
// session_state table.
type LocalProvider struct {
	users *repositories.UserRepository
	docs  repositories.DocumentStore
	db    *sql.DB

	mu          sync.Mutex
	current     string
	subscribers []func(string)
}

// NewLocalProvider creates a LocalProvider and restores any persisted session.
func NewLocalProvider(db *sql.DB, users *repositories.UserRepository, docs repositories.DocumentStore) (*LocalProvider, error) {
	p := &LocalProvider{users: users, docs: docs, db: db}

	var userID sql.NullString
	err := db.QueryRow("SELECT user_id FROM session_state WHERE id = 1").Scan(&userID)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	if userID.Valid {
		// Stale session rows for deleted accounts are dropped silently.
		user, err := users.Get(userID.String)
		if err != nil {
			return nil, err
		}
		if user != nil {
			p.current = user.ID
		}
	}

	return p, nil
}

// CurrentUserID returns the signed-in user's id, or "" when signed out.
func (p *LocalProvider) CurrentUserID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// OnAuthStateChange registers a callback and immediately invokes it with the current state.
func (p *LocalProvider) OnAuthStateChange(fn func(userID string)) {
	p.mu.Lock()
	p.subscribers = append(p.subscribers, fn)
	current := p.current
	p.mu.Unlock()

	fn(current)
}

// SignIn signs in the account with the given email, creating it (and its
// default profile document) on first use.
func (p *LocalProvider) SignIn(ctx context.Context, email, name string) (string, error) {
	if email == "" {
		return "", fmt.Errorf("%w: email is required", shared.ErrInvalidInput)
	}

	user, err := p.users.GetByEmail(email)
	if err != nil {
		return "", err
	}

	if user == nil {
		user = &models.User{Email: email, Name: name}
		if err := p.users.Create(user); err != nil {
			return "", err
		}

		profile := models.DefaultProfile(email)
		if err := p.docs.SaveProfile(ctx, user.ID, profile); err != nil {
			return "", fmt.Errorf("failed to create default profile: %w", err)
		}
	}

	if err := p.persistSession(user.ID); err != nil {
		return "", err
	}

	p.setCurrent(user.ID)
	return user.ID, nil
}

// SignOut clears the current session and notifies subscribers.
func (p *LocalProvider) SignOut() error {
	if err := p.persistSession(""); err != nil {
		return err
	}

	p.setCurrent("")
	return nil
}

func (p *LocalProvider) persistSession(userID string) error {
	var value any
	if userID != "" {
		value = userID
	}

	_, err := p.db.Exec("UPDATE session_state SET user_id = ?, updated_at = ? WHERE id = 1", value, time.Now())
	if err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// setCurrent swaps the current user and fans out to subscribers outside the lock.
func (p *LocalProvider) setCurrent(userID string) {
	p.mu.Lock()
	if p.current == userID {
		p.mu.Unlock()
		return
	}
	p.current = userID
	subscribers := make([]func(string), len(p.subscribers))
	copy(subscribers, p.subscribers)
	p.mu.Unlock()

	for _, fn := range subscribers {
		fn(userID)
	}
}
