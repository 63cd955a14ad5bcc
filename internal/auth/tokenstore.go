package auth

import (
	"context"

	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/repositories"
)

// TokenStore persists one user's OAuth2 credential bundle inside their
// document. The authorization manager is its only writer.
type TokenStore struct {
	docs   repositories.DocumentStore
	userID string
}

// NewTokenStore creates a TokenStore scoped to the given user.
func NewTokenStore(docs repositories.DocumentStore, userID string) *TokenStore {
	return &TokenStore{docs: docs, userID: userID}
}

// Load retrieves the persisted credential. Returns (nil, nil) when the user
// has no linked account.
func (s *TokenStore) Load(ctx context.Context) (*models.Credential, error) {
	doc, err := s.docs.GetDocument(ctx, s.userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return doc.Spotify.Credential, nil
}

// Save persists the credential.
func (s *TokenStore) Save(ctx context.Context, cred *models.Credential) error {
	return s.docs.SaveCredential(ctx, s.userID, cred)
}

// Clear removes the persisted credential, marking the account unlinked.
func (s *TokenStore) Clear(ctx context.Context) error {
	return s.docs.SaveCredential(ctx, s.userID, nil)
}
