// package services defines interface MusicService for interacting with remote music APIs
package services

import (
	"context"

	"github.com/desertthunder/replay/internal/models"
	"golang.org/x/oauth2"
)

// MusicService defines the operations the backup engine needs from a remote
// music provider (Spotify).
type MusicService interface {
	// Me retrieves the authenticated user's remote profile.
	Me(ctx context.Context) (*RemoteUser, error)

	// ListPlaylists retrieves all playlists for the authenticated user,
	// draining pagination fully before returning.
	ListPlaylists(ctx context.Context) ([]models.Playlist, error)

	// ListTracks retrieves the full ordered track listing for a playlist,
	// draining pagination fully before returning.
	ListTracks(ctx context.Context, playlistID string) ([]models.Track, error)

	// CreatePlaylist creates a new playlist owned by the authenticated user.
	CreatePlaylist(ctx context.Context, name string, public, collaborative bool, description string) (*models.Playlist, error)

	// ReplaceTracks replaces the entire track listing of a playlist.
	ReplaceTracks(ctx context.Context, playlistID string, uris []string) error

	// SetCredential installs the credential used for subsequent requests.
	// A nil credential clears authentication.
	SetCredential(cred *models.Credential)

	// Name returns the provider name (e.g. "Spotify")
	Name() string
}

// OAuthService is implemented by services whose authorization is driven
// externally through the OAuth2 authorization code flow.
type OAuthService interface {
	MusicService

	// OAuthConfig exposes the service's [oauth2.Config] for code exchange and refresh.
	OAuthConfig() *oauth2.Config

	// Scopes returns the scope list requested during authorization.
	Scopes() []string
}

// RemoteUser represents the provider-side account profile.
type RemoteUser struct {
	ID          string
	DisplayName string
	Email       string
}
