// Spotify API implementation of [MusicService]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	pageLimit = 50
)

// spotifyScopes is the fixed scope list requested during authorization.
// playlist-modify scopes cover snapshot restoration.
var spotifyScopes = []string{
	"user-read-private",
	"user-read-email",
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-public",
	"playlist-modify-private",
}

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	Explicit    bool            `json:"explicit"`
	ExternalIDs externalIDs     `json:"external_ids"`
	URI         string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
	TotalTracks int    `json:"total_tracks"`
	URI         string `json:"uri"`
}

type owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type trackCount struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
//
// SnapshotID is the opaque version fingerprint Spotify bumps on every mutation.
type SpotifySimplePlaylist struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Owner         owner      `json:"owner"`
	Public        bool       `json:"public"`
	Collaborative bool       `json:"collaborative"`
	SnapshotID    string     `json:"snapshot_id"`
	Tracks        trackCount `json:"tracks"`
	URI           string     `json:"uri"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items    []SpotifySimplePlaylist `json:"items"`
	Total    int                     `json:"total"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
	Next     *string                 `json:"next"`
	Previous *string                 `json:"previous"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated response of playlist tracks.
type SpotifyPaginatedTracks struct {
	Items    []SpotifyPlaylistTrack `json:"items"`
	Total    int                    `json:"total"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
	Next     *string                `json:"next"`
	Previous *string                `json:"previous"`
}

// SpotifyService implements the [MusicService] interface for Spotify API interactions.
//
// Requests are paced with a [rate.Limiter] to stay under Spotify's throttling window.
//
// The credential can be replaced from the auto-refresh timer goroutine while
// requests are in flight, so token and userID are mutex-guarded.
type SpotifyService struct {
	config     *oauth2.Config
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string

	mu     sync.Mutex
	token  *oauth2.Token
	userID string
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       spotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Limit(10), 10),
		baseURL:    spotifyBaseURL,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// OAuthConfig exposes the service's [oauth2.Config] for the authorization manager.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// Scopes returns the fixed scope list requested during authorization.
func (s *SpotifyService) Scopes() []string {
	scopes := make([]string, len(spotifyScopes))
	copy(scopes, spotifyScopes)
	return scopes
}

// SetCredential installs the credential used for subsequent requests.
func (s *SpotifyService) SetCredential(cred *models.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cred == nil {
		s.token = nil
		s.userID = ""
		return
	}
	s.token = cred.Token()
}

// doRequest performs an authenticated HTTP request to the Spotify API.
//
// A 401 response maps to [shared.ErrTokenExpired] so callers can trigger a refresh.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	if token == nil {
		return fmt.Errorf("%w: call SetCredential first", shared.ErrNotAuthenticated)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	apiURL := s.baseURL + endpoint

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: spotify returned 401", shared.ErrTokenExpired)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: spotify API status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Me retrieves the current authenticated user's profile.
func (s *SpotifyService) Me(ctx context.Context) (*RemoteUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.userID = user.ID
	s.mu.Unlock()

	return &RemoteUser{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
	}, nil
}

// UserPlaylists retrieves one page of the current user's playlists.
func (s *SpotifyService) UserPlaylists(ctx context.Context, limit, offset int) (*SpotifyPaginatedPlaylists, error) {
	if limit <= 0 || limit > pageLimit {
		limit = pageLimit
	}

	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedPlaylists
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// PlaylistTracks retrieves one page of a playlist's tracks.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (*SpotifyPaginatedTracks, error) {
	if limit <= 0 || limit > pageLimit {
		limit = pageLimit
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", url.PathEscape(playlistID), limit, offset)

	var response SpotifyPaginatedTracks
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// MusicService interface implementation

// ListPlaylists retrieves all playlists for the authenticated user, draining
// pagination until the API reports no next page.
func (s *SpotifyService) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var all []models.Playlist
	offset := 0

	for {
		response, err := s.UserPlaylists(ctx, pageLimit, offset)
		if err != nil {
			return nil, err
		}

		for _, sp := range response.Items {
			all = append(all, models.Playlist{
				ID:            sp.ID,
				Name:          sp.Name,
				Description:   sp.Description,
				Owner:         sp.Owner.DisplayName,
				TrackCount:    sp.Tracks.Total,
				Public:        sp.Public,
				Collaborative: sp.Collaborative,
				SnapshotID:    sp.SnapshotID,
			})
		}

		if response.Next == nil {
			break
		}
		offset += pageLimit
	}

	return all, nil
}

// ListTracks retrieves the full ordered track listing for a playlist.
func (s *SpotifyService) ListTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	var all []models.Track
	offset := 0

	for {
		response, err := s.PlaylistTracks(ctx, playlistID, pageLimit, offset)
		if err != nil {
			return nil, err
		}

		for _, item := range response.Items {
			track := models.Track{
				ID:       item.Track.ID,
				Title:    item.Track.Name,
				Album:    item.Track.Album.Name,
				Duration: item.Track.DurationMS / 1000,
				URI:      item.Track.URI,
				ISRC:     item.Track.ExternalIDs.ISRC,
			}

			if len(item.Track.Artists) > 0 {
				track.Artist = item.Track.Artists[0].Name
			}

			all = append(all, track)
		}

		if response.Next == nil {
			break
		}
		offset += pageLimit
	}

	return all, nil
}

// CreatePlaylist creates a new playlist owned by the authenticated user.
//
// Fetches the user profile first if it hasn't been loaded, since the creation
// endpoint is scoped to a user id.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name string, public, collaborative bool, description string) (*models.Playlist, error) {
	s.mu.Lock()
	userID := s.userID
	s.mu.Unlock()
	if userID == "" {
		if _, err := s.Me(ctx); err != nil {
			return nil, err
		}
		s.mu.Lock()
		userID = s.userID
		s.mu.Unlock()
	}

	body := map[string]any{
		"name":          name,
		"public":        public,
		"collaborative": collaborative,
		"description":   description,
	}

	var created SpotifySimplePlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return nil, err
	}

	return &models.Playlist{
		ID:            created.ID,
		Name:          created.Name,
		Description:   created.Description,
		Owner:         created.Owner.DisplayName,
		TrackCount:    created.Tracks.Total,
		Public:        created.Public,
		Collaborative: created.Collaborative,
		SnapshotID:    created.SnapshotID,
	}, nil
}

// ReplaceTracks replaces the entire track listing of a playlist with the given URIs.
func (s *SpotifyService) ReplaceTracks(ctx context.Context, playlistID string, uris []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	body := map[string]any{"uris": uris}

	return s.doRequest(ctx, http.MethodPut, endpoint, body, nil)
}

// SetBaseURL overrides the API base URL. Used by tests to point at a local server.
func (s *SpotifyService) SetBaseURL(u string) {
	s.baseURL = u
}
