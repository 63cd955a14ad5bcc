// package models defines the data model for the playlist backup service
package models

import (
	"time"

	"golang.org/x/oauth2"
)

// Credential is the OAuth2 token bundle persisted per linked Spotify account.
//
// Owned by the authorization manager; cleared on deauthorization or sign-out.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// NewCredential builds a Credential from an [oauth2.Token].
func NewCredential(token *oauth2.Token, scopes []string) *Credential {
	return &Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		Scopes:       scopes,
	}
}

// Token converts the Credential back to an [oauth2.Token].
func (c *Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
}

// ExpiresWithin reports whether the credential expires within the given margin.
func (c *Credential) ExpiresWithin(margin time.Duration) bool {
	return !c.Expiry.After(time.Now().Add(margin))
}

// UserProfile holds per-user profile fields stored in the user document.
type UserProfile struct {
	FirstName              string `json:"first_name"`
	LastName               string `json:"last_name"`
	Email                  string `json:"email,omitempty"`
	IsUsingDarkTheme       bool   `json:"is_using_dark_theme"`
	AccountLinkPromptShown bool   `json:"account_link_prompt_shown"`
}

// DefaultProfile returns the profile created on first sign-in.
func DefaultProfile(email string) UserProfile {
	return UserProfile{Email: email}
}

// Playlist represents playlist metadata from the remote music service.
//
// SnapshotID is the service's opaque version fingerprint; it changes whenever
// the playlist's tracks or metadata change server-side.
type Playlist struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Owner         string `json:"owner"`
	TrackCount    int    `json:"track_count"`
	Public        bool   `json:"public"`
	Collaborative bool   `json:"collaborative"`
	SnapshotID    string `json:"snapshot_id"`
}

// Track represents a single track reference within a playlist.
type Track struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Duration int    `json:"duration"` // seconds
	URI      string `json:"uri"`
	ISRC     string `json:"isrc,omitempty"`
}

// PlaylistInfo is a cached playlist backup: remote metadata plus the full
// ordered track listing as of the last fetch.
type PlaylistInfo struct {
	Playlist    Playlist  `json:"playlist"`
	Tracks      []Track   `json:"tracks"`
	LastFetched time.Time `json:"last_fetched"`
}

// Clone returns a deep copy of the PlaylistInfo.
//
// Snapshots freeze a copy so later cache refreshes cannot mutate them.
func (p PlaylistInfo) Clone() PlaylistInfo {
	tracks := make([]Track, len(p.Tracks))
	copy(tracks, p.Tracks)
	return PlaylistInfo{Playlist: p.Playlist, Tracks: tracks, LastFetched: p.LastFetched}
}

// PlaylistSnapshot is an immutable point-in-time copy of a playlist backup.
//
// At most two snapshots may exist per source playlist.
type PlaylistSnapshot struct {
	ID          string       `json:"id"`
	Playlist    PlaylistInfo `json:"playlist"`
	VersionDate time.Time    `json:"version_date"`
}

// SpotifyDataBundle is the Spotify-linked portion of a user document.
//
// A nil Credential means the user has not linked a Spotify account.
type SpotifyDataBundle struct {
	Credential *Credential                   `json:"credential,omitempty"`
	Playlists  map[string]PlaylistInfo       `json:"playlists,omitempty"`
	Snapshots  map[string][]PlaylistSnapshot `json:"snapshots,omitempty"` // keyed by source playlist id
}

// UserDocument is the denormalized per-user document persisted to the store.
type UserDocument struct {
	Profile UserProfile       `json:"profile"`
	Spotify SpotifyDataBundle `json:"spotify"`
}

// User is an account known to the local identity provider.
type User struct {
	ID        string
	Sequence  int
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}
