// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/services"
)

// MockService is a configurable test double for [services.MusicService]
type MockService struct {
	Playlists []models.Playlist
	Tracks    map[string][]models.Track
	Profile   *services.RemoteUser
	Err       error

	Credential *models.Credential
	Created    []models.Playlist
	Replaced   map[string][]string
}

func (m *MockService) Me(ctx context.Context) (*services.RemoteUser, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Profile == nil {
		return &services.RemoteUser{ID: "mock_user", DisplayName: "Mock User"}, nil
	}
	return m.Profile, nil
}

func (m *MockService) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Playlists, nil
}

func (m *MockService) ListTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Tracks[playlistID], nil
}

func (m *MockService) CreatePlaylist(ctx context.Context, name string, public, collaborative bool, description string) (*models.Playlist, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	created := models.Playlist{ID: "mock_created", Name: name, Description: description, Public: public, Collaborative: collaborative}
	m.Created = append(m.Created, created)
	return &created, nil
}

func (m *MockService) ReplaceTracks(ctx context.Context, playlistID string, uris []string) error {
	if m.Err != nil {
		return m.Err
	}
	if m.Replaced == nil {
		m.Replaced = make(map[string][]string)
	}
	m.Replaced[playlistID] = uris
	return nil
}

func (m *MockService) SetCredential(cred *models.Credential) { m.Credential = cred }

func (m *MockService) Name() string { return "mock" }

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
