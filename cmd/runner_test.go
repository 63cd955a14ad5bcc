package main

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/shared"
	"github.com/desertthunder/replay/internal/tasks"
	tu "github.com/desertthunder/replay/internal/testing"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// mockOAuth wraps [tu.MockService] with the OAuth surface the runner needs.
type mockOAuth struct {
	*tu.MockService
	config *oauth2.Config
}

func (m *mockOAuth) OAuthConfig() *oauth2.Config { return m.config }
func (m *mockOAuth) Scopes() []string            { return []string{"playlist-read-private"} }

func newMockOAuth() *mockOAuth {
	return &mockOAuth{
		MockService: &tu.MockService{},
		config: &oauth2.Config{
			ClientID: "client",
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.example.com/authorize",
				TokenURL: "https://accounts.example.com/api/token",
			},
		},
	}
}

func newTestRunner(t *testing.T) (*Runner, *mockOAuth, *bytes.Buffer) {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	output := &bytes.Buffer{}
	service := newMockOAuth()
	runner := NewRunner(RunnerOpts{
		Config:  shared.DefaultConfig(),
		DB:      db,
		Service: service,
		Logger:  shared.NewLogger(nil),
		Output:  output,
	})
	return runner, service, output
}

// run executes one CLI invocation against the runner's command tree.
func run(t *testing.T, runner *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{Name: "replay", Commands: runner.register()}
	return app.Run(context.Background(), append([]string{"replay"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			service := newMockOAuth()

			runner := NewRunner(RunnerOpts{
				Config:  config,
				Logger:  logger,
				Output:  output,
				Service: service,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.service != service {
				t.Error("expected service to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes pretty JSON", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("writeJSON failed: %v", err)
			}
			if !strings.Contains(output.String(), `"key": "value"`) {
				t.Errorf("unexpected output: %s", output.String())
			}
		})

		t.Run("surfaces write failures", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			if err := runner.writeJSON("data", false); err == nil {
				t.Error("expected error from failing writer")
			}
		})
	})
}

func TestSessionCommands(t *testing.T) {
	t.Run("status before login", func(t *testing.T) {
		runner, _, output := newTestRunner(t)

		if err := run(t, runner, "status"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(output.String(), "Signed in: no") {
			t.Errorf("unexpected output: %s", output.String())
		}
	})

	t.Run("login then status", func(t *testing.T) {
		runner, _, output := newTestRunner(t)

		if err := run(t, runner, "login", "--email", "alice@example.com", "--name", "Alice"); err != nil {
			t.Fatalf("login failed: %v", err)
		}
		if !strings.Contains(output.String(), "Signed in as alice@example.com") {
			t.Errorf("unexpected output: %s", output.String())
		}

		output.Reset()
		if err := run(t, runner, "status"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(output.String(), "Signed in: yes") {
			t.Errorf("unexpected output: %s", output.String())
		}
		if !strings.Contains(output.String(), "not linked") {
			t.Errorf("expected unlinked account, got: %s", output.String())
		}
	})

	t.Run("logout when signed out", func(t *testing.T) {
		runner, _, output := newTestRunner(t)

		if err := run(t, runner, "logout"); err != nil {
			t.Fatalf("logout failed: %v", err)
		}
		if !strings.Contains(output.String(), "No user signed in") {
			t.Errorf("unexpected output: %s", output.String())
		}
	})

	t.Run("backup commands require a user", func(t *testing.T) {
		runner, _, _ := newTestRunner(t)

		if err := run(t, runner, "backup", "list"); err == nil {
			t.Error("expected error when no user signed in")
		}
	})
}

func TestBackupCommands(t *testing.T) {
	// signs in, seeds a fresh credential, and signs back in so the
	// session restores as authorized without a network exchange
	login := func(t *testing.T, runner *Runner) string {
		t.Helper()
		ctx := context.Background()

		if err := run(t, runner, "login", "--email", "alice@example.com"); err != nil {
			t.Fatalf("login failed: %v", err)
		}
		userID := runner.provider.CurrentUserID()

		if err := runner.provider.SignOut(); err != nil {
			t.Fatalf("sign-out failed: %v", err)
		}
		cred := &models.Credential{AccessToken: "tok", Expiry: time.Now().Add(time.Hour)}
		if err := runner.docs.SaveCredential(ctx, userID, cred); err != nil {
			t.Fatalf("failed to seed credential: %v", err)
		}
		if err := run(t, runner, "login", "--email", "alice@example.com"); err != nil {
			t.Fatalf("second login failed: %v", err)
		}
		return userID
	}

	seedService := func(service *mockOAuth) {
		service.Playlists = []models.Playlist{
			{ID: "p1", Name: "Road Trip", TrackCount: 2, SnapshotID: "v1"},
			{ID: "p2", Name: "Focus", TrackCount: 1, SnapshotID: "v1"},
		}
		service.Tracks = map[string][]models.Track{
			"p1": {
				{ID: "t1", Title: "First", Artist: "Band", Duration: 180, URI: "spotify:track:t1"},
				{ID: "t2", Title: "Second", Artist: "Band", Duration: 200, URI: "spotify:track:t2"},
			},
			"p2": {
				{ID: "t3", Title: "Third", Artist: "Other", Duration: 90, URI: "spotify:track:t3"},
			},
		}
	}

	t.Run("refresh then list", func(t *testing.T) {
		runner, service, output := newTestRunner(t)
		seedService(service)
		login(t, runner)

		output.Reset()
		if err := run(t, runner, "backup", "refresh"); err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		if !strings.Contains(output.String(), "Backed up 2 playlists") {
			t.Errorf("unexpected output: %s", output.String())
		}

		output.Reset()
		if err := run(t, runner, "backup", "list"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if !strings.Contains(output.String(), "Road Trip") || !strings.Contains(output.String(), "Focus") {
			t.Errorf("expected both playlists listed, got: %s", output.String())
		}
	})

	t.Run("show prints tracks", func(t *testing.T) {
		runner, service, output := newTestRunner(t)
		seedService(service)
		login(t, runner)

		if err := run(t, runner, "backup", "refresh"); err != nil {
			t.Fatalf("refresh failed: %v", err)
		}

		output.Reset()
		if err := run(t, runner, "backup", "show", "--id", "p1"); err != nil {
			t.Fatalf("show failed: %v", err)
		}
		if !strings.Contains(output.String(), "1. Band - First [3:00]") {
			t.Errorf("unexpected output: %s", output.String())
		}
	})

	t.Run("export writes csv files", func(t *testing.T) {
		runner, service, output := newTestRunner(t)
		seedService(service)
		login(t, runner)

		if err := run(t, runner, "backup", "refresh"); err != nil {
			t.Fatalf("refresh failed: %v", err)
		}

		base := filepath.Join(t.TempDir(), "export")
		output.Reset()
		if err := run(t, runner, "backup", "export", "--id", "p1", "--format", "csv", "--output", base); err != nil {
			t.Fatalf("export failed: %v", err)
		}
		tu.AssertFileExists(t, base+"_tracks.csv")
		tu.AssertFileExists(t, base+"_metadata.json")
	})

	t.Run("remove drops the backup", func(t *testing.T) {
		runner, service, output := newTestRunner(t)
		seedService(service)
		login(t, runner)

		if err := run(t, runner, "backup", "refresh"); err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		if err := run(t, runner, "backup", "remove", "--id", "p2"); err != nil {
			t.Fatalf("remove failed: %v", err)
		}

		output.Reset()
		if err := run(t, runner, "backup", "list"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if strings.Contains(output.String(), "Focus") {
			t.Errorf("expected removed playlist absent, got: %s", output.String())
		}
	})

	t.Run("snapshot lifecycle", func(t *testing.T) {
		runner, service, output := newTestRunner(t)
		seedService(service)
		login(t, runner)

		if err := run(t, runner, "backup", "refresh"); err != nil {
			t.Fatalf("refresh failed: %v", err)
		}

		output.Reset()
		if err := run(t, runner, "snapshot", "create", "--id", "p1"); err != nil {
			t.Fatalf("snapshot create failed: %v", err)
		}
		if !strings.Contains(output.String(), "Snapshot created") {
			t.Errorf("unexpected output: %s", output.String())
		}

		output.Reset()
		if err := run(t, runner, "snapshot", "list", "--id", "p1"); err != nil {
			t.Fatalf("snapshot list failed: %v", err)
		}
		if !strings.Contains(output.String(), "Road Trip @") {
			t.Errorf("unexpected output: %s", output.String())
		}

		// third create hits the cap
		if err := run(t, runner, "snapshot", "create", "--id", "p1"); err != nil {
			t.Fatalf("second snapshot failed: %v", err)
		}
		if err := run(t, runner, "snapshot", "create", "--id", "p1"); err == nil {
			t.Error("expected third snapshot to be refused")
		}
	})

	t.Run("snapshot restore creates a new playlist", func(t *testing.T) {
		runner, service, output := newTestRunner(t)
		seedService(service)
		login(t, runner)

		if err := run(t, runner, "backup", "refresh"); err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		if err := run(t, runner, "snapshot", "create", "--id", "p1"); err != nil {
			t.Fatalf("snapshot create failed: %v", err)
		}

		ctx := context.Background()
		snaps, err := runner.controller.Snapshots().ListSnapshots(ctx, "p1", tasks.SourceStore)
		if err != nil || len(snaps) != 1 {
			t.Fatalf("expected 1 snapshot, got %d (%v)", len(snaps), err)
		}

		output.Reset()
		if err := run(t, runner, "snapshot", "restore", "--id", "p1", "--snapshot", snaps[0].ID, "--name", "Road Trip Again"); err != nil {
			t.Fatalf("restore failed: %v", err)
		}
		if !strings.Contains(output.String(), "Restored as 'Road Trip Again'") {
			t.Errorf("unexpected output: %s", output.String())
		}
		if len(service.Created) != 1 || service.Created[0].Name != "Road Trip Again" {
			t.Errorf("expected created playlist, got %+v", service.Created)
		}
		if uris := service.Replaced["mock_created"]; len(uris) != 2 {
			t.Errorf("expected 2 restored tracks, got %v", uris)
		}
	})
}

func failDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEnsureSession(t *testing.T) {
	t.Run("missing migrations surface on first use", func(t *testing.T) {
		// session_state table absent: provider construction fails
		runner := NewRunner(RunnerOpts{
			DB:      failDB(t),
			Service: newMockOAuth(),
			Output:  &bytes.Buffer{},
		})

		if err := runner.ensureSession(context.Background()); err == nil {
			t.Error("expected error without migrations")
		}
	})

	t.Run("builds once and reuses", func(t *testing.T) {
		runner, _, _ := newTestRunner(t)

		if err := runner.ensureSession(context.Background()); err != nil {
			t.Fatalf("ensureSession failed: %v", err)
		}
		first := runner.controller
		if err := runner.ensureSession(context.Background()); err != nil {
			t.Fatalf("second ensureSession failed: %v", err)
		}
		if runner.controller != first {
			t.Error("expected controller reused across calls")
		}
	})

	t.Run("missing service requires credentials", func(t *testing.T) {
		db := failDB(t)
		if err := shared.RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		config := shared.DefaultConfig()
		config.Credentials.Spotify = shared.SpotifyConfig{}
		runner := NewRunner(RunnerOpts{
			Config: config,
			DB:     db,
			Output: &bytes.Buffer{},
		})

		if err := runner.ensureSession(context.Background()); err == nil {
			t.Error("expected error when Spotify credentials are missing")
		}
	})
}
