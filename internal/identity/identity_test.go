package identity

import (
	"context"
	"database/sql"
	"testing"

	"github.com/desertthunder/replay/internal/repositories"
	"github.com/desertthunder/replay/internal/shared"
)

func newTestProvider(t *testing.T) (*LocalProvider, *sql.DB) {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	users := repositories.NewUserRepository(db)
	docs := repositories.NewSQLiteDocumentStore(db)

	provider, err := NewLocalProvider(db, users, docs)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	return provider, db
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("SignIn Creates Account And Default Profile", func(t *testing.T) {
		provider, db := newTestProvider(t)

		userID, err := provider.SignIn(ctx, "ada@example.com", "Ada")
		if err != nil {
			t.Fatalf("failed to sign in: %v", err)
		}

		if provider.CurrentUserID() != userID {
			t.Errorf("expected current user %s, got %s", userID, provider.CurrentUserID())
		}

		docs := repositories.NewSQLiteDocumentStore(db)
		doc, err := docs.GetDocument(ctx, userID)
		if err != nil {
			t.Fatalf("failed to load document: %v", err)
		}
		if doc == nil {
			t.Fatal("expected default profile document on first sign-in")
		}
		if doc.Profile.Email != "ada@example.com" {
			t.Errorf("expected default profile email, got %s", doc.Profile.Email)
		}
	})

	t.Run("SignIn Existing Account Reuses ID", func(t *testing.T) {
		provider, _ := newTestProvider(t)

		first, err := provider.SignIn(ctx, "ada@example.com", "Ada")
		if err != nil {
			t.Fatalf("failed to sign in: %v", err)
		}

		if err := provider.SignOut(); err != nil {
			t.Fatalf("failed to sign out: %v", err)
		}

		second, err := provider.SignIn(ctx, "ada@example.com", "Ada")
		if err != nil {
			t.Fatalf("failed to sign in again: %v", err)
		}

		if first != second {
			t.Errorf("expected stable user id, got %s then %s", first, second)
		}
	})

	t.Run("OnAuthStateChange Fires Immediately And On Transitions", func(t *testing.T) {
		provider, _ := newTestProvider(t)

		var events []string
		provider.OnAuthStateChange(func(userID string) {
			events = append(events, userID)
		})

		if len(events) != 1 || events[0] != "" {
			t.Fatalf("expected immediate callback with signed-out state, got %v", events)
		}

		userID, err := provider.SignIn(ctx, "ada@example.com", "Ada")
		if err != nil {
			t.Fatalf("failed to sign in: %v", err)
		}

		if err := provider.SignOut(); err != nil {
			t.Fatalf("failed to sign out: %v", err)
		}

		if len(events) != 3 {
			t.Fatalf("expected 3 events, got %v", events)
		}
		if events[1] != userID || events[2] != "" {
			t.Errorf("unexpected event sequence: %v", events)
		}
	})

	t.Run("Session Survives Provider Restart", func(t *testing.T) {
		provider, db := newTestProvider(t)

		userID, err := provider.SignIn(ctx, "ada@example.com", "Ada")
		if err != nil {
			t.Fatalf("failed to sign in: %v", err)
		}

		users := repositories.NewUserRepository(db)
		docs := repositories.NewSQLiteDocumentStore(db)
		restored, err := NewLocalProvider(db, users, docs)
		if err != nil {
			t.Fatalf("failed to restore provider: %v", err)
		}

		if restored.CurrentUserID() != userID {
			t.Errorf("expected restored session for %s, got %s", userID, restored.CurrentUserID())
		}
	})

	t.Run("SignOut Is Idempotent For Notifications", func(t *testing.T) {
		provider, _ := newTestProvider(t)

		var count int
		provider.OnAuthStateChange(func(string) { count++ })

		if err := provider.SignOut(); err != nil {
			t.Fatalf("failed to sign out: %v", err)
		}

		// Already signed out; no extra notification.
		if count != 1 {
			t.Errorf("expected only the immediate callback, got %d", count)
		}
	})
}
