package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/replay/internal/auth"
	"github.com/urfave/cli/v3"
)

// Login signs in the account with the given email, creating it on first use.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.session(ctx)
	if err != nil {
		return err
	}

	email := cmd.String("email")
	name := cmd.String("name")

	userID, err := r.provider.SignIn(ctx, email, name)
	if err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}

	r.logger.Info("signed in", "user", userID, "email", email)
	r.writePlain("✓ Signed in as %s\n", email)

	if state := controller.State(); state.IsAuthorized {
		r.writePlain("  Spotify: linked\n")
	} else {
		r.writePlain("  Spotify: not linked (run 'replay spotify link')\n")
	}
	return nil
}

// Logout signs the current account out and tears down its session.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.session(ctx); err != nil {
		return err
	}

	if r.provider.CurrentUserID() == "" {
		r.writePlain("No user signed in\n")
		return nil
	}

	if err := r.provider.SignOut(); err != nil {
		return fmt.Errorf("sign-out failed: %w", err)
	}

	r.writePlain("✓ Signed out\n")
	return nil
}

// statusReport is the JSON shape of the status command output.
type statusReport struct {
	UserID        string `json:"user_id,omitempty"`
	SignedIn      bool   `json:"signed_in"`
	SpotifyLinked bool   `json:"spotify_linked"`
	AuthStatus    string `json:"auth_status"`
	BackupCount   int    `json:"backup_count"`
}

// Status reports the session, account link, and backup state.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.session(ctx)
	if err != nil {
		return err
	}

	state := controller.State()
	report := statusReport{
		UserID:        state.UserID,
		SignedIn:      state.UserID != "",
		SpotifyLinked: state.IsAuthorized,
		AuthStatus:    auth.StatusUnauthenticated.String(),
		BackupCount:   len(state.Playlists),
	}
	if manager := controller.Manager(); manager != nil {
		report.AuthStatus = manager.Status().String()
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	r.writePlainHeader("Session Status")
	if !report.SignedIn {
		r.writePlain("Signed in: no (run 'replay login')\n")
		return nil
	}

	r.writePlain("Signed in: yes (%s)\n", report.UserID)
	if report.SpotifyLinked {
		r.writePlain("Spotify: ✓ linked (%s)\n", report.AuthStatus)
	} else {
		r.writePlain("Spotify: ✗ not linked (%s)\n", report.AuthStatus)
	}
	r.writePlain("Backups: %d playlists\n", report.BackupCount)
	return nil
}
