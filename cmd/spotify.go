package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/replay/internal/server"
	"github.com/desertthunder/replay/internal/shared"
	"github.com/urfave/cli/v3"
)

// SpotifyLink runs the OAuth2 authorization code flow and persists the
// resulting credential for the signed-in user.
func (r *Runner) SpotifyLink(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.requireUser(ctx)
	if err != nil {
		return err
	}

	manager := controller.Manager()
	if manager == nil {
		return fmt.Errorf("%w: session has no authorization manager", shared.ErrServiceUnavailable)
	}

	if err := r.doOAuth(ctx, manager.BuildAuthorizationURL, manager.CompleteAuthorization); err != nil {
		return err
	}

	r.writePlain("✓ Spotify account linked\n")

	if user, err := controller.LoadRemoteUser(ctx); err == nil {
		r.writePlain("  Account: %s", user.DisplayName)
		if user.Email != "" {
			r.writePlain(" (%s)", user.Email)
		}
		r.writePlain("\n")
	}
	return nil
}

// SpotifyUnlink discards the stored credential and deauthorizes the session.
func (r *Runner) SpotifyUnlink(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.requireUser(ctx)
	if err != nil {
		return err
	}

	manager := controller.Manager()
	if manager == nil {
		return fmt.Errorf("%w: session has no authorization manager", shared.ErrServiceUnavailable)
	}

	if err := manager.Deauthorize(ctx); err != nil {
		return fmt.Errorf("failed to unlink account: %w", err)
	}

	r.writePlain("✓ Spotify account unlinked\n")
	return nil
}

// SpotifyProfile shows the linked Spotify account profile.
func (r *Runner) SpotifyProfile(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.requireUser(ctx)
	if err != nil {
		return err
	}

	user, err := controller.LoadRemoteUser(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) {
			return fmt.Errorf("%w: no Spotify account linked (run 'replay spotify link')", err)
		}
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(user, true)
	}

	r.writePlainHeader("Spotify Profile")
	r.writePlain("Name: %s\n", user.DisplayName)
	r.writePlain("ID: %s\n", user.ID)
	if user.Email != "" {
		r.writePlain("Email: %s\n", user.Email)
	}
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server.
//
// buildURL issues the authorization URL (and its CSRF state); complete
// receives the full callback URL and finishes the exchange.
func (r *Runner) doOAuth(ctx context.Context, buildURL func() (string, error), complete func(context.Context, string) error) error {
	authURL, err := buildURL()
	if err != nil {
		return fmt.Errorf("failed to build authorization URL: %w", err)
	}

	callbackHandler := server.NewCallbackHandler(complete)
	router := server.NewBasicRouter()
	router.Handler(callbackHandler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result error

	select {
	case result = <-callbackHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result != nil {
		return fmt.Errorf("authorization failed: %w", result)
	}

	return nil
}
