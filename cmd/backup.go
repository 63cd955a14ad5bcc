package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/desertthunder/replay/internal/formatter"
	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/shared"
	"github.com/desertthunder/replay/internal/tasks"
	"github.com/urfave/cli/v3"
)

// BackupRefresh re-fetches the full playlist collection and updates the
// local backups, streaming progress to the terminal.
func (r *Runner) BackupRefresh(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.requireUser(ctx)
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.PhaseFetchPlaylists:
				r.writePlain("→ Fetching playlists...\n")
			case tasks.PhaseFetchTracks:
				r.writePlain("→ [%d/%d] %s\n", update.Step, update.Total, update.Message)
			case tasks.PhasePersist:
				r.writePlain("→ Saving %d playlists...\n", update.Total)
			}
		}
	}()

	playlists, err := controller.RefreshNow(ctx, progress)
	close(progress)
	<-done

	var partial *shared.PartialFetchError
	switch {
	case err == nil:
		r.writePlain("✓ Backed up %d playlists\n", len(playlists))
	case errors.As(err, &partial):
		r.writePlain("✓ Backed up %d playlists\n", len(playlists))
		r.writePlain("⚠ Skipped %d playlists:\n", len(partial.SkippedIDs))
		for _, id := range partial.SkippedIDs {
			r.writePlain("  • %s\n", id)
		}
	default:
		return fmt.Errorf("refresh failed: %w", err)
	}

	return nil
}

// BackupList lists cached backups, or the remote playlist collection with --remote.
func (r *Runner) BackupList(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.requireUser(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("remote") {
		return r.listRemote(ctx, cmd, controller)
	}

	backups := sortedBackups(controller.Engine().CachedPlaylists())

	if cmd.Bool("json") {
		return r.writeJSON(backups, true)
	}

	if len(backups) == 0 {
		r.writePlain("No backups yet (run 'replay backup refresh')\n")
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("Playlist Backups (%d)", len(backups)))
	for _, info := range backups {
		r.writePlain("%s\n", info.Playlist.Name)
		r.writePlain("  ID: %s • Tracks: %d • Fetched: %s\n",
			info.Playlist.ID, len(info.Tracks), info.LastFetched.Format("2006-01-02 15:04"))
	}
	return nil
}

func (r *Runner) listRemote(ctx context.Context, cmd *cli.Command, controller *tasks.SessionController) error {
	if err := controller.Manager().RefreshIfExpired(ctx); err != nil {
		return err
	}

	playlists, err := controller.Engine().FetchAllRemotePlaylists(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, true)
	}

	r.writePlainHeader(fmt.Sprintf("Remote Playlists (%d)", len(playlists)))
	cached := controller.Engine().CachedPlaylists()
	for _, playlist := range playlists {
		marker := " "
		if _, ok := cached[playlist.ID]; ok {
			marker = "✓"
		}
		r.writePlain("%s %s\n", marker, playlist.Name)
		r.writePlain("    ID: %s • Tracks: %d • %s\n",
			playlist.ID, playlist.TrackCount, shared.VisibilityString(playlist.Public))
	}
	return nil
}

// BackupShow prints the track listing of one cached backup.
func (r *Runner) BackupShow(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.requireUser(ctx)
	if err != nil {
		return err
	}

	info, err := r.cachedBackup(controller, cmd.String("id"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(info, true)
	}

	r.writePlain("Playlist: %s\n", info.Playlist.Name)
	if info.Playlist.Description != "" {
		r.writePlain("Description: %s\n", info.Playlist.Description)
	}
	r.writePlain("Tracks: %d\n\n", len(info.Tracks))

	for i, track := range info.Tracks {
		r.writePlain("%d. %s - %s [%s]\n", i+1, track.Artist, track.Title, shared.FormatDuration(track.Duration))
	}
	return nil
}

// BackupAdd backs up a single remote playlist.
func (r *Runner) BackupAdd(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.requireUser(ctx)
	if err != nil {
		return err
	}
	if err := controller.Manager().RefreshIfExpired(ctx); err != nil {
		return err
	}

	playlistID := cmd.String("id")
	playlists, err := controller.Engine().FetchAllRemotePlaylists(ctx)
	if err != nil {
		return err
	}

	var remote *models.Playlist
	for i := range playlists {
		if playlists[i].ID == playlistID {
			remote = &playlists[i]
			break
		}
	}
	if remote == nil {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}

	info, err := controller.Engine().BackupPlaylist(ctx, *remote)
	if err != nil {
		return err
	}

	r.writePlain("✓ Backed up '%s' (%d tracks)\n", info.Playlist.Name, len(info.Tracks))
	return nil
}

// BackupRemove removes a playlist from the local backups.
func (r *Runner) BackupRemove(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.requireUser(ctx)
	if err != nil {
		return err
	}

	playlistID := cmd.String("id")
	if err := controller.Engine().RemoveBackup(ctx, playlistID); err != nil {
		return err
	}

	r.writePlain("✓ Removed backup %s\n", playlistID)
	return nil
}

// BackupExport writes a cached backup to a file in the requested format.
func (r *Runner) BackupExport(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.requireUser(ctx)
	if err != nil {
		return err
	}

	info, err := r.cachedBackup(controller, cmd.String("id"))
	if err != nil {
		return err
	}

	format := cmd.String("format")
	output := cmd.String("output")
	if output == "" {
		output = info.Playlist.ID
	}

	switch format {
	case "csv":
		result, err := formatter.WriteCSVExport(info, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported to %s\n", result.TracksFile)
		r.writePlain("  Metadata: %s\n", result.MetadataFile)
	case "markdown", "md":
		file, err := formatter.WriteMarkdownExport(info, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported to %s\n", file)
	case "text", "txt":
		file, err := formatter.WriteTextExport(info, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported to %s\n", file)
	default:
		return fmt.Errorf("%w: unknown format %q (use csv, markdown, or text)", shared.ErrInvalidFlag, format)
	}

	return nil
}

// cachedBackup retrieves one backup from the engine cache.
func (r *Runner) cachedBackup(controller *tasks.SessionController, playlistID string) (*models.PlaylistInfo, error) {
	backups := controller.Engine().CachedPlaylists()
	info, ok := backups[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not backed up (run 'replay backup refresh')", shared.ErrPlaylistNotFound, playlistID)
	}
	return &info, nil
}

// sortedBackups flattens the backup mapping ordered by playlist name.
func sortedBackups(backups map[string]models.PlaylistInfo) []models.PlaylistInfo {
	infos := make([]models.PlaylistInfo, 0, len(backups))
	for _, info := range backups {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Playlist.Name < infos[j].Playlist.Name
	})
	return infos
}
