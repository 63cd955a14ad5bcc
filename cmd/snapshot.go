package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/replay/internal/formatter"
	"github.com/desertthunder/replay/internal/shared"
	"github.com/desertthunder/replay/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SnapshotCreate freezes a snapshot of a cached backup.
func (r *Runner) SnapshotCreate(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.requireUser(ctx)
	if err != nil {
		return err
	}

	info, err := r.cachedBackup(controller, cmd.String("id"))
	if err != nil {
		return err
	}

	snap, err := controller.Snapshots().CreateSnapshot(ctx, *info)
	if err != nil {
		if errors.Is(err, shared.ErrSnapshotLimit) {
			return fmt.Errorf("%w (delete one with 'replay snapshot delete')", err)
		}
		return err
	}

	r.writePlain("✓ Snapshot created: %s\n", snap.ID)
	r.writePlain("  %s\n", formatter.SnapshotLabel(*snap))
	return nil
}

// SnapshotList lists the snapshots of one playlist.
func (r *Runner) SnapshotList(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.requireUser(ctx)
	if err != nil {
		return err
	}

	playlistID := cmd.String("id")
	snaps, err := controller.Snapshots().ListSnapshots(ctx, playlistID, tasks.SourceStore)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(snaps, true)
	}

	if len(snaps) == 0 {
		r.writePlain("No snapshots for playlist %s\n", playlistID)
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("Snapshots (%d/%d)", len(snaps), tasks.MaxSnapshotsPerPlaylist))
	for _, snap := range snaps {
		r.writePlain("%s\n", formatter.SnapshotLabel(snap))
		r.writePlain("  ID: %s • Tracks: %d\n", snap.ID, len(snap.Playlist.Tracks))
	}
	return nil
}

// SnapshotDelete deletes one snapshot; deleting an absent snapshot succeeds.
func (r *Runner) SnapshotDelete(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.requireUser(ctx)
	if err != nil {
		return err
	}

	playlistID := cmd.String("id")
	snapshotID := cmd.String("snapshot")

	if err := controller.Snapshots().DeleteSnapshot(ctx, playlistID, snapshotID); err != nil {
		return err
	}

	r.writePlain("✓ Snapshot deleted\n")
	return nil
}

// SnapshotRestore recreates a snapshot's track listing as a new Spotify playlist.
func (r *Runner) SnapshotRestore(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.requireUser(ctx)
	if err != nil {
		return err
	}
	if err := controller.Manager().RefreshIfExpired(ctx); err != nil {
		return err
	}

	playlistID := cmd.String("id")
	snapshotID := cmd.String("snapshot")

	snap, err := controller.Snapshots().GetSnapshot(ctx, playlistID, snapshotID)
	if err != nil {
		return err
	}

	r.writePlain("→ Restoring snapshot %s (%d tracks)...\n", snap.ID, len(snap.Playlist.Tracks))

	created, err := controller.Snapshots().RestoreSnapshot(ctx, r.service, snap, cmd.String("name"), nil)
	if err != nil {
		return err
	}

	r.writePlain("✓ Restored as '%s' (%s)\n", created.Name, created.ID)
	return nil
}
