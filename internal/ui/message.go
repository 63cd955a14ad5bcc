package ui

import (
	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/tasks"
)

// backupsLoadedMsg carries the cached backup collection into the model.
type backupsLoadedMsg struct {
	backups map[string]models.PlaylistInfo
	err     error
}

// snapshotsLoadedMsg carries one playlist's snapshot collection.
type snapshotsLoadedMsg struct {
	playlistID string
	snapshots  []models.PlaylistSnapshot
	err        error
}

// progressUpdateMsg wraps a [tasks.ProgressUpdate] from an in-flight refresh.
type progressUpdateMsg tasks.ProgressUpdate

// refreshCompleteMsg signals the end of a cache refresh.
type refreshCompleteMsg struct {
	backups map[string]models.PlaylistInfo
	err     error
}

// snapshotCreatedMsg signals the outcome of a snapshot creation.
type snapshotCreatedMsg struct {
	snapshot *models.PlaylistSnapshot
	err      error
}

// snapshotDeletedMsg signals the outcome of a snapshot deletion.
type snapshotDeletedMsg struct {
	playlistID string
	err        error
}
