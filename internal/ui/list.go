package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/replay/internal/models"
)

var (
	_ list.Item = backupItem{}
	_ list.Item = trackItem{}
	_ list.Item = snapshotItem{}
)

// backupItem wraps [models.PlaylistInfo] to implement [list.Item].
type backupItem struct {
	info models.PlaylistInfo
}

func (i backupItem) FilterValue() string { return i.info.Playlist.Name }
func (i backupItem) Title() string       { return i.info.Playlist.Name }
func (i backupItem) Description() string {
	desc := fmt.Sprintf("%d tracks", len(i.info.Tracks))
	if !i.info.LastFetched.IsZero() {
		desc = fmt.Sprintf("%s • fetched %s", desc, i.info.LastFetched.Format("2006-01-02 15:04"))
	}
	return desc
}

// trackItem wraps [models.Track] to implement [list.Item].
type trackItem struct {
	track models.Track
}

func (i trackItem) FilterValue() string { return i.track.Title }
func (i trackItem) Title() string       { return i.track.Title }
func (i trackItem) Description() string {
	desc := i.track.Artist
	if i.track.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Album)
	}
	return desc
}

// snapshotItem wraps [models.PlaylistSnapshot] to implement [list.Item].
type snapshotItem struct {
	snapshot models.PlaylistSnapshot
}

func (i snapshotItem) FilterValue() string { return i.snapshot.Playlist.Playlist.Name }
func (i snapshotItem) Title() string {
	return i.snapshot.VersionDate.Format("2006-01-02 15:04")
}
func (i snapshotItem) Description() string {
	return fmt.Sprintf("%d tracks • %s", len(i.snapshot.Playlist.Tracks), i.snapshot.ID)
}
