package tasks

import "fmt"

// Phase identifies the stage of a long-running task for progress
// reporting.
type Phase int

const (
	PhaseFetchPlaylists Phase = iota
	PhaseFetchTracks
	PhasePersist
	PhaseCreateSnapshot
	PhaseRestorePlaylist
	PhaseComplete
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseFetchPlaylists:
		return "fetch_playlists"
	case PhaseFetchTracks:
		return "fetch_tracks"
	case PhasePersist:
		return "persist"
	case PhaseCreateSnapshot:
		return "create_snapshot"
	case PhaseRestorePlaylist:
		return "restore_playlist"
	case PhaseComplete:
		return "complete"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// ProgressUpdate is a point-in-time report emitted on a progress
// channel while a task runs. Step and Total are zero when the phase
// has no meaningful count.
type ProgressUpdate struct {
	Phase   Phase
	Step    int
	Total   int
	Message string
	Err     error
}

func fetchPlaylistsUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: PhaseFetchPlaylists, Message: "fetching playlists"}
}

func fetchTracksUpdate(name string, step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseFetchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("fetching tracks for %q", name),
	}
}

func persistUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhasePersist,
		Total:   count,
		Message: fmt.Sprintf("saving %d playlists", count),
	}
}

func completeUpdate(message string) ProgressUpdate {
	return ProgressUpdate{Phase: PhaseComplete, Message: message}
}

func errorUpdate(err error) ProgressUpdate {
	return ProgressUpdate{Phase: PhaseError, Message: err.Error(), Err: err}
}
