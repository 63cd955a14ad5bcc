// Package tasks orchestrates the per-user playlist backup workflow with
// real-time progress reporting.
//
// # Core Components
//
//  1. [PlaylistEngine] (implements [SyncEngine]) : playlist cache sync
//     - Fetches the remote playlist collection, draining pagination
//     - Skips track fetches for playlists whose snapshot id is unchanged
//     - Skips individual failed playlists and reports them as a partial fetch
//     - Persists the refreshed mapping in a single document write
//
//  2. [SnapshotManager] : immutable point-in-time playlist copies
//     - Re-reads the persisted collection before every create
//     - Refuses creation past [MaxSnapshotsPerPlaylist], never evicts
//     - Restores a snapshot as a brand-new remote playlist
//
//  3. [SessionController] : identity-driven lifecycle
//     - Observes the identity provider and rebuilds collaborators per user
//     - Tears down the previous user before constructing the next
//     - Publishes an aggregate [SessionState] to observers
//
// # Progress Reporting
//
// Long-running operations accept an optional progress channel. Updates use
// select with default to prevent blocking; a slow consumer loses updates
// rather than stalling the operation.
package tasks
