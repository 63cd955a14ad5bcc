// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for browsing playlist backups:
//  1. [BackupListView] : Browse cached playlist backups
//  2. [TrackListView] : Inspect the tracks of a backup
//  3. [SnapshotListView] : Browse and delete snapshots of a playlist
//  4. [ConfirmSnapshotView] : Confirm snapshot creation
//  5. [RefreshView] : Monitor real-time progress while the cache refreshes
//  6. [ResultView] : Display the outcome of the last operation
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the sync engine, providing non-blocking status reporting during refreshes.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
