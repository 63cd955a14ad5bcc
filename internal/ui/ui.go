package ui

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	BackupListView ViewState = iota
	TrackListView
	SnapshotListView
	ConfirmSnapshotView
	RefreshView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	engine    *tasks.PlaylistEngine
	snapshots *tasks.SnapshotManager
	width     int
	height    int

	backupList   list.Model
	trackList    list.Model
	snapshotList list.Model
	selected     *models.PlaylistInfo
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	refreshed    map[string]models.PlaylistInfo
	refreshErr   error
	resultText   string
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, engine *tasks.PlaylistEngine, snapshots *tasks.SnapshotManager) *Model {
	return &Model{
		ctx:       ctx,
		view:      BackupListView,
		engine:    engine,
		snapshots: snapshots,
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Init initializes the TUI by loading the cached backups.
func (m *Model) Init() tea.Cmd {
	return m.loadBackups()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.backupList.Width() == 0 {
			m.backupList.SetSize(msg.Width-4, msg.Height-8)
		}
		if m.trackList.Width() == 0 {
			m.trackList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case BackupListView:
			return m.handleBackupListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case SnapshotListView:
			return m.handleSnapshotListKeys(msg)
		case ConfirmSnapshotView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case backupsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.setBackupItems(msg.backups)
		return m, nil

	case snapshotsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.view = BackupListView
			return m, nil
		}
		items := make([]list.Item, len(msg.snapshots))
		for i, snap := range msg.snapshots {
			items[i] = snapshotItem{snapshot: snap}
		}
		m.snapshotList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.snapshotList.Title = fmt.Sprintf("Snapshots of '%s'", m.selected.Playlist.Name)
		m.snapshotList.SetSize(m.width-4, m.height-8)
		m.view = SnapshotListView
		return m, nil

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case refreshCompleteMsg:
		if m.progressChan != nil {
			m.progressChan = nil
		}
		if msg.err != nil {
			m.err = msg.err
			m.view = ResultView
			return m, nil
		}
		m.setBackupItems(msg.backups)
		m.resultText = fmt.Sprintf("Refreshed %d playlists", len(msg.backups))
		m.view = ResultView
		return m, nil

	case snapshotCreatedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.resultText = fmt.Sprintf("Snapshot created: %s", msg.snapshot.ID)
		}
		m.view = ResultView
		return m, nil

	case snapshotDeletedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.view = ResultView
			return m, nil
		}
		return m, m.loadSnapshots(msg.playlistID)
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case BackupListView:
		return m.renderBackupList()
	case TrackListView:
		return m.renderTrackList()
	case SnapshotListView:
		return m.renderSnapshotList()
	case ConfirmSnapshotView:
		return m.renderConfirm()
	case RefreshView:
		return m.renderRefresh()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleBackupListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.view = RefreshView
		return m, m.startRefresh()
	case "s":
		if info, ok := m.selectedBackup(); ok {
			m.selected = info
			return m, m.loadSnapshots(info.Playlist.ID)
		}
	case "enter":
		if info, ok := m.selectedBackup(); ok {
			m.selected = info
			m.showTracks(info)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.backupList, cmd = m.backupList.Update(msg)
	return m, cmd
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = BackupListView
		return m, nil
	case "enter":
		m.view = ConfirmSnapshotView
		return m, nil
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleSnapshotListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = BackupListView
		return m, nil
	case "d":
		if item, ok := m.snapshotList.SelectedItem().(snapshotItem); ok {
			return m, m.deleteSnapshot(item.snapshot)
		}
	}

	var cmd tea.Cmd
	m.snapshotList, cmd = m.snapshotList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "n", "esc":
		m.view = TrackListView
		return m, nil
	case "y":
		return m, m.createSnapshot()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "enter":
		m.view = BackupListView
		m.err = nil
		m.resultText = ""
		return m, nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case BackupListView:
		m.backupList, cmd = m.backupList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	case SnapshotListView:
		m.snapshotList, cmd = m.snapshotList.Update(msg)
	}
	return m, cmd
}

func (m *Model) selectedBackup() (*models.PlaylistInfo, bool) {
	item, ok := m.backupList.SelectedItem().(backupItem)
	if !ok {
		return nil, false
	}
	info := item.info
	return &info, true
}

func (m *Model) setBackupItems(backups map[string]models.PlaylistInfo) {
	infos := make([]models.PlaylistInfo, 0, len(backups))
	for _, info := range backups {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Playlist.Name < infos[j].Playlist.Name
	})

	items := make([]list.Item, len(infos))
	for i, info := range infos {
		items[i] = backupItem{info: info}
	}
	m.backupList = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.backupList.Title = "Playlist Backups"
	m.backupList.SetSize(m.width-4, m.height-8)
}

func (m *Model) showTracks(info *models.PlaylistInfo) {
	items := make([]list.Item, len(info.Tracks))
	for i, track := range info.Tracks {
		items[i] = trackItem{track: track}
	}
	m.trackList = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.trackList.Title = fmt.Sprintf("Tracks in '%s'", info.Playlist.Name)
	m.trackList.SetSize(m.width-4, m.height-8)
	m.view = TrackListView
}

func (m *Model) loadBackups() tea.Cmd {
	return func() tea.Msg {
		return backupsLoadedMsg{backups: m.engine.CachedPlaylists()}
	}
}

func (m *Model) loadSnapshots(playlistID string) tea.Cmd {
	return func() tea.Msg {
		snaps, err := m.snapshots.ListSnapshots(m.ctx, playlistID, tasks.SourceStore)
		return snapshotsLoadedMsg{playlistID: playlistID, snapshots: snaps, err: err}
	}
}

func (m *Model) startRefresh() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	progressChan := m.progressChan

	go func() {
		backups, err := m.engine.RefreshCache(m.ctx, progressChan)
		m.refreshed = backups
		m.refreshErr = err
		close(progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		if m.progressChan == nil {
			return refreshCompleteMsg{backups: m.refreshed, err: m.refreshErr}
		}

		update, ok := <-m.progressChan
		if !ok {
			return refreshCompleteMsg{backups: m.refreshed, err: m.refreshErr}
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) createSnapshot() tea.Cmd {
	info := *m.selected
	return func() tea.Msg {
		snap, err := m.snapshots.CreateSnapshot(m.ctx, info)
		return snapshotCreatedMsg{snapshot: snap, err: err}
	}
}

func (m *Model) deleteSnapshot(snap models.PlaylistSnapshot) tea.Cmd {
	playlistID := snap.Playlist.Playlist.ID
	return func() tea.Msg {
		err := m.snapshots.DeleteSnapshot(m.ctx, playlistID, snap.ID)
		return snapshotDeletedMsg{playlistID: playlistID, err: err}
	}
}

func (m *Model) renderBackupList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.snaps, m.keys.refresh, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.backupList.View(), helpView)
}

func (m *Model) renderTrackList() string {
	snapshotKey := key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "snapshot"),
	)
	helpKeys := []key.Binding{snapshotKey, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.trackList.View(), helpView)
}

func (m *Model) renderSnapshotList() string {
	helpKeys := []key.Binding{m.keys.delete, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.snapshotList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Create a snapshot of '%s'?", m.selected.Playlist.Name))
	info := fmt.Sprintf("\nPlaylist: %s\nTracks: %d\n", m.selected.Playlist.Name, len(m.selected.Tracks))

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderRefresh() string {
	title := styles.title.Render("Refreshing Backups")

	var phase string
	switch m.progress.Phase {
	case tasks.PhaseFetchPlaylists:
		phase = "Fetching playlists..."
	case tasks.PhaseFetchTracks:
		phase = fmt.Sprintf("Fetching tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.PhasePersist:
		phase = "Saving backups..."
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Operation failed: %v\n\nPress esc to go back, q to quit", m.err))
	}

	title := styles.ok.Render("✓ " + m.resultText)
	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n\n%s", title, helpView)
}
