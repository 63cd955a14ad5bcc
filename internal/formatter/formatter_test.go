package formatter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/replay/internal/models"
)

func sampleBackup() *models.PlaylistInfo {
	return &models.PlaylistInfo{
		Playlist: models.Playlist{
			ID:          "test123",
			Name:        "Test Playlist",
			Description: "A test playlist",
			TrackCount:  2,
			Public:      true,
		},
		Tracks: []models.Track{
			{
				ID:       "track1",
				Title:    "Song One",
				Artist:   "Artist One",
				Album:    "Album One",
				Duration: 180,
				ISRC:     "USRC12345678",
			},
			{
				ID:       "track2",
				Title:    "Song Two",
				Artist:   "Artist Two",
				Album:    "Album Two",
				Duration: 245,
				ISRC:     "USRC87654321",
			},
		},
		LastFetched: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleBackup())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "ID,Title,Artist,Album,Duration,ISRC") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "track1") || !strings.Contains(output, "Song One") {
			t.Error("CSV missing first track")
		}
		if !strings.Contains(output, "245") {
			t.Error("CSV missing track duration")
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(sampleBackup())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "# Test Playlist") {
			t.Error("Markdown missing title heading")
		}
		if !strings.Contains(output, "**Visibility**: Public") {
			t.Error("Markdown missing visibility")
		}
		if !strings.Contains(output, "**Fetched**: 2026-03-14") {
			t.Error("Markdown missing fetch date")
		}
		if !strings.Contains(output, "1. Artist One - Song One (Album One) [3:00]") {
			t.Errorf("Markdown missing formatted track line, got: %s", output)
		}
		if !strings.Contains(output, "[4:05]") {
			t.Error("Markdown missing second track duration")
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleBackup())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Playlist: Test Playlist") {
			t.Error("text missing playlist name")
		}
		if !strings.Contains(output, "Tracks: 2") {
			t.Error("text missing track count")
		}
		if !strings.Contains(output, "2. Artist Two - Song Two") {
			t.Error("text missing numbered track listing")
		}
	})

	t.Run("SnapshotLabel", func(t *testing.T) {
		snap := models.PlaylistSnapshot{
			ID:          "snap1",
			Playlist:    *sampleBackup(),
			VersionDate: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		}

		label := SnapshotLabel(snap)
		if label != "Test Playlist @ 2026-03-14 09:30" {
			t.Errorf("unexpected label %q", label)
		}
	})
}

func TestFileExports(t *testing.T) {
	t.Run("WriteCSVExport", func(t *testing.T) {
		dir := t.TempDir()
		base := filepath.Join(dir, "backup")

		result, err := WriteCSVExport(sampleBackup(), base)
		if err != nil {
			t.Fatalf("WriteCSVExport failed: %v", err)
		}

		if result.TracksFile != base+"_tracks.csv" {
			t.Errorf("unexpected tracks file %q", result.TracksFile)
		}
		if _, err := os.Stat(result.TracksFile); err != nil {
			t.Errorf("tracks file not written: %v", err)
		}

		metadata, err := os.ReadFile(result.MetadataFile)
		if err != nil {
			t.Fatalf("metadata file not written: %v", err)
		}
		if !strings.Contains(string(metadata), `"name": "Test Playlist"`) {
			t.Errorf("metadata missing playlist name, got: %s", metadata)
		}
	})

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "export")

		mdFile, err := WriteMarkdownExport(sampleBackup(), dir)
		if err != nil {
			t.Fatalf("WriteMarkdownExport failed: %v", err)
		}

		data, err := os.ReadFile(mdFile)
		if err != nil {
			t.Fatalf("markdown file not written: %v", err)
		}
		if !strings.Contains(string(data), "# Test Playlist") {
			t.Error("markdown file missing content")
		}
	})

	t.Run("WriteTextExport", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "out.txt")

		written, err := WriteTextExport(sampleBackup(), path)
		if err != nil {
			t.Fatalf("WriteTextExport failed: %v", err)
		}
		if written != path {
			t.Errorf("unexpected path %q", written)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("text file not written: %v", err)
		}
	})
}
