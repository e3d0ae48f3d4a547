package components

import (
	"errors"
	"strings"
	"testing"

	"github.com/kerbaras/mangodl/pkg/services"
)

func TestNewProgressTracker(t *testing.T) {
	tracker := NewProgressTracker(80, 5)

	if tracker == nil {
		t.Fatal("Expected tracker to be created")
	}
	if tracker.width != 80 {
		t.Errorf("Expected width 80, got %d", tracker.width)
	}
	if tracker.HasActive() {
		t.Error("Expected no active downloads initially")
	}
	if tracker.Percent() != 0 {
		t.Errorf("Expected 0%%, got %f", tracker.Percent())
	}
}

func TestUpdateRemovesFinished(t *testing.T) {
	tracker := NewProgressTracker(80, 2)

	progress := services.DownloadProgress{
		ChapterID:     "ch-1",
		ChapterNumber: "1",
		Status:        "downloading",
		TotalPages:    10,
		CurrentPage:   5,
	}
	tracker.Update(progress)

	if len(tracker.downloads) != 1 {
		t.Fatalf("Expected 1 download, got %d", len(tracker.downloads))
	}

	progress.Status = "complete"
	tracker.Update(progress)

	if tracker.HasActive() {
		t.Error("Expected completed download to be removed")
	}
	if tracker.Percent() != 0.5 {
		t.Errorf("Expected 50%%, got %f", tracker.Percent())
	}
}

func TestUpdateFollowsSubstitution(t *testing.T) {
	tracker := NewProgressTracker(80, 1)

	tracker.Update(services.DownloadProgress{ChapterID: "a", ChapterNumber: "3", Status: "downloading"})
	tracker.Update(services.DownloadProgress{ChapterID: "a", ChapterNumber: "3", Status: "substituting"})
	tracker.Update(services.DownloadProgress{ChapterID: "b", ChapterNumber: "3", Status: "downloading", TotalPages: 2})

	if len(tracker.downloads) != 1 {
		t.Errorf("Expected one entry per chapter number, got %d", len(tracker.downloads))
	}

	tracker.Update(services.DownloadProgress{ChapterID: "b", ChapterNumber: "3", Status: "complete"})
	if tracker.Percent() != 1 {
		t.Errorf("Expected 100%%, got %f", tracker.Percent())
	}
}

func TestServerlessChaptersAreListed(t *testing.T) {
	tracker := NewProgressTracker(80, 3)

	tracker.Update(services.DownloadProgress{ChapterID: "x", ChapterNumber: "7", Status: "serverless"})

	if tracker.HasActive() {
		t.Error("Expected serverless chapter to leave the active list")
	}
	if !strings.Contains(tracker.View(), "No server for chapter(s) 7") {
		t.Error("Expected serverless chapter in view")
	}
}

func TestClear(t *testing.T) {
	tracker := NewProgressTracker(80, 3)

	for _, n := range []string{"1", "2", "3"} {
		tracker.Update(services.DownloadProgress{ChapterID: "id-" + n, ChapterNumber: n, Status: "downloading"})
	}
	tracker.Update(services.DownloadProgress{ChapterNumber: "1", Status: "complete"})

	tracker.Clear()

	if tracker.HasActive() {
		t.Error("Expected no active downloads after clear")
	}
	if tracker.Percent() != 0 {
		t.Errorf("Expected progress to reset, got %f", tracker.Percent())
	}
}

func TestViewWithProgress(t *testing.T) {
	tracker := NewProgressTracker(80, 4)

	tracker.Update(services.DownloadProgress{
		ChapterID:     "ch-1",
		ChapterNumber: "5",
		Status:        "downloading",
		TotalPages:    20,
		CurrentPage:   10,
	})
	tracker.Update(services.DownloadProgress{ChapterID: "ch-2", ChapterNumber: "4", Status: "complete"})

	view := tracker.View()

	for _, want := range []string{"1 / 4 chapters", "Chapter 5", "downloading", "10/20"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected %q in view", want)
		}
	}
}

func TestViewOrdersChapters(t *testing.T) {
	tracker := NewProgressTracker(80, 3)

	for _, n := range []string{"3", "1", "2"} {
		tracker.Update(services.DownloadProgress{ChapterID: "id-" + n, ChapterNumber: n, Status: "downloading"})
	}

	view := tracker.View()
	first := strings.Index(view, "Chapter 1")
	second := strings.Index(view, "Chapter 2")
	third := strings.Index(view, "Chapter 3")
	if first < 0 || first > second || second > third {
		t.Errorf("Expected chapters in order, got:\n%s", view)
	}
}

func TestProgressWithError(t *testing.T) {
	tracker := NewProgressTracker(80, 1)

	tracker.Update(services.DownloadProgress{
		ChapterID:     "ch-1",
		ChapterNumber: "1",
		Status:        "error",
		Error:         errors.New("download failed"),
	})

	view := tracker.View()

	if !strings.Contains(view, "Error: download failed") {
		t.Error("Expected error details in view")
	}
}

func TestRenderProgressBar(t *testing.T) {
	if bar := renderProgressBar(0, 0, 20); bar != "" {
		t.Errorf("Expected empty string for zero total, got: %s", bar)
	}

	bar := renderProgressBar(100, 100, 20)
	if filled := strings.Count(bar, "█"); filled != 20 {
		t.Errorf("Expected 20 filled chars, got %d", filled)
	}

	bar = renderProgressBar(25, 100, 40)
	filled := strings.Count(bar, "█")
	empty := strings.Count(bar, "░")
	if filled != 10 || empty != 30 {
		t.Errorf("Expected 10 filled and 30 empty chars, got %d and %d", filled, empty)
	}
}
