package services

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/kerbaras/mangodl/pkg/data"
	"github.com/kerbaras/mangodl/pkg/integrations"
	"github.com/kerbaras/mangodl/pkg/logging"
	"github.com/kerbaras/mangodl/pkg/sources"
	"github.com/kerbaras/mangodl/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// E2E tests for the full download pipeline

// fakeSite serves the metadata API and the page images for one manga with
// chapters 1, 2, 3 and 3.5. The first upload of chapter 3 is serverless and a
// second upload replaces it; chapter 3.5 has no volume.
func fakeSite(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	png := createTestPNG(t)
	var pageHits atomic.Int32

	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/api/v2/manga/42", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":200,"status":"OK","data":{"id":42,"title":"Test: Manga","description":"e2e"}}`)
	})
	mux.HandleFunc("/api/v2/manga/42/chapters", func(w http.ResponseWriter, r *http.Request) {
		// Newest first, like the real API.
		fmt.Fprint(w, `{"code":200,"status":"OK","data":{"chapters":[
			{"id":105,"mangaId":42,"chapter":"3.5","volume":"","language":"gb","title":"Extra"},
			{"id":104,"mangaId":42,"chapter":"3","volume":"2","language":"gb"},
			{"id":103,"mangaId":42,"chapter":"3","volume":"2","language":"gb"},
			{"id":102,"mangaId":42,"chapter":"2","volume":"1","language":"gb"},
			{"id":199,"mangaId":42,"chapter":"2","volume":"1","language":"it"},
			{"id":101,"mangaId":42,"chapter":"1","volume":"1","language":"gb"}
		]}}`)
	})
	mux.HandleFunc("/api/v2/chapter/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/v2/chapter/")
		if id == "103" {
			fmt.Fprintf(w, `{"code":200,"status":"OK","data":{"id":103,"hash":"h103","pages":[]}}`)
			return
		}
		fmt.Fprintf(w, `{"code":200,"status":"OK","data":{"id":%s,"hash":"h%s","server":"%s/data/","pages":["x1.png","x2.png"]}}`,
			id, id, server.URL)
	})
	mux.HandleFunc("/data/", func(w http.ResponseWriter, r *http.Request) {
		pageHits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &pageHits
}

func newE2EController(t *testing.T, server *httptest.Server, volumize bool) (*MangaController, *data.Repository) {
	t.Helper()
	repo, err := data.NewRepository(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	source := sources.NewMangaDex(sources.Options{
		APIBase: server.URL + "/api/v2/",
		Bucket:  utils.NewTokenBucket(1000, 1000),
		Timeout: 5 * time.Second,
		Logger:  logging.Discard(),
	})
	c := NewMangaController(source, repo, ControllerConfig{
		RootDir:      t.TempDir(),
		Language:     "gb",
		Volumize:     volumize,
		VolumeLength: 10,
		RetryBackoff: time.Millisecond,
		Packer:       integrations.NewCBZPacker(),
		Logger:       logging.Discard(),
	})
	t.Cleanup(c.Close)
	return c, repo
}

func TestE2E_FullDownloadPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}
	server, pageHits := fakeSite(t)
	c, repo := newE2EController(t, server, true)

	s, err := c.Prepare(t.Context(), "42")
	require.NoError(t, err)
	assert.Equal(t, "Test: Manga", s.Manga.Name)
	assert.Len(t, s.Staged, 4)
	assert.Empty(t, s.Missing)

	report, err := c.Execute(t.Context(), s, SelectAll(false))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, report.Status())
	assert.Len(t, report.Downloaded, 4)
	assert.Equal(t, []string{"103"}, report.BadChapterIDs)
	assert.Equal(t, int32(8), pageHits.Load())

	base := c.BaseDir(s.Manga)
	assert.Equal(t, filepath.Join(base, "raw"), filepath.Dir(report.Downloaded[0].FilePath))
	assert.Equal(t, []string{
		filepath.Join(base, "Test_ Manga, Vol. 1.cbz"),
		filepath.Join(base, "Test_ Manga, Vol. 2.cbz"),
	}, report.Archives)

	// Chapter 3.5 has no volume and fits after chapter 3 in volume 2.
	r, err := zip.OpenReader(report.Archives[1])
	require.NoError(t, err)
	defer r.Close()
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"ch 3/001.png", "ch 3/002.png", "ch 3.5 (Extra)/001.png", "ch 3.5 (Extra)/002.png"}, names)

	manga, total, downloaded, err := repo.GetMangaWithChapterCount("42")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, manga.Status)
	assert.Equal(t, 5, total, "the substituted upload is recorded too")
	assert.Equal(t, 4, downloaded)

	runs, err := repo.ListRuns("42")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)
	assert.Equal(t, 2, runs[0].Archives)
}

func TestE2E_DownloadWithChapterRange(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}
	server, pageHits := fakeSite(t)
	c, _ := newE2EController(t, server, true)

	s, err := c.Prepare(t.Context(), "42")
	require.NoError(t, err)
	ranges, err := ParseRanges("1-2")
	require.NoError(t, err)

	report, err := c.Execute(t.Context(), s, Selection{Ranges: ranges})
	require.NoError(t, err)
	assert.Len(t, report.Downloaded, 2)
	assert.Equal(t, int32(4), pageHits.Load())
	require.Len(t, report.Archives, 1)
	assert.Equal(t, "Test_ Manga, Vol. 1.cbz", filepath.Base(report.Archives[0]))
}

func TestE2E_DownloadWithoutVolumes(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}
	server, _ := fakeSite(t)
	c, _ := newE2EController(t, server, false)

	s, err := c.Prepare(t.Context(), "42")
	require.NoError(t, err)
	report, err := c.Execute(t.Context(), s, SelectAll(false))
	require.NoError(t, err)

	assert.Empty(t, report.Archives)
	for _, ch := range report.Downloaded {
		assert.DirExists(t, ch.FilePath)
		assert.FileExists(t, filepath.Join(ch.FilePath, "001.png"))
	}
}

func TestE2E_DownloadWithLanguageFilter(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}
	server, _ := fakeSite(t)
	c, _ := newE2EController(t, server, true)
	c.cfg.Language = "it"

	s, err := c.Prepare(t.Context(), "42")
	require.NoError(t, err)
	require.Len(t, s.Staged, 1)
	assert.Equal(t, "199", s.Staged[0].ID)

	c.cfg.Language = "jp"
	_, err = c.Prepare(t.Context(), "42")
	assert.ErrorIs(t, err, ErrNoChapters)
}
