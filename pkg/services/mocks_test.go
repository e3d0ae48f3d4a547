package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/kerbaras/mangodl/pkg/data"
	"github.com/stretchr/testify/require"
)

// Mock implementations for testing

type mockSource struct {
	searchFunc      func(query string) ([]data.Manga, error)
	getMangaFunc    func(id string) (*data.Manga, error)
	getChaptersFunc func(manga *data.Manga) ([]data.Chapter, error)
	getChapterFunc  func(id string) (*data.Chapter, error)
	fetchPageFunc   func(url string) ([]byte, error)
}

func (m *mockSource) Search(_ context.Context, query string) ([]data.Manga, error) {
	if m.searchFunc != nil {
		return m.searchFunc(query)
	}
	return nil, nil
}

func (m *mockSource) GetManga(_ context.Context, id string) (*data.Manga, error) {
	if m.getMangaFunc != nil {
		return m.getMangaFunc(id)
	}
	return &data.Manga{ID: id, Name: "Manga " + id}, nil
}

func (m *mockSource) GetChapters(_ context.Context, manga *data.Manga) ([]data.Chapter, error) {
	if m.getChaptersFunc != nil {
		return m.getChaptersFunc(manga)
	}
	return nil, nil
}

func (m *mockSource) GetChapter(_ context.Context, id string) (*data.Chapter, error) {
	if m.getChapterFunc != nil {
		return m.getChapterFunc(id)
	}
	return &data.Chapter{ID: id}, nil
}

func (m *mockSource) FetchPage(_ context.Context, url string) ([]byte, error) {
	if m.fetchPageFunc != nil {
		return m.fetchPageFunc(url)
	}
	return nil, nil
}

// mockRepository keeps everything in memory.
type mockRepository struct {
	mu       sync.Mutex
	mangas   map[string]*data.Manga
	chapters map[string]*data.Chapter
	runs     []*data.Run

	saveMangaFunc func(manga *data.Manga) error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		mangas:   make(map[string]*data.Manga),
		chapters: make(map[string]*data.Chapter),
	}
}

func (m *mockRepository) SaveManga(manga *data.Manga) error {
	if m.saveMangaFunc != nil {
		return m.saveMangaFunc(manga)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *manga
	m.mangas[manga.ID] = &cp
	return nil
}

func (m *mockRepository) GetManga(id string) (*data.Manga, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mangas[id], nil
}

func (m *mockRepository) ListMangas() ([]*data.Manga, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*data.Manga
	for _, manga := range m.mangas {
		out = append(out, manga)
	}
	return out, nil
}

func (m *mockRepository) SaveChapter(chapter *data.Chapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *chapter
	m.chapters[chapter.ID] = &cp
	return nil
}

func (m *mockRepository) GetChapters(mangaID string) ([]*data.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*data.Chapter
	for _, ch := range m.chapters {
		if ch.MangaID == mangaID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (m *mockRepository) UpdateChapterStatus(chapterID string, downloaded bool, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.chapters[chapterID]; ok {
		ch.Downloaded = downloaded
		ch.FilePath = filePath
	}
	return nil
}

func (m *mockRepository) StartRun(mangaID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := &data.Run{ID: "run-1", MangaID: mangaID, Status: "downloading"}
	m.runs = append(m.runs, run)
	return run.ID, nil
}

func (m *mockRepository) FinishRun(run *data.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.runs {
		if r.ID == run.ID {
			cp := *run
			m.runs[i] = &cp
		}
	}
	return nil
}

// Test helpers

func createTestPNG(t testing.TB) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 2, 3))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func chapter(id string, number float64, volume *data.VolumeNumber) data.Chapter {
	return data.Chapter{
		ID:       id,
		MangaID:  "m1",
		Language: "gb",
		Number:   data.ChapterNumberPtr(number),
		Volume:   volume,
	}
}

func vol(v int) *data.VolumeNumber {
	return data.VolumeNumberPtr(v)
}

// pagedSource serves pages for every chapter id in pages and a PNG for every
// page URL.
func pagedSource(t testing.TB, pages map[string]int) *mockSource {
	png := createTestPNG(t)
	return &mockSource{
		getChapterFunc: func(id string) (*data.Chapter, error) {
			ch := &data.Chapter{ID: id, Hash: "h-" + id}
			for i := 1; i <= pages[id]; i++ {
				ch.Pages = append(ch.Pages, "https://img.test/"+id+"/"+string(rune('a'+i-1))+".png")
			}
			return ch, nil
		},
		fetchPageFunc: func(string) ([]byte, error) {
			return png, nil
		},
	}
}
