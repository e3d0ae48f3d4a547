package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/mangodl/pkg/data"
)

func newTestMangaDex(t *testing.T, handler http.HandlerFunc, saver bool) *MangaDex {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewMangaDex(Options{
		APIBase:   server.URL + "/api/v2/",
		SearchURL: server.URL + "/search?title=",
		Saver:     saver,
		Timeout:   time.Second,
	})
}

func TestMangaDex_GetManga(t *testing.T) {
	md := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/manga/7139", r.URL.Path)
		fmt.Fprint(w, `{"code":200,"status":"OK","data":{"id":7139,"title":"One Punch-Man","description":"Saitama","mainCover":"https://x/cover.jpg"}}`)
	}, false)

	manga, err := md.GetManga(context.Background(), "7139")
	require.NoError(t, err)
	assert.Equal(t, &data.Manga{
		ID:          "7139",
		Name:        "One Punch-Man",
		Description: "Saitama",
		CoverURL:    "https://x/cover.jpg",
		Source:      SourceName,
	}, manga)
}

func TestMangaDex_GetMangaMalformed(t *testing.T) {
	md := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":200,"status":"OK","data":{"id":1}}`)
	}, false)

	_, err := md.GetManga(context.Background(), "1")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestMangaDex_GetMangaBadJSON(t *testing.T) {
	md := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>maintenance</html>`)
	}, false)

	_, err := md.GetManga(context.Background(), "1")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestMangaDex_GetMangaNotFound(t *testing.T) {
	md := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"code":404,"status":"error","message":"Manga 1 not found."}`)
	}, false)

	_, err := md.GetManga(context.Background(), "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMangaDex_GetChapters(t *testing.T) {
	md := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/manga/7139/chapters", r.URL.Path)
		fmt.Fprint(w, `{"code":200,"status":"OK","data":{"chapters":[
			{"id":30,"hash":"c","mangaId":7139,"title":"","language":"gb","volume":"","chapter":"3"},
			{"id":20,"hash":"b","mangaId":7139,"title":"Extra","language":"gb","volume":"1","chapter":""},
			{"id":10,"hash":"a","mangaId":7139,"title":"Start","language":"gb","volume":"1","chapter":"1"}
		]}}`)
	}, false)

	chapters, err := md.GetChapters(context.Background(), &data.Manga{ID: "7139"})
	require.NoError(t, err)
	require.Len(t, chapters, 3)

	// Oldest first.
	assert.Equal(t, "10", chapters[0].ID)
	assert.Equal(t, "Start", chapters[0].Title)
	assert.Equal(t, data.ChapterNumber(1), *chapters[0].Number)
	assert.Equal(t, data.VolumeNumber(1), *chapters[0].Volume)
	assert.Equal(t, "7139", chapters[0].MangaID)

	assert.True(t, chapters[1].IsNameless())
	assert.True(t, chapters[2].IsOrphan())
	assert.Equal(t, "gb", chapters[2].Language)
}

func TestMangaDex_GetChaptersMissingID(t *testing.T) {
	md := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":200,"status":"OK","data":{"chapters":[{"chapter":"1"}]}}`)
	}, false)

	_, err := md.GetChapters(context.Background(), &data.Manga{ID: "1"})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestMangaDex_GetChapter(t *testing.T) {
	md := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/chapter/10", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("saver"))
		fmt.Fprint(w, `{"code":200,"status":"OK","data":{"id":10,"hash":"abc","mangaId":7139,"volume":"1","chapter":"1","title":"Start","language":"gb","server":"https://s1.example/data-saver/","pages":["x1.jpg","x2.png"]}}`)
	}, true)

	ch, err := md.GetChapter(context.Background(), "10")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://s1.example/data-saver/abc/x1.jpg",
		"https://s1.example/data-saver/abc/x2.png",
	}, ch.Pages)
	assert.Equal(t, "abc", ch.Hash)
}

func TestMangaDex_GetChapterWithoutServer(t *testing.T) {
	md := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("saver"))
		fmt.Fprint(w, `{"code":200,"status":"OK","data":{"id":"10","hash":"abc","chapter":"1","pages":["x1.jpg"]}}`)
	}, false)

	ch, err := md.GetChapter(context.Background(), "10")
	require.NoError(t, err)
	assert.Empty(t, ch.Pages)
}

func TestMangaDex_FetchPage(t *testing.T) {
	md := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image-bytes"))
	}, false)

	body, err := md.FetchPage(context.Background(), strings.TrimSuffix(md.api.BaseURL(), "/api/v2/")+"/page.png")
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(body))
}

func TestParseMangaURL(t *testing.T) {
	id, err := ParseMangaURL("https://mangadex.org/title/7139/one-punch-man")
	require.NoError(t, err)
	assert.Equal(t, "7139", id)

	id, err = ParseMangaURL("https://mangadex.org/title/7139")
	require.NoError(t, err)
	assert.Equal(t, "7139", id)

	_, err = ParseMangaURL("https://mangadex.org/")
	assert.Error(t, err)
}
