package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kerbaras/mangodl/pkg/data"
	"github.com/kerbaras/mangodl/pkg/utils"
)

const SourceName = "mangadex"

// envelope wraps every API response.
type envelope struct {
	Code   int             `json:"code"`
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// flexID accepts ids sent as numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type Manga struct {
	ID          flexID `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	MainCover   string `json:"mainCover"`
}

func (m *Manga) ToManga() (*data.Manga, error) {
	if m.Title == "" {
		return nil, fmt.Errorf("manga %s has no title: %w", m.ID, ErrMalformed)
	}
	return &data.Manga{
		ID:          string(m.ID),
		Name:        m.Title,
		Description: m.Description,
		CoverURL:    m.MainCover,
		Source:      SourceName,
	}, nil
}

type Chapter struct {
	ID       flexID   `json:"id"`
	Hash     string   `json:"hash"`
	MangaID  flexID   `json:"mangaId"`
	Title    string   `json:"title"`
	Language string   `json:"language"`
	Volume   string   `json:"volume"`
	Number   string   `json:"chapter"`
	Server   string   `json:"server"`
	Pages    []string `json:"pages"`
}

func (c *Chapter) ToChapter() (*data.Chapter, error) {
	if c.ID == "" {
		return nil, fmt.Errorf("chapter without id: %w", ErrMalformed)
	}
	ch := &data.Chapter{
		ID:       string(c.ID),
		MangaID:  string(c.MangaID),
		Title:    c.Title,
		Language: c.Language,
		Number:   data.ParseChapterNumber(c.Number),
		Volume:   data.ParseVolumeNumber(c.Volume),
		Hash:     c.Hash,
	}
	if c.Server != "" && len(c.Pages) > 0 {
		ch.Pages = make([]string, len(c.Pages))
		for i, page := range c.Pages {
			ch.Pages[i] = c.Server + c.Hash + "/" + page
		}
	}
	return ch, nil
}

type Options struct {
	APIBase   string
	SearchURL string
	// Saver requests the low quality page set.
	Saver   bool
	Client  *http.Client
	Bucket  *utils.TokenBucket
	Timeout time.Duration
	Logger  *logrus.Entry
}

type MangaDex struct {
	api       *utils.API
	searchURL string
	saver     bool
	log       *logrus.Entry
}

func NewMangaDex(opts Options) *MangaDex {
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MangaDex{
		api:       utils.NewAPI(opts.APIBase, opts.Client, opts.Bucket, opts.Timeout),
		searchURL: opts.SearchURL,
		saver:     opts.Saver,
		log:       log.WithField("source", SourceName),
	}
}

func (m *MangaDex) get(ctx context.Context, path string, params url.Values, v any) error {
	var env envelope
	if err := m.api.Get(ctx, path, params, &env); err != nil {
		var status *utils.StatusError
		if errors.As(err, &status) && status.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return fmt.Errorf("%s: %w: %v", path, ErrMalformed, err)
		}
		return err
	}
	if env.Code == http.StatusNotFound {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%s: missing data: %w", path, ErrMalformed)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%s: %w: %v", path, ErrMalformed, err)
	}
	return nil
}

func (m *MangaDex) GetManga(ctx context.Context, id string) (*data.Manga, error) {
	var manga Manga
	if err := m.get(ctx, fmt.Sprintf("manga/%s", id), nil, &manga); err != nil {
		return nil, err
	}
	if manga.ID == "" {
		manga.ID = flexID(id)
	}
	return manga.ToManga()
}

func (m *MangaDex) GetChapters(ctx context.Context, manga *data.Manga) ([]data.Chapter, error) {
	var feed struct {
		Chapters []Chapter `json:"chapters"`
	}
	if err := m.get(ctx, fmt.Sprintf("manga/%s/chapters", manga.ID), nil, &feed); err != nil {
		return nil, err
	}

	out := make([]data.Chapter, 0, len(feed.Chapters))
	for _, raw := range feed.Chapters {
		ch, err := raw.ToChapter()
		if err != nil {
			return nil, err
		}
		if ch.MangaID == "" {
			ch.MangaID = manga.ID
		}
		out = append(out, *ch)
	}
	// The API lists newest first.
	slices.Reverse(out)
	m.log.WithField("manga", manga.ID).Debugf("listed %d chapter uploads", len(out))
	return out, nil
}

func (m *MangaDex) GetChapter(ctx context.Context, id string) (*data.Chapter, error) {
	var params url.Values
	if m.saver {
		params = url.Values{"saver": {"true"}}
	}
	var raw Chapter
	if err := m.get(ctx, fmt.Sprintf("chapter/%s", id), params, &raw); err != nil {
		return nil, err
	}
	if raw.ID == "" {
		raw.ID = flexID(id)
	}
	return raw.ToChapter()
}

func (m *MangaDex) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	body, _, err := m.api.Fetch(ctx, pageURL)
	return body, err
}

// ParseMangaURL extracts the manga id from a title page link such as
// https://mangadex.org/title/7139/one-punch-man.
func ParseMangaURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid manga url %q: %w", raw, err)
	}
	id := idFromPath(u.Path)
	if id == "" {
		return "", fmt.Errorf("no manga id in %q", raw)
	}
	return id, nil
}

// idFromPath returns the second segment of /title/<id>/<slug>.
func idFromPath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}
