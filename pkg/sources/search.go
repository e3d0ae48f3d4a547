package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kerbaras/mangodl/pkg/data"
)

// Search scrapes the site's search page. The page only lists results for
// logged in sessions, so the client must carry the login cookies.
func (m *MangaDex) Search(ctx context.Context, query string) ([]data.Manga, error) {
	if m.searchURL == "" {
		return nil, fmt.Errorf("search url is not configured")
	}

	body, _, err := m.api.Fetch(ctx, m.searchURL+url.QueryEscape(query))
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	mangas, err := parseSearchResults(body)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	m.log.WithField("query", query).Infof("got %d result(s)", len(mangas))
	return mangas, nil
}

func parseSearchResults(body []byte) ([]data.Manga, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var mangas []data.Manga
	doc.Find("div.manga-entry").Each(func(i int, s *goquery.Selection) {
		link := s.Find("a.manga_title").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		id := idFromPath(href)
		if id == "" {
			return
		}
		mangas = append(mangas, data.Manga{
			ID:     id,
			Name:   strings.TrimSpace(link.Text()),
			Source: SourceName,
		})
	})
	return mangas, nil
}
