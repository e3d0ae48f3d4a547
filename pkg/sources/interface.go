package sources

import (
	"context"
	"errors"

	"github.com/kerbaras/mangodl/pkg/data"
)

var (
	// ErrMalformed is returned when the metadata API answers with a payload
	// missing required fields or one that cannot be decoded.
	ErrMalformed = errors.New("malformed metadata")
	ErrNotFound  = errors.New("not found")
)

type Source interface {
	Search(ctx context.Context, query string) ([]data.Manga, error)
	GetManga(ctx context.Context, id string) (*data.Manga, error)
	// GetChapters lists every uploaded instance of every chapter, oldest first.
	GetChapters(ctx context.Context, manga *data.Manga) ([]data.Chapter, error)
	// GetChapter loads one instance with its page URLs. Pages is empty when
	// the instance has no image server.
	GetChapter(ctx context.Context, id string) (*data.Chapter, error)
	FetchPage(ctx context.Context, url string) ([]byte, error)
}
