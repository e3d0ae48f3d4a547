package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/kerbaras/mangodl/pkg/data"
	"github.com/kerbaras/mangodl/pkg/sources"
	"github.com/kerbaras/mangodl/pkg/utils"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// DownloadProgress represents the progress of a download operation
type DownloadProgress struct {
	MangaID       string
	ChapterID     string
	CurrentPage   int
	TotalPages    int
	Status        string // "downloading", "substituting", "complete", "serverless", "error"
	Error         error
	ChapterNumber string
}

// PageFailure is a page that could not be fetched after every retry.
type PageFailure struct {
	ChapterID string
	Chapter   string
	Page      int
	URL       string
	Err       error
}

// DownloadResult is what a download run produced. Downloaded chapters carry
// the folder their pages were written to.
type DownloadResult struct {
	Downloaded    []*data.Chapter
	Serverless    []data.Chapter
	BadChapterIDs []string
	PageFailures  []PageFailure
}

type DownloaderOptions struct {
	// Destination is the raw directory chapter folders are written to.
	Destination        string
	ConcurrentChapters int
	PageRetries        int
	RetryBackoff       time.Duration
	Logger             *logrus.Entry
	// Progress receives events when set; it stays open after Close.
	Progress chan DownloadProgress
}

// Downloader fetches chapter pages from a source into per-chapter folders.
type Downloader struct {
	source       sources.Source
	opts         DownloaderOptions
	log          *logrus.Entry
	progressChan chan DownloadProgress
	ownsProgress bool
	closeOnce    sync.Once
}

// NewDownloader creates a new Downloader instance
func NewDownloader(source sources.Source, opts DownloaderOptions) *Downloader {
	if opts.ConcurrentChapters < 1 {
		opts.ConcurrentChapters = 2
	}
	if opts.PageRetries < 1 {
		opts.PageRetries = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	progress, owned := opts.Progress, false
	if progress == nil {
		progress, owned = make(chan DownloadProgress, 100), true
	}
	return &Downloader{
		source:       source,
		opts:         opts,
		log:          log,
		progressChan: progress,
		ownsProgress: owned,
	}
}

// GetProgressChannel returns the channel for receiving download progress updates
func (d *Downloader) GetProgressChannel() <-chan DownloadProgress {
	return d.progressChan
}

// downloadRun holds the state shared by the chapters of one Download call.
type downloadRun struct {
	listing []data.Chapter

	mu     sync.Mutex
	tried  map[string]bool
	result DownloadResult
}

func (r *downloadRun) markTried(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tried[id] = true
}

func (r *downloadRun) markBad(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.BadChapterIDs = append(r.result.BadChapterIDs, id)
}

// substitute finds another instance of ch in the listing that has not been
// tried yet. Nameless chapters have nothing to match on.
func (r *downloadRun) substitute(ch data.Chapter) (data.Chapter, bool) {
	if ch.Number == nil {
		return data.Chapter{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.listing {
		if other.Number == nil || *other.Number != *ch.Number {
			continue
		}
		if other.Language != ch.Language || r.tried[other.ID] {
			continue
		}
		r.tried[other.ID] = true
		return other, true
	}
	return data.Chapter{}, false
}

func (r *downloadRun) addDownloaded(ch *data.Chapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Downloaded = append(r.result.Downloaded, ch)
}

func (r *downloadRun) addServerless(ch data.Chapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Serverless = append(r.result.Serverless, ch)
}

func (r *downloadRun) addFailure(f PageFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.PageFailures = append(r.result.PageFailures, f)
}

// Download fetches every selected chapter. listing is the full chapter list
// of the manga and is searched for replacement instances when a chapter has
// no image server. Failing to load chapter metadata aborts the whole run;
// pages that keep failing are reported in the result instead.
func (d *Downloader) Download(ctx context.Context, listing, selected []data.Chapter) (*DownloadResult, error) {
	if err := os.MkdirAll(d.opts.Destination, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	run := &downloadRun{listing: listing, tried: make(map[string]bool)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.ConcurrentChapters)
	for _, ch := range selected {
		g.Go(func() error {
			err := d.downloadChapter(gctx, run, ch)
			if err != nil {
				d.sendProgress(DownloadProgress{
					MangaID:       ch.MangaID,
					ChapterID:     ch.ID,
					ChapterNumber: ch.Label(),
					Status:        "error",
					Error:         err,
				})
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &run.result
	slices.SortFunc(res.Downloaded, func(a, b *data.Chapter) int { return compareChapters(*a, *b) })
	slices.SortFunc(res.Serverless, compareChapters)
	slices.Sort(res.BadChapterIDs)
	return res, nil
}

func (d *Downloader) downloadChapter(ctx context.Context, run *downloadRun, ch data.Chapter) error {
	log := d.log.WithField("chapter", ch.Label())
	current := ch
	for {
		run.markTried(current.ID)

		meta, err := d.source.GetChapter(ctx, current.ID)
		if err != nil {
			return fmt.Errorf("failed to load chapter %s: %w", current.Label(), err)
		}
		current.Hash = meta.Hash
		current.Pages = meta.Pages
		if current.Title == "" {
			current.Title = meta.Title
		}

		if len(current.Pages) > 0 {
			return d.fetchChapter(ctx, run, current)
		}

		run.markBad(current.ID)
		next, ok := run.substitute(current)
		if !ok {
			log.Warn("No image server for chapter and no other instance to try")
			ch.Serverless = true
			run.addServerless(ch)
			d.sendProgress(DownloadProgress{
				MangaID:       ch.MangaID,
				ChapterID:     ch.ID,
				ChapterNumber: ch.Label(),
				Status:        "serverless",
			})
			return nil
		}

		log.WithFields(logrus.Fields{"bad": current.ID, "next": next.ID}).Info("Chapter has no image server, trying another instance")
		d.sendProgress(DownloadProgress{
			MangaID:       ch.MangaID,
			ChapterID:     next.ID,
			ChapterNumber: ch.Label(),
			Status:        "substituting",
		})
		current = next
	}
}

// fetchChapter writes every page of ch into its folder. Pages are fetched
// concurrently; the shared token bucket is what throttles them.
func (d *Downloader) fetchChapter(ctx context.Context, run *downloadRun, ch data.Chapter) error {
	dir := filepath.Join(d.opts.Destination, ch.FolderName())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create chapter directory: %w", err)
	}

	total := len(ch.Pages)
	width := max(3, len(strconv.Itoa(total)))
	d.sendProgress(DownloadProgress{
		MangaID:       ch.MangaID,
		ChapterID:     ch.ID,
		ChapterNumber: ch.Label(),
		TotalPages:    total,
		Status:        "downloading",
	})

	var saved atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	for i, pageURL := range ch.Pages {
		g.Go(func() error {
			if _, err := d.fetchPage(gctx, dir, i+1, width, pageURL); err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				d.log.WithError(err).WithFields(logrus.Fields{
					"chapter": ch.Label(),
					"page":    i + 1,
				}).Warn("Giving up on page")
				run.addFailure(PageFailure{
					ChapterID: ch.ID,
					Chapter:   ch.Label(),
					Page:      i + 1,
					URL:       pageURL,
					Err:       err,
				})
				return nil
			}
			n := saved.Add(1)
			d.sendProgress(DownloadProgress{
				MangaID:       ch.MangaID,
				ChapterID:     ch.ID,
				ChapterNumber: ch.Label(),
				CurrentPage:   int(n),
				TotalPages:    total,
				Status:        "downloading",
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if saved.Load() == 0 {
		return nil
	}
	ch.Downloaded = true
	ch.FilePath = dir
	run.addDownloaded(&ch)
	d.sendProgress(DownloadProgress{
		MangaID:       ch.MangaID,
		ChapterID:     ch.ID,
		ChapterNumber: ch.Label(),
		CurrentPage:   int(saved.Load()),
		TotalPages:    total,
		Status:        "complete",
	})
	return nil
}

// fetchPage downloads one page, retrying transient failures with exponential
// backoff. It returns the path written.
func (d *Downloader) fetchPage(ctx context.Context, dir string, index, width int, pageURL string) (string, error) {
	backoff := d.opts.RetryBackoff
	var lastErr error
	for attempt := 1; attempt <= d.opts.PageRetries; attempt++ {
		body, err := d.source.FetchPage(ctx, pageURL)
		if err == nil {
			var format string
			if _, format, err = image.DecodeConfig(bytes.NewReader(body)); err == nil {
				target := filepath.Join(dir, pageFileName(index, width, pageURL, format))
				if err := os.WriteFile(target, body, 0644); err != nil {
					return "", fmt.Errorf("failed to write page: %w", err)
				}
				return target, nil
			}
			err = fmt.Errorf("%w: %v", utils.ErrBadPayload, err)
		}
		lastErr = err

		if !utils.IsTransient(err) || attempt == d.opts.PageRetries {
			break
		}
		d.log.WithError(err).WithField("attempt", attempt).Debug("Retrying page")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return "", lastErr
}

var pageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

// pageFileName is the zero padded page index plus the extension from the URL,
// or from the detected format when the URL has none.
func pageFileName(index, width int, pageURL, format string) string {
	ext := ""
	if u, err := url.Parse(pageURL); err == nil {
		ext = strings.ToLower(path.Ext(u.Path))
	}
	if !pageExtensions[ext] {
		ext = "." + format
		if format == "jpeg" {
			ext = ".jpg"
		}
	}
	return fmt.Sprintf("%0*d%s", width, index, ext)
}

// compareChapters orders by chapter number with nameless chapters last.
func compareChapters(a, b data.Chapter) int {
	switch {
	case a.Number != nil && b.Number != nil:
		if *a.Number != *b.Number {
			if *a.Number < *b.Number {
				return -1
			}
			return 1
		}
	case a.Number != nil:
		return -1
	case b.Number != nil:
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

// sendProgress sends a progress update (non-blocking)
func (d *Downloader) sendProgress(progress DownloadProgress) {
	select {
	case d.progressChan <- progress:
	default:
		// Channel full, skip this update
	}
}

// Close closes the progress channel the downloader created. The downloader
// must not be used after.
func (d *Downloader) Close() {
	if !d.ownsProgress {
		return
	}
	d.closeOnce.Do(func() {
		close(d.progressChan)
	})
}
