package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/kerbaras/mangodl/pkg/config"
	"github.com/kerbaras/mangodl/pkg/data"
	"github.com/kerbaras/mangodl/pkg/integrations"
	"github.com/kerbaras/mangodl/pkg/sources"
	"github.com/kerbaras/mangodl/pkg/volumes"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoChapters is returned when nothing is left to download after
	// filtering by language or selection.
	ErrNoChapters = errors.New("no chapters to download")
	// ErrLocked is returned when another process is downloading the same
	// manga into the same directory.
	ErrLocked = errors.New("manga is locked by another download")
)

const lockFileName = ".mangodl.lock"

// Repository interface needed by the controller
type Repository interface {
	SaveManga(manga *data.Manga) error
	GetManga(id string) (*data.Manga, error)
	ListMangas() ([]*data.Manga, error)
	SaveChapter(chapter *data.Chapter) error
	GetChapters(mangaID string) ([]*data.Chapter, error)
	UpdateChapterStatus(chapterID string, downloaded bool, filePath string) error
	StartRun(mangaID string) (string, error)
	FinishRun(run *data.Run) error
}

type ControllerConfig struct {
	RootDir            string
	Language           string
	Volumize           bool
	VolumeLength       int
	ConcurrentChapters int
	PageRetries        int
	RetryBackoff       time.Duration
	// Packer builds the archives; CBZ when nil.
	Packer integrations.Packer
	Logger *logrus.Entry
}

// NewControllerConfig derives the controller settings from the application
// configuration.
func NewControllerConfig(cfg *config.Config, log *logrus.Entry) ControllerConfig {
	var packer integrations.Packer = integrations.NewCBZPacker()
	if cfg.Settings.Format == config.FormatEPUB {
		processor := integrations.NewPageProcessor(integrations.PageSettings{
			MaxHeight: cfg.Settings.PageMaxHeight,
			Grayscale: cfg.Settings.Grayscale,
		})
		packer = integrations.NewEPUBPacker(processor, "MangaDex", "en")
	}
	return ControllerConfig{
		RootDir:            cfg.Settings.RootDir,
		Language:           cfg.Settings.Language,
		Volumize:           cfg.Settings.Volumize,
		VolumeLength:       cfg.Settings.VolumeLength,
		ConcurrentChapters: cfg.Settings.ConcurrentChapters,
		PageRetries:        cfg.Settings.PageRetries,
		Packer:             packer,
		Logger:             log,
	}
}

// MangaController ties the source, the library and the download pipeline
// together for one user session.
type MangaController struct {
	source   sources.Source
	repo     Repository
	cfg      ControllerConfig
	log      *logrus.Entry
	progress chan DownloadProgress
}

func NewMangaController(source sources.Source, repo Repository, cfg ControllerConfig) *MangaController {
	if cfg.VolumeLength < 1 {
		cfg.VolumeLength = volumes.DefaultVolumeLength
	}
	if cfg.Packer == nil {
		cfg.Packer = integrations.NewCBZPacker()
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MangaController{
		source:   source,
		repo:     repo,
		cfg:      cfg,
		log:      log,
		progress: make(chan DownloadProgress, 100),
	}
}

// GetProgressChannel returns the download events of every Execute call.
func (c *MangaController) GetProgressChannel() <-chan DownloadProgress {
	return c.progress
}

// Close closes the progress channel.
func (c *MangaController) Close() {
	close(c.progress)
}

// BaseDir is where a manga's raw pages and archives are written.
func (c *MangaController) BaseDir(manga *data.Manga) string {
	return filepath.Join(c.cfg.RootDir, data.SanitizeFilename(manga.Name))
}

func (c *MangaController) SearchManga(ctx context.Context, query string) ([]data.Manga, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query cannot be empty")
	}
	return c.source.Search(ctx, query)
}

func (c *MangaController) GetManga(ctx context.Context, id string) (*data.Manga, error) {
	if id == "" {
		return nil, errors.New("manga id cannot be empty")
	}
	manga, err := c.source.GetManga(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get manga %s: %w", id, err)
	}
	return manga, nil
}

func (c *MangaController) GetMangaFromLibrary(id string) (*data.Manga, error) {
	manga, err := c.repo.GetManga(id)
	if err != nil {
		return nil, err
	}
	if manga == nil {
		return nil, fmt.Errorf("manga %s is not in the library: %w", id, sources.ErrNotFound)
	}
	return manga, nil
}

// FindMangaByName looks a manga up in the library ignoring case.
func (c *MangaController) FindMangaByName(name string) (*data.Manga, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("manga name cannot be empty")
	}
	mangas, err := c.repo.ListMangas()
	if err != nil {
		return nil, err
	}
	for _, m := range mangas {
		if strings.EqualFold(m.Name, name) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("manga %q is not in the library: %w", name, sources.ErrNotFound)
}

func (c *MangaController) GetChapters(ctx context.Context, manga *data.Manga) ([]data.Chapter, error) {
	if manga == nil {
		return nil, errors.New("manga cannot be nil")
	}
	chapters, err := c.source.GetChapters(ctx, manga)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters of %s: %w", manga.Name, err)
	}
	return chapters, nil
}

// AddMangaToLibrary stores the manga and its chapter listing without
// downloading anything.
func (c *MangaController) AddMangaToLibrary(ctx context.Context, manga *data.Manga) (int, error) {
	if manga == nil {
		return 0, errors.New("manga cannot be nil")
	}
	chapters, err := c.GetChapters(ctx, manga)
	if err != nil {
		return 0, err
	}
	if manga.Status == "" {
		manga.Status = "added"
	}
	if err := c.repo.SaveManga(manga); err != nil {
		return 0, fmt.Errorf("failed to save manga: %w", err)
	}
	for i := range chapters {
		if err := c.repo.SaveChapter(&chapters[i]); err != nil {
			return 0, fmt.Errorf("failed to save chapter: %w", err)
		}
	}
	return len(chapters), nil
}

// Session is a manga ready for chapter selection.
type Session struct {
	Manga *data.Manga
	// Listing is every uploaded instance, used to replace serverless ones.
	Listing []data.Chapter
	// Staged holds one instance per chapter number in the chosen language
	// plus the nameless chapters.
	Staged   []data.Chapter
	Numbers  []data.ChapterNumber
	Nameless []data.Chapter
	Missing  []int
}

// Prepare loads a manga and stages its chapters in the configured language.
func (c *MangaController) Prepare(ctx context.Context, mangaID string) (*Session, error) {
	manga, err := c.GetManga(ctx, mangaID)
	if err != nil {
		return nil, err
	}
	listing, err := c.GetChapters(ctx, manga)
	if err != nil {
		return nil, err
	}

	staged := data.Stage(listing, c.cfg.Language)
	if len(staged) == 0 {
		return nil, fmt.Errorf("%s in language %q: %w", manga.Name, c.cfg.Language, ErrNoChapters)
	}

	s := &Session{Manga: manga, Listing: listing, Staged: staged}
	for _, ch := range staged {
		if ch.Number == nil {
			s.Nameless = append(s.Nameless, ch)
			continue
		}
		s.Numbers = append(s.Numbers, *ch.Number)
	}
	s.Missing = volumes.Gaps(s.Numbers)

	log := c.log.WithField("manga", manga.Name)
	if len(s.Missing) > 0 {
		log.WithField("missing", s.Missing).Warnf("%d chapter(s) appear to be missing", len(s.Missing))
	}
	if len(s.Nameless) > 0 {
		log.Infof("%d chapter(s) have no chapter number", len(s.Nameless))
	}
	return s, nil
}

// Execute downloads the selected chapters of a prepared session, packs them
// into volumes and records the run in the library. Only a failed metadata
// fetch or a local error aborts it; everything else ends up in the report.
func (c *MangaController) Execute(ctx context.Context, s *Session, sel Selection) (*Report, error) {
	selected := sel.Apply(s.Staged)
	if len(selected) == 0 {
		return nil, ErrNoChapters
	}

	manga := s.Manga
	base := c.BaseDir(manga)
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", base, err)
	}

	lock := flock.New(filepath.Join(base, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", manga.Name, ErrLocked)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			c.log.WithError(err).Warn("Failed to release manga lock")
		}
	}()

	manga.Status = "downloading"
	if err := c.repo.SaveManga(manga); err != nil {
		return nil, fmt.Errorf("failed to save manga: %w", err)
	}
	for i := range selected {
		if err := c.repo.SaveChapter(&selected[i]); err != nil {
			return nil, fmt.Errorf("failed to save chapter: %w", err)
		}
	}
	runID, err := c.repo.StartRun(manga.ID)
	if err != nil {
		return nil, err
	}
	run := &data.Run{ID: runID, MangaID: manga.ID}

	downloader := NewDownloader(c.source, DownloaderOptions{
		Destination:        filepath.Join(base, "raw"),
		ConcurrentChapters: c.cfg.ConcurrentChapters,
		PageRetries:        c.cfg.PageRetries,
		RetryBackoff:       c.cfg.RetryBackoff,
		Logger:             c.log.WithField("manga", manga.Name),
		Progress:           c.progress,
	})
	result, err := downloader.Download(ctx, s.Listing, selected)
	if err != nil {
		c.finish(manga, run, StatusFailed)
		return nil, err
	}

	report := &Report{
		Manga:         manga,
		RunID:         runID,
		Requested:     len(selected),
		Downloaded:    result.Downloaded,
		Serverless:    result.Serverless,
		BadChapterIDs: result.BadChapterIDs,
		PageFailures:  result.PageFailures,
		Missing:       s.Missing,
		Nameless:      s.Nameless,
	}
	c.record(result)

	if c.cfg.Volumize && len(result.Downloaded) > 0 {
		c.volumize(base, report)
	}

	run.Downloaded = len(report.Downloaded)
	run.Serverless = len(report.Serverless)
	run.PageFailures = len(report.PageFailures)
	run.Archives = len(report.Archives)
	c.finish(manga, run, report.Status())
	return report, nil
}

// volumize assigns volumes to the downloaded chapters and packs them.
func (c *MangaController) volumize(base string, report *Report) {
	records := make([]data.Chapter, len(report.Downloaded))
	for i, ch := range report.Downloaded {
		records[i] = *ch
	}
	res := volumes.Assign(records, c.cfg.VolumeLength)
	report.Volumes = &res

	log := c.log.WithField("manga", report.Manga.Name)
	if res.FromScratch {
		log.Infof("No volume data, grouping chapters by %d", c.cfg.VolumeLength)
	}
	for _, n := range res.Unassigned {
		log.WithField("chapter", n.String()).Warn("Chapter could not be placed in any volume")
	}
	for _, n := range res.Duplicates {
		log.WithField("chapter", n.String()).Warn("Chapter number appears more than once")
	}

	builder := integrations.NewArchiveBuilder(base, c.cfg.Packer, log)
	archives, err := builder.Build(report.Manga.Name, res.Assignment, report.Downloaded)
	report.Archives = archives
	report.ArchiveErr = err

	written := make(map[string]bool, len(archives))
	for _, a := range archives {
		written[a] = true
	}
	for _, ch := range report.Downloaded {
		archive := builder.ArchivePath(report.Manga.Name, res.Assignment, ch)
		if !written[archive] {
			continue
		}
		if err := c.repo.UpdateChapterStatus(ch.ID, true, archive); err != nil {
			log.WithError(err).WithField("chapter", ch.Label()).Warn("Failed to record archive")
		}
	}
}

// PlanVolumes assigns volumes to the chapters stored in the library for a
// manga without downloading anything.
func (c *MangaController) PlanVolumes(mangaID string) (volumes.Result, error) {
	stored, err := c.repo.GetChapters(mangaID)
	if err != nil {
		return volumes.Result{}, err
	}
	listing := make([]data.Chapter, len(stored))
	for i, ch := range stored {
		listing[i] = *ch
	}
	staged := data.Stage(listing, c.cfg.Language)
	if len(staged) == 0 {
		return volumes.Result{}, fmt.Errorf("%s in language %q: %w", mangaID, c.cfg.Language, ErrNoChapters)
	}
	return volumes.Assign(staged, c.cfg.VolumeLength), nil
}

func (c *MangaController) record(result *DownloadResult) {
	// A substituted instance has an id the library has not seen yet.
	for _, ch := range result.Downloaded {
		if err := c.repo.SaveChapter(ch); err != nil {
			c.log.WithError(err).WithField("chapter", ch.Label()).Warn("Failed to record chapter")
		}
	}
	for i := range result.Serverless {
		if err := c.repo.SaveChapter(&result.Serverless[i]); err != nil {
			c.log.WithError(err).Warn("Failed to record serverless chapter")
		}
	}
}

func (c *MangaController) finish(manga *data.Manga, run *data.Run, status string) {
	run.Status = status
	if err := c.repo.FinishRun(run); err != nil {
		c.log.WithError(err).Warn("Failed to record run")
	}
	manga.Status = status
	if err := c.repo.SaveManga(manga); err != nil {
		c.log.WithError(err).Warn("Failed to update manga status")
	}
}
