package data

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb/v2"
)

const schema = `
CREATE TABLE IF NOT EXISTS mangas (
	id VARCHAR PRIMARY KEY,
	name VARCHAR NOT NULL,
	description VARCHAR,
	cover_url VARCHAR,
	source VARCHAR,
	status VARCHAR
);
CREATE TABLE IF NOT EXISTS chapters (
	id VARCHAR PRIMARY KEY,
	manga_id VARCHAR NOT NULL,
	title VARCHAR,
	language VARCHAR,
	number DOUBLE,
	volume INTEGER,
	downloaded BOOLEAN DEFAULT false,
	serverless BOOLEAN DEFAULT false,
	file_path VARCHAR
);
CREATE TABLE IF NOT EXISTS runs (
	id VARCHAR PRIMARY KEY,
	manga_id VARCHAR NOT NULL,
	started_at TIMESTAMP,
	finished_at TIMESTAMP,
	downloaded INTEGER,
	serverless INTEGER,
	page_failures INTEGER,
	archives INTEGER,
	status VARCHAR
);
`

// InitDuckDB opens the library database at path, creating parent directories
// and tables as needed.
func InitDuckDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create library directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return db, nil
}

// Run is one download session recorded in the library.
type Run struct {
	ID           string
	MangaID      string
	StartedAt    time.Time
	FinishedAt   time.Time
	Downloaded   int
	Serverless   int
	PageFailures int
	Archives     int
	Status       string
}

type Repository struct {
	db *sql.DB
}

func NewRepository(path string) (*Repository, error) {
	db, err := InitDuckDB(path)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) SaveManga(m *Manga) error {
	_, err := r.db.Exec(`
		INSERT INTO mangas (id, name, description, cover_url, source, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			cover_url = excluded.cover_url,
			source = excluded.source,
			status = excluded.status`,
		m.ID, m.Name, m.Description, m.CoverURL, m.Source, m.Status)
	if err != nil {
		return fmt.Errorf("failed to save manga %s: %w", m.ID, err)
	}
	return nil
}

// GetManga returns nil without error when the manga is not in the library.
func (r *Repository) GetManga(id string) (*Manga, error) {
	var m Manga
	var description, cover, source, status sql.NullString
	err := r.db.QueryRow(`SELECT id, name, description, cover_url, source, status FROM mangas WHERE id = ?`, id).
		Scan(&m.ID, &m.Name, &description, &cover, &source, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get manga %s: %w", id, err)
	}
	m.Description = description.String
	m.CoverURL = cover.String
	m.Source = source.String
	m.Status = status.String
	return &m, nil
}

func (r *Repository) ListMangas() ([]*Manga, error) {
	rows, err := r.db.Query(`SELECT id, name, description, cover_url, source, status FROM mangas ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list mangas: %w", err)
	}
	defer rows.Close()

	var mangas []*Manga
	for rows.Next() {
		var m Manga
		var description, cover, source, status sql.NullString
		if err := rows.Scan(&m.ID, &m.Name, &description, &cover, &source, &status); err != nil {
			return nil, err
		}
		m.Description = description.String
		m.CoverURL = cover.String
		m.Source = source.String
		m.Status = status.String
		mangas = append(mangas, &m)
	}
	return mangas, rows.Err()
}

func (r *Repository) DeleteManga(id string) error {
	if _, err := r.db.Exec(`DELETE FROM chapters WHERE manga_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete chapters of %s: %w", id, err)
	}
	if _, err := r.db.Exec(`DELETE FROM runs WHERE manga_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete runs of %s: %w", id, err)
	}
	if _, err := r.db.Exec(`DELETE FROM mangas WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete manga %s: %w", id, err)
	}
	return nil
}

func (r *Repository) SaveChapter(c *Chapter) error {
	var number sql.NullFloat64
	if c.Number != nil {
		number = sql.NullFloat64{Float64: float64(*c.Number), Valid: true}
	}
	var volume sql.NullInt64
	if c.Volume != nil {
		volume = sql.NullInt64{Int64: int64(*c.Volume), Valid: true}
	}

	_, err := r.db.Exec(`
		INSERT INTO chapters (id, manga_id, title, language, number, volume, downloaded, serverless, file_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			language = excluded.language,
			number = excluded.number,
			volume = excluded.volume,
			downloaded = excluded.downloaded,
			serverless = excluded.serverless,
			file_path = excluded.file_path`,
		c.ID, c.MangaID, c.Title, c.Language, number, volume, c.Downloaded, c.Serverless, c.FilePath)
	if err != nil {
		return fmt.Errorf("failed to save chapter %s: %w", c.ID, err)
	}
	return nil
}

// GetChapters returns the chapters of a manga ordered by volume, then number.
// Orphans and nameless chapters sort last.
func (r *Repository) GetChapters(mangaID string) ([]*Chapter, error) {
	rows, err := r.db.Query(`
		SELECT id, manga_id, title, language, number, volume, downloaded, serverless, file_path
		FROM chapters WHERE manga_id = ?
		ORDER BY volume NULLS LAST, number NULLS LAST, id`, mangaID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chapters of %s: %w", mangaID, err)
	}
	defer rows.Close()

	var chapters []*Chapter
	for rows.Next() {
		var c Chapter
		var title, language, path sql.NullString
		var number sql.NullFloat64
		var volume sql.NullInt64
		var downloaded, serverless sql.NullBool
		if err := rows.Scan(&c.ID, &c.MangaID, &title, &language, &number, &volume, &downloaded, &serverless, &path); err != nil {
			return nil, err
		}
		c.Title = title.String
		c.Language = language.String
		c.FilePath = path.String
		c.Downloaded = downloaded.Bool
		c.Serverless = serverless.Bool
		if number.Valid {
			c.Number = ChapterNumberPtr(number.Float64)
		}
		if volume.Valid {
			c.Volume = VolumeNumberPtr(int(volume.Int64))
		}
		chapters = append(chapters, &c)
	}
	return chapters, rows.Err()
}

func (r *Repository) UpdateChapterStatus(id string, downloaded bool, path string) error {
	_, err := r.db.Exec(`UPDATE chapters SET downloaded = ?, file_path = ? WHERE id = ?`, downloaded, path, id)
	if err != nil {
		return fmt.Errorf("failed to update chapter %s: %w", id, err)
	}
	return nil
}

func (r *Repository) GetMangaWithChapterCount(id string) (*Manga, int, int, error) {
	manga, err := r.GetManga(id)
	if err != nil || manga == nil {
		return manga, 0, 0, err
	}

	var total, downloaded int
	err = r.db.QueryRow(`
		SELECT COUNT(*), COUNT(*) FILTER (WHERE downloaded)
		FROM chapters WHERE manga_id = ?`, id).Scan(&total, &downloaded)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to count chapters of %s: %w", id, err)
	}
	return manga, total, downloaded, nil
}

// StartRun records the beginning of a download session and returns its id.
func (r *Repository) StartRun(mangaID string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.Exec(`INSERT INTO runs (id, manga_id, started_at, status) VALUES (?, ?, ?, ?)`,
		id, mangaID, time.Now().UTC(), "downloading")
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

func (r *Repository) FinishRun(run *Run) error {
	_, err := r.db.Exec(`
		UPDATE runs SET finished_at = ?, downloaded = ?, serverless = ?, page_failures = ?, archives = ?, status = ?
		WHERE id = ?`,
		time.Now().UTC(), run.Downloaded, run.Serverless, run.PageFailures, run.Archives, run.Status, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the sessions for a manga, most recent first.
func (r *Repository) ListRuns(mangaID string) ([]*Run, error) {
	rows, err := r.db.Query(`
		SELECT id, manga_id, started_at, finished_at, downloaded, serverless, page_failures, archives, status
		FROM runs WHERE manga_id = ? ORDER BY started_at DESC`, mangaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs of %s: %w", mangaID, err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var finished sql.NullTime
		var downloaded, serverless, failures, archives sql.NullInt64
		var status sql.NullString
		if err := rows.Scan(&run.ID, &run.MangaID, &run.StartedAt, &finished, &downloaded, &serverless, &failures, &archives, &status); err != nil {
			return nil, err
		}
		run.FinishedAt = finished.Time
		run.Downloaded = int(downloaded.Int64)
		run.Serverless = int(serverless.Int64)
		run.PageFailures = int(failures.Int64)
		run.Archives = int(archives.Int64)
		run.Status = status.String
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
