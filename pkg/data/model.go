package data

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Manga struct {
	ID          string
	Name        string
	Description string
	CoverURL    string
	Source      string
	Status      string // "downloading", "completed", "partial", "error"
}

// ChapterNumber is a chapter's position in the series. Decimal numbers such
// as 10.5 mark extra chapters.
type ChapterNumber float64

func (n ChapterNumber) String() string {
	return strconv.FormatFloat(float64(n), 'f', -1, 64)
}

// VolumeNumber identifies a volume. Synthesized volumes may fall below 1.
type VolumeNumber int

func (v VolumeNumber) String() string {
	return strconv.Itoa(int(v))
}

type Chapter struct {
	ID       string
	MangaID  string
	Title    string
	Language string

	// Number is nil for nameless chapters.
	Number *ChapterNumber
	// Volume is nil when the source did not assign one.
	Volume *VolumeNumber

	Hash  string
	Pages []string // Image URLs; empty means the instance has no server

	Downloaded bool
	Serverless bool
	FilePath   string // Path to downloaded images directory
}

func (c *Chapter) IsNameless() bool {
	return c.Number == nil
}

func (c *Chapter) IsOrphan() bool {
	return c.Volume == nil
}

// Label is the human readable name used in logs and reports.
func (c *Chapter) Label() string {
	if c.Number != nil {
		return c.Number.String()
	}
	if c.Title != "" {
		return c.Title
	}
	return c.ID
}

// FolderName is the directory name used for the chapter's raw images.
func (c *Chapter) FolderName() string {
	var name string
	switch {
	case c.Number != nil && c.Title != "":
		name = fmt.Sprintf("ch %s (%s)", c.Number, c.Title)
	case c.Number != nil:
		name = fmt.Sprintf("ch %s", c.Number)
	case c.Title != "":
		name = fmt.Sprintf("ch (%s)", c.Title)
	default:
		name = fmt.Sprintf("ch %s", c.ID)
	}
	return SanitizeFilename(name)
}

// ParseChapterNumber returns nil when raw carries no usable chapter number.
func ParseChapterNumber(raw string) *ChapterNumber {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	n := ChapterNumber(f)
	return &n
}

// ParseVolumeNumber returns nil for empty, malformed or non-integral volumes,
// which leaves the chapter orphaned.
func ParseVolumeNumber(raw string) *VolumeNumber {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil
	}
	v := VolumeNumber(f)
	return &v
}

func ChapterNumberPtr(n float64) *ChapterNumber {
	c := ChapterNumber(n)
	return &c
}

func VolumeNumberPtr(v int) *VolumeNumber {
	n := VolumeNumber(v)
	return &n
}

// Stage filters the raw listing down to one instance per chapter number in
// the requested language, keeping the first one seen. Nameless chapters are
// kept individually.
func Stage(listing []Chapter, language string) []Chapter {
	seen := make(map[ChapterNumber]struct{})
	staged := make([]Chapter, 0, len(listing))
	for _, ch := range listing {
		if ch.Language != language {
			continue
		}
		if ch.Number != nil {
			if _, dup := seen[*ch.Number]; dup {
				continue
			}
			seen[*ch.Number] = struct{}{}
		}
		staged = append(staged, ch)
	}
	return staged
}
