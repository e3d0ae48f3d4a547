package services

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/kerbaras/mangodl/pkg/data"
)

// Range is an inclusive span of chapter numbers. A single chapter has
// From == To.
type Range struct {
	From data.ChapterNumber
	To   data.ChapterNumber
}

func (r Range) Contains(n data.ChapterNumber) bool {
	return n >= r.From && n <= r.To
}

func (r Range) String() string {
	if r.From == r.To {
		return r.From.String()
	}
	if math.IsInf(float64(r.To), 1) {
		return r.From.String() + "-"
	}
	return r.From.String() + "-" + r.To.String()
}

var rangePattern = regexp.MustCompile(`\d+\.*\d*\s*-?\s*\d*\.*\d*`)

// ParseRanges reads input such as "1-10, 12, 15.5-20". Whitespace is ignored,
// reversed bounds are swapped and "30-" runs to the last chapter.
func ParseRanges(input string) ([]Range, error) {
	matches := rangePattern.FindAllString(input, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no chapter numbers in %q", input)
	}

	ranges := make([]Range, 0, len(matches))
	for _, m := range matches {
		m = strings.Join(strings.Fields(m), "")
		lo, hi, isRange := strings.Cut(m, "-")

		from := data.ParseChapterNumber(lo)
		if from == nil {
			return nil, fmt.Errorf("invalid chapter number %q", lo)
		}
		r := Range{From: *from, To: *from}
		if isRange {
			if hi == "" {
				r.To = data.ChapterNumber(math.Inf(1))
			} else {
				to := data.ParseChapterNumber(hi)
				if to == nil {
					return nil, fmt.Errorf("invalid chapter number %q", hi)
				}
				r.To = *to
			}
			if r.To < r.From {
				r.From, r.To = r.To, r.From
			}
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

// Selection is which staged chapters the user asked for.
type Selection struct {
	All    bool
	Ranges []Range
	// Nameless includes chapters without a number.
	Nameless bool
}

// SelectAll picks every numbered chapter.
func SelectAll(nameless bool) Selection {
	return Selection{All: true, Nameless: nameless}
}

// Contains reports whether a chapter number was selected.
func (s Selection) Contains(n data.ChapterNumber) bool {
	if s.All {
		return true
	}
	for _, r := range s.Ranges {
		if r.Contains(n) {
			return true
		}
	}
	return false
}

// Apply filters staged chapters down to the selection, keeping their order.
func (s Selection) Apply(staged []data.Chapter) []data.Chapter {
	var out []data.Chapter
	for _, ch := range staged {
		if ch.Number == nil {
			if s.Nameless {
				out = append(out, ch)
			}
			continue
		}
		if s.Contains(*ch.Number) {
			out = append(out, ch)
		}
	}
	return out
}
