package services

import (
	"math"
	"testing"

	"github.com/kerbaras/mangodl/pkg/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rng(from, to float64) Range {
	return Range{From: data.ChapterNumber(from), To: data.ChapterNumber(to)}
}

func TestParseRanges(t *testing.T) {
	tests := []struct {
		input string
		want  []Range
	}{
		{"1-10", []Range{rng(1, 10)}},
		{" 1  -   10    ", []Range{rng(1, 10)}},
		{"1", []Range{rng(1, 1)}},
		{" 1  ", []Range{rng(1, 1)}},
		{"1-5,10-15", []Range{rng(1, 5), rng(10, 15)}},
		{" 1  -   5    , 10  -  15   ,", []Range{rng(1, 5), rng(10, 15)}},
		{"1,2,3,4", []Range{rng(1, 1), rng(2, 2), rng(3, 3), rng(4, 4)}},
		{"1-10, 11, 12-20", []Range{rng(1, 10), rng(11, 11), rng(12, 20)}},
		{"15.5-20", []Range{rng(15.5, 20)}},
		{"20-10", []Range{rng(10, 20)}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRanges(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRangesOpenEnded(t *testing.T) {
	got, err := ParseRanges("30-")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, data.ChapterNumber(30), got[0].From)
	assert.True(t, math.IsInf(float64(got[0].To), 1))
	assert.True(t, got[0].Contains(1000))
	assert.Equal(t, "30-", got[0].String())
}

func TestParseRangesInvalid(t *testing.T) {
	for _, input := range []string{"", "abc", "  ,  "} {
		_, err := ParseRanges(input)
		assert.Error(t, err, input)
	}
}

func TestRangeString(t *testing.T) {
	assert.Equal(t, "4", rng(4, 4).String())
	assert.Equal(t, "1-10.5", rng(1, 10.5).String())
}

func TestSelectionApply(t *testing.T) {
	nameless := data.Chapter{ID: "n", Title: "Omake"}
	staged := []data.Chapter{
		chapter("1", 1, nil),
		chapter("2", 2.5, nil),
		chapter("3", 3, nil),
		nameless,
		chapter("5", 10, nil),
	}

	ids := func(chs []data.Chapter) []string {
		var out []string
		for _, ch := range chs {
			out = append(out, ch.ID)
		}
		return out
	}

	ranges, err := ParseRanges("1-3")
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, ids(Selection{Ranges: ranges}.Apply(staged)))
	assert.Equal(t, []string{"1", "2", "3", "n"}, ids(Selection{Ranges: ranges, Nameless: true}.Apply(staged)))
	assert.Equal(t, []string{"1", "2", "3", "5"}, ids(SelectAll(false).Apply(staged)))
	assert.Equal(t, []string{"1", "2", "3", "n", "5"}, ids(SelectAll(true).Apply(staged)))
	assert.Empty(t, Selection{}.Apply(staged))
}
