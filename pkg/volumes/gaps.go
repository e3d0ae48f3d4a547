package volumes

import (
	"math"
	"slices"

	"github.com/kerbaras/mangodl/pkg/data"
)

// Gaps lists the whole chapter numbers missing between consecutive entries
// of nums. Decimal chapters count as covering nothing but themselves.
func Gaps(nums []data.ChapterNumber) []int {
	sorted := slices.Clone(nums)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	var gaps []int
	for i := 0; i+1 < len(sorted); i++ {
		cur, next := float64(sorted[i]), float64(sorted[i+1])
		for x := math.Ceil(cur); x < math.Ceil(next); x++ {
			if x != cur {
				gaps = append(gaps, int(x))
			}
		}
	}
	return gaps
}
