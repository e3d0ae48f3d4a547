// Package volumes decides which volume every chapter belongs to, filling in
// for chapters the source left without one.
package volumes

import (
	"maps"
	"math"
	"slices"

	"github.com/kerbaras/mangodl/pkg/data"
)

const DefaultVolumeLength = 10

// Assignment maps chapter numbers to volume numbers. It is read-only once
// returned by Assign.
type Assignment struct {
	volumes map[data.ChapterNumber]data.VolumeNumber
}

// Volume returns the volume a chapter was assigned to.
func (a Assignment) Volume(ch data.ChapterNumber) (data.VolumeNumber, bool) {
	v, ok := a.volumes[ch]
	return v, ok
}

func (a Assignment) Len() int {
	return len(a.volumes)
}

// Volumes returns the distinct volume numbers in ascending order.
func (a Assignment) Volumes() []data.VolumeNumber {
	seen := make(map[data.VolumeNumber]struct{})
	for _, v := range a.volumes {
		seen[v] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Chapters returns the chapters of volume v in ascending order.
func (a Assignment) Chapters(v data.VolumeNumber) []data.ChapterNumber {
	var chs []data.ChapterNumber
	for ch, vol := range a.volumes {
		if vol == v {
			chs = append(chs, ch)
		}
	}
	slices.Sort(chs)
	return chs
}

// Map returns a copy of the underlying mapping.
func (a Assignment) Map() map[data.ChapterNumber]data.VolumeNumber {
	return maps.Clone(a.volumes)
}

type Result struct {
	Assignment Assignment
	// Unassigned holds orphans that fell inside the known chapter range but
	// matched no volume.
	Unassigned []data.ChapterNumber
	Nameless   []data.Chapter
	// Duplicates holds chapter numbers seen more than once. Only the first
	// occurrence is assigned.
	Duplicates []data.ChapterNumber
	// FromScratch is set when no chapter carried a volume and every volume
	// was made up with the default length.
	FromScratch bool
}

// Assign gives every numbered chapter a volume. Chapters that carry one keep
// it. Orphans are first fitted into the existing volumes, then grouped into
// new volumes below and above the known range using the average volume size.
// Without any volume data, chapters are cut into volumes of defaultLength
// numbered from 1, the last one taking what is left.
func Assign(chapters []data.Chapter, defaultLength int) Result {
	if defaultLength < 1 {
		defaultLength = DefaultVolumeLength
	}

	var res Result
	contents := make(map[data.VolumeNumber][]data.ChapterNumber)
	var orphans []data.ChapterNumber
	seen := make(map[data.ChapterNumber]bool)

	for _, ch := range chapters {
		if ch.Number != nil {
			if seen[*ch.Number] {
				res.Duplicates = append(res.Duplicates, *ch.Number)
				continue
			}
			seen[*ch.Number] = true
		}
		switch {
		case ch.Number == nil:
			res.Nameless = append(res.Nameless, ch)
		case ch.Volume == nil:
			orphans = append(orphans, *ch.Number)
		default:
			contents[*ch.Volume] = append(contents[*ch.Volume], *ch.Number)
		}
	}
	for _, chs := range contents {
		slices.Sort(chs)
	}
	slices.Sort(orphans)

	if len(contents) == 0 {
		res.FromScratch = len(orphans) > 0
		for i, group := range Split(orphans, defaultLength) {
			contents[data.VolumeNumber(i+1)] = group
		}
		res.Assignment = build(contents)
		return res
	}

	orphans = fit(contents, orphans)
	if len(orphans) > 0 {
		res.Unassigned = extrapolate(contents, orphans)
	}
	res.Assignment = build(contents)
	return res
}

// fit places each orphan into the first volume whose bounds contain it and
// returns the ones that did not fit. Bounds are read from contents as it
// grows, so earlier placements widen later checks.
func fit(contents map[data.VolumeNumber][]data.ChapterNumber, orphans []data.ChapterNumber) []data.ChapterNumber {
	vols := slices.Sorted(maps.Keys(contents))
	var rest []data.ChapterNumber

	for _, orphan := range orphans {
		placed := false
		for i, v := range vols {
			chs := contents[v]

			lower := chs[0] - 1
			if i > 0 {
				prev := contents[vols[i-1]]
				lower = prev[len(prev)-1]
			}
			upper := chs[len(chs)-1] + 0.5
			if i < len(vols)-1 {
				upper = contents[vols[i+1]][0]
			}

			if lower <= orphan && orphan <= upper {
				idx, _ := slices.BinarySearch(chs, orphan)
				contents[v] = slices.Insert(chs, idx, orphan)
				placed = true
				break
			}
		}
		if !placed {
			rest = append(rest, orphan)
		}
	}
	return rest
}

// extrapolate creates volumes for orphans outside the known chapter range and
// returns the ones inside it.
func extrapolate(contents map[data.VolumeNumber][]data.ChapterNumber, orphans []data.ChapterNumber) []data.ChapterNumber {
	total := 0
	first, last := math.Inf(1), math.Inf(-1)
	for _, chs := range contents {
		total += len(chs)
		first = math.Min(first, float64(chs[0]))
		last = math.Max(last, float64(chs[len(chs)-1]))
	}
	average := int(math.RoundToEven(float64(total) / float64(len(contents))))
	if average < 1 {
		average = 1
	}

	var below, above, rogue []data.ChapterNumber
	for _, o := range orphans {
		switch {
		case float64(o) < first:
			below = append(below, o)
		case float64(o) > last:
			above = append(above, o)
		default:
			rogue = append(rogue, o)
		}
	}

	vols := slices.Sorted(maps.Keys(contents))
	lowest, highest := vols[0], vols[len(vols)-1]

	slices.Reverse(below)
	for _, group := range Chunk(below, average) {
		lowest--
		slices.Sort(group)
		contents[lowest] = group
	}
	for _, group := range Chunk(above, average) {
		highest++
		contents[highest] = group
	}
	return rogue
}

func build(contents map[data.VolumeNumber][]data.ChapterNumber) Assignment {
	a := Assignment{volumes: make(map[data.ChapterNumber]data.VolumeNumber)}
	for _, v := range slices.Sorted(maps.Keys(contents)) {
		for _, ch := range contents[v] {
			a.volumes[ch] = v
		}
	}
	return a
}
