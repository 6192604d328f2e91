package registry

import (
	"slices"
)

// ResolveYear returns the available year closest to requested. An exact
// match wins; ties go to the smaller year. It returns 0 when no year is
// available.
func ResolveYear(requested int, available []int) int {
	if len(available) == 0 {
		return 0
	}
	years := slices.Clone(available)
	slices.Sort(years)

	best := years[0]
	bestDiff := absDiff(best, requested)
	for _, y := range years[1:] {
		if d := absDiff(y, requested); d < bestDiff {
			best, bestDiff = y, d
		}
	}
	return best
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
