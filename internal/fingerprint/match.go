package fingerprint

import (
	"math"

	"github.com/agnivade/levenshtein"
)

// Match reports whether two fingerprints link their transactions
func Match(a, b string) bool {
	return a == b
}

// Similarity is the rounded percentage of positions that agree over the
// shorter of the two rendered fingerprints. Display only; rings are formed
// on Match alone.
func Similarity(a, b string) int {
	if a == b {
		return 100
	}
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	matches := 0
	for i := 0; i < n; i++ {
		if a[i] == b[i] {
			matches++
		}
	}
	return int(math.Round(float64(matches) / float64(n) * 100))
}

// EditDistance is the Levenshtein distance between two rendered fingerprints
func EditDistance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}
