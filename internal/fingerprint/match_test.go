package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	t.Parallel()

	fp := ForTransaction(25000, 0, "Amazon India", "4532123456789012").Fingerprint
	require.True(t, Match(fp, ForTransaction(25000, 0, "Amazon India", "4532123456789012").Fingerprint))
	require.False(t, Match(fp, ForTransaction(25000, 1, "Amazon India", "4532123456789012").Fingerprint))
	require.False(t, Match("ABCD", "abcd"))
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "AB12", "AB12", 100},
		{"half", "AB12", "AB34", 50},
		{"none", "AAAA", "BBBB", 0},
		{"shorter prefix", "ABC", "ABCDEF", 100},
		{"rounded", "ABC", "ABD", 67},
		{"one empty", "", "ABCD", 0},
		{"both empty", "", "", 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Similarity(tc.a, tc.b))
		})
	}
}

func TestEditDistance(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, EditDistance("65711D52", "65711D52"))
	require.Equal(t, 1, EditDistance("65711D52", "65711D53"))
	require.Equal(t, 4, EditDistance("", "ABCD"))
}
