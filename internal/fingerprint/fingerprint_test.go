package fingerprint

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

var hexFingerprint = regexp.MustCompile(`^[0-9A-F]{32}$`)

func TestEncodeKnownScenario(t *testing.T) {
	t.Parallel()

	const data = "25000-1707561234-Amazon India-4532123456789012"
	first := Encode(data)

	require.Equal(t, "65711D52C3811E9E78E9D38B59FB55E7", first.Fingerprint)
	require.Equal(t, "455507695", first.Seed)
	require.Equal(t, []int{87, 68, 45, 98, 243, 176, 41, 174, 79, 220, 229, 186, 107, 200, 97, 134}, first.StarMap)
	require.Equal(t, data, first.Input)
	require.Regexp(t, hexFingerprint, first.Fingerprint)
	require.Len(t, first.StarMap, Size)
	for _, v := range first.StarMap {
		require.GreaterOrEqual(t, v, 0)
		require.LessOrEqual(t, v, 255)
	}

	for i := 0; i < 10; i++ {
		require.Equal(t, first, Encode(data))
	}
}

func TestEncodeWithoutAlphanumerics(t *testing.T) {
	t.Parallel()

	empty := Encode("")
	require.Equal(t, "E86F8E1D247BAA09A04786B55CD32221", empty.Fingerprint)
	require.Equal(t, "0", empty.Seed)

	symbols := Encode("!!!")
	require.Equal(t, "D9B09716056C23B2F168EF0E9DA4FB2A", symbols.Fingerprint)
	require.Equal(t, "32769", symbols.Seed)
}

func TestForTransaction(t *testing.T) {
	t.Parallel()

	res := ForTransaction(25000, 1707561234, "Amazon India", "4532123456789012")
	require.Equal(t, "250001707561234Amazon India4532123456789012", res.Input)
	require.Equal(t, "40F670498E2E5B05FD0E6E80A424308C", res.Fingerprint)

	// ring members share a zero timestamp
	require.Equal(t, "B581ED621310B8F31E36FAC4F256751F", ForTransaction(25000, 0, "Amazon India", "4532123456789012").Fingerprint)
}

func TestForTransactionFieldSensitivity(t *testing.T) {
	t.Parallel()

	base := ForTransaction(25000, 1707561234000, "Amazon India", "4532123456789012").Fingerprint
	require.Equal(t, "17CF9B3891F7B084EA671511EBAD4B7C", base)

	changed := []Result{
		ForTransaction(25001, 1707561234000, "Amazon India", "4532123456789012"),
		ForTransaction(25000, 1707561234001, "Amazon India", "4532123456789012"),
		ForTransaction(25000, 1707561234000, "Flipkart", "4532123456789012"),
		ForTransaction(25000, 1707561234000, "Amazon India", "4532123456789013"),
	}
	for _, res := range changed {
		require.NotEqual(t, base, res.Fingerprint, "input %q", res.Input)
	}
}

func TestFingerprintCorpusHasNoCollisions(t *testing.T) {
	t.Parallel()

	merchants := []string{
		"Amazon India", "Flipkart", "Swiggy", "Zomato", "BookMyShow",
		"MakeMyTrip", "BigBasket", "PayTM Mall", "Myntra", "Ajio",
		"Nykaa", "FirstCry", "PVR Cinemas", "Dominos", "Pizza Hut",
		"Starbucks", "KFC", "McDonald's", "Uber India", "Ola Cabs",
	}

	seen := make(map[string]int)
	for i := 0; i < 120; i++ {
		amount := int64(1000 + i*37)
		ts := int64(1707561234000 + i*1013)
		card := fmt.Sprintf("4532%012d", i*7919)
		fp := ForTransaction(amount, ts, merchants[i%len(merchants)], card).Fingerprint
		require.Regexp(t, hexFingerprint, fp)
		prev, dup := seen[fp]
		require.False(t, dup, "input %d collides with input %d", i, prev)
		seen[fp] = i
	}
}

func TestStarMapDependsOnlyOnSeed(t *testing.T) {
	t.Parallel()

	res := Encode("Zomato")
	require.Equal(t, "CBF97A65994DC91F840F7BF3DF1546E9", res.Fingerprint)
	require.Equal(t, res.StarMap, StarMap(res.Seed))
	require.NotEqual(t, StarMap("1"), StarMap("2"))
}

func TestHashStringWrapsToInt32(t *testing.T) {
	t.Parallel()

	require.Equal(t, int64(0), hashString(""))
	require.Equal(t, int64(97), hashString("a"))
	require.Equal(t, int64(455507695), hashString("25000-1707561234-Amazon India-4532123456789012"))
}
