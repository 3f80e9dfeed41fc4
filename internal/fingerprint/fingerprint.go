// Package fingerprint derives the short keyed fingerprints that banks exchange
// to correlate transactions without sharing the raw attributes.
//
// The transform is a demonstration-grade content hash. It is cheap and
// deterministic but makes no attempt to resist collision search, so it must
// not be used for authentication or integrity checks.
package fingerprint

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
)

const (
	// Size is the number of bytes in a fingerprint (32 hex characters)
	Size = 16

	lcgMultiplier = 1103515245
	lcgIncrement  = 12345
	lcgMask       = 0x7fffffff

	// fallbackCode stands in for the pattern character when the input has no alphanumerics
	fallbackCode = 65
)

// Result holds a fingerprint together with the values it was derived from
type Result struct {
	Fingerprint string `json:"fingerprint"`
	StarMap     []int  `json:"star_map"`
	Seed        string `json:"seed"`
	Input       string `json:"input"` // diagnostic only, never compared
}

// ForTransaction fingerprints the transaction attributes in their fixed order
func ForTransaction(amount, timestamp int64, merchant, card string) Result {
	return Encode(TransactionData(amount, timestamp, merchant, card))
}

// TransactionData concatenates the fingerprinted fields without delimiters
func TransactionData(amount, timestamp int64, merchant, card string) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(amount, 10))
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteString(merchant)
	b.WriteString(card)
	return b.String()
}

// Encode computes the fingerprint of an arbitrary string. It never fails:
// input without any alphanumeric characters falls back to a fixed pattern code.
func Encode(data string) Result {
	pattern := normalize(data)
	seed := strconv.FormatInt(hashString(data), 10)
	starMap := StarMap(seed)

	var b strings.Builder
	b.Grow(Size * 2)
	for i := 0; i < Size; i++ {
		code := fallbackCode
		if len(pattern) > 0 {
			code = int(pattern[i%len(pattern)])
		}
		fmt.Fprintf(&b, "%02X", (code^starMap[i])%256)
	}

	return Result{
		Fingerprint: b.String(),
		StarMap:     starMap,
		Seed:        seed,
		Input:       data,
	}
}

// StarMap expands a seed string into the 16 byte keystream mixed into the fingerprint
func StarMap(seed string) []int {
	current := hashString(seed)
	out := make([]int, Size)
	for i := range out {
		current = lcgStep(current)
		out[i] = int(current % 256)
	}
	return out
}

// lcgStep advances the generator modulo 2^31. The state never exceeds 2^31,
// so the product fits in 64 bits.
func lcgStep(current int64) int64 {
	next := uint64(current)*lcgMultiplier + lcgIncrement
	return int64(next & lcgMask)
}

// hashString is the 31-multiplier rolling hash over UTF-16 code units,
// wrapped to int32 at every step. The absolute value is returned.
func hashString(s string) int64 {
	var h int32
	for _, unit := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(unit)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}

// normalize lowercases s and keeps only ASCII letters and digits
func normalize(s string) string {
	lower := strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(lower))
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}
