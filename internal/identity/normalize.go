// Package identity canonicalizes respondent identifiers so duplicate
// submissions compare equal. Every function is pure and total: malformed
// input yields ok=false, never an error or panic.
package identity

import (
	"strings"
)

// DefaultCountryCode is prepended to 11-digit domestic phone numbers.
const DefaultCountryCode = "55"

// NormalizeEmail trims and lowercases s.
func NormalizeEmail(s string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return "", false
	}
	return v, true
}

// NormalizePhone reduces s to "+<digits>".
//
// Approximate, not E.164: a leading "+" keeps the digits as given, exactly
// 11 digits are assumed domestic and get DefaultCountryCode, anything else
// is prefixed with "+" as-is.
func NormalizePhone(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	digits := onlyDigits(trimmed)
	if digits == "" {
		return "", false
	}
	if strings.HasPrefix(trimmed, "+") {
		return "+" + digits, true
	}
	if len(digits) == 11 {
		return "+" + DefaultCountryCode + digits, true
	}
	return "+" + digits, true
}

// NormalizeNationalID11 validates an 11-digit individual taxpayer number
// and formats it as XXX.XXX.XXX-XX.
func NormalizeNationalID11(s string) (string, bool) {
	d := onlyDigits(s)
	if len(d) != 11 || allSame(d) {
		return "", false
	}

	n := toInts(d)
	first := mod11Fold(n[:9], 10)
	second := mod11Fold(append(n[:9:9], first), 11)
	if n[9] != first || n[10] != second {
		return "", false
	}

	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11], true
}

var (
	weights14First  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	weights14Second = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// NormalizeNationalID14 validates a 14-digit company registration number
// and formats it as XX.XXX.XXX/XXXX-XX.
func NormalizeNationalID14(s string) (string, bool) {
	d := onlyDigits(s)
	if len(d) != 14 || allSame(d) {
		return "", false
	}

	n := toInts(d)
	first := mod11Weighted(n[:12], weights14First)
	second := mod11Weighted(append(n[:12:12], first), weights14Second)
	if n[12] != first || n[13] != second {
		return "", false
	}

	return d[0:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:14], true
}

// NormalizeNationalID accepts either document, dispatching on digit count.
func NormalizeNationalID(s string) (string, bool) {
	switch len(onlyDigits(s)) {
	case 11:
		return NormalizeNationalID11(s)
	case 14:
		return NormalizeNationalID14(s)
	default:
		return "", false
	}
}

// mod11Fold weights digits from start down to 2; a result of 10 folds to 0.
func mod11Fold(digits []int, start int) int {
	sum := 0
	for i, v := range digits {
		sum += v * (start - i)
	}
	r := (sum * 10) % 11
	if r == 10 {
		return 0
	}
	return r
}

func mod11Weighted(digits, weights []int) int {
	sum := 0
	for i, v := range digits {
		sum += v * weights[i]
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allSame(d string) bool {
	for i := 1; i < len(d); i++ {
		if d[i] != d[0] {
			return false
		}
	}
	return true
}

func toInts(d string) []int {
	out := make([]int, len(d))
	for i := range d {
		out[i] = int(d[i] - '0')
	}
	return out
}
