// Package validation sanitises raw control input and checks stored estimate
// data for inconsistencies.
package validation

import (
	"math"
	"strconv"
	"strings"
)

const maxCount = math.MaxInt32

// Digits strips everything but ASCII digits from raw.
func Digits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Count sanitises raw to a non-negative integer. It returns the cleaned
// text for the control alongside the value; blank input is zero.
func Count(raw string) (string, int) {
	clean := strings.TrimLeft(Digits(raw), "0")
	if clean == "" {
		if Digits(raw) != "" {
			return "0", 0
		}
		return "", 0
	}
	n, err := strconv.Atoi(clean)
	if err != nil || n > maxCount {
		return strconv.Itoa(maxCount), maxCount
	}
	return clean, n
}

// Multiplier sanitises raw to an integer of at least one.
func Multiplier(raw string) (string, int) {
	_, n := Count(raw)
	if n < 1 {
		n = 1
	}
	return strconv.Itoa(n), n
}

// Percent clamps p to 0..100.
func Percent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// Money parses a currency string such as "$1,234.50". Junk reads as zero
// and negatives clamp to zero.
func Money(raw string) float64 {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Hours parses a manually entered hour figure. Junk and negatives read as zero.
func Hours(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
