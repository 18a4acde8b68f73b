// Package formatting converts byte sizes between counts and human-readable
// strings such as "1.5 MB".
package formatting

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidSize is returned by ParseBytes for malformed sizes.
var ErrInvalidSize = errors.New("invalid byte size")

// Units are base-1024. "KiB" style suffixes are accepted as synonyms.
var units = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// FormatBytes renders n with the largest unit that keeps the value at or
// above one. Negative precision is treated as zero.
func FormatBytes(n int64, precision int) string {
	if n == 0 {
		return "0 B"
	}
	precision = max(precision, 0)

	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}

	i := min(int(math.Floor(math.Log(float64(n))/math.Log(1024))), len(units)-1)
	if i == 0 {
		return fmt.Sprintf("%s%d B", sign, n)
	}

	size := float64(n) / math.Pow(1024, float64(i))
	return sign + strconv.FormatFloat(size, 'f', precision, 64) + " " + units[i]
}

// ParseBytes parses sizes such as "512", "64KB", "1.5 mb" or "2GiB". A bare
// number is a byte count. Units are case-insensitive.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidSize)
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	number, unit := s, ""
	if split >= 0 {
		number, unit = s[:split], strings.TrimSpace(s[split:])
	}
	if number == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	unit = strings.ToUpper(unit)
	if len(unit) == 3 && unit[1] == 'I' {
		unit = unit[:1] + unit[2:]
	}
	if unit == "" {
		unit = "B"
	}

	idx := slices.Index(units, unit)
	if idx == -1 {
		return 0, fmt.Errorf("%w: unknown unit %q", ErrInvalidSize, unit)
	}

	return int64(value * math.Pow(1024, float64(idx))), nil
}
