// Package formatting converts byte sizes between counts and human-readable
// strings such as "25MB" or "1.5 KB".
package formatting

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// units are base-1024 steps; units[i] is 1024^i bytes.
var units = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

var sizePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([A-Za-z]*)$`)

// FormatBytes renders n with the largest unit that keeps the value at or
// above one, using precision decimal places (negative means zero).
func FormatBytes(n int64, precision int) string {
	precision = max(precision, 0)

	value := float64(n)
	i := 0
	for math.Abs(value) >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	if i == 0 {
		precision = 0
	}

	return strconv.FormatFloat(value, 'f', precision, 64) + " " + units[i]
}

// ParseBytes parses sizes such as "512", "25MB", "1.5 kb", or "2 GB".
// A bare number is a byte count.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}

	exp := 0
	if unit := strings.ToUpper(m[2]); unit != "" {
		if exp = slices.Index(units, unit); exp < 0 {
			return 0, fmt.Errorf("unknown byte size unit %q", m[2])
		}
	}

	return int64(value * math.Pow(1024, float64(exp))), nil
}
