package agentkit

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// byteUnits is ordered so binary suffixes match before their decimal and
// plain-B prefixes ("KiB" before "KB" before "B").
var byteUnits = []struct {
	suffix string
	factor float64
}{
	{"KiB", 1 << 10},
	{"MiB", 1 << 20},
	{"GiB", 1 << 30},
	{"TiB", 1 << 40},
	{"KB", 1e3},
	{"MB", 1e6},
	{"GB", 1e9},
	{"TB", 1e12},
	{"B", 1},
}

// ToBytes turns a string holding a byte size with a unit suffix (B, KB, KiB,
// MB, MiB, GB, GiB, TB, TiB) into the size in bytes. The quantity may be a
// float and may be separated from the unit by a single space; a bare number is
// taken as bytes. The result is rounded to the nearest integer.
func ToBytes(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)

	for _, unit := range byteUnits {
		if !strings.HasSuffix(trimmed, unit.suffix) {
			continue
		}
		quantity := strings.TrimSpace(strings.TrimSuffix(trimmed, unit.suffix))
		value, err := strconv.ParseFloat(quantity, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
		}
		return int64(math.Round(value * unit.factor)), nil
	}

	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return int64(math.Round(value)), nil
}

// SecondsSinceMidnight returns the seconds elapsed since midnight in t's
// location.
func SecondsSinceMidnight(t time.Time) float64 {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return t.Sub(midnight).Seconds()
}
