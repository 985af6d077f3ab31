package etl

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	yearPattern    = regexp.MustCompile(`\d{4}`)
	quarterPattern = regexp.MustCompile(`(\d)T`)
)

// yearFromDateCell pulls a four-digit year out of a date-like cell. The
// statement date column has carried full dates, bare years and serialized
// timestamps across releases; the four-digit run is the only stable part.
func yearFromDateCell(v string) (int, bool) {
	m := yearPattern.FindString(v)
	if m == "" {
		return 0, false
	}
	year, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return year, true
}

// QuarterFromFilename extracts the quarter from the source file name
// ("3T2025_demonstracoes.csv" → 3). The in-file period columns are not
// reliable, so the file name wins. Files without the <digit>T marker, and
// markers outside 1..4, default to the first quarter.
func QuarterFromFilename(name string) int {
	m := quarterPattern.FindStringSubmatch(strings.ToUpper(name))
	if m == nil {
		return 1
	}
	q, err := strconv.Atoi(m[1])
	if err != nil || q < 1 || q > 4 {
		return 1
	}
	return q
}
