package store

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CleanNumber parses numeric-looking text such as " 1,234.5 ". Thousands
// separators and surrounding whitespace are dropped. Anything that does not
// parse to a finite number yields 0.
func CleanNumber(value string) float64 {
	value = strings.TrimSpace(strings.ReplaceAll(value, ",", ""))
	return parseFinite(value)
}

// CleanPercentage parses values such as "12.5%" or " 3 % ". Missing or
// unparseable input yields 0.
func CleanPercentage(value string) float64 {
	value = strings.TrimSpace(strings.ReplaceAll(value, "%", ""))
	return parseFinite(value)
}

func parseFinite(value string) float64 {
	if value == "" {
		return 0
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// CleanName trims a name and puts it in NFC so that composed and decomposed
// Hangul compare equal.
func CleanName(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}
