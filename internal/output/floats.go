package output

import (
	"math"
	"strconv"
	"strings"
)

const floatScale = 1e6

// RoundFloat rounds f to 6 decimal places so confidences encode identically
// across runs.
func RoundFloat(f float64) float64 {
	return math.Round(f*floatScale) / floatScale
}

// FormatFloat renders f rounded, without trailing zeros.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(RoundFloat(f), 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
