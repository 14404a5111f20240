package format

import (
	"math"

	"golang.org/x/text/number"
)

// FormatNumber renders n with locale digit grouping and up to three
// fraction digits (e.g. "1,234.5" in English, "1 234,5" in Russian).
func (f *Formatter) FormatNumber(n float64) string {
	return f.printer.Sprint(number.Decimal(n, number.MaxFractionDigits(3)))
}

// FormatCompactNumber renders n in short compact notation: two significant
// digits below 100 of a unit ("1.2K", "12K"), whole units above ("123K").
func (f *Formatter) FormatCompactNumber(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return f.FormatNumber(n)
	}
	abs := math.Abs(n)
	unit := -1
	scaled := abs
	for unit < len(f.words.compact)-1 && scaled >= 1000 {
		scaled /= 1000
		unit++
	}

	scaled = roundCompact(scaled)
	// 999.96K rounds up to 1000K; promote to the next unit.
	if scaled >= 1000 && unit < len(f.words.compact)-1 {
		scaled = roundCompact(scaled / 1000)
		unit++
	}
	if n < 0 {
		scaled = -scaled
	}

	digits := 0
	if math.Abs(scaled) < 10 {
		digits = 1
	}
	s := f.printer.Sprint(number.Decimal(scaled, number.MaxFractionDigits(digits)))
	if unit >= 0 {
		s += f.words.compact[unit]
	}
	return s
}

func roundCompact(v float64) float64 {
	if v < 10 {
		return math.Round(v*10) / 10
	}
	return math.Round(v)
}
