package resolution

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Разбор количественных префиксов строк RFQ вида "100 - feet of ...",
// "50 - ...", "4 - rolls of ...". Единица измерения распознается и без
// разделителя ("2 rolls of duct tape"), но голое число без разделителя
// не трогаем: "12 AWG THHN" это калибр провода, а не количество.
const unitWords = `(?:feet|foot|ft|rolls?|pieces?|pcs?|boxes?|bags?|buckets?|each|ea|gallons?|gal|sets?|pairs?|coils?|spools?|bundles?|lengths?|sticks?|cases?|cartons?|units?|lbs?|pounds?)`

var (
	qtyDashPrefixRe = regexp.MustCompile(`(?i)^\s*\d+(?:[.,]\d+)?\s*[-–—:]+\s*(?:` + unitWords + `\b\.?\s+(?:of\s+)?)?`)
	qtyUnitPrefixRe = regexp.MustCompile(`(?i)^\s*\d+(?:[.,]\d+)?\s+` + unitWords + `\b\.?\s+(?:of\s+)?`)
	edgePunctRe     = regexp.MustCompile(`^[\s\-–—.,;:*]+|[\s\-–—.,;:*]+$`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// Normalize очищает исходный текст описания: снимает ведущий
// количественный префикс и краевую пунктуацию, схлопывает пробелы,
// приводит Unicode к NFC. Чистая функция; очистка повторяется до
// неподвижной точки, поэтому Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	s := norm.NFC.String(raw)
	for {
		next := normalizeOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func normalizeOnce(s string) string {
	if m := qtyDashPrefixRe.FindString(s); m != "" {
		s = s[len(m):]
	} else if m := qtyUnitPrefixRe.FindString(s); m != "" {
		s = s[len(m):]
	}
	s = edgePunctRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
