package printer

import (
	"fmt"
	"strings"
)

// truncationMarker terminates any line cut to fit the paper width.
const truncationMarker = "..."

// accentFold maps the accented Latin characters common in Portuguese
// product names to their unaccented base letters. Thermal printers in
// their default code page garble multi-byte UTF-8, so everything is
// folded to plain ASCII before hitting the wire.
var accentFold = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
	'ç': 'c', 'ñ': 'n',
	'Á': 'A', 'À': 'A', 'Â': 'A', 'Ã': 'A', 'Ä': 'A',
	'É': 'E', 'È': 'E', 'Ê': 'E', 'Ë': 'E',
	'Í': 'I', 'Ì': 'I', 'Î': 'I', 'Ï': 'I',
	'Ó': 'O', 'Ò': 'O', 'Ô': 'O', 'Õ': 'O', 'Ö': 'O',
	'Ú': 'U', 'Ù': 'U', 'Û': 'U', 'Ü': 'U',
	'Ç': 'C', 'Ñ': 'N',
}

// normalizeText folds accents and drops anything outside printable
// ASCII. Idempotent: normalized input passes through unchanged.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if folded, ok := accentFold[r]; ok {
			r = folded
		}
		if r < 0x20 || r > 0x7e {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// truncate cuts s to at most width bytes. A cut line always ends with
// the truncation marker, counted inside the width. Called after
// normalizeText, so byte length equals printed column count.
func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	if width <= len(truncationMarker) {
		return truncationMarker[:width]
	}
	return s[:width-len(truncationMarker)] + truncationMarker
}

// formatMoney renders v with the configured currency prefix, two
// decimals and a comma separator: "R$ 10,50". The sign goes before the
// prefix so negative discrepancies read "-R$ 5,00".
func formatMoney(prefix string, v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strings.Replace(fmt.Sprintf("%.2f", v), ".", ",", 1)
	if prefix == "" {
		return sign + s
	}
	return sign + prefix + " " + s
}

// formatQuantity drops trailing zeros so weighed items show "0,452" but
// unit counts show plain "2".
func formatQuantity(q float64) string {
	s := strings.TrimRight(fmt.Sprintf("%.3f", q), "0")
	s = strings.TrimRight(s, ".")
	return strings.Replace(s, ".", ",", 1)
}
